package model

import "time"

// CircuitStatus is the position of the breaker state machine.
type CircuitStatus int

const (
	// CircuitClosed indicates normal operation; calls pass through.
	CircuitClosed CircuitStatus = iota
	// CircuitOpen indicates the breaker is rejecting calls until the
	// cooldown elapses.
	CircuitOpen
	// CircuitHalfOpen indicates a single trial call is permitted.
	CircuitHalfOpen
)

// String returns the lowercase status name.
func (s CircuitStatus) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "closed"
}

// CircuitState is the full breaker state. It is a value type: transitions
// produce a new state rather than mutating in place, which keeps them
// testable without timers or network calls.
type CircuitState struct {
	Status      CircuitStatus
	Failures    int
	LastFailure time.Time
	Threshold   int
	Cooldown    time.Duration
}
