package biz

import (
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"InstantMBTA/internal/model"
	apperrors "InstantMBTA/pkg/errors"
)

// Clock abstracts time.Now so breaker and scheduler behavior is testable
// without real timers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real clock.
func SystemClock() Clock { return systemClock{} }

// Outcome is the result of one gated call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeFailure covers transport errors, timeouts, and non-2xx
	// responses. Decode failures are not failures: the upstream answered.
	OutcomeFailure
)

// Transition applies one call outcome to a circuit state and returns the
// next state. It is a pure function of (state, outcome, now); every outcome
// drives exactly one transition.
func Transition(state model.CircuitState, outcome Outcome, now time.Time) model.CircuitState {
	switch state.Status {
	case model.CircuitClosed:
		if outcome == OutcomeSuccess {
			state.Failures = 0
			return state
		}
		state.Failures++
		state.LastFailure = now
		if state.Failures >= state.Threshold {
			state.Status = model.CircuitOpen
		}
		return state
	case model.CircuitHalfOpen:
		if outcome == OutcomeSuccess {
			state.Status = model.CircuitClosed
			state.Failures = 0
			return state
		}
		// Trial call failed: back to open, cooldown restarts.
		state.Status = model.CircuitOpen
		state.LastFailure = now
		return state
	default: // open
		// Outcomes landing here come from calls admitted before the
		// circuit opened. They are stale and must not move the cooldown.
		return state
	}
}

// Breaker gates outbound calls to the prediction API. All fetches for the
// same upstream share one Breaker; state transitions happen under a single
// mutex so concurrent call outcomes cannot race.
type Breaker struct {
	mu      sync.Mutex
	state   model.CircuitState
	probing bool
	clock   Clock
	logger  *log.Helper
}

// NewBreaker creates a closed breaker with the given threshold and cooldown.
func NewBreaker(threshold int, cooldown time.Duration, clock Clock, logger log.Logger) *Breaker {
	if clock == nil {
		clock = SystemClock()
	}
	return &Breaker{
		state: model.CircuitState{
			Status:    model.CircuitClosed,
			Threshold: threshold,
			Cooldown:  cooldown,
		},
		clock:  clock,
		logger: log.NewHelper(logger),
	}
}

// Allow reports whether a call may proceed. While open it fails fast with a
// CircuitOpenError until the cooldown elapses, then admits exactly one trial
// call; further callers keep failing fast until that trial's outcome is
// recorded.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state.Status {
	case model.CircuitClosed:
		return nil
	case model.CircuitOpen:
		elapsed := b.clock.Now().Sub(b.state.LastFailure)
		if elapsed < b.state.Cooldown {
			return &apperrors.CircuitOpenError{RetryAfter: b.state.Cooldown - elapsed}
		}
		b.state.Status = model.CircuitHalfOpen
		b.probing = true
		b.logger.Infow("circuit breaker half-open, admitting trial call")
		return nil
	default: // half-open
		if b.probing {
			return &apperrors.CircuitOpenError{RetryAfter: 0}
		}
		b.probing = true
		return nil
	}
}

// Record applies one call outcome. Timeouts count as failures.
func (b *Breaker) Record(outcome Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.state.Status
	b.state = Transition(b.state, outcome, b.clock.Now())
	b.probing = false

	if prev != b.state.Status {
		b.logger.Warnw("circuit breaker state change",
			"from", prev.String(),
			"to", b.state.Status.String(),
			"failures", b.state.Failures)
	}
}

// State returns a snapshot of the current circuit state.
func (b *Breaker) State() model.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
