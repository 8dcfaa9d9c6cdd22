// Package errors provides the transit error taxonomy and classification helpers.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// NameResolutionError reports a friendly station or route name that matched
// no alias after normalization. The affected request is dropped; the cycle
// continues for the remaining requests.
type NameResolutionError struct {
	Kind string // "station" or "route"
	Name string
	// Candidates holds canonical ids when an abbreviation matched more than
	// one entry. Empty for a plain miss.
	Candidates []string
}

// Error implements the error interface.
func (e *NameResolutionError) Error() string {
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("ambiguous %s name %q: matches %v", e.Kind, e.Name, e.Candidates)
	}
	return fmt.Sprintf("unknown %s name %q", e.Kind, e.Name)
}

// CircuitOpenError reports a call rejected by the circuit breaker without a
// network attempt. RetryAfter is the time remaining until the breaker will
// admit a trial call.
type CircuitOpenError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open: retry after %s", e.RetryAfter)
}

// UpstreamError reports a transport failure, timeout, or non-2xx response
// from the prediction API. These count toward opening the circuit.
type UpstreamError struct {
	Op         string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream returned HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// DecodeError reports a reachable upstream that returned a payload we could
// not interpret. Not counted as a circuit failure: the circuit tracks
// availability, not payload shape.
type DecodeError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ConfigValidationError is fatal at startup: the process must not start a
// refresh cycle with an invalid configuration.
type ConfigValidationError struct {
	Field string
	Msg   string
}

// Error implements the error interface.
func (e *ConfigValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Msg)
}

// IsNameResolution reports whether err is a NameResolutionError.
func IsNameResolution(err error) bool {
	var e *NameResolutionError
	return errors.As(err, &e)
}

// IsCircuitOpen reports whether err is a CircuitOpenError.
func IsCircuitOpen(err error) bool {
	var e *CircuitOpenError
	return errors.As(err, &e)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var e *UpstreamError
	return errors.As(err, &e)
}

// IsDecode reports whether err is a DecodeError.
func IsDecode(err error) bool {
	var e *DecodeError
	return errors.As(err, &e)
}
