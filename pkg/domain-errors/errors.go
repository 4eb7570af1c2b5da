// Package domainerrors provides coded errors for the service domains.
// Services create them, transports map them; conventionally imported as
//
//	dErrors "dadcircles/pkg/domain-errors"
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and metrics labels.
type Code string

const (
	// CodeInvalidInput marks input rejected at a trust boundary (parsing).
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation marks a request that parsed but failed domain validation.
	CodeValidation Code = "validation"
	// CodeNotFound marks a missing resource.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a lost race: CAS failure, optimistic version
	// mismatch, or a run lease held elsewhere. Callers may retry.
	CodeConflict Code = "conflict"
	// CodeInvalidTransition marks a state-machine violation, e.g. approving
	// a deleted group. Retrying without a state change will not succeed.
	CodeInvalidTransition Code = "invalid_transition"
	// CodeInvariantViolation marks a broken model invariant. These indicate
	// a programming error or corrupted data, never bad user input.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable marks a dependency that is down or circuit-broken.
	CodeUnavailable Code = "unavailable"
	// CodeTimeout marks work abandoned due to deadline or cancellation.
	CodeTimeout Code = "timeout"
	// CodeInternal is the catch-all for unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. The message is safe to log; whether it is
// safe to return to clients is the transport's decision (internal errors are
// suppressed there).
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. Callers must
// check err first: the nil result is a typed pointer, not a nil interface.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for e := err; e != nil; {
		if errors.As(e, &de) {
			if de.Code == code {
				return true
			}
			e = de.Err
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the error carries no code. A nil error has no code and
// returns the empty string.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
