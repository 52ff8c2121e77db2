// Package errors defines the error taxonomy shared across CodeLoop's
// components. Callers should prefer errors.Is/errors.As over string
// comparison; sentinels are wrapped as the cause of an *Error (see Wrap),
// so errors.Is still finds them.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies which branch of the taxonomy an Error belongs to.
// Kinds map directly onto the Transport Front-End's response handling
// and the Orchestrator's escalation-reason selection.
type Kind string

const (
	KindValidation       Kind = "validation_error"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindRateLimited      Kind = "rate_limited"
	KindNotFound         Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindExternalTimeout  Kind = "external_timeout"
	KindDangerousOutput  Kind = "dangerous_output"
	KindTaskRejected     Kind = "task_rejected"
	KindInternal         Kind = "internal_error"
)

// Sentinels for errors.Is comparisons where no extra fields are needed.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrExternalTimeout    = errors.New("external call timed out")
	ErrDangerousOutput    = errors.New("generated artifact matched a dangerous-output heuristic")
)

// Error is the structured error type surfaced to the Transport
// Front-End. Fields carries field-level validation messages (used by
// KindValidation) or auxiliary context (retry_after_seconds, etc.).
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithField attaches a field-level message (e.g. validation errors) and
// returns the same *Error for chaining.
func (e *Error) WithField(field, message string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err
// is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrStorageUnavailable):
		return KindStorageUnavailable
	case errors.Is(err, ErrExternalTimeout):
		return KindExternalTimeout
	case errors.Is(err, ErrDangerousOutput):
		return KindDangerousOutput
	default:
		return KindInternal
	}
}

// IsTransient reports whether err is a Persistence-layer error class
// that the retry discipline in §5/§4.2 should retry: unreachable,
// timeout, connection-closed, database-timeout, operations-timed-out.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// TransientError marks a Persistence error as retryable and records the
// reason code it was classified under.
type TransientError struct {
	Code string // unreachable | timeout | connection-closed | database-timeout | operations-timed-out
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient storage error (%s): %v", e.Code, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransient wraps err as a TransientError with the given code.
func NewTransient(code string, err error) *TransientError {
	return &TransientError{Code: code, Err: err}
}
