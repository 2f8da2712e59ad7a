package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes into the categories callers branch on.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "CONFLICT"
	KindState      Kind = "STATE"
	KindAuth       Kind = "AUTH"
	KindInternal   Kind = "INTERNAL"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code so clones and wraps of a predefined error still satisfy
// errors.Is against the original.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, kind Kind, status int, message string) *Error {
	return &Error{Code: code, Kind: kind, Status: status, Message: message}
}

// Wrap attaches context to an existing error using the template's code, kind and status.
func Wrap(err error, template *Error, message string) *Error {
	if message == "" {
		message = template.Message
	}
	return &Error{Code: template.Code, Kind: template.Kind, Status: template.Status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation   = New("VALIDATION_ERROR", KindValidation, http.StatusBadRequest, "validation failed")
	ErrNotFound     = New("NOT_FOUND", KindNotFound, http.StatusNotFound, "resource not found")
	ErrConflict     = New("CONFLICT", KindConflict, http.StatusConflict, "conflict")
	ErrUnauthorized = New("UNAUTHORIZED", KindAuth, http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", KindAuth, http.StatusForbidden, "forbidden")
	ErrInternal     = New("INTERNAL_ERROR", KindInternal, http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", KindNotFound, http.StatusNotFound, "cache miss")
)

// Schedule and attendance ledger errors.
var (
	ErrScheduleIncomplete = New("SCHEDULE_INCOMPLETE", KindValidation, http.StatusBadRequest, "class schedule is incomplete")
	ErrEmptySchedule      = New("EMPTY_SCHEDULE", KindState, http.StatusUnprocessableEntity, "class schedule produces no lessons")
	ErrInactiveClass      = New("CLASS_INACTIVE", KindState, http.StatusUnprocessableEntity, "class is not active")
	ErrLedgerExists       = New("LEDGER_ALREADY_EXISTS", KindConflict, http.StatusConflict, "attendance ledger already exists")
)

// Wage and payment errors.
var (
	ErrAlreadyFullyPaid = New("ALREADY_FULLY_PAID", KindConflict, http.StatusConflict, "wage record is already fully paid")
	ErrExceedsRemaining = New("EXCEEDS_REMAINING", KindState, http.StatusUnprocessableEntity, "payment exceeds remaining amount")
	ErrNothingToPay     = New("NOTHING_TO_PAY", KindState, http.StatusUnprocessableEntity, "no unpaid wage records for period")
	ErrHasPayment       = New("HAS_PAYMENT", KindState, http.StatusUnprocessableEntity, "wage record has received payment")
	ErrStaleRecord      = New("STALE_RECORD", KindConflict, http.StatusConflict, "record was modified concurrently")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal, "")
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// KindOf reports the kind of err, INTERNAL for untyped errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return FromError(err).Kind
}
