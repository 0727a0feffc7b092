// Package apperr carries the error taxonomy shared by services and handlers.
// Services return *Error values; handlers turn them into an HTTP status and a
// JSON body with a human readable message and a machine readable code.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindDuplicate
	KindConflict
	KindUnauthorized
	KindForbidden
	KindNotFound
)

// Codes returned to clients.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeDoctorSlotTaken   = "doctor_slot_taken"
	CodeUserSlotTaken     = "user_slot_taken"
	CodeInvalidStatus     = "invalid_status"
	CodeInvalidTransition = "invalid_transition"
	CodeDuplicateRating   = "duplicate_rating"
	CodeNotRateable       = "appointment_not_rateable"
	CodePhoneTaken        = "phone_taken"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal_error"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Invalid(code, msg string) *Error {
	return &Error{Kind: KindInvalid, Code: code, Message: msg}
}

func Duplicate(code, msg string) *Error {
	return &Error{Kind: KindDuplicate, Code: code, Message: msg}
}

func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: CodeForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: msg}
}

// Internal wraps a storage or transport failure. msg is what the client sees;
// err is only logged.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: msg, Err: err}
}

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("Internal server error", err)
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalid, KindDuplicate:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
