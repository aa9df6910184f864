package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed error carrying the HTTP status it maps to.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Code so callers can use errors.Is(err, apperr.ErrBusy).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates an Error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrCapture      = New("CAPTURE_FAILED", http.StatusBadGateway, "attendance capture failed")
	ErrConfirm      = New("CONFIRM_FAILED", http.StatusBadGateway, "attendance confirmation failed")
	ErrBusy         = New("BUSY", http.StatusConflict, "a capture batch is still in progress")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Validation returns a validation error with a user-facing message.
func Validation(message string) *Error {
	return Clone(ErrValidation, message)
}

// NotFound returns a not-found error naming what is missing.
func NotFound(message string) *Error {
	return Clone(ErrNotFound, message)
}

// Conflict returns a conflict error.
func Conflict(message string) *Error {
	return Clone(ErrConflict, message)
}

// Capture wraps a failed capture call.
func Capture(err error, message string) *Error {
	return Wrap(err, ErrCapture.Code, ErrCapture.Status, message)
}

// Confirm wraps a failed confirmation call.
func Confirm(err error) *Error {
	return Wrap(err, ErrConfirm.Code, ErrConfirm.Status, "failed to confirm attendance, please try again")
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies err, replacing the message when one is given.
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
