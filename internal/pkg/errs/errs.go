/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, an error kind, a user-friendly message, an HTTP status code
and an optional underlying cause.
*/
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"mentorlink/internal/pkg/logx"
)

// Kind classifies an error for callers that only care about how to react to it.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindDelivery      Kind = "delivery"
	KindPoll          Kind = "poll"
	KindInternal      Kind = "internal"
)

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Kind is the error class derived from Code.
	Kind Kind

	// Message is the user-friendly error description.
	Message string

	// Status is the standard HTTP status code corresponding to this error.
	Status int

	// Cause is the underlying error, if any. It is never sent to clients.
	Cause error
}

// Error implements the standard Go error interface.
func (e *CustomError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Error Code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *CustomError) Unwrap() error {
	return e.Cause
}

// NewError constructs a *CustomError from a predefined error code.
// The optional details are printf arguments for the message template. An unknown code
// yields ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = http.StatusOK
	}

	if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}

// Wrap builds the error for code and records cause as its underlying error.
func Wrap(code int, cause error) *CustomError {
	customErr := NewError(code)
	customErr.Cause = cause
	return customErr
}

// FromWire rebuilds an error received in a response envelope. The server's message is kept
// so formatted templates survive the round trip.
func FromWire(code int, message string, status int) *CustomError {
	customErr := NewError(code)
	if message != "" {
		customErr.Message = message
	}
	if status != 0 {
		customErr.Status = status
	}
	return customErr
}

// As returns the *CustomError in err's chain, if any.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// KindOf reports the kind of err. Errors that are not CustomErrors are internal.
func KindOf(err error) Kind {
	if customErr, ok := As(err); ok {
		return customErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a CustomError of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HasCode reports whether err is a CustomError with the given code.
func HasCode(err error, code int) bool {
	customErr, ok := As(err)
	return ok && customErr.Code == code
}

// ForWrite classifies a failed write command. Validation, authorization, not-found and
// conflict answers from the backend pass through; anything else becomes ErrDeliveryFailed.
func ForWrite(err error) error {
	if err == nil {
		return nil
	}
	switch KindOf(err) {
	case KindValidation, KindAuthorization, KindNotFound, KindConflict:
		return err
	}
	return Wrap(ErrDeliveryFailed, err)
}

// ForPoll classifies a failed background fetch as ErrPollFailed, keeping authorization
// failures intact.
func ForPoll(err error) error {
	if err == nil {
		return nil
	}
	if IsKind(err, KindAuthorization) {
		return err
	}
	return Wrap(ErrPollFailed, err)
}
