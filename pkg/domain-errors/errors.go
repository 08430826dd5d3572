// Package domainerrors provides coded errors shared by every layer of the
// console. Transport and store failures are translated into one of these
// codes at component boundaries so callers can branch on the category
// (transport, unauthorized, validation, command) instead of on concrete
// error types.
//
// Usage:
//
//	err := dErrors.New(dErrors.CodeCommandRejected, "Failed to revoke device")
//	err = dErrors.Wrap(cause, dErrors.CodeTransport, "list devices")
//	if dErrors.HasCode(err, dErrors.CodeUnauthorized) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for propagation decisions.
type Code string

const (
	// CodeTransport covers network failures, timeouts and 5xx responses.
	CodeTransport Code = "transport_error"
	// CodeUnauthorized is a 401 from any backend call; it forces logout.
	CodeUnauthorized Code = "unauthorized"
	// CodeValidation marks a response whose shape could not be decoded.
	CodeValidation Code = "validation_error"
	// CodeCommandRejected marks a revoke/delete the backend refused.
	CodeCommandRejected Code = "command_rejected"
	// CodeDeclined marks a destructive command the operator did not confirm.
	CodeDeclined Code = "declined"

	CodeNotFound   Code = "not_found"
	CodeBadRequest Code = "bad_request"
	CodeTimeout    Code = "timeout"
	CodeInternal   Code = "internal_error"
)

// Error is a coded error with an optional cause.
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

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
// Wrapping a nil error returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// chain carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain has the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is reports whether err matches target. Thin alias kept so callers only
// import one errors package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Message returns the human-readable message of the outermost coded error,
// falling back to err.Error().
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
