package protocol

import (
	"errors"
	"fmt"
)

// ErrorType is the closed enumeration of failure kinds reported to collaborators.
type ErrorType string

const (
	TypeValidation    ErrorType = "VALIDATION_ERROR"
	TypePermission    ErrorType = "PERMISSION_ERROR"
	TypeNotFound      ErrorType = "NOT_FOUND_ERROR"
	TypePathExists    ErrorType = "PATH_EXISTS_ERROR"
	TypeEncoding      ErrorType = "ENCODING_ERROR"
	TypeIO            ErrorType = "IO_ERROR"
	TypeCommandFailed ErrorType = "COMMAND_FAILED_ERROR"
	TypeTimeout       ErrorType = "TIMEOUT_ERROR"
	TypeCancelled     ErrorType = "CANCELLED_ERROR"
	TypeInternal      ErrorType = "INTERNAL_ERROR"
)

// ErrorTypes returns every error kind in declaration order.
func ErrorTypes() []ErrorType {
	return []ErrorType{
		TypeValidation, TypePermission, TypeNotFound, TypePathExists, TypeEncoding,
		TypeIO, TypeCommandFailed, TypeTimeout, TypeCancelled, TypeInternal,
	}
}

// Valid reports whether t is a member of the error enumeration.
func (t ErrorType) Valid() bool {
	for _, known := range ErrorTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Error is a failure that already knows which ErrorType it maps to.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf returns a typed error with a formatted message.
func Errorf(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a typed error with a formatted message and an underlying cause.
func Wrap(t ErrorType, err error, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// TypeOf returns the ErrorType carried by err. Errors that were never
// classified report TypeInternal; a nil error reports the empty type.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var perr *Error
	if errors.As(err, &perr) && perr.Type.Valid() {
		return perr.Type
	}
	return TypeInternal
}

// IsType reports whether err carries the ErrorType t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
