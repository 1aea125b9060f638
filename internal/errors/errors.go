// Package errors is the error taxonomy of the job engine. Every failure that
// reaches an HTTP handler carries one of the codes below so it can be mapped
// to a status without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode names a failure category.
type ErrorCode string

const (
	ErrCodeNotFound   ErrorCode = "not_found"  // unknown job, log or file
	ErrCodeConflict   ErrorCode = "conflict"   // request contradicts current job state
	ErrCodeValidation ErrorCode = "validation" // malformed client input
	ErrCodeInternal   ErrorCode = "internal"   // spawn, filesystem or I/O failure
	ErrCodeTimeout    ErrorCode = "timeout"
)

// AppError is a coded error. Field names the offending request field for
// validation failures.
type AppError struct {
	Code    ErrorCode
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// New returns an AppError with a literal message.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func format(code ErrorCode, layout string, args []any) *AppError {
	return New(code, fmt.Sprintf(layout, args...))
}

func NotFound(message string) *AppError   { return New(ErrCodeNotFound, message) }
func Conflict(message string) *AppError   { return New(ErrCodeConflict, message) }
func Validation(message string) *AppError { return New(ErrCodeValidation, message) }
func Internal(message string) *AppError   { return New(ErrCodeInternal, message) }

func NotFoundf(layout string, args ...any) *AppError {
	return format(ErrCodeNotFound, layout, args)
}

func Conflictf(layout string, args ...any) *AppError {
	return format(ErrCodeConflict, layout, args)
}

func Validationf(layout string, args ...any) *AppError {
	return format(ErrCodeValidation, layout, args)
}

func Internalf(layout string, args ...any) *AppError {
	return format(ErrCodeInternal, layout, args)
}

// ValidationField reports bad input in a named request field.
func ValidationField(field, message string) *AppError {
	err := Validation(message)
	err.Field = field
	return err
}

// Wrap attaches a code and message to err. A nil err stays nil.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	wrapped := New(code, message)
	wrapped.Cause = err
	return wrapped
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, layout string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(layout, args...))
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the code of err, or "" for uncoded errors.
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ""
}

// GetField returns the request field of err, or "".
func GetField(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Field
	}
	return ""
}

func IsNotFound(err error) bool   { return GetCode(err) == ErrCodeNotFound }
func IsConflict(err error) bool   { return GetCode(err) == ErrCodeConflict }
func IsValidation(err error) bool { return GetCode(err) == ErrCodeValidation }
func IsInternal(err error) bool   { return GetCode(err) == ErrCodeInternal }
func IsTimeout(err error) bool    { return GetCode(err) == ErrCodeTimeout }
