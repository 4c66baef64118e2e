package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound  ErrorCode = "NOT_FOUND"
	ErrCodeInvalid   ErrorCode = "INVALID"
	ErrCodeConflict  ErrorCode = "CONFLICT"
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
	ErrCodeInternal  ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
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

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf builds a domain error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrTaskNotFound         = NewError(ErrCodeNotFound, "task not found")
	ErrPrincipalNotFound    = NewError(ErrCodeNotFound, "principal not found")
	ErrRuleNotFound         = NewError(ErrCodeNotFound, "recurrence rule not found")
	ErrCommentNotFound      = NewError(ErrCodeNotFound, "comment not found")
	ErrNotificationNotFound = NewError(ErrCodeNotFound, "notification not found")
	ErrSnapshotNotFound     = NewError(ErrCodeNotFound, "analytics snapshot not found")
	ErrForbidden            = NewError(ErrCodeForbidden, "operation not permitted")
	ErrTaskDeleted          = NewError(ErrCodeConflict, "task is in trash")
	ErrTaskNotDeleted       = NewError(ErrCodeConflict, "task is not in trash")
	ErrInvalidPayload       = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
