package types

import (
	"errors"

	"github.com/google/uuid"
)

// ID names a message, window, or connection
type ID string

// NewID converts s to an ID
func NewID(s string) ID {
	return ID(s)
}

func (i ID) String() string {
	return string(i)
}

// IsEmpty reports whether the ID is unset
func (i ID) IsEmpty() bool {
	return i == ""
}

// GenerateID returns a random UUID
func GenerateID() ID {
	return ID(uuid.NewString())
}

// Error carries a code the caller can branch on, a message, and an
// optional cause
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError returns an *Error without a cause
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError returns an *Error around err
func WrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// GetErrorCode returns the code of the first *Error in err's chain, or ""
func GetErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsErrCode reports whether the first *Error in err's chain has code
func IsErrCode(err error, code string) bool {
	return code != "" && GetErrorCode(err) == code
}

// Error codes
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeInvalid         = "INVALID"
	ErrCodePermission      = "PERMISSION"
	ErrCodeInternal        = "INTERNAL"
	ErrCodeUnavailable     = "UNAVAILABLE"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeCanceled        = "CANCELED"
	ErrCodeHandlerFailed   = "HANDLER_FAILED"
	ErrCodeTransport       = "TRANSPORT"
	ErrCodeRateLimited     = "RATE_LIMITED"
)
