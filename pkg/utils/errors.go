package utils

import (
	"fmt"
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	// Parameter errors
	ErrInvalidParam = NewError(CodeInvalidParam, "invalid parameter")
	ErrUnauthorized = NewError(CodeUnauthorized, "unauthorized")

	// Entity lookups
	ErrUserNotFound     = NewError(CodeUserNotFound, "user not found")
	ErrActivityNotFound = NewError(CodeActivityNotFound, "activity not found")
	ErrPrizeNotFound    = NewError(CodePrizeNotFound, "prize not found")
	ErrUserExists       = NewError(CodeUserExists, "username already exists")

	// Draw business outcomes
	ErrActivityNotStarted = NewError(CodeActivityNotStarted, "activity not started")
	ErrActivityEnded      = NewError(CodeActivityEnded, "activity ended")
	ErrDrawQuotaExhausted = NewError(CodeDrawQuotaExhausted, "draw quota exhausted")
	ErrWinQuotaExhausted  = NewError(CodeWinQuotaExhausted, "win quota exhausted")

	// System errors
	ErrInternalError = NewError(CodeInternalError, "internal server error")
	ErrEncodingError = NewError(CodeEncodingError, "entity encoding failed")
	ErrServiceError  = NewError(CodeServiceError, "service error")
)

// IsAppError check if it's an application error
func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage get error message
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
