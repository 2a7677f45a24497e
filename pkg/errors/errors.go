package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents an error code
type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeInvalidCredential  ErrorCode = "INVALID_CREDENTIAL"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeMalformedUpdate    ErrorCode = "MALFORMED_UPDATE"
	ErrCodeChallengeExpired   ErrorCode = "CHALLENGE_EXPIRED"
	ErrCodeNoActiveChallenge  ErrorCode = "NO_ACTIVE_CHALLENGE"
	ErrCodeRateLimited        ErrorCode = "RATE_LIMITED"
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinels declared with
// New can be compared against wrapped instances with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain
func CodeOf(err error) (ErrorCode, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// IsNotFound checks if error is NotFound
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsConflict checks if error is Conflict
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsInvalidCredential checks if error is an authentication failure
func IsInvalidCredential(err error) bool {
	return hasCode(err, ErrCodeInvalidCredential)
}

// IsMalformedUpdate checks if error is a rejected content update
func IsMalformedUpdate(err error) bool {
	return hasCode(err, ErrCodeMalformedUpdate)
}

// IsBackendUnavailable checks if error is a storage connectivity failure
func IsBackendUnavailable(err error) bool {
	return hasCode(err, ErrCodeBackendUnavailable)
}
