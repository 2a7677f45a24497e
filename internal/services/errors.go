package services

import (
	"errors"
	"net/http"

	apperrors "portfolio/pkg/errors"
)

// ErrorResponse is the JSON body written for a failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// StatusFor maps an error to its HTTP status. Authentication failures of
// any kind become 401; unknown errors become 500.
func StatusFor(err error) int {
	code, ok := apperrors.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case apperrors.ErrCodeBadRequest, apperrors.ErrCodeMalformedUpdate:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidCredential, apperrors.ErrCodeChallengeExpired, apperrors.ErrCodeNoActiveChallenge:
		return http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// NewErrorResponse builds the body for err. Internal errors are not echoed.
func NewErrorResponse(err error) *ErrorResponse {
	status := StatusFor(err)
	resp := &ErrorResponse{Error: http.StatusText(status)}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		resp.Code = string(appErr.Code)
		resp.Message = appErr.Message
		return resp
	}
	resp.Message = "internal server error"
	return resp
}
