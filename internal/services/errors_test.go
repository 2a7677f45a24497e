package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"portfolio/internal/util"
	apperrors "portfolio/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{apperrors.New(apperrors.ErrCodeMalformedUpdate, "projects[0]: title is required"), http.StatusBadRequest},
		{ErrInvalidCredential, http.StatusUnauthorized},
		{util.ErrChallengeExpired, http.StatusUnauthorized},
		{fmt.Errorf("verify: %w", util.ErrNoActiveChallenge), http.StatusUnauthorized},
		{apperrors.New(apperrors.ErrCodeNotFound, "x"), http.StatusNotFound},
		{apperrors.New(apperrors.ErrCodeConflict, "x"), http.StatusConflict},
		{apperrors.New(apperrors.ErrCodeRateLimited, "x"), http.StatusTooManyRequests},
		{apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, "x", errors.New("timeout")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.err), tt.err.Error())
	}
}

func TestNewErrorResponse_HidesInternalErrors(t *testing.T) {
	resp := NewErrorResponse(errors.New("pq: password authentication failed"))
	assert.Equal(t, "internal server error", resp.Message)
	assert.Empty(t, resp.Code)

	resp = NewErrorResponse(apperrors.New(apperrors.ErrCodeConflict, "already subscribed"))
	assert.Equal(t, "CONFLICT", resp.Code)
	assert.Equal(t, "already subscribed", resp.Message)
	assert.Equal(t, "Conflict", resp.Error)
}
