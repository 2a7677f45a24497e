package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"portfolio/internal/config"
	"portfolio/internal/metrics"
	"portfolio/internal/util"
	apperrors "portfolio/pkg/errors"
)

// AdminID identifies the one admin account
const AdminID = "admin"

// LoginResult tells the client a login code was sent
type LoginResult struct {
	Requires2FA bool   `json:"requires2FA"`
	Message     string `json:"message,omitempty"`
}

// TokenResult carries an admin session token
type TokenResult struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
}

// AuthService runs the two-step admin login
type AuthService struct {
	creds      *CredentialManager
	challenges *util.ChallengeStore
	tokens     *util.TokenIssuer
	mailer     Mailer
	adminEmail string
}

// NewAuthService creates a new auth service
func NewAuthService(creds *CredentialManager, challenges *util.ChallengeStore, tokens *util.TokenIssuer, mailer Mailer, cfg *config.AuthConfig) *AuthService {
	return &AuthService{
		creds:      creds,
		challenges: challenges,
		tokens:     tokens,
		mailer:     mailer,
		adminEmail: cfg.AdminEmail,
	}
}

// Login checks the password and emails a fresh login code
func (s *AuthService) Login(ctx context.Context, password string) (*LoginResult, error) {
	log.Printf("[AUTH] Login attempt")

	ok, err := s.creds.Verify(ctx, password)
	if err != nil {
		log.Printf("[AUTH] Login failed: credential lookup error: %v", err)
		return nil, err
	}
	if !ok {
		log.Printf("[AUTH] Login failed: invalid password")
		metrics.RecordAuthAttempt(false)
		return nil, ErrInvalidCredential
	}

	s.challenges.CleanupExpired()
	code, err := s.challenges.Issue(AdminID)
	if err != nil {
		log.Printf("[AUTH] Login failed: could not issue code: %v", err)
		return nil, err
	}
	metrics.RecordOTPIssued()

	switch {
	case !s.mailer.IsEnabled():
		log.Printf("[AUTH] DEV MODE - login code: %s (valid for %s)", code, s.challenges.TTL())
	case s.adminEmail == "":
		s.challenges.Clear(AdminID)
		log.Printf("[AUTH] Login failed: ADMIN_EMAIL is not set")
		return nil, apperrors.New(apperrors.ErrCodeBackendUnavailable, "admin email is not configured")
	default:
		if err := s.mailer.Send(s.adminEmail, "Your admin login code", otpEmailBody(code, s.challenges.TTL())); err != nil {
			s.challenges.Clear(AdminID)
			log.Printf("[AUTH] Login failed: could not send code: %v", err)
			return nil, apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, "failed to send login code", err)
		}
	}

	log.Printf("[AUTH] Password accepted, login code issued")
	metrics.RecordAuthAttempt(true)
	return &LoginResult{Requires2FA: true, Message: "A login code was sent to the admin email"}, nil
}

// Verify2FA exchanges a valid login code for a session token
func (s *AuthService) Verify2FA(ctx context.Context, code string) (*TokenResult, error) {
	err := s.challenges.Verify(AdminID, strings.TrimSpace(code))
	switch {
	case err == nil:
	case errors.Is(err, util.ErrChallengeExpired):
		metrics.RecordOTPVerified(metrics.OTPStatusExpired)
		log.Printf("[AUTH] 2FA failed: code expired")
		return nil, err
	case errors.Is(err, util.ErrNoActiveChallenge):
		metrics.RecordOTPVerified(metrics.OTPStatusNoChallenge)
		log.Printf("[AUTH] 2FA failed: no active challenge")
		return nil, err
	default:
		metrics.RecordOTPVerified(metrics.OTPStatusIncorrect)
		log.Printf("[AUTH] 2FA failed: incorrect code")
		return nil, err
	}

	token, err := s.tokens.GenerateToken(AdminID)
	if err != nil {
		log.Printf("[AUTH] 2FA failed: token generation error: %v", err)
		return nil, err
	}

	metrics.RecordOTPVerified(metrics.OTPStatusSuccess)
	log.Printf("[AUTH] 2FA successful, session issued")
	return &TokenResult{Token: token, TokenType: "bearer"}, nil
}

// ChangePassword rotates the admin password
func (s *AuthService) ChangePassword(ctx context.Context, current, next string) error {
	if strings.TrimSpace(next) == "" {
		return apperrors.New(apperrors.ErrCodeBadRequest, "new password is required")
	}
	if err := s.creds.Rotate(ctx, current, next); err != nil {
		log.Printf("[AUTH] Password change failed: %v", err)
		return err
	}
	log.Printf("[AUTH] Password changed")
	return nil
}

// Authorize validates a bearer token
func (s *AuthService) Authorize(token string) (*util.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidCredential, "invalid or expired token", err)
	}
	return claims, nil
}
