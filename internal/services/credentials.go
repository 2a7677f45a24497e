package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"

	"gorm.io/datatypes"

	"portfolio/internal/domain"
	"portfolio/internal/storage"
	"portfolio/internal/util"
	apperrors "portfolio/pkg/errors"
)

// ErrInvalidCredential is returned for a wrong password or login code
var ErrInvalidCredential = apperrors.New(apperrors.ErrCodeInvalidCredential, "invalid credentials")

// CredentialManager checks and rotates the single admin password. Until a
// credential is stored, the configured fallback password is accepted.
type CredentialManager struct {
	store    storage.ConfigStore
	fallback string
}

// NewCredentialManager creates a manager over store
func NewCredentialManager(store storage.ConfigStore, fallback string) *CredentialManager {
	return &CredentialManager{store: store, fallback: fallback}
}

func (m *CredentialManager) load(ctx context.Context) (*domain.AdminCredential, error) {
	raw, found, err := m.store.GetConfig(ctx, domain.AdminCredentialKey)
	if err != nil || !found {
		return nil, err
	}
	var cred domain.AdminCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("failed to decode admin credential: %w", err)
	}
	if cred.Salt == "" || cred.Hash == "" {
		return nil, nil
	}
	return &cred, nil
}

// IsSet reports whether a credential has been stored
func (m *CredentialManager) IsSet(ctx context.Context) (bool, error) {
	cred, err := m.load(ctx)
	return cred != nil, err
}

// Verify reports whether candidate is the admin password
func (m *CredentialManager) Verify(ctx context.Context, candidate string) (bool, error) {
	cred, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	if cred == nil {
		if m.fallback == "" {
			return false, nil
		}
		return subtle.ConstantTimeCompare([]byte(candidate), []byte(m.fallback)) == 1, nil
	}
	return util.CheckPasswordHash(candidate, cred.Salt, cred.Hash), nil
}

// Rotate replaces the credential with one derived from next under a fresh
// salt, after checking current
func (m *CredentialManager) Rotate(ctx context.Context, current, next string) error {
	ok, err := m.Verify(ctx, current)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.ErrCodeInvalidCredential, "current password is incorrect")
	}
	return m.Set(ctx, next)
}

// Set stores a credential for password without checking the old one
func (m *CredentialManager) Set(ctx context.Context, password string) error {
	if password == "" {
		return apperrors.New(apperrors.ErrCodeBadRequest, "new password must not be empty")
	}

	salt, err := util.GenerateSalt()
	if err != nil {
		return err
	}
	hash, err := util.HashPassword(password, salt)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(domain.AdminCredential{Salt: salt, Hash: hash})
	if err != nil {
		return fmt.Errorf("failed to encode admin credential: %w", err)
	}
	if err := m.store.PutConfig(ctx, domain.AdminCredentialKey, datatypes.JSON(raw)); err != nil {
		return err
	}
	log.Printf("[AUTH] Admin credential rotated")
	return nil
}
