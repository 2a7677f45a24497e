package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio/internal/config"
	"portfolio/internal/util"
	apperrors "portfolio/pkg/errors"
)

const testAdminEmail = "owner@example.com"

type authFixture struct {
	svc    *AuthService
	mailer *fakeMailer
	now    time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	return newAuthFixtureWith(t, &fakeMailer{}, testAdminEmail)
}

func newAuthFixtureWith(t *testing.T, mailer *fakeMailer, adminEmail string) *authFixture {
	t.Helper()
	f := &authFixture{mailer: mailer, now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	challenges := util.NewChallengeStore(5 * time.Minute).WithClock(func() time.Time { return f.now })
	f.svc = NewAuthService(
		NewCredentialManager(newTestGateway(t), "admin123"),
		challenges,
		util.NewTokenIssuer("test-secret", time.Hour),
		f.mailer,
		&config.AuthConfig{AdminEmail: adminEmail},
	)
	return f
}

func TestAuthService_LoginAndVerify(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	result, err := f.svc.Login(ctx, "admin123")
	require.NoError(t, err)
	assert.True(t, result.Requires2FA)

	code := f.mailer.lastCode(t, testAdminEmail)
	tok, err := f.svc.Verify2FA(ctx, code)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)

	claims, err := f.svc.Authorize(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, AdminID, claims.Subject)

	// the code is single use
	_, err = f.svc.Verify2FA(ctx, code)
	assert.ErrorIs(t, err, util.ErrNoActiveChallenge)
}

func TestAuthService_WrongPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Login(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidCredential(err))
	assert.Empty(t, f.mailer.Sent())
}

func TestAuthService_ExpiredCode(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.svc.Login(ctx, "admin123")
	require.NoError(t, err)
	code := f.mailer.lastCode(t, testAdminEmail)

	f.now = f.now.Add(5*time.Minute + time.Second)
	_, err = f.svc.Verify2FA(ctx, code)
	assert.ErrorIs(t, err, util.ErrChallengeExpired)
}

func TestAuthService_MailFailureDropsChallenge(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	f.mailer.err = errors.New("smtp down")

	_, err := f.svc.Login(ctx, "admin123")
	require.Error(t, err)
	assert.True(t, apperrors.IsBackendUnavailable(err))

	_, err = f.svc.Verify2FA(ctx, "123456")
	assert.ErrorIs(t, err, util.ErrNoActiveChallenge)
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	err := f.svc.ChangePassword(ctx, "wrong", "Secret#1")
	assert.True(t, apperrors.IsInvalidCredential(err))

	require.NoError(t, f.svc.ChangePassword(ctx, "admin123", "Secret#1"))

	_, err = f.svc.Login(ctx, "admin123")
	assert.True(t, apperrors.IsInvalidCredential(err))

	_, err = f.svc.Login(ctx, "Secret#1")
	assert.NoError(t, err)
}

func TestAuthService_AuthorizeRejectsGarbage(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Authorize("garbage")
	assert.True(t, apperrors.IsInvalidCredential(err))
}

func TestAuthService_EmailDisabledLogsCode(t *testing.T) {
	ctx := context.Background()
	logs := captureLog(t)
	f := newAuthFixtureWith(t, &fakeMailer{disabled: true}, testAdminEmail)

	_, err := f.svc.Login(ctx, "admin123")
	require.NoError(t, err)
	assert.Empty(t, f.mailer.Sent())

	code := codePattern.FindString(logs.String())
	require.NotEmpty(t, code, "login code missing from log output")

	_, err = f.svc.Verify2FA(ctx, code)
	assert.NoError(t, err)
}

func TestAuthService_EmailEnabledWithoutAdminEmail(t *testing.T) {
	ctx := context.Background()
	logs := captureLog(t)
	f := newAuthFixtureWith(t, &fakeMailer{}, "")

	_, err := f.svc.Login(ctx, "admin123")
	require.Error(t, err)
	assert.True(t, apperrors.IsBackendUnavailable(err))
	assert.NotRegexp(t, codePattern, logs.String())

	_, err = f.svc.Verify2FA(ctx, "123456")
	assert.ErrorIs(t, err, util.ErrNoActiveChallenge)
}
