package util

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"
	"time"

	apperrors "portfolio/pkg/errors"
)

const (
	OTPLength            = 6
	DefaultOTPValidity   = 5 * time.Minute
	RateLimitWindow      = time.Minute
	MaxRequestsPerMinute = 5 // Maximum codes issued per identity per minute

	otpMin = 100000
	otpMax = 999999
)

var (
	ErrNoActiveChallenge = apperrors.New(apperrors.ErrCodeNoActiveChallenge, "no active login challenge, please log in again")
	ErrChallengeExpired  = apperrors.New(apperrors.ErrCodeChallengeExpired, "login code has expired, please log in again")
	ErrIncorrectCode     = apperrors.New(apperrors.ErrCodeInvalidCredential, "incorrect login code")
)

// challenge is one issued code awaiting verification
type challenge struct {
	code      string
	expiresAt time.Time
}

// ChallengeStore holds at most one live login code per admin identity.
// Challenges live only in memory and do not survive a restart.
type ChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]challenge
	requests   map[string][]time.Time
	ttl        time.Duration
	now        func() time.Time
}

// NewChallengeStore creates a store whose codes expire after ttl
func NewChallengeStore(ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultOTPValidity
	}
	return &ChallengeStore{
		challenges: make(map[string]challenge),
		requests:   make(map[string][]time.Time),
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithClock replaces the time source, for tests
func (s *ChallengeStore) WithClock(now func() time.Time) *ChallengeStore {
	s.now = now
	return s
}

// TTL returns how long an issued code stays valid
func (s *ChallengeStore) TTL() time.Duration {
	return s.ttl
}

// GenerateOTP returns a uniformly random code in 100000..999999
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()+otpMin), nil
}

// Issue generates a code for adminID, replacing any unconsumed one
func (s *ChallengeStore) Issue(adminID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if err := s.checkRateLimit(adminID, now); err != nil {
		return "", err
	}

	code, err := GenerateOTP()
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	s.challenges[adminID] = challenge{code: code, expiresAt: now.Add(s.ttl)}
	return code, nil
}

// Verify checks code against the live challenge for adminID. A match
// consumes the challenge. A wrong code leaves it in place so the admin may
// retry until it expires.
func (s *ChallengeStore) Verify(adminID, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[adminID]
	if !ok {
		return ErrNoActiveChallenge
	}

	if s.now().After(ch.expiresAt) {
		delete(s.challenges, adminID)
		return ErrChallengeExpired
	}

	if subtle.ConstantTimeCompare([]byte(ch.code), []byte(code)) != 1 {
		return ErrIncorrectCode
	}

	delete(s.challenges, adminID)
	return nil
}

// Clear drops any challenge for adminID
func (s *ChallengeStore) Clear(adminID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, adminID)
}

// checkRateLimit records an issue request and rejects it when adminID has
// already asked for MaxRequestsPerMinute codes within the window.
func (s *ChallengeStore) checkRateLimit(adminID string, now time.Time) error {
	cutoff := now.Add(-RateLimitWindow)

	recent := s.requests[adminID][:0]
	for _, t := range s.requests[adminID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= MaxRequestsPerMinute {
		s.requests[adminID] = recent
		wait := recent[0].Add(RateLimitWindow).Sub(now)
		return apperrors.New(apperrors.ErrCodeRateLimited,
			fmt.Sprintf("maximum %d login codes per minute, please wait %v", MaxRequestsPerMinute, wait.Round(time.Second)))
	}

	s.requests[adminID] = append(recent, now)
	return nil
}

// CleanupExpired removes expired challenges and stale rate limit entries
func (s *ChallengeStore) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, ch := range s.challenges {
		if now.After(ch.expiresAt) {
			delete(s.challenges, id)
		}
	}

	cutoff := now.Add(-RateLimitWindow)
	for id, times := range s.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(s.requests, id)
		}
	}
}
