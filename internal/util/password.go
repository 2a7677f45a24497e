package util

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	SaltLength = 16
	KeyLength  = 64

	scryptN = 16384
	scryptR = 8
	scryptP = 1
)

// GenerateSalt returns a fresh random salt, hex encoded
func GenerateSalt() (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

// HashPassword derives the 64-byte scrypt key of password under salt, hex encoded
func HashPassword(password, salt string) (string, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, KeyLength)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// CheckPasswordHash compares password against a stored salt and hash in
// constant time
func CheckPasswordHash(password, salt, hash string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil || len(want) != KeyLength {
		return false
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, KeyLength)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, want) == 1
}
