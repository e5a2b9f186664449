package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost balances hashing latency against brute-force resistance.
	DefaultBcryptCost = 12

	minPasswordLength = 8
	maxPasswordLength = 72
)

// ErrPasswordMismatch indicates the supplied password does not match the stored hash.
var ErrPasswordMismatch = errors.New("auth: password mismatch")

// HashPassword derives a bcrypt hash for the supplied plaintext password.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("auth: password must be at least %d characters", minPasswordLength)
	}
	// bcrypt silently truncates beyond 72 bytes.
	if len(password) > maxPasswordLength {
		return "", fmt.Errorf("auth: password must be at most %d characters", maxPasswordLength)
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares the stored hash against the candidate password.
func VerifyPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	if err != nil {
		return fmt.Errorf("auth: verify password: %w", err)
	}
	return nil
}
