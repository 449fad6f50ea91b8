package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen matches the login request validation.
const MinPasswordLen = 8

var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)

// PasswordHasher hashes and verifies operator passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost for an out of range cost.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Compare returns nil only when password matches hashedPassword. An empty
// hash never matches.
func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	if hashedPassword == "" {
		return errors.New("no password hash configured")
	}
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
