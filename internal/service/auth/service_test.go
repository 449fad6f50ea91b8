package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/auth"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	jwtSvc, err := auth.NewJWTService("secret", 30*time.Minute)
	require.NoError(t, err)
	return NewService("operator", string(hash), jwtSvc)
}

func TestLogin(t *testing.T) {
	s := newTestService(t)

	resp, err := s.Login(context.Background(), "operator", "correct-horse")

	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(1800), resp.ExpiresIn)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService(t)

	_, err := s.Login(context.Background(), "operator", "wrong-password")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	_, err = s.Login(context.Background(), "admin", "correct-horse")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLoginWithoutConfiguredPassword(t *testing.T) {
	jwtSvc, _ := auth.NewJWTService("secret", time.Minute)
	s := NewService("operator", "", jwtSvc)

	_, err := s.Login(context.Background(), "operator", "")
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestLoginLockout(t *testing.T) {
	s := newTestService(t)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	for i := 0; i < maxLoginAttempts; i++ {
		_, err := s.Login(context.Background(), "operator", "nope")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	}

	_, err := s.Login(context.Background(), "operator", "correct-horse")
	assert.ErrorIs(t, err, ErrAccountLocked)

	clock = clock.Add(lockoutDuration + time.Second)
	_, err = s.Login(context.Background(), "operator", "correct-horse")
	assert.NoError(t, err)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct-horse")))
}

func TestLoginWithoutTokenService(t *testing.T) {
	s := NewService("operator", "", nil)

	_, err := s.Login(context.Background(), "operator", "correct-horse")
	assert.ErrorIs(t, err, ErrDisabled)
}
