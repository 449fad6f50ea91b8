package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/labalert/internal/model"
)

func TestGenerateAndValidate(t *testing.T) {
	svc, err := NewJWTService("secret", time.Hour)
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken("operator", model.RoleOperator)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", got.Subject)
	assert.Equal(t, model.RoleOperator, got.Role)
	assert.Equal(t, time.Hour, svc.TTL())
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	a, _ := NewJWTService("secret-a", time.Hour)
	b, _ := NewJWTService("secret-b", time.Hour)

	token, err := a.GenerateAccessToken("operator", model.RoleOperator)
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc, _ := NewJWTService("secret", time.Minute)
	svc.(*jwtService).now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := svc.GenerateAccessToken("operator", model.RoleOperator)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
	assert.ErrorContains(t, err, "expired")
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	svc, _ := NewJWTService("secret", time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestNewJWTServiceValidates(t *testing.T) {
	_, err := NewJWTService("", time.Hour)
	assert.Error(t, err)
	_, err = NewJWTService("secret", 0)
	assert.Error(t, err)
}
