package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/labalert/internal/model"
)

const issuer = "labalert"

type JWTService interface {
	GenerateAccessToken(subject, role string) (string, error)
	ValidateToken(token string) (*model.TokenClaims, error)
	TTL() time.Duration
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type jwtService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTService signs HS256 tokens valid for ttl.
func NewJWTService(secret string, ttl time.Duration) (JWTService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	return &jwtService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (s *jwtService) TTL() time.Duration {
	return s.ttl
}

func (s *jwtService) GenerateAccessToken(subject, role string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(tokenString string) (*model.TokenClaims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	return &model.TokenClaims{Subject: c.Subject, Role: c.Role}, nil
}
