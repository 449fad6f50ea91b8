package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/auth"
	"github.com/jwalitptl/labalert/pkg/security"
)

var (
	ErrAccountLocked = errors.New("account is locked, please try again later")
	// ErrDisabled is returned when no token service is configured.
	ErrDisabled = errors.New("operator authentication is not configured")
)

const (
	maxLoginAttempts = 5
	lockoutDuration  = 15 * time.Minute
	bcryptCost       = 12
)

// Service authenticates the single alert operator configured for the
// deployment and issues its access tokens.
type Service struct {
	username     string
	passwordHash string
	hasher       security.PasswordHasher
	jwtSvc       auth.JWTService

	mu          sync.Mutex
	attempts    int
	lastAttempt time.Time
	now         func() time.Time
}

func NewService(username, passwordHash string, jwtSvc auth.JWTService) *Service {
	return &Service{
		username:     username,
		passwordHash: passwordHash,
		hasher:       security.NewBcryptHasher(bcryptCost),
		jwtSvc:       jwtSvc,
		now:          time.Now,
	}
}

func (s *Service) Login(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.jwtSvc == nil {
		return nil, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempts >= maxLoginAttempts {
		if s.now().Sub(s.lastAttempt) < lockoutDuration {
			return nil, ErrAccountLocked
		}
		s.attempts = 0
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 ||
		s.hasher.Compare(s.passwordHash, password) != nil {
		s.attempts++
		s.lastAttempt = s.now()
		return nil, model.ErrInvalidCredentials
	}
	s.attempts = 0

	token, err := s.jwtSvc.GenerateAccessToken(s.username, model.RoleOperator)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtSvc.TTL().Seconds()),
	}, nil
}

// HashPassword produces the value for auth.operator_password_hash.
func HashPassword(password string) (string, error) {
	return security.NewBcryptHasher(bcryptCost).Hash(password)
}
