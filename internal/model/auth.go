package model

import "errors"

// LoginRequest authenticates an operator allowed to administer alerts.
type LoginRequest struct {
	Username string `json:"username" binding:"required,notblank"`
	Password string `json:"password" binding:"required,min=8"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenClaims is what the auth middleware exposes to handlers.
type TokenClaims struct {
	Subject string
	Role    string
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// RoleOperator may acknowledge, clear and simulate alerts.
const RoleOperator = "operator"
