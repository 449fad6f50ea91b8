package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labalert/pkg/auth"
	"github.com/jwalitptl/labalert/pkg/httputil"
)

const (
	ContextSubject = "subject"
	ContextRole    = "role"
)

type AuthMiddleware struct {
	jwtSvc auth.JWTService
}

func NewAuthMiddleware(jwtSvc auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtSvc: jwtSvc}
}

// Authenticate verifies the bearer token and stores its subject and role in
// the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.jwtSvc == nil {
			httputil.RespondWithStatus(c, http.StatusServiceUnavailable, "authentication is not configured", nil)
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "missing authorization header", nil)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "invalid authorization format", nil)
			return
		}

		claims, err := m.jwtSvc.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithStatus(c, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		c.Set(ContextSubject, claims.Subject)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose token lacks role.
func (m *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != role {
			httputil.RespondWithStatus(c, http.StatusForbidden, "permission denied", nil)
			return
		}
		c.Next()
	}
}
