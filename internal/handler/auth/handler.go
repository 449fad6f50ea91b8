package auth

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/internal/service/auth"
	"github.com/jwalitptl/labalert/pkg/errors"
	"github.com/jwalitptl/labalert/pkg/httputil"
)

// Authenticator issues operator tokens.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.TokenResponse, error)
}

type Handler struct {
	svc Authenticator
}

func NewHandler(svc Authenticator) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/auth")
	{
		a.POST("/token", h.Login)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		httputil.RespondWithSuccess(c, resp)
	case stderrors.Is(err, model.ErrInvalidCredentials):
		_ = c.Error(errors.Unauthorized(err))
	case stderrors.Is(err, auth.ErrAccountLocked):
		_ = c.Error(errors.Forbidden(err.Error()))
	case stderrors.Is(err, auth.ErrDisabled):
		_ = c.Error(errors.Unavailable(err.Error(), err))
	default:
		_ = c.Error(errors.Internal(err))
	}
}
