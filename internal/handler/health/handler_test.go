package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type liveness bool

func (l liveness) IsAlive(context.Context) bool { return bool(l) }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group(""))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(NewHandler(liveness(true)), "/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(NewHandler(liveness(false)), "/health/live").Code)
}

func TestReadiness(t *testing.T) {
	ok := Check{Name: "database", Check: func(context.Context) error { return nil }}
	down := Check{Name: "broker", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	assert.Equal(t, http.StatusOK, serve(NewHandler(liveness(true), ok), "/health/ready").Code)

	w := serve(NewHandler(liveness(true), ok, down), "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "broker check failed")
	assert.NotContains(t, w.Body.String(), "refused")
}
