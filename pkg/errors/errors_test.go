package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	cause := errors.New("cause")
	assert.Equal(t, http.StatusNotFound, NotFound("patient", cause).StatusCode())
	assert.Equal(t, http.StatusBadRequest, BadRequest("bad", cause).StatusCode())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized(cause).StatusCode())
	assert.Equal(t, http.StatusForbidden, Forbidden("no").StatusCode())
	assert.Equal(t, http.StatusServiceUnavailable, Unavailable("down", cause).StatusCode())
	assert.Equal(t, http.StatusInternalServerError, Internal(cause).StatusCode())
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("result store unavailable", cause)

	assert.Equal(t, "result store unavailable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "patient not found", NotFound("patient", nil).Error())
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("failed to load: %w", BadRequest("limit must be numeric", nil))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrBadRequest, appErr.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
