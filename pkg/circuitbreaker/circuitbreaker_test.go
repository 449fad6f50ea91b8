package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Second})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := newTestBreaker(&clock)
	fail := func() error { return errBoom }

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestHalfOpenProbe(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := newTestBreaker(&clock)
	fail := func() error { return errBoom }
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)

	clock = clock.Add(2 * time.Second)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	clock = clock.Add(2 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestSuccessResetsFailures(t *testing.T) {
	clock := time.Unix(0, 0)
	cb := newTestBreaker(&clock)

	_ = cb.Execute(func() error { return errBoom })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errBoom })
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "test", cb.Name())
}
