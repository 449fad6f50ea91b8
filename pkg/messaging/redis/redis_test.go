package redis

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewRedisBroker(Config{URL: "http://not-redis"}, &logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}

func TestNewRedisBrokerUnreachable(t *testing.T) {
	logger := zerolog.Nop()
	_, err := NewRedisBroker(Config{
		URL:            "redis://127.0.0.1:1/0",
		MaxRetries:     -1,
		PublishTimeout: 200 * time.Millisecond,
	}, &logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
