package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/labalert/pkg/httputil"
)

type RateLimiterConfig struct {
	Enabled bool
	Rate    rate.Limit
	Burst   int
}

// RateLimiter is a process-wide token bucket whose settings can change
// while serving.
type RateLimiter struct {
	limiter *rate.Limiter
	enabled atomic.Bool
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		limiter: rate.NewLimiter(config.Rate, config.Burst),
	}
	rl.enabled.Store(config.Enabled)
	return rl
}

// Update applies new settings without dropping the current bucket.
func (rl *RateLimiter) Update(config RateLimiterConfig) {
	rl.limiter.SetLimit(config.Rate)
	rl.limiter.SetBurst(config.Burst)
	rl.enabled.Store(config.Enabled)
}

func (rl *RateLimiter) Limit() rate.Limit {
	return rl.limiter.Limit()
}

func (rl *RateLimiter) Burst() int {
	return rl.limiter.Burst()
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.enabled.Load() && !rl.limiter.Allow() {
			httputil.RespondWithStatus(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}
