package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/openfloor/market-indexer/internal/adapter"
	"github.com/openfloor/market-indexer/internal/api/shared/errors"
	"github.com/openfloor/market-indexer/internal/logger"
)

// RateLimitConfig holds the per-client request limit for public endpoints
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// RateLimit limits requests per client IP through a Redis-backed limiter so
// the limit holds across API replicas. When Redis is unreachable a local
// limiter keeps a coarse per-replica cap instead of failing open entirely.
func RateLimit(cfg RateLimitConfig, limiter adapter.RedisRateLimiter) gin.HandlerFunc {
	localLimiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	limit := redis_rate.Limit{
		Rate:   cfg.RequestsPerSecond,
		Burst:  cfg.Burst,
		Period: time.Second,
	}

	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:api:%s", c.ClientIP())

		res, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			logger.WarnCtx(c.Request.Context(), "Rate limiter unavailable, using local fallback", zap.Error(err))
			if !localLimiter.Allow() {
				respondRateLimited(c, time.Second)
				return
			}
			c.Next()
			return
		}

		if res.Allowed == 0 {
			respondRateLimited(c, res.RetryAfter)
			return
		}

		c.Next()
	}
}

func respondRateLimited(c *gin.Context, retryAfter time.Duration) {
	seconds := int(retryAfter / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, errors.NewRateLimitedError("Too many requests"))
}
