package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"newspaper/internal/metrics"
	"newspaper/pkg/logger"
)

// RateLimiterConfig configures the token bucket.
type RateLimiterConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// tokenBucket keeps {last_refill, tokens} per key and consumes one token
// per call. Returns 1 when the request is allowed.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'last_refill', 'tokens')
local last_refill = tonumber(bucket[1]) or now
local tokens = tonumber(bucket[2]) or capacity

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
end

redis.call('HSET', key, 'last_refill', tostring(now), 'tokens', tostring(tokens))
redis.call('EXPIRE', key, ttl)
return allowed
`)

// RateLimiter limits requests per client IP and route with a Redis token
// bucket shared by every instance.
type RateLimiter struct {
	client  *redis.Client
	config  RateLimiterConfig
	metrics metrics.Recorder
	log     *zap.Logger
	now     func() time.Time
}

// NewRateLimiter creates a RateLimiter. A nil client disables limiting.
func NewRateLimiter(client *redis.Client, config RateLimiterConfig, rec metrics.Recorder, log *zap.Logger) *RateLimiter {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &RateLimiter{
		client:  client,
		config:  config,
		metrics: rec,
		log:     log,
		now:     time.Now,
	}
}

// ttl is how long an idle bucket is kept: the time to refill it, at least
// one minute.
func (rl *RateLimiter) ttl() int {
	refill := float64(rl.config.Burst) / rl.config.RequestsPerSecond
	return int(math.Max(60, math.Ceil(refill)))
}

// Middleware returns the gin handler. Redis errors let the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.config.Enabled || rl.client == nil || rl.config.RequestsPerSecond <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := fmt.Sprintf("ratelimit:tb:%s:%s:%s", c.Request.Method, route, c.ClientIP())

		now := float64(rl.now().UnixNano()) / float64(time.Second)
		allowed, err := tokenBucket.Run(c.Request.Context(), rl.client, []string{key},
			rl.config.RequestsPerSecond,
			rl.config.Burst,
			now,
			rl.ttl(),
		).Int64()
		if err != nil {
			logger.WithContext(c.Request.Context(), rl.log).Warn("rate limiter redis error, allowing request",
				zap.String("key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if allowed == 0 {
			rl.metrics.RecordRateLimited()
			rl.log.Info("rate limit exceeded", zap.String("key", key))
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(1/rl.config.RequestsPerSecond))))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": fmt.Sprintf("Rate limit exceeded: %.2f requests/second (burst capacity: %d)", rl.config.RequestsPerSecond, rl.config.Burst),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
