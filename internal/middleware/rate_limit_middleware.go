package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"

	"github.com/yourusername/cat-engine/internal/pkg/logger"
)

// RateLimitConfig holds the limiter settings
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig limits the public CAT API
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 120,
		Window:      time.Minute,
		KeyPrefix:   "rl:cat",
	}
}

// WindowCounter counts hits of a key within a fixed window. It returns the
// count so far and the time left until the window resets.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RedisWindowCounter shares the windows between API instances
type RedisWindowCounter struct {
	client redis.UniversalClient
	logger *logger.Logger
}

// NewRedisWindowCounter creates a Redis-backed counter
func NewRedisWindowCounter(client redis.UniversalClient, log *logger.Logger) *RedisWindowCounter {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisWindowCounter{client: client, logger: log.Component("RateLimiter")}
}

func (r *RedisWindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	// first hit of the window sets the TTL
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			r.logger.Warn("Failed to set rate limit TTL", "key", key, "error", err)
		}
	}
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}

// MemoryWindowCounter is the single-instance counter used without Redis
type MemoryWindowCounter struct {
	store *cache.Cache
}

// NewMemoryWindowCounter creates an in-process counter
func NewMemoryWindowCounter() *MemoryWindowCounter {
	return &MemoryWindowCounter{store: cache.New(time.Minute, 5*time.Minute)}
}

func (m *MemoryWindowCounter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	// Add fails when the window is already open
	_ = m.store.Add(key, int64(0), window)
	count, err := m.store.IncrementInt64(key, 1)
	if err != nil {
		// window expired between Add and Increment
		m.store.Set(key, int64(1), window)
		return 1, window, nil
	}
	ttl := window
	if _, exp, ok := m.store.GetWithExpiration(key); ok && !exp.IsZero() {
		ttl = time.Until(exp)
	}
	return count, ttl, nil
}

// RateLimiter is a fixed-window request limiter
type RateLimiter struct {
	counter WindowCounter
	logger  *logger.Logger
}

// NewRateLimiter creates the limiter
func NewRateLimiter(counter WindowCounter, log *logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &RateLimiter{counter: counter, logger: log.Component("RateLimiter")}
}

// LimitByIP limits requests per client IP over the whole route group.
// Counter failures let the request through.
func (rl *RateLimiter) LimitByIP(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		key := fmt.Sprintf("%s:%s", cfg.KeyPrefix, clientIP)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, ttl, err := rl.counter.Hit(ctx, key, cfg.Window)
		if err != nil {
			rl.logger.Warn("Rate limit counter failed, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		remaining := cfg.MaxRequests - int(count)
		if remaining < 0 {
			remaining = 0
		}
		retryAfter := int(ttl.Seconds())

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", retryAfter))

		if int(count) > cfg.MaxRequests {
			rl.logger.Warn("Rate limit exceeded", "ip", clientIP, "count", count, "limit", cfg.MaxRequests)
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"error_type":  "rate_limited",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
