package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// RateLimitConfig holds the per-IP rate limiting settings. This is transport
// protection only; the per-identity OTP and lockout limits live in the
// services and are store-backed.
type RateLimitConfig struct {
	// MaxRequests allowed per Window.
	MaxRequests int
	// Window is the counting interval.
	Window time.Duration
	// KeyPrefix namespaces the redis keys.
	KeyPrefix string
}

// DefaultAuthRateLimitConfig covers the general auth endpoints.
func DefaultAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 20,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:auth",
	}
}

// StrictAuthRateLimitConfig covers login/register and the OTP endpoints.
func StrictAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 5,
		Window:      1 * time.Minute,
		KeyPrefix:   "rl:auth:strict",
	}
}

// RateLimiter is a redis-backed per-IP limiter. It fails open: if redis is
// unreachable the request proceeds, because the store-backed limits in the
// services still hold the hard guarantees.
type RateLimiter struct {
	redisClient *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redisClient: redisClient}
}

// Limit returns a gin middleware keyed by client IP + route pattern.
func (rl *RateLimiter) Limit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.redisClient == nil {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		key := fmt.Sprintf("%s:%s:%s", cfg.KeyPrefix, clientIP, path)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		count, err := rl.redisClient.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("[RateLimiter] redis error for key %s: %v, allowing request", key, err)
			c.Next()
			return
		}

		if count == 1 {
			if err := rl.redisClient.Expire(ctx, key, cfg.Window).Err(); err != nil {
				log.Printf("[RateLimiter] failed to set TTL for key %s: %v", key, err)
			}
		}

		if count > int64(cfg.MaxRequests) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(cfg.Window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "Too many requests, slow down",
				"error_type": "rate_limited",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
