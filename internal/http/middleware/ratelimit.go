// README: Fixed-window rate limiter per client IP backed by Redis.
package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"fooddash/internal/apperr"
	"fooddash/internal/http/respond"
)

var ErrRateLimited = apperr.New(apperr.KindRateLimit, "too many requests, please try again later")

const rateLimitTimeout = 200 * time.Millisecond

// RateLimit allows limit requests per client IP per window. When Redis is
// unreachable requests are let through.
func RateLimit(rdb redis.Cmdable, window time.Duration, limit int, log logrus.FieldLogger) gin.HandlerFunc {
	if rdb == nil || limit <= 0 || window < time.Second {
		return func(c *gin.Context) { c.Next() }
	}
	windowSecs := int64(window / time.Second)
	return func(c *gin.Context) {
		now := time.Now().Unix()
		bucket := now / windowSecs
		key := fmt.Sprintf("fooddash:ratelimit:%s:%d", c.ClientIP(), bucket)

		ctx, cancel := context.WithTimeout(c.Request.Context(), rateLimitTimeout)
		pipe := rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		_, err := pipe.Exec(ctx)
		cancel()
		if err != nil {
			log.WithError(err).Warn("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		n := incr.Val()
		remaining := int64(limit) - n
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if n > int64(limit) {
			retry := (bucket+1)*windowSecs - now
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			respond.Error(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
