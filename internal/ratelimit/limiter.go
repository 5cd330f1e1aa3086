// Package ratelimit throttles requests per key, backed by Redis when one is
// configured and by process memory otherwise.
package ratelimit

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/auth"
	"github.com/emilythestrangee/campus-events/backend/internal/metrics"
)

// Limiter reports whether one more request for key is allowed, consuming a
// token if so.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// KeyFunc derives the bucket key for a request.
type KeyFunc func(c *gin.Context) string

// ByUser keys on the authenticated user, falling back to the client IP.
func ByUser(scope string) KeyFunc {
	return func(c *gin.Context) string {
		if id, ok := auth.UserID(c); ok {
			return scope + ":user:" + strconv.Itoa(id)
		}
		return scope + ":ip:" + c.ClientIP()
	}
}

// Middleware rejects requests over the limit with 429. Limiter errors let the
// request through.
func Middleware(l Limiter, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		allowed, err := l.Allow(c.Request.Context(), k)
		if err != nil {
			log.Warn().Err(err).Str("key", k).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimitedTotal.Inc()
			apperrors.Abort(c, apperrors.RateLimited("Too many requests, try again later"))
			return
		}
		c.Next()
	}
}
