package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/campus-events/backend/internal/apperrors"
	"github.com/emilythestrangee/campus-events/backend/internal/logging"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = logging.UserIDKey

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			apperrors.Abort(c, apperrors.Unauthenticated("Authorization header required"))
			return
		}

		userID, ok := v.Verify(token)
		if !ok {
			apperrors.Abort(c, apperrors.Unauthenticated("Invalid or expired token"))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth sets the user id when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if userID, ok := v.Verify(token); ok {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (int, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int)
	return id, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}

	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}
