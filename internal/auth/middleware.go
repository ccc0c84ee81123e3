package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	contextUserID   = "user_id"
	contextUsername = "username"
)

// Middleware validates the Authorization bearer token and sets
// user_id/username in the gin context for downstream handlers.
func Middleware(svc *Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := svc.ValidateToken(parts[1])
		if err != nil {
			logger.Warn("token validation failed", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextUsername, claims.Username)
		c.Next()
	}
}

// UserIDFromContext extracts the authenticated user_id set by
// Middleware. Panics only if called outside a request that passed
// Middleware, which is a handler wiring bug.
func UserIDFromContext(c *gin.Context) int64 {
	return c.MustGet(contextUserID).(int64)
}
