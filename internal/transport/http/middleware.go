package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avelichko/workchat/internal/auth"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyUserEmail is the context key for storing the user's email.
	ContextKeyUserEmail = "user_email"
	// ContextKeyUserName is the context key for storing the display name.
	ContextKeyUserName = "user_name"
)

// AuthMiddleware creates a middleware that validates JWT tokens.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			fail(c, http.StatusUnauthorized, CodeUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyUserEmail, claims.Email)
		c.Set(ContextKeyUserName, claims.Name)

		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

// currentUser extracts the authenticated user's identity from the gin context.
func currentUser(c *gin.Context) (int64, string, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		fail(c, http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
		return 0, "", false
	}
	uid, ok := userID.(int64)
	if !ok {
		fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
		return 0, "", false
	}
	name, _ := c.Get(ContextKeyUserName)
	userName, _ := name.(string)
	return uid, userName, true
}
