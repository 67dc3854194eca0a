package http

import (
	stdhttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tgchat-app/chat-server/internal/auth"
)

// LoggerMiddleware logs HTTP requests after they complete.
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

// claimsContextKey is where AuthMiddleware stores the validated claims.
const claimsContextKey = "auth_claims"

// AuthMiddleware requires a valid Bearer session token and stores its
// claims in the request context.
func AuthMiddleware(service *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "authorization required"})
			return
		}

		claims, err := service.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}
