package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tgchat-app/chat-server/internal/auth"
	"github.com/tgchat-app/chat-server/internal/config"
	"github.com/tgchat-app/chat-server/internal/core"
	"github.com/tgchat-app/chat-server/internal/store"
)

// NewServer builds the HTTP server: health, the REST API and the
// WebSocket endpoint bridging into the hub.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := router.Group("/api")
	{
		authHandlers := NewAuthHandlers(authService, logger)
		api.POST("/auth/register", authHandlers.Register)
		api.POST("/auth/login", authHandlers.Login)

		// Everything beyond registration needs a session token.
		protected := api.Group("", AuthMiddleware(authService))

		chatHandlers := NewChatHandlers(st, logger)
		protected.GET("/chat/messages", chatHandlers.GetMessages)

		userHandlers := NewUserHandlers(st, logger)
		protected.GET("/users", userHandlers.GetUsers)
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
