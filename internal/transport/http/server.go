package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/avelichko/workchat/internal/auth"
	"github.com/avelichko/workchat/internal/config"
	"github.com/avelichko/workchat/internal/core"
	"github.com/avelichko/workchat/internal/store"
)

// Pinger reports database liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds an HTTP server with REST and WebSocket routes.
func NewServer(cfg config.Config, st store.Store, hub *core.Hub, authService *auth.Service, pinger Pinger, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, logger)
	workspaceHandlers := NewWorkspaceHandlers(st, logger)
	channelHandlers := NewChannelHandlers(st, logger)
	messageHandlers := NewMessageHandlers(st, hub, cfg.MaxMessageBytes, logger)
	wsHandler := NewWSHandler(hub, authService, cfg.WSMessagesPerMinute, logger)

	router.GET("/health", healthHandler(pinger))
	router.GET("/ws", gin.WrapH(wsHandler))

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("")
	authed.Use(AuthMiddleware(authService, logger))
	{
		authed.POST("/workspaces", workspaceHandlers.CreateWorkspace)
		authed.POST("/workspaces/:id/members", workspaceHandlers.AddMember)

		authed.POST("/channels", channelHandlers.CreateChannel)
		authed.GET("/channels/workspace/:workspaceId", channelHandlers.ListChannels)
		authed.POST("/channels/:channelId/join", channelHandlers.JoinChannel)
		authed.POST("/channels/:channelId/leave", channelHandlers.LeaveChannel)
		authed.POST("/channels/:channelId/members", channelHandlers.AddMember)
		authed.DELETE("/channels/:channelId", channelHandlers.DeleteChannel)

		authed.POST("/messages", messageHandlers.SendMessage)
		authed.GET("/messages/workspace/:workspaceId", messageHandlers.ListMessages)
		authed.PUT("/messages/:id", messageHandlers.UpdateMessage)
		authed.DELETE("/messages/:id", messageHandlers.DeleteMessage)
	}

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(pinger Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pinger != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				c.JSON(stdhttp.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(stdhttp.StatusOK, gin.H{"status": "ok"})
	}
}
