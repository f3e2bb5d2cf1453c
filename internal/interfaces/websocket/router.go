package websocket

import (
	"github.com/gin-gonic/gin"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
)

// InitWebSocketRouter registers the role-tagged connection endpoints.
func InitWebSocketRouter(log logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup) {
	h := NewHandler(hubInstance, log)

	rg.GET("/channels/:channel/broadcaster", h.Broadcaster)
	rg.GET("/channels/:channel/listener", h.Listener)

	// Original endpoints, bound to the default channel.
	rg.GET("/broadcaster", h.Broadcaster)
	rg.GET("/bot-viewer", h.Listener)
}
