package sse

import (
	"github.com/gin-gonic/gin"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
)

// InitSSERouter registers the event-stream listener endpoint.
func InitSSERouter(log logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup) {
	h := NewHandler(hubInstance, log)

	rg.GET("/channels/:channel/events", h.Connect)
}
