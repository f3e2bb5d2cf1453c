package sse

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
)

// Handler serves the one-way event-stream listener endpoint. SSE listeners
// join the same fan-out as websocket listeners and are subject to the same
// backpressure policy; they just cannot send reactions back.
type Handler struct {
	hub    *hub.Hub
	logger logger.Logger
}

func NewHandler(hubInstance *hub.Hub, log logger.Logger) *Handler {
	return &Handler{
		hub:    hubInstance,
		logger: log.WithField("handler", "sse"),
	}
}

// Connect attaches the request as an SSE listener and streams until the
// client goes away.
func (h *Handler) Connect(c *gin.Context) {
	channel := c.Param("channel")
	if channel == "" {
		channel = h.hub.DefaultChannel()
	}

	if err := hub.ValidateChannel(channel); err != nil {
		h.logger.Warnf("sse connection rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.hub.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}

	if err := h.hub.AttachSSEListener(c.Request.Context(), channel, c.Writer); err != nil {
		h.logger.Warnf("sse attachment on %q failed: %v", channel, err)
	}
}
