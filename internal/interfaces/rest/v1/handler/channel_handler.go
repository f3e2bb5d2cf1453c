package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
)

// ChannelHandler exposes the REST view of the hub: health, channel summaries
// and server-side message injection.
type ChannelHandler struct {
	hub    *hub.Hub
	logger logger.Logger
}

type PublishRequest struct {
	Content string `json:"content" binding:"required"`
}

func NewChannelHandler(hubInstance *hub.Hub, log logger.Logger) *ChannelHandler {
	return &ChannelHandler{
		hub:    hubInstance,
		logger: log.WithField("handler", "channels"),
	}
}

// Health reports service liveness and stream activity.
func (h *ChannelHandler) Health(c *gin.Context) {
	active := h.hub.ActiveStreams()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"hub_running":    h.hub.IsRunning(),
		"stream_active":  active > 0,
		"active_streams": active,
		"connections":    h.hub.ConnectionCount(),
	})
}

// Index documents the connection endpoints.
func (h *ChannelHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "streamcast fan-out service",
		"endpoints": gin.H{
			"broadcaster": "/channels/:channel/broadcaster",
			"listener":    "/channels/:channel/listener",
			"events":      "/channels/:channel/events",
			"channels":    "/api/v1/channels",
			"health":      "/health",
		},
	})
}

// ListChannels returns per-channel membership and stream context.
func (h *ChannelHandler) ListChannels(c *gin.Context) {
	summaries := h.hub.Summaries()
	c.JSON(http.StatusOK, gin.H{
		"total":    len(summaries),
		"channels": summaries,
	})
}

// Publish injects one message into a channel's stream through the regular
// fan-out path.
func (h *ChannelHandler) Publish(c *gin.Context) {
	channel := c.Param("channel")
	if err := hub.ValidateChannel(channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message format"})
		return
	}

	delivered, err := h.hub.PublishMessage(channel, req.Content)
	if err != nil {
		h.logger.Errorf("publish on %q failed: %v", channel, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}

	h.logger.Infof("published message to %d listeners on %q", delivered, channel)
	c.JSON(http.StatusOK, gin.H{
		"status":    "published",
		"channel":   channel,
		"listeners": delivered,
	})
}
