package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
)

// Handler upgrades inbound requests and attaches them to the hub with the
// role and channel derived from the request path.
type Handler struct {
	hub      *hub.Hub
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hubInstance *hub.Hub, log logger.Logger) *Handler {
	return &Handler{
		hub:    hubInstance,
		logger: log.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is left to the deployment in front
				// of the service.
				return true
			},
		},
	}
}

// Broadcaster attaches the connection as the channel's message source.
func (h *Handler) Broadcaster(c *gin.Context) {
	h.attach(c, hub.RoleBroadcaster)
}

// Listener attaches the connection as a fan-out consumer.
func (h *Handler) Listener(c *gin.Context) {
	h.attach(c, hub.RoleListener)
}

func (h *Handler) attach(c *gin.Context, role hub.Role) {
	channel := c.Param("channel")
	if channel == "" {
		channel = h.hub.DefaultChannel()
	}

	// Classification failures close the transport before registration.
	if err := hub.ValidateChannel(channel); err != nil {
		h.logger.Warnf("connection rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.hub.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("upgrade failed: %v", err)
		return
	}

	switch role {
	case hub.RoleBroadcaster:
		err = h.hub.AttachBroadcaster(channel, ws)
	default:
		err = h.hub.AttachListener(channel, ws)
	}
	if err != nil {
		h.logger.Debugf("%s attachment on %q ended: %v", role, channel, err)
	}
}
