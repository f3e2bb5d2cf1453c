package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"streamcast/internal/infrastructure/logger"
)

const (
	// DefaultQueueCapacity bounds each listener's outbound queue unless
	// configured otherwise.
	DefaultQueueCapacity = 256

	// DefaultChannelName backs the legacy /broadcaster and /bot-viewer
	// endpoints, which carry no channel segment.
	DefaultChannelName = "default"

	channelNameMaxLen = 128
)

// Options configures a Hub.
type Options struct {
	// QueueCapacity is the per-listener outbound queue bound.
	QueueCapacity int
	// DefaultChannel is the channel used by endpoints without a channel
	// path segment.
	DefaultChannel string
}

// Hub is the connection lifecycle manager: it classifies accepted transports
// into role-tagged connections, registers them, runs their read loops and
// tears them down on disconnect. Fan-out goes through the Dispatcher.
type Hub struct {
	registry   *Registry
	contexts   *ContextTracker
	dispatcher *Dispatcher
	logger     logger.Logger

	queueCap       atomic.Int32
	defaultChannel string

	running   bool
	runningMu sync.RWMutex
}

// New creates a Hub. Call Start before attaching connections.
func New(opts Options, log logger.Logger) *Hub {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.DefaultChannel == "" {
		opts.DefaultChannel = DefaultChannelName
	}

	registry := NewRegistry()
	h := &Hub{
		registry:       registry,
		contexts:       NewContextTracker(),
		dispatcher:     NewDispatcher(registry, log),
		logger:         log.WithField("component", "hub"),
		defaultChannel: opts.DefaultChannel,
	}
	h.queueCap.Store(int32(opts.QueueCapacity))
	return h
}

// Start makes the hub accept connection attachments.
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}
	h.running = true

	h.logger.Info("hub started")
	return nil
}

// Stop disconnects every registered connection and rejects further
// attachments.
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if !h.running {
		return nil
	}
	h.running = false

	for _, conn := range h.registry.All() {
		if err := conn.Close(); err != nil {
			h.logger.Errorf("failed to close connection %s: %v", conn.ID(), err)
		}
	}

	h.logger.Info("hub stopped")
	return nil
}

// IsRunning reports whether the hub accepts connections.
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// QueueCapacity returns the outbound queue bound applied to new listeners.
func (h *Hub) QueueCapacity() int {
	return int(h.queueCap.Load())
}

// SetQueueCapacity changes the bound for listeners attached from now on.
// Existing connections keep the capacity they were created with.
func (h *Hub) SetQueueCapacity(n int) {
	if n <= 0 {
		return
	}
	h.queueCap.Store(int32(n))
}

// DefaultChannel returns the channel behind the legacy endpoints.
func (h *Hub) DefaultChannel() string { return h.defaultChannel }

// ValidateChannel checks a channel name derived from the request path. A
// failure means the connection cannot be classified and must be rejected
// before registration.
func ValidateChannel(name string) error {
	if name == "" {
		return &ProtocolError{Reason: "empty channel name"}
	}
	if !utf8.ValidString(name) {
		return &ProtocolError{Reason: "channel name is not valid UTF-8"}
	}
	if utf8.RuneCountInString(name) > channelNameMaxLen {
		return &ProtocolError{Reason: fmt.Sprintf("channel name longer than %d characters", channelNameMaxLen)}
	}
	return nil
}

// AttachBroadcaster registers ws as the channel's broadcaster and runs its
// read loop until the connection ends. Each message read is handed to the
// dispatcher for fan-out. Blocks for the connection's lifetime.
func (h *Hub) AttachBroadcaster(channel string, ws *websocket.Conn) error {
	if !h.IsRunning() {
		ws.Close()
		return ErrHubNotRunning
	}

	conn := NewWSConn(uuid.NewString(), RoleBroadcaster, channel, ws, 0, h.logger)

	if err := h.registry.RegisterBroadcaster(channel, conn); err != nil {
		conn.logger.Warnf("broadcaster rejected: %v", err)
		rejectWS(ws, "another broadcaster is already connected")
		conn.finish()
		return err
	}

	conn.transition(StateOpen)
	go conn.pingLoop()
	h.contexts.StreamStarted(channel)
	conn.logger.Info("broadcaster attached")

	count := h.registry.ListenerCount(channel)
	if err := conn.SendDirect(newSystemInfo(fmt.Sprintf("current listener count: %d", count))); err != nil {
		conn.logger.Warnf("initial system info not delivered: %v", err)
	}

	h.readBroadcaster(conn)
	h.detachBroadcaster(conn)
	return nil
}

// AttachListener registers ws on the channel's listener set, starts its write
// pump and runs its read loop, which only watches for control frames
// (heartbeats, reactions, closure). Blocks for the connection's lifetime.
func (h *Hub) AttachListener(channel string, ws *websocket.Conn) error {
	if !h.IsRunning() {
		ws.Close()
		return ErrHubNotRunning
	}

	conn := NewWSConn(uuid.NewString(), RoleListener, channel, ws, h.QueueCapacity(), h.logger)

	conn.transition(StateOpen)
	go conn.writePump()
	h.registry.RegisterListener(channel, conn)

	conn.logger.Infof("listener attached (%d on channel)", h.registry.ListenerCount(channel))

	// A late joiner only sees messages sent after this point; it gets the
	// current stream summary so it can catch up on context.
	if info := h.streamInfo(channel); info != nil {
		if err := conn.Enqueue(newStreamInfo(info)); err != nil {
			conn.logger.Debugf("stream info catch-up not delivered: %v", err)
		}
	}
	h.dispatcher.NotifyBroadcaster(channel, newViewerUpdate("join", h.registry.ListenerCount(channel)))

	h.readListener(conn)
	h.detachListener(conn)
	return nil
}

// AttachConn registers a pre-built listener connection (e.g. SSE) and blocks
// until it closes. The caller runs the connection's own write loop.
func (h *Hub) attachListenerConn(conn Conn) {
	h.registry.RegisterListener(conn.Channel(), conn)

	channel := conn.Channel()
	if info := h.streamInfo(channel); info != nil {
		if err := conn.Enqueue(newStreamInfo(info)); err != nil {
			h.logger.Debugf("stream info catch-up to %s not delivered: %v", conn.ID(), err)
		}
	}
	h.dispatcher.NotifyBroadcaster(channel, newViewerUpdate("join", h.registry.ListenerCount(channel)))
}

func (h *Hub) readBroadcaster(c *WSConn) {
	defer c.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Warnf("%v", &TransportError{Op: "read", Err: err})
			}
			return
		}
		c.refreshReadDeadline()

		content, title := decodeBroadcastFrame(data)
		h.contexts.RecordMessage(c.channel, content, title)

		delivered := h.dispatcher.Deliver(c.channel, newStreamContent(content, h.streamInfo(c.channel)))
		c.logger.Debugf("broadcast delivered to %d listeners", delivered)
	}
}

func (h *Hub) readListener(c *WSConn) {
	defer c.Close()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Debugf("%v", &TransportError{Op: "read", Err: err})
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			// Undecodable listener frames count as heartbeats.
			continue
		}

		switch frame.Type {
		case TypeHeartbeat:
			c.SetProfile(frame.BotInfo)
		case TypeReaction:
			h.dispatcher.NotifyBroadcaster(c.channel, newBotReaction(frame.Content, frame.BotInfo))
		}
	}
}

func (h *Hub) detachBroadcaster(c *WSConn) {
	c.Close()
	if h.registry.Deregister(c) {
		h.contexts.StreamEnded(c.channel)
		c.logger.Info("broadcaster detached")
	}
}

func (h *Hub) detachListener(c *WSConn) {
	c.Close()
	if h.registry.Deregister(c) {
		count := h.registry.ListenerCount(c.channel)
		c.logger.Infof("listener detached (%d remaining)", count)
		h.dispatcher.NotifyBroadcaster(c.channel, newViewerUpdate("leave", count))
	}
}

// detachConn deregisters a non-websocket listener connection.
func (h *Hub) detachConn(conn Conn) {
	conn.Close()
	if h.registry.Deregister(conn) {
		channel := conn.Channel()
		h.dispatcher.NotifyBroadcaster(channel, newViewerUpdate("leave", h.registry.ListenerCount(channel)))
	}
}

// PublishMessage injects one message into a channel's stream from the REST
// surface, using the same fan-out path as broadcaster messages. Returns the
// number of listeners it was enqueued to.
func (h *Hub) PublishMessage(channel, content string) (int, error) {
	if !h.IsRunning() {
		return 0, ErrHubNotRunning
	}
	h.contexts.RecordMessage(channel, content, "")
	return h.dispatcher.Deliver(channel, newStreamContent(content, h.streamInfo(channel))), nil
}

// streamInfo builds the stream summary attached to outgoing envelopes. Nil
// when no broadcaster is streaming on the channel.
func (h *Hub) streamInfo(channel string) *StreamInfo {
	sctx, ok := h.contexts.Snapshot(channel)
	if !ok {
		return nil
	}
	return &StreamInfo{
		Title:    sctx.Title,
		Duration: sctx.Duration().Seconds(),
		Viewers:  h.registry.ListenerCount(channel),
	}
}

// ChannelSummary describes one channel for the REST surface.
type ChannelSummary struct {
	Name           string         `json:"name"`
	HasBroadcaster bool           `json:"has_broadcaster"`
	Listeners      int            `json:"listeners"`
	Stream         *StreamSummary `json:"stream,omitempty"`
}

// StreamSummary is the REST view of a live stream context.
type StreamSummary struct {
	SessionID    string  `json:"session_id"`
	Title        string  `json:"title"`
	Duration     float64 `json:"duration"`
	MessageCount int     `json:"message_count"`
}

// Summaries reports all channels with at least one member.
func (h *Hub) Summaries() []ChannelSummary {
	channels := h.registry.Channels()
	summaries := make([]ChannelSummary, 0, len(channels))

	for _, name := range channels {
		broadcaster, listeners := h.registry.Snapshot(name)
		summary := ChannelSummary{
			Name:           name,
			HasBroadcaster: broadcaster != nil,
			Listeners:      len(listeners),
		}
		if sctx, ok := h.contexts.Snapshot(name); ok {
			summary.Stream = &StreamSummary{
				SessionID:    sctx.SessionID,
				Title:        sctx.Title,
				Duration:     sctx.Duration().Seconds(),
				MessageCount: sctx.MessageCount,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// ConnectionCount returns the number of registered connections across all
// channels.
func (h *Hub) ConnectionCount() int {
	return len(h.registry.All())
}

// ActiveStreams returns the number of channels with a live broadcaster.
func (h *Hub) ActiveStreams() int {
	active := 0
	for _, name := range h.registry.Channels() {
		if broadcaster, _ := h.registry.Snapshot(name); broadcaster != nil {
			active++
		}
	}
	return active
}

// rejectWS sends a policy-violation close frame on a transport that was never
// registered.
func rejectWS(ws *websocket.Conn, reason string) {
	ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
	)
	ws.Close()
}
