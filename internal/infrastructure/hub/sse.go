package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"

	"streamcast/internal/infrastructure/logger"
)

const sseKeepAliveInterval = 30 * time.Second

// SSEConn is a one-way listener over Server-Sent Events. It shares the
// bounded-queue semantics of websocket listeners, so the backpressure policy
// applies uniformly, but it never carries inbound application frames.
type SSEConn struct {
	id      string
	channel string
	writer  http.ResponseWriter
	flusher http.Flusher
	logger  logger.Logger

	mu    sync.RWMutex
	state State
	send  chan *Envelope

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSSEConn prepares an SSE listener on w. Fails when the response writer
// cannot flush, which SSE requires.
func NewSSEConn(channel string, w http.ResponseWriter, queueCap int, log logger.Logger) (*SSEConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	c := &SSEConn{
		id:      id,
		channel: channel,
		writer:  w,
		flusher: flusher,
		logger: log.WithFields(logger.Fields{
			"connection_id": id,
			"channel":       channel,
			"role":          RoleListener.String(),
		}),
		state:  StateConnecting,
		send:   make(chan *Envelope, queueCap),
		ctx:    ctx,
		cancel: cancel,
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	return c, nil
}

func (c *SSEConn) ID() string               { return c.id }
func (c *SSEConn) Role() Role               { return RoleListener }
func (c *SSEConn) Channel() string          { return c.channel }
func (c *SSEConn) Context() context.Context { return c.ctx }

func (c *SSEConn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// QueueCap reports the outbound queue bound.
func (c *SSEConn) QueueCap() int { return cap(c.send) }

// Enqueue attempts a non-blocking push onto the outbound queue.
func (c *SSEConn) Enqueue(env *Envelope) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state != StateOpen {
		return ErrConnClosed
	}
	select {
	case c.send <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close starts draining; a second call aborts.
func (c *SSEConn) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateClosed:
		c.mu.Unlock()
		return nil
	case StateDraining:
		c.mu.Unlock()
		c.finish()
		return nil
	}

	if c.state == StateOpen {
		c.state = StateDraining
		close(c.send)
		c.mu.Unlock()
		return nil
	}

	c.state = StateClosed
	c.mu.Unlock()
	c.cancel()
	return nil
}

func (c *SSEConn) finish() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.mu.Unlock()
	c.cancel()
}

// open moves the connection to Open once registered.
func (c *SSEConn) open() { c.transitionTo(StateOpen) }

func (c *SSEConn) transitionTo(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !validTransition(c.state, to) {
		return false
	}
	c.state = to
	return true
}

// run drains the queue onto the event stream. It executes on the handler
// goroutine and returns when the connection closes or the client goes away.
func (c *SSEConn) run(reqCtx context.Context) {
	ticker := time.NewTicker(sseKeepAliveInterval)
	defer func() {
		ticker.Stop()
		c.finish()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.writeEvent(env.Type, env); err != nil {
				c.logger.Debugf("event write failed: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.writeEvent("keepalive", map[string]any{"timestamp": unixSeconds()}); err != nil {
				c.logger.Debugf("keepalive failed: %v", err)
				return
			}

		case <-reqCtx.Done():
			return
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *SSEConn) writeEvent(event string, data any) error {
	if err := sse.Encode(c.writer, sse.Event{Event: event, Data: data}); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	c.flusher.Flush()
	return nil
}

// AttachSSEListener registers an SSE listener on the channel and streams
// events to it until the client disconnects. Blocks for the connection's
// lifetime.
func (h *Hub) AttachSSEListener(reqCtx context.Context, channel string, w http.ResponseWriter) error {
	if !h.IsRunning() {
		return ErrHubNotRunning
	}

	conn, err := NewSSEConn(channel, w, h.QueueCapacity(), h.logger)
	if err != nil {
		return &ProtocolError{Reason: err.Error()}
	}

	conn.open()
	h.attachListenerConn(conn)
	conn.logger.Info("sse listener attached")

	conn.run(reqCtx)
	h.detachConn(conn)
	conn.logger.Info("sse listener detached")
	return nil
}
