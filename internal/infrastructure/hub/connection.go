package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"streamcast/internal/infrastructure/logger"
)

const writeTimeout = 10 * time.Second

// pingInterval must stay below pongTimeout. Variables so tests can compress
// the keepalive schedule.
var (
	pongTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
)

var errNoOutboundQueue = errors.New("connection has no outbound queue")

// WSConn wraps a websocket transport with a role, a channel binding and, for
// listeners, a bounded outbound queue drained by writePump. Broadcasters have
// no outbound queue; feedback frames go through SendDirect.
type WSConn struct {
	id      string
	role    Role
	channel string
	ws      *websocket.Conn
	logger  logger.Logger

	// mu guards state and the send-channel close so Enqueue never races
	// with Close.
	mu    sync.RWMutex
	state State
	send  chan *Envelope

	// writeMu serializes direct transport writes with the close frame.
	writeMu sync.Mutex

	profileMu sync.RWMutex
	profile   map[string]any

	ctx    context.Context
	cancel context.CancelFunc
}

// NewWSConn wraps an upgraded websocket. The connection starts in
// StateConnecting; the hub moves it to Open once registered. queueCap is
// ignored for broadcasters.
func NewWSConn(id string, role Role, channel string, ws *websocket.Conn, queueCap int, log logger.Logger) *WSConn {
	ctx, cancel := context.WithCancel(context.Background())

	c := &WSConn{
		id:      id,
		role:    role,
		channel: channel,
		ws:      ws,
		logger: log.WithFields(logger.Fields{
			"connection_id": id,
			"channel":       channel,
			"role":          role.String(),
		}),
		state:  StateConnecting,
		ctx:    ctx,
		cancel: cancel,
	}
	if role == RoleListener {
		c.send = make(chan *Envelope, queueCap)
	}

	c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	return c
}

func (c *WSConn) ID() string               { return c.id }
func (c *WSConn) Role() Role               { return c.role }
func (c *WSConn) Channel() string          { return c.channel }
func (c *WSConn) Context() context.Context { return c.ctx }

func (c *WSConn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// transition moves the connection to a new state if the edge is legal.
func (c *WSConn) transition(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !validTransition(c.state, to) {
		return false
	}
	c.state = to
	return true
}

// QueueLen reports pending outbound envelopes. Zero for broadcasters.
func (c *WSConn) QueueLen() int {
	if c.send == nil {
		return 0
	}
	return len(c.send)
}

// QueueCap reports the outbound queue bound. Zero for broadcasters.
func (c *WSConn) QueueCap() int {
	if c.send == nil {
		return 0
	}
	return cap(c.send)
}

// Enqueue attempts a non-blocking push onto the outbound queue.
func (c *WSConn) Enqueue(env *Envelope) error {
	if c.send == nil {
		return errNoOutboundQueue
	}

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

// SendDirect writes an envelope straight to the transport under a write
// deadline. Used for broadcaster feedback frames, which bypass the fan-out
// queue.
func (c *WSConn) SendDirect(env *Envelope) error {
	if c.State() != StateOpen {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(env); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// refreshReadDeadline extends the read deadline after inbound traffic. The
// pong handler covers ping replies; read loops call this for application
// frames so a steadily sending peer is never cut off.
func (c *WSConn) refreshReadDeadline() {
	c.ws.SetReadDeadline(time.Now().Add(pongTimeout))
}

// pingLoop keeps a broadcaster connection alive. Listeners are pinged from
// writePump; broadcasters have no outbound queue, so this ticker is their
// only ping source. Writes share writeMu with SendDirect.
func (c *WSConn) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.logger.Debugf("ping failed: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SetProfile stores listener-supplied bot info from heartbeat frames.
func (c *WSConn) SetProfile(info map[string]any) {
	c.profileMu.Lock()
	c.profile = info
	c.profileMu.Unlock()
}

// Profile returns the last bot info received from this listener.
func (c *WSConn) Profile() map[string]any {
	c.profileMu.RLock()
	defer c.profileMu.RUnlock()
	return c.profile
}

// Close initiates teardown. An open listener first drains its queue
// (StateDraining); calling Close again while draining forces an abort. The
// transport close and context cancellation run exactly once.
func (c *WSConn) Close() error {
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

	if c.send != nil && c.state == StateOpen {
		c.state = StateDraining
		close(c.send)
		c.mu.Unlock()
		return nil
	}

	c.state = StateClosed
	c.mu.Unlock()

	c.cancel()
	c.closeTransport()
	return nil
}

// finish forces the terminal state, cancelling the context and closing the
// transport. Idempotent.
func (c *WSConn) finish() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.mu.Unlock()

	c.cancel()
	c.closeTransport()
}

func (c *WSConn) closeTransport() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.ws.Close()
}

// writePump drains the outbound queue onto the transport. It is the only
// goroutine that writes application frames to a listener socket. When Close
// has started draining, buffered envelopes are still delivered before the
// channel reports closed.
func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.finish()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Queue drained after Close.
				return
			}
			if err := c.ws.WriteJSON(env); err != nil {
				c.logger.Debugf("write failed: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debugf("ping failed: %v", err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
