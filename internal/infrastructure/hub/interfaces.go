package hub

import "context"

// Conn is a registered connection on a channel, regardless of transport
// (WebSocket, SSE). The lifecycle manager owns the concrete object; the
// registry only holds Conn references for lookup and snapshot iteration.
type Conn interface {
	// ID returns the unique connection identifier assigned at accept time.
	ID() string
	// Role returns the connection's role, fixed at registration.
	Role() Role
	// Channel returns the channel this connection belongs to.
	Channel() string
	// State returns the current lifecycle state.
	State() State

	// Enqueue places an envelope on the connection's outbound queue without
	// blocking. It returns ErrQueueFull when the bounded queue is at
	// capacity and ErrConnClosed once draining has started.
	Enqueue(env *Envelope) error

	// Close initiates teardown. Already-queued outbound data is flushed
	// before the transport is closed. Safe to call from both the read and
	// write side; cleanup runs exactly once.
	Close() error

	// Context is cancelled when the connection reaches the Closed state.
	Context() context.Context
}
