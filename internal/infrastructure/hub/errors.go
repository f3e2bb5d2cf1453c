package hub

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Enqueue when a listener's outbound queue is at
// capacity. The dispatcher converts it into a BackpressureViolation.
var ErrQueueFull = errors.New("outbound queue full")

// ErrConnClosed is returned when an operation is attempted on a connection
// that is draining or closed.
var ErrConnClosed = errors.New("connection closed")

// ErrHubNotRunning is returned when connections are attached to a hub that
// has not been started or is shutting down.
var ErrHubNotRunning = errors.New("hub is not running")

// ProtocolError rejects a connection whose role or channel cannot be
// determined from its handshake. The transport is closed before any
// registration happens.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// ChannelBusyError rejects a broadcaster registration on a channel that
// already has an active broadcaster. The existing broadcaster is unaffected.
type ChannelBusyError struct {
	Channel string
}

func (e *ChannelBusyError) Error() string {
	return fmt.Sprintf("channel %q already has an active broadcaster", e.Channel)
}

// TransportError wraps a read or write failure on an established connection.
// It tears down that connection only.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// BackpressureViolation is raised when a listener's outbound queue overflows.
// The policy response is to disconnect that listener rather than drop
// individual messages or block the broadcaster.
type BackpressureViolation struct {
	ConnID   string
	Channel  string
	Capacity int
}

func (e *BackpressureViolation) Error() string {
	return fmt.Sprintf(
		"listener %s on channel %q exceeded queue capacity %d",
		e.ConnID, e.Channel, e.Capacity,
	)
}
