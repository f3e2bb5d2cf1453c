package hub

import (
	"errors"

	"streamcast/internal/infrastructure/logger"
)

// directSender is the feedback path to a broadcaster, which has no fan-out
// queue. Only websocket connections implement it.
type directSender interface {
	SendDirect(env *Envelope) error
}

// Dispatcher fans broadcaster messages out to a channel's current listener
// set. Delivery never waits on any listener's consumption: each pass works on
// a registry snapshot and enqueues non-blocking, so one slow consumer cannot
// delay the others or the broadcaster's read loop.
type Dispatcher struct {
	registry *Registry
	logger   logger.Logger
}

func NewDispatcher(registry *Registry, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   log.WithField("component", "dispatcher"),
	}
}

// Deliver pushes env onto the outbound queue of every listener in the
// channel's snapshot. A listener whose queue is full violates the
// backpressure policy and is disconnected; the message itself is not dropped
// for anyone else. Returns the number of successful enqueues.
func (d *Dispatcher) Deliver(channel string, env *Envelope) int {
	_, listeners := d.registry.Snapshot(channel)

	delivered := 0
	for _, l := range listeners {
		err := l.Enqueue(env)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrQueueFull):
			violation := &BackpressureViolation{
				ConnID:  l.ID(),
				Channel: channel,
			}
			if q, ok := l.(interface{ QueueCap() int }); ok {
				violation.Capacity = q.QueueCap()
			}
			d.logger.Warnf("disconnecting slow listener: %v", violation)
			d.evict(l)
		case errors.Is(err, ErrConnClosed):
			// Listener is already tearing down; its lifecycle path
			// deregisters it.
		default:
			d.logger.Errorf("enqueue to listener %s failed: %v", l.ID(), err)
		}
	}
	return delivered
}

// NotifyBroadcaster sends a feedback frame (viewer updates, relayed
// reactions) to the channel's broadcaster, if one is attached. Failures are
// local to the broadcaster connection; its own read loop handles teardown.
func (d *Dispatcher) NotifyBroadcaster(channel string, env *Envelope) {
	broadcaster, _ := d.registry.Snapshot(channel)
	if broadcaster == nil {
		return
	}
	sender, ok := broadcaster.(directSender)
	if !ok {
		return
	}
	if err := sender.SendDirect(env); err != nil && !errors.Is(err, ErrConnClosed) {
		d.logger.Warnf("feedback to broadcaster on %q failed: %v", channel, err)
	}
}

// evict applies the backpressure policy: the listener is moved through
// Draining to Closed and deregistered. The broadcaster is notified of the
// viewer change off the fan-out path so eviction never slows delivery.
func (d *Dispatcher) evict(l Conn) {
	l.Close()
	if !d.registry.Deregister(l) {
		return
	}
	channel := l.Channel()
	count := d.registry.ListenerCount(channel)
	go d.NotifyBroadcaster(channel, newViewerUpdate("leave", count))
}
