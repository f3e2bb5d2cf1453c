package hub

import "sync"

// Registry is the authoritative mapping from channel name to its broadcaster
// and listener set. Mutations are serialized per channel; snapshots are
// point-in-time copies safe to iterate while the channel keeps changing.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*channelEntry
}

type channelEntry struct {
	mu          sync.RWMutex
	broadcaster Conn
	listeners   map[string]Conn

	// removed marks an entry that was deleted from the map after becoming
	// empty. Registrations that raced the removal retry with a fresh entry.
	removed bool
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*channelEntry)}
}

// entry returns the live entry for a channel, creating it on first use.
func (r *Registry) entry(channel string) *channelEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.channels[channel]
	if !ok {
		e = &channelEntry{listeners: make(map[string]Conn)}
		r.channels[channel] = e
	}
	return e
}

// RegisterBroadcaster binds conn as the channel's broadcaster, creating the
// channel entry if absent. At most one broadcaster per channel: a second
// registration fails with ChannelBusyError and leaves the first untouched.
func (r *Registry) RegisterBroadcaster(channel string, conn Conn) error {
	for {
		e := r.entry(channel)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		if e.broadcaster != nil {
			e.mu.Unlock()
			return &ChannelBusyError{Channel: channel}
		}
		e.broadcaster = conn
		e.mu.Unlock()
		return nil
	}
}

// RegisterListener adds conn to the channel's listener set, creating the
// channel entry if absent. Always succeeds.
func (r *Registry) RegisterListener(channel string, conn Conn) {
	for {
		e := r.entry(channel)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.listeners[conn.ID()] = conn
		e.mu.Unlock()
		return
	}
}

// Deregister removes conn from whichever set it belongs to and drops the
// channel entry once both sets are empty. It reports whether the connection
// was actually a member, so concurrent teardown paths clean up exactly once.
func (r *Registry) Deregister(conn Conn) bool {
	r.mu.RLock()
	e, ok := r.channels[conn.Channel()]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	removed := false
	if e.broadcaster != nil && e.broadcaster.ID() == conn.ID() {
		e.broadcaster = nil
		removed = true
	} else if _, member := e.listeners[conn.ID()]; member {
		delete(e.listeners, conn.ID())
		removed = true
	}
	empty := e.broadcaster == nil && len(e.listeners) == 0
	e.mu.Unlock()

	if empty {
		r.dropIfEmpty(conn.Channel())
	}
	return removed
}

// dropIfEmpty deletes the channel entry unless it was repopulated in the
// meantime. Registry lock is taken before the entry lock on this path; the
// register paths never hold both at once.
func (r *Registry) dropIfEmpty(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.channels[channel]
	if !ok {
		return
	}
	e.mu.Lock()
	if e.broadcaster == nil && len(e.listeners) == 0 {
		e.removed = true
		delete(r.channels, channel)
	}
	e.mu.Unlock()
}

// Snapshot returns the channel's current broadcaster (nil when idle) and an
// immutable copy of its listener set for one fan-out pass.
func (r *Registry) Snapshot(channel string) (Conn, []Conn) {
	r.mu.RLock()
	e, ok := r.channels[channel]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	listeners := make([]Conn, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	return e.broadcaster, listeners
}

// ListenerCount reports the current listener set size for a channel.
func (r *Registry) ListenerCount(channel string) int {
	_, listeners := r.Snapshot(channel)
	return len(listeners)
}

// Channels returns the names of all channels with at least one member.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}

// All returns every registered connection across all channels. Used for
// shutdown.
func (r *Registry) All() []Conn {
	var conns []Conn
	for _, name := range r.Channels() {
		broadcaster, listeners := r.Snapshot(name)
		if broadcaster != nil {
			conns = append(conns, broadcaster)
		}
		conns = append(conns, listeners...)
	}
	return conns
}
