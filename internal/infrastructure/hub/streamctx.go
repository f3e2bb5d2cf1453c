package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// historyLimit bounds the recent-message ring kept per stream.
const historyLimit = 10

const defaultStreamTitle = "untitled stream"

// StreamContext is a point-in-time summary of a channel's live stream.
type StreamContext struct {
	SessionID    string
	Title        string
	StartedAt    time.Time
	MessageCount int
	Recent       []string
	Live         bool
}

// Duration returns the elapsed stream time, zero when no stream is live.
func (s StreamContext) Duration() time.Duration {
	if !s.Live {
		return 0
	}
	return time.Since(s.StartedAt)
}

type streamState struct {
	sessionID    string
	title        string
	startedAt    time.Time
	messageCount int
	recent       []string
	live         bool
}

// ContextTracker maintains per-channel stream context: session identity,
// title, message history and counters. It feeds the stream_info block of
// fan-out envelopes and the REST channel summary.
type ContextTracker struct {
	mu      sync.RWMutex
	streams map[string]*streamState
}

func NewContextTracker() *ContextTracker {
	return &ContextTracker{streams: make(map[string]*streamState)}
}

// StreamStarted opens a new stream session on the channel and returns its
// session id. Any previous context for the channel is discarded.
func (t *ContextTracker) StreamStarted(channel string) string {
	id := uuid.NewString()

	t.mu.Lock()
	t.streams[channel] = &streamState{
		sessionID: id,
		title:     defaultStreamTitle,
		startedAt: time.Now(),
		live:      true,
	}
	t.mu.Unlock()

	return id
}

// StreamEnded drops the channel's stream context.
func (t *ContextTracker) StreamEnded(channel string) {
	t.mu.Lock()
	delete(t.streams, channel)
	t.mu.Unlock()
}

// RecordMessage appends one broadcast message to the channel's context,
// updating the title when the broadcaster supplied one in its metadata.
func (t *ContextTracker) RecordMessage(channel, content, title string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.streams[channel]
	if !ok {
		return
	}
	if title != "" {
		s.title = title
	}
	s.messageCount++
	s.recent = append(s.recent, content)
	if len(s.recent) > historyLimit {
		s.recent = s.recent[len(s.recent)-historyLimit:]
	}
}

// Snapshot returns the channel's stream context. The bool reports whether a
// stream is live on the channel.
func (t *ContextTracker) Snapshot(channel string) (StreamContext, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.streams[channel]
	if !ok {
		return StreamContext{}, false
	}
	return StreamContext{
		SessionID:    s.sessionID,
		Title:        s.title,
		StartedAt:    s.startedAt,
		MessageCount: s.messageCount,
		Recent:       append([]string(nil), s.recent...),
		Live:         s.live,
	}, true
}
