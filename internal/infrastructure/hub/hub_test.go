package hub

import (
	"context"
	"errors"
	"testing"
)

func TestHub_StartStop(t *testing.T) {
	h := New(Options{}, &mockLogger{})

	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	if !h.IsRunning() {
		t.Error("hub should be running after start")
	}
	if err := h.Start(ctx); err == nil {
		t.Error("second start should fail")
	}

	if err := h.Stop(ctx); err != nil {
		t.Fatalf("failed to stop hub: %v", err)
	}
	if h.IsRunning() {
		t.Error("hub should not be running after stop")
	}
	if err := h.Stop(ctx); err != nil {
		t.Errorf("stopping a stopped hub should be a no-op: %v", err)
	}
}

func TestHub_PublishRequiresRunning(t *testing.T) {
	h := New(Options{}, &mockLogger{})

	if _, err := h.PublishMessage("alpha", "hello"); !errors.Is(err, ErrHubNotRunning) {
		t.Errorf("expected ErrHubNotRunning, got %v", err)
	}

	h.Start(context.Background())
	defer h.Stop(context.Background())

	n, err := h.PublishMessage("alpha", "hello")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if n != 0 {
		t.Errorf("no listeners attached, expected 0 deliveries, got %d", n)
	}
}

func TestHub_QueueCapacity(t *testing.T) {
	h := New(Options{QueueCapacity: 8}, &mockLogger{})
	if h.QueueCapacity() != 8 {
		t.Errorf("expected capacity 8, got %d", h.QueueCapacity())
	}

	h.SetQueueCapacity(32)
	if h.QueueCapacity() != 32 {
		t.Errorf("expected capacity 32 after update, got %d", h.QueueCapacity())
	}

	// Nonsense values are ignored.
	h.SetQueueCapacity(0)
	h.SetQueueCapacity(-1)
	if h.QueueCapacity() != 32 {
		t.Errorf("capacity should be unchanged, got %d", h.QueueCapacity())
	}

	defaulted := New(Options{}, &mockLogger{})
	if defaulted.QueueCapacity() != DefaultQueueCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultQueueCapacity, defaulted.QueueCapacity())
	}
}

func TestValidateChannel(t *testing.T) {
	if err := ValidateChannel("alpha"); err != nil {
		t.Errorf("plain name should validate: %v", err)
	}

	long := make([]byte, channelNameMaxLen+1)
	for i := range long {
		long[i] = 'a'
	}

	for name, input := range map[string]string{
		"empty":    "",
		"too long": string(long),
		"bad utf8": string([]byte{0xff, 0xfe}),
	} {
		err := ValidateChannel(input)
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Errorf("%s: expected ProtocolError, got %v", name, err)
		}
	}
}

func TestHub_Summaries(t *testing.T) {
	h := New(Options{}, &mockLogger{})
	h.Start(context.Background())
	defer h.Stop(context.Background())

	h.registry.RegisterBroadcaster("alpha", newMockConn("b", RoleBroadcaster, "alpha", 0))
	h.registry.RegisterListener("alpha", newMockConn("l1", RoleListener, "alpha", 0))
	h.registry.RegisterListener("beta", newMockConn("l2", RoleListener, "beta", 0))
	h.contexts.StreamStarted("alpha")

	summaries := h.Summaries()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(summaries))
	}

	byName := map[string]ChannelSummary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}

	alpha := byName["alpha"]
	if !alpha.HasBroadcaster || alpha.Listeners != 1 || alpha.Stream == nil {
		t.Errorf("unexpected alpha summary: %+v", alpha)
	}
	beta := byName["beta"]
	if beta.HasBroadcaster || beta.Listeners != 1 || beta.Stream != nil {
		t.Errorf("unexpected beta summary: %+v", beta)
	}

	if h.ActiveStreams() != 1 {
		t.Errorf("expected 1 active stream, got %d", h.ActiveStreams())
	}
	if h.ConnectionCount() != 3 {
		t.Errorf("expected 3 connections, got %d", h.ConnectionCount())
	}
}

func TestHub_CatchUpFailureLogged(t *testing.T) {
	log := &mockLogger{}
	h := New(Options{}, log)
	h.Start(context.Background())
	defer h.Stop(context.Background())

	h.contexts.StreamStarted("alpha")

	// A listener that is already tearing down cannot take the catch-up
	// frame; the failure is logged, not swallowed.
	closed := newMockConn("l1", RoleListener, "alpha", 0)
	closed.Close()
	h.attachListenerConn(closed)

	if !log.debugContains("catch-up") {
		t.Error("failed stream info catch-up should leave a debug trace")
	}
	if h.registry.ListenerCount("alpha") != 1 {
		t.Error("registration itself should still happen")
	}
}

func TestDecodeBroadcastFrame(t *testing.T) {
	content, title := decodeBroadcastFrame([]byte(`{"content":"hi","metadata":{"stream_title":"show"}}`))
	if content != "hi" || title != "show" {
		t.Errorf("got content=%q title=%q", content, title)
	}

	content, title = decodeBroadcastFrame([]byte("plain words"))
	if content != "plain words" || title != "" {
		t.Errorf("plain text should pass through, got content=%q title=%q", content, title)
	}

	content, _ = decodeBroadcastFrame([]byte(`{"metadata":{}}`))
	if content != `{"metadata":{}}` {
		t.Errorf("frame without content treated as opaque text, got %q", content)
	}
}
