package hub

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_BroadcasterExclusivity(t *testing.T) {
	r := NewRegistry()

	first := newMockConn("b1", RoleBroadcaster, "alpha", 0)
	if err := r.RegisterBroadcaster("alpha", first); err != nil {
		t.Fatalf("first broadcaster should register: %v", err)
	}

	second := newMockConn("b2", RoleBroadcaster, "alpha", 0)
	err := r.RegisterBroadcaster("alpha", second)
	var busy *ChannelBusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected ChannelBusyError, got %v", err)
	}
	if busy.Channel != "alpha" {
		t.Errorf("expected channel alpha in error, got %q", busy.Channel)
	}

	// The first broadcaster is unaffected.
	broadcaster, _ := r.Snapshot("alpha")
	if broadcaster == nil || broadcaster.ID() != "b1" {
		t.Errorf("first broadcaster should still hold the channel")
	}

	// A different channel is free.
	if err := r.RegisterBroadcaster("beta", second); err != nil {
		t.Errorf("other channel should accept a broadcaster: %v", err)
	}
}

func TestRegistry_DeregisterRemovesEmptyChannel(t *testing.T) {
	r := NewRegistry()

	l := newMockConn("l1", RoleListener, "alpha", 0)
	r.RegisterListener("alpha", l)

	if len(r.Channels()) != 1 {
		t.Fatalf("expected 1 channel, got %d", len(r.Channels()))
	}

	if !r.Deregister(l) {
		t.Fatal("deregister should report membership removal")
	}
	if r.Deregister(l) {
		t.Error("second deregister should be a no-op")
	}

	if len(r.Channels()) != 0 {
		t.Errorf("empty channel should be removed, still have %v", r.Channels())
	}
}

func TestRegistry_ChannelSurvivesWhileMembersRemain(t *testing.T) {
	r := NewRegistry()

	b := newMockConn("b1", RoleBroadcaster, "alpha", 0)
	l := newMockConn("l1", RoleListener, "alpha", 0)
	r.RegisterBroadcaster("alpha", b)
	r.RegisterListener("alpha", l)

	r.Deregister(b)
	if len(r.Channels()) != 1 {
		t.Fatal("channel with remaining listener should survive broadcaster departure")
	}

	// Channel is free for a new broadcaster now.
	if err := r.RegisterBroadcaster("alpha", newMockConn("b2", RoleBroadcaster, "alpha", 0)); err != nil {
		t.Fatalf("vacated channel should accept a broadcaster: %v", err)
	}
}

func TestRegistry_SnapshotIsImmutable(t *testing.T) {
	r := NewRegistry()

	r.RegisterListener("alpha", newMockConn("l1", RoleListener, "alpha", 0))
	_, snapshot := r.Snapshot("alpha")

	r.RegisterListener("alpha", newMockConn("l2", RoleListener, "alpha", 0))

	if len(snapshot) != 1 {
		t.Errorf("snapshot should not see later registrations, got %d", len(snapshot))
	}
	if r.ListenerCount("alpha") != 2 {
		t.Errorf("registry should see both listeners, got %d", r.ListenerCount("alpha"))
	}
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			channel := fmt.Sprintf("chan-%d", n%5)
			l := newMockConn(fmt.Sprintf("l-%d", n), RoleListener, channel, 0)
			r.RegisterListener(channel, l)
			r.Snapshot(channel)
			r.Deregister(l)
		}(i)
	}
	wg.Wait()

	if len(r.Channels()) != 0 {
		t.Errorf("all channels should be removed after churn, got %v", r.Channels())
	}
}
