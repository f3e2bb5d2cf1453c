package hub

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"streamcast/internal/infrastructure/logger"
)

// Mock implementations shared by the package tests. mockLogger records debug
// lines so tests can assert on the quieter failure paths.

type mockLogger struct {
	mu     sync.Mutex
	debugs []string
}

func (m *mockLogger) Debug(msg string) {}
func (m *mockLogger) Debugf(format string, args ...any) {
	m.mu.Lock()
	m.debugs = append(m.debugs, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

func (m *mockLogger) debugContains(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range m.debugs {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
func (m *mockLogger) Info(msg string)                               {}
func (m *mockLogger) Infof(format string, args ...any)              {}
func (m *mockLogger) Warn(msg string)                               {}
func (m *mockLogger) Warnf(format string, args ...any)              {}
func (m *mockLogger) Error(msg string)                              {}
func (m *mockLogger) Errorf(format string, args ...any)             {}
func (m *mockLogger) Fatal(msg string)                              {}
func (m *mockLogger) Fatalf(format string, args ...any)             {}
func (m *mockLogger) WithField(key string, value any) logger.Logger { return m }
func (m *mockLogger) WithFields(fields logger.Fields) logger.Logger { return m }
func (m *mockLogger) SetLevel(level string)                         {}
func (m *mockLogger) SetOutput(output io.Writer)                    {}

// mockConn simulates a registered connection with a bounded queue. A zero
// capacity means unbounded.
type mockConn struct {
	id      string
	role    Role
	channel string
	cap     int

	mu       sync.Mutex
	state    State
	received []*Envelope
	direct   []*Envelope
}

func newMockConn(id string, role Role, channel string, capacity int) *mockConn {
	return &mockConn{
		id:      id,
		role:    role,
		channel: channel,
		cap:     capacity,
		state:   StateOpen,
	}
}

func (m *mockConn) ID() string               { return m.id }
func (m *mockConn) Role() Role               { return m.role }
func (m *mockConn) Channel() string          { return m.channel }
func (m *mockConn) Context() context.Context { return context.Background() }
func (m *mockConn) QueueCap() int            { return m.cap }

func (m *mockConn) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockConn) Enqueue(env *Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOpen {
		return ErrConnClosed
	}
	if m.cap > 0 && len(m.received) >= m.cap {
		return ErrQueueFull
	}
	m.received = append(m.received, env)
	return nil
}

func (m *mockConn) SendDirect(env *Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOpen {
		return ErrConnClosed
	}
	m.direct = append(m.direct, env)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateClosed
	return nil
}

func (m *mockConn) contents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.received))
	for _, env := range m.received {
		if env.Type == TypeStreamContent {
			out = append(out, env.Content)
		}
	}
	return out
}

func (m *mockConn) directTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.direct))
	for _, env := range m.direct {
		out = append(out, env.Type)
	}
	return out
}
