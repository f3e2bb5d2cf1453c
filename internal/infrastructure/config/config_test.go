package config

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
)

type noopLogger struct{}

func (noopLogger) Debug(msg string)                              {}
func (noopLogger) Debugf(format string, args ...any)             {}
func (noopLogger) Info(msg string)                               {}
func (noopLogger) Infof(format string, args ...any)              {}
func (noopLogger) Warn(msg string)                               {}
func (noopLogger) Warnf(format string, args ...any)              {}
func (noopLogger) Error(msg string)                              {}
func (noopLogger) Errorf(format string, args ...any)             {}
func (noopLogger) Fatal(msg string)                              {}
func (noopLogger) Fatalf(format string, args ...any)             {}
func (n noopLogger) WithField(key string, value any) logger.Logger { return n }
func (n noopLogger) WithFields(fields logger.Fields) logger.Logger { return n }
func (noopLogger) SetLevel(level string)                         {}
func (noopLogger) SetOutput(output io.Writer)                    {}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with empty path failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("unexpected default addr %q", cfg.Server.Addr)
	}
	if cfg.Hub.QueueCapacity != hub.DefaultQueueCapacity {
		t.Errorf("unexpected default queue capacity %d", cfg.Hub.QueueCapacity)
	}
	if cfg.Hub.DefaultChannel != hub.DefaultChannelName {
		t.Errorf("unexpected default channel %q", cfg.Hub.DefaultChannel)
	}
	if cfg.LiveReload {
		t.Error("live reload should default off")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9090"
  shutdown_grace: 10s
hub:
  queue_capacity: 64
  default_channel: lobby
log:
  level: debug
live_reload: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr not overridden, got %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownGrace != 10*time.Second {
		t.Errorf("shutdown grace not overridden, got %v", cfg.Server.ShutdownGrace)
	}
	if cfg.Hub.QueueCapacity != 64 || cfg.Hub.DefaultChannel != "lobby" {
		t.Errorf("hub section not overridden: %+v", cfg.Hub)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level not overridden, got %q", cfg.Log.Level)
	}
	if !cfg.LiveReload {
		t.Error("live_reload not overridden")
	}

	// Untouched keys keep their defaults.
	if cfg.Server.IdleTimeout != 60*time.Second {
		t.Errorf("idle timeout should keep its default, got %v", cfg.Server.IdleTimeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("server: ["), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("unparsable yaml should fail")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, false},
		{"zero capacity", func(c *Config) { c.Hub.QueueCapacity = 0 }, false},
		{"negative capacity", func(c *Config) { c.Hub.QueueCapacity = -5 }, false},
		{"empty channel", func(c *Config) { c.Hub.DefaultChannel = "" }, false},
	}

	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		err := cfg.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected validation failure", tc.name)
		}
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("hub:\n  queue_capacity: 16\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, noopLogger{}, func(cfg *Config) { reloaded <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Give the watcher time to establish before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("hub:\n  queue_capacity: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Hub.QueueCapacity != 99 {
			t.Errorf("expected reloaded capacity 99, got %d", cfg.Hub.QueueCapacity)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}

func TestWatcher_SkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("hub:\n  queue_capacity: 16\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w := NewWatcher(path, noopLogger{}, func(cfg *Config) { reloaded <- cfg })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("hub: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Errorf("invalid file must not publish a config, got %+v", cfg)
	case <-time.After(time.Second):
	}
}
