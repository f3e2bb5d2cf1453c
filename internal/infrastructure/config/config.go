package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"streamcast/internal/infrastructure/hub"
	"streamcast/internal/infrastructure/logger"
)

// Config is the process configuration. Everything has a default so the
// service runs without a file.
type Config struct {
	Server     ServerConfig  `yaml:"server"`
	Hub        HubConfig     `yaml:"hub"`
	Log        logger.Config `yaml:"log"`
	LiveReload bool          `yaml:"live_reload"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Read and write timeouts are deliberately absent: they would sever
	// long-lived websocket and event-stream connections.
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

type HubConfig struct {
	// QueueCapacity bounds each listener's outbound queue; a listener that
	// falls this far behind is disconnected.
	QueueCapacity int `yaml:"queue_capacity"`
	// DefaultChannel backs endpoints that carry no channel path segment.
	DefaultChannel string `yaml:"default_channel"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			IdleTimeout:   60 * time.Second,
			ShutdownGrace: 5 * time.Second,
		},
		Hub: HubConfig{
			QueueCapacity:  hub.DefaultQueueCapacity,
			DefaultChannel: hub.DefaultChannelName,
		},
		Log: logger.DefaultConfig(),
	}
}

// Load reads a yaml file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the runtime cannot work with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Hub.QueueCapacity <= 0 {
		return fmt.Errorf("hub.queue_capacity must be positive, got %d", c.Hub.QueueCapacity)
	}
	if err := hub.ValidateChannel(c.Hub.DefaultChannel); err != nil {
		return fmt.Errorf("hub.default_channel: %w", err)
	}
	return nil
}
