package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent opsdeck configuration stored as
// config.toml in the .opsdeck/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Backend BackendConfig `toml:"backend"`
	Render  RenderConfig  `toml:"render"`
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Events  EventsConfig  `toml:"events"`
}

// BackendConfig holds the chat backend endpoints.
type BackendConfig struct {
	Target       string `toml:"target,omitempty"`
	StreamPath   string `toml:"stream_path,omitempty"`
	CompletePath string `toml:"complete_path,omitempty"`

	// Timeout bounds non-streaming requests, as a Go duration string.
	Timeout string `toml:"timeout,omitempty"`
}

// RenderConfig holds rendering settings.
type RenderConfig struct {
	// FrameInterval paces streamed renders, as a Go duration string.
	FrameInterval string `toml:"frame_interval,omitempty"`
	Strict        bool   `toml:"strict,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds history storage settings.
type StorageConfig struct {
	// SQLitePath is the history database. Empty keeps history in memory.
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// EventsConfig holds completion-event publishing settings.
type EventsConfig struct {
	// Brokers is a comma-separated Kafka broker list. Empty disables
	// publishing.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into addresses.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func checkDuration(key, v string) error {
	if _, err := time.ParseDuration(v); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"backend.target": {
		get: func(c *Config) string { return c.Backend.Target },
		set: func(c *Config, v string) error { c.Backend.Target = v; return nil },
	},
	"backend.stream_path": {
		get: func(c *Config) string { return c.Backend.StreamPath },
		set: func(c *Config, v string) error { c.Backend.StreamPath = v; return nil },
	},
	"backend.complete_path": {
		get: func(c *Config) string { return c.Backend.CompletePath },
		set: func(c *Config, v string) error { c.Backend.CompletePath = v; return nil },
	},
	"backend.timeout": {
		get: func(c *Config) string { return c.Backend.Timeout },
		set: func(c *Config, v string) error {
			if err := checkDuration("backend.timeout", v); err != nil {
				return err
			}
			c.Backend.Timeout = v
			return nil
		},
	},
	"render.frame_interval": {
		get: func(c *Config) string { return c.Render.FrameInterval },
		set: func(c *Config, v string) error {
			if err := checkDuration("render.frame_interval", v); err != nil {
				return err
			}
			c.Render.FrameInterval = v
			return nil
		},
	},
	"render.strict": {
		get: func(c *Config) string { return strconv.FormatBool(c.Render.Strict) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for render.strict: %w", err)
			}
			c.Render.Strict = b
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
