package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/levelbus/internal/event"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "levelbus.toml"

// Deferred delivery modes.
const (
	// DeferredLoop runs deferred deliveries on a background goroutine.
	DeferredLoop = "loop"
	// DeferredQueue holds deferred deliveries until the host drains them.
	DeferredQueue = "queue"
)

// Config holds every levelbus setting.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `toml:"log_level" env:"LEVELBUS_LOG_LEVEL"`

	// PruneEmpty removes empty leaf levels after cancellation.
	PruneEmpty bool `toml:"prune_empty" env:"LEVELBUS_PRUNE_EMPTY"`

	// CacheMirror copies exact sends into the cache namespace.
	CacheMirror bool `toml:"cache_mirror" env:"LEVELBUS_CACHE_MIRROR"`

	// MirrorMarker overrides the cache namespace segment.
	MirrorMarker string `toml:"mirror_marker" env:"LEVELBUS_MIRROR_MARKER"`

	// ListenerTimeout bounds each listener invocation. Zero disables it.
	ListenerTimeout Duration `toml:"listener_timeout" env:"LEVELBUS_LISTENER_TIMEOUT"`

	// DeferredMode selects how deferred sends are scheduled.
	DeferredMode string `toml:"deferred_mode" env:"LEVELBUS_DEFERRED_MODE"`
}

// Duration is a time.Duration read from strings such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel:     "info",
		DeferredMode: DeferredLoop,
	}
}

// Load resolves settings from defaults, the TOML file at path and the
// environment. An empty path skips the file layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		perr := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return &ValidationError{Key: "log_level", Message: "unknown log level", Value: c.LogLevel}
	}
	if c.ListenerTimeout.Duration < 0 {
		return &ValidationError{Key: "listener_timeout", Message: "must not be negative", Value: c.ListenerTimeout.Duration}
	}
	switch c.DeferredMode {
	case DeferredLoop, DeferredQueue:
	default:
		return &ValidationError{Key: "deferred_mode", Message: "must be loop or queue", Value: c.DeferredMode}
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel)))
	return level, err
}

// SpaceOptions maps the settings onto event space options. The scheduler
// is left to the caller, which knows whether it can drain a queue.
func (c Config) SpaceOptions(logger *slog.Logger) []event.Option {
	opts := []event.Option{
		event.WithPruneEmpty(c.PruneEmpty),
		event.WithListenerTimeout(c.ListenerTimeout.Duration),
	}
	if logger != nil {
		opts = append(opts, event.WithLogger(logger))
	}
	return opts
}
