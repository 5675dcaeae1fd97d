// Package log provides the process-wide structured logger. It mirrors the
// shape of a zerolog bootstrap package: a package-level base logger
// configured once at startup, sub-loggers obtained per component, and a
// context-carried logger so call chains don't need to thread *zerolog.Logger
// through every signature.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the global logger.
type Config struct {
	Level   string
	Output  io.Writer
	Service string
	Version string
}

var (
	mu          sync.RWMutex
	base        zerolog.Logger
	initialized bool
)

// Configure initializes the global logger. Safe to call once at startup;
// subsequent calls replace the base logger (used by config hot-reload when
// the level changes).
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	service := cfg.Service
	if service == "" {
		service = "bilisync"
	}

	base = zerolog.New(out).With().
		Timestamp().
		Str("service", service).
		Str("version", cfg.Version).
		Logger()
	initialized = true
}

func ensureInitialized() {
	mu.RLock()
	if initialized {
		mu.RUnlock()
		return
	}
	mu.RUnlock()
	Configure(Config{})
}

// Base returns the global base logger, initializing defaults if needed.
func Base() zerolog.Logger {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithComponent returns a sub-logger annotated with a "component" field,
// the convention every package in this repo uses to get its own logger.
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}

// SetLevel updates the global level at runtime (used by config hot-reload).
func SetLevel(level string) error {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	zerolog.SetGlobalLevel(parsed)
	mu.Unlock()
	return nil
}
