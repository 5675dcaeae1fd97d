package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/kaorin/bilisync/internal/log"
)

// Holder holds the current Snapshot with atomic reload, modeled on the
// teacher's internal/config.ConfigHolder: a watched file plus an
// atomic.Pointer so readers never observe a half-applied config, and
// fsnotify-driven hot reload of the document without restarting an
// in-flight cycle.
type Holder struct {
	reloadMu sync.Mutex
	epoch    atomic.Uint64
	snapshot atomic.Pointer[Snapshot]

	loader  *Loader
	path    string
	watcher *fsnotify.Watcher
	logger  zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

// NewHolder loads path once and returns a Holder seeded with the result.
func NewHolder(path string) (*Holder, error) {
	loader := NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	app, err := BuildSnapshot(cfg)
	if err != nil {
		return nil, err
	}

	h := &Holder{
		loader: loader,
		path:   path,
		logger: log.WithComponent("config"),
	}
	h.Swap(app)
	return h, nil
}

// Get returns the current effective configuration.
func (h *Holder) Get() AppConfig {
	snap := h.snapshot.Load()
	if snap == nil {
		return AppConfig{}
	}
	return snap.App
}

// Current returns the current immutable Snapshot pointer.
func (h *Holder) Current() *Snapshot {
	return h.snapshot.Load()
}

// Swap installs app as the current snapshot, incrementing Epoch, and
// notifies every registered listener.
func (h *Holder) Swap(app AppConfig) {
	snap := &Snapshot{Epoch: h.epoch.Add(1), App: app}
	h.snapshot.Store(snap)

	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- app:
		default:
		}
	}
}

// Subscribe registers ch to receive the AppConfig of every future Swap
// (each successful reload and each credential swap). A send is skipped when
// ch is not ready to receive; ch is never closed by Holder.
func (h *Holder) Subscribe(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

// Reload re-reads the document from disk and, if it parses and validates,
// swaps it in. On failure the previous snapshot is left untouched — spec.md
// §6's mutable fields (skip_option, filter rules, concurrency limits,
// interval) apply on the next cycle, in-flight work is unaffected.
func (h *Holder) Reload(_ context.Context) error {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	cfg, err := h.loader.Load()
	if err != nil {
		h.logger.Warn().Err(err).Msg("config reload failed, keeping previous snapshot")
		return err
	}
	app, err := BuildSnapshot(cfg)
	if err != nil {
		h.logger.Warn().Err(err).Msg("config reload failed to resolve snapshot, keeping previous")
		return err
	}
	h.Swap(app)
	h.logger.Info().Uint64("epoch", h.epoch.Load()).Msg("config reloaded")
	return nil
}

// WatchFile starts an fsnotify watcher on the document's directory and
// calls Reload whenever it's written. Call Close to stop watching.
func (h *Holder) WatchFile(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config: watch %s: %w", dir, err)
	}
	h.watcher = watcher

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(h.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := h.Reload(ctx); err != nil {
					h.logger.Warn().Err(err).Str("event", "config.watch_reload_failed").Msg("config file changed but reload failed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				h.logger.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if one was started.
func (h *Holder) Close() error {
	if h.watcher == nil {
		return nil
	}
	return h.watcher.Close()
}
