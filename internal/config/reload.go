package config

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"chanplan/internal/log"
)

const reloadDebounce = 500 * time.Millisecond

// Holder provides thread-safe access to the live configuration and reloads
// it when the config file changes. A reload that fails to load or validate
// keeps the previous configuration.
type Holder struct {
	mu      sync.RWMutex
	current Config

	path     string
	watcher  *fsnotify.Watcher
	log      zerolog.Logger
	onReload []func(Config)
}

// NewHolder wraps an already-loaded configuration. path may be empty when
// the config came from environment only; Watch is then a no-op.
func NewHolder(initial Config, path string) *Holder {
	return &Holder{current: initial, path: path, log: log.WithComponent("config")}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// OnReload registers a callback invoked with the new configuration after
// every successful reload. Register before Watch; callbacks run on the
// watcher goroutine.
func (h *Holder) OnReload(fn func(Config)) {
	h.onReload = append(h.onReload, fn)
}

// Reload re-reads the config file and swaps the configuration in.
func (h *Holder) Reload() error {
	cfg, err := Load(h.path)
	if err != nil {
		h.log.Error().Err(err).Msg("config reload failed, keeping previous")
		return err
	}

	h.mu.Lock()
	h.current = cfg
	h.mu.Unlock()

	for _, fn := range h.onReload {
		fn(cfg)
	}
	h.log.Info().Msg("configuration reloaded")
	return nil
}

// Watch follows the config file until ctx is cancelled. Rapid write bursts
// from editors collapse into one reload.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(h.path); err != nil {
		watcher.Close()
		return err
	}
	h.watcher = watcher
	h.log.Info().Str("path", h.path).Msg("watching config file")

	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			h.watcher.Close()
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			// Write for in-place edits, Create for the rename dance
			// editors like vim do.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() { _ = h.Reload() })
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.Error().Err(err).Msg("config watcher error")
		}
	}
}

// Stop closes the watcher if one is running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		h.watcher.Close()
	}
}
