// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/sessionforge/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// overrideFile captures the subset of Config that may be hot-reloaded from
// disk without a process restart. Identity, payments, and storage secrets
// are intentionally absent: those are env-only and require a restart.
type overrideFile struct {
	LogLevel          *string `yaml:"log_level,omitempty"`
	RateLimitGlobal   *int    `yaml:"rate_limit_global,omitempty"`
	RateLimitAuth     *int    `yaml:"rate_limit_auth,omitempty"`
	EnableEmbeddings  *bool   `yaml:"enable_embeddings,omitempty"`
	AIProvider        *string `yaml:"ai_provider,omitempty"`
	EmbeddingProvider *string `yaml:"embedding_provider,omitempty"`
}

func applyOverride(base Config, ov overrideFile) Config {
	if ov.LogLevel != nil {
		base.LogLevel = *ov.LogLevel
	}
	if ov.RateLimitGlobal != nil {
		base.RateLimitGlobal = *ov.RateLimitGlobal
	}
	if ov.RateLimitAuth != nil {
		base.RateLimitAuth = *ov.RateLimitAuth
	}
	if ov.EnableEmbeddings != nil {
		base.EnableEmbeddings = *ov.EnableEmbeddings
	}
	if ov.AIProvider != nil {
		base.AIProvider = *ov.AIProvider
	}
	if ov.EmbeddingProvider != nil {
		base.EmbeddingProvider = *ov.EmbeddingProvider
	}
	return base
}

// Holder holds configuration with atomic, hot-reloadable access. It is safe
// for concurrent use by many goroutines.
type Holder struct {
	epoch    atomic.Uint64
	current  atomic.Pointer[Config]
	base     Config // env-derived config, never mutated by reload
	filePath string
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger

	mu        sync.RWMutex
	listeners []chan<- Config
}

// NewHolder constructs a Holder seeded with the env-derived Config. If
// filePath is empty, hot reload is disabled and Holder serves base forever.
func NewHolder(base Config, filePath string) *Holder {
	h := &Holder{
		base:     base,
		filePath: filePath,
		logger:   xglog.WithComponent("config"),
	}
	h.store(base)
	return h
}

// Get returns the currently active configuration.
func (h *Holder) Get() Config {
	if c := h.current.Load(); c != nil {
		return *c
	}
	return h.base
}

func (h *Holder) store(cfg Config) {
	h.epoch.Add(1)
	h.current.Store(&cfg)
}

// Reload re-reads the override file (if configured) and merges it onto the
// env-derived base configuration. The identity/payments/storage fields are
// never affected by reload.
func (h *Holder) Reload(_ context.Context) error {
	if h.filePath == "" {
		return nil
	}

	var ov overrideFile
	data, err := readFile(h.filePath)
	if err != nil {
		return fmt.Errorf("read override file: %w", err)
	}
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("parse override file: %w", err)
	}

	next := applyOverride(h.base, ov)
	h.store(next)
	h.notify(next)

	h.logger.Info().Str("event", "config.reload_success").Str("path", h.filePath).Msg("configuration reloaded")
	return nil
}

// StartWatcher watches the override file for changes and reloads on write.
// If filePath is empty this is a no-op.
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.filePath == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("config hot reload disabled (env-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	dir := filepath.Dir(h.filePath)
	base := filepath.Base(h.filePath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go h.watchLoop(ctx, base)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, fileName string) {
	var debounce *time.Timer
	const debounceDuration = 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return
		case ev, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != fileName {
				continue
			}
			if !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, func() {
				if err := h.Reload(ctx); err != nil {
					h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic config reload failed")
				}
			})
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Stop stops the file watcher, if running.
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel notified (non-blocking) on every
// successful reload.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg Config) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str("event", "config.listener_skip").Msg("skipped notifying listener (channel full)")
		}
	}
}
