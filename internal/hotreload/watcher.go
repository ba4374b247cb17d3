// Package hotreload watches the permission rule file and reloads the
// decision engine when it changes, without restarting the server.
package hotreload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Applier validates and applies a new rule file. A validation failure
// keeps the previous engine in place.
type Applier interface {
	ApplyRules(path string) error
}

// Watcher watches a single rule file for changes. It watches the parent
// directory rather than the file itself so atomic-rename saves from
// editors are still seen.
type Watcher struct {
	path     string
	applier  Applier
	debounce time.Duration
	logger   *slog.Logger

	watcher    *fsnotify.Watcher
	running    atomic.Bool
	reloadChan chan struct{}
	stats      Stats
}

// Stats tracks reload outcomes.
type Stats struct {
	mu             sync.RWMutex
	ReloadsTotal   int64     `json:"reloads_total"`
	ReloadsSuccess int64     `json:"reloads_success"`
	ReloadsFailed  int64     `json:"reloads_failed"`
	LastReload     time.Time `json:"last_reload,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorTime  time.Time `json:"last_error_time,omitempty"`
}

type Config struct {
	Path     string
	Applier  Applier
	Debounce time.Duration
	Logger   *slog.Logger
}

func New(cfg Config) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("rule file path is required")
	}
	if cfg.Applier == nil {
		return nil, fmt.Errorf("applier is required")
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:       cfg.Path,
		applier:    cfg.Applier,
		debounce:   debounce,
		logger:     logger,
		reloadChan: make(chan struct{}, 16),
	}, nil
}

// Start begins watching. It returns after the watch is established; the
// reload loop runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return fmt.Errorf("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.running.Store(false)
		return fmt.Errorf("creating watcher: %w", err)
	}
	w.watcher = fsw

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		w.running.Store(false)
		return fmt.Errorf("watching directory: %w", err)
	}

	go w.processEvents(ctx)
	go w.processReloads(ctx)
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	var pending time.Time
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			pending = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.recordError(fmt.Sprintf("watcher error: %v", err))

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < w.debounce {
				continue
			}
			pending = time.Time{}
			select {
			case w.reloadChan <- struct{}{}:
			default:
			}

		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) processReloads(ctx context.Context) {
	for {
		select {
		case <-w.reloadChan:
			w.handleReload()
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleReload() {
	w.stats.mu.Lock()
	w.stats.ReloadsTotal++
	w.stats.mu.Unlock()

	if err := w.applier.ApplyRules(w.path); err != nil {
		w.recordError(fmt.Sprintf("reloading %s: %v", w.path, err))
		w.logger.Warn("rule reload failed, keeping previous rules", "path", w.path, "error", err)
		return
	}

	w.stats.mu.Lock()
	w.stats.ReloadsSuccess++
	w.stats.LastReload = time.Now()
	w.stats.mu.Unlock()
	w.logger.Info("rules reloaded", "path", w.path)
}

func (w *Watcher) recordError(msg string) {
	w.stats.mu.Lock()
	w.stats.ReloadsFailed++
	w.stats.LastError = msg
	w.stats.LastErrorTime = time.Now()
	w.stats.mu.Unlock()
}

// TriggerReload queues an immediate reload.
func (w *Watcher) TriggerReload() error {
	if !w.running.Load() {
		return fmt.Errorf("watcher not running")
	}
	select {
	case w.reloadChan <- struct{}{}:
		return nil
	default:
		return fmt.Errorf("reload channel full")
	}
}

func (w *Watcher) Stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) Stats() Stats {
	w.stats.mu.RLock()
	defer w.stats.mu.RUnlock()
	return Stats{
		ReloadsTotal:   w.stats.ReloadsTotal,
		ReloadsSuccess: w.stats.ReloadsSuccess,
		ReloadsFailed:  w.stats.ReloadsFailed,
		LastReload:     w.stats.LastReload,
		LastError:      w.stats.LastError,
		LastErrorTime:  w.stats.LastErrorTime,
	}
}
