package config

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultWatchInterval is how often [Watcher.Run] looks at the file.
const DefaultWatchInterval = 5 * time.Second

// ChangeFunc receives the previous and the newly loaded config. Calls are
// serialised; a ChangeFunc must not call [Watcher.Reload].
type ChangeFunc func(old, new *Config)

// Watcher keeps the latest valid version of a config file. Edits that fail
// to parse or validate are logged and skipped; the previous version stays
// current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc
	log      *slog.Logger

	current atomic.Pointer[Config]

	// reloadMu serialises reloads and guards the fields below.
	reloadMu sync.Mutex
	sum      uint64
	modTime  time.Time
	size     int64
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval of [Watcher.Run].
// Non-positive values keep [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger for reload messages. Default: slog.Default().
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// NewWatcher loads the config at path. onChange may be nil. Nothing is
// polled until [Watcher.Run] is called.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	info, data, err := w.readFile()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current.Store(cfg)
	w.sum, w.modTime, w.size = xxhash.Sum64(data), info.ModTime(), info.Size()
	return w, nil
}

// Current returns the latest valid config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Run polls the file until ctx is done. A poll only reads the file when its
// modification time or size moved.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.reload(false); err != nil {
				w.log.Warn("config reload skipped", "path", w.path, "err", err)
			}
		}
	}
}

// Reload reads the file now, regardless of its modification time, and
// reports whether a new config became current. On error the current config
// is kept.
func (w *Watcher) Reload() (bool, error) {
	return w.reload(true)
}

func (w *Watcher) reload(force bool) (bool, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}
	if !force && info.ModTime().Equal(w.modTime) && info.Size() == w.size {
		return false, nil
	}

	info, data, err := w.readFile()
	if err != nil {
		return false, err
	}
	// Remember the attempt so a broken file is not re-parsed every tick.
	w.modTime, w.size = info.ModTime(), info.Size()
	sum := xxhash.Sum64(data)
	if sum == w.sum {
		return false, nil
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	w.sum = sum
	old := w.current.Swap(cfg)

	w.log.Info("config reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

func (w *Watcher) readFile() (os.FileInfo, []byte, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, nil, err
	}
	return info, buf.Bytes(), nil
}
