package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls its file.
const DefaultWatchInterval = 5 * time.Second

// revision identifies one version of the config file on disk.
type revision struct {
	modTime time.Time
	sum     [sha256.Size]byte
}

// Watcher follows a config file and hands each new valid revision to a
// callback. Edits that fail to parse or validate are logged and skipped, so
// the last good config stays in effect.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu  sync.Mutex
	cur *Config
	rev revision
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and returns a watcher positioned at that revision.
// Polling starts with [Watcher.Run].
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{path: path, interval: DefaultWatchInterval, onChange: onChange}
	for _, opt := range opts {
		opt(w)
	}

	cfg, rev, err := readRevision(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.cur, w.rev = cfg, rev
	return w, nil
}

// Current returns the latest valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// Run polls the file until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				slog.Warn("config: reload skipped", "path", w.path, "err", err)
			}
		}
	}
}

// Check compares the file against the current revision and applies it if
// its content changed. It reports whether a new config was applied. On error
// the current config is kept.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.rev.modTime)
	w.mu.Unlock()
	if unchanged {
		return false, nil
	}

	cfg, rev, err := readRevision(w.path)
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	if rev.sum == w.rev.sum {
		w.rev.modTime = rev.modTime
		w.mu.Unlock()
		return false, nil
	}
	old := w.cur
	w.cur, w.rev = cfg, rev
	w.mu.Unlock()

	slog.Info("config: file changed", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return true, nil
}

// readRevision parses and validates the file at path.
func readRevision(path string) (*Config, revision, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, revision{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, revision{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, revision{}, err
	}
	return cfg, revision{modTime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
