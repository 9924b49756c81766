package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileSource loads a policy document from disk and watches it for changes.
// Reloads are debounced to prevent reload storms, and a failed reload keeps
// the last good policy in place.
type FileSource struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	current *ReviewPolicy
	running bool
}

// FileSourceConfig configures a FileSource.
type FileSourceConfig struct {
	// Path is the policy document to load and watch (YAML or JSON).
	Path string

	// DebounceInterval is the time to wait after a change event before
	// reloading (default: 100ms).
	DebounceInterval time.Duration
}

// NewFileSource loads the policy document at cfg.Path. The initial load must
// succeed; there is no policy to fall back to yet.
func NewFileSource(cfg FileSourceConfig, logger *slog.Logger) (*FileSource, error) {
	if cfg.Path == "" {
		return nil, &InvalidError{Reason: "policy file path is empty"}
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	fs := &FileSource{
		path:     cfg.Path,
		debounce: cfg.DebounceInterval,
		logger:   logger.With("component", "policy.filesource"),
	}
	if err := fs.reload(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Current returns the most recently loaded good policy.
func (fs *FileSource) Current() *ReviewPolicy {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.current
}

// Watch blocks until the context is cancelled, reloading the policy whenever
// the file changes. A reload failure is logged and the previous policy stays
// active.
func (fs *FileSource) Watch(ctx context.Context) error {
	fs.mu.Lock()
	if fs.running {
		fs.mu.Unlock()
		return fmt.Errorf("policy watcher already running")
	}
	fs.running = true
	fs.mu.Unlock()

	defer func() {
		fs.mu.Lock()
		fs.running = false
		fs.mu.Unlock()
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fs.path); err != nil {
		return fmt.Errorf("failed to watch %q: %w", fs.path, err)
	}

	fs.logger.Info("policy watcher started",
		"path", fs.path,
		"debounce_ms", fs.debounce.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			fs.logger.Info("policy watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Debounce: editors emit bursts of writes for one save.
			if timer == nil {
				timer = time.NewTimer(fs.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(fs.debounce)
			}

		case <-timerCh:
			if err := fs.reload(); err != nil {
				fs.logger.Warn("policy reload failed, keeping previous policy",
					"path", fs.path, "error", err)
			} else {
				fs.logger.Info("policy reloaded", "path", fs.path)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fs.logger.Warn("policy watcher error", "error", err)
		}
	}
}

// reload reads and parses the policy file, swapping it in only on success.
func (fs *FileSource) reload() error {
	raw, err := os.ReadFile(fs.path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %q: %w", fs.path, err)
	}
	p, err := ParseYAML(raw)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	fs.current = p
	fs.mu.Unlock()
	return nil
}
