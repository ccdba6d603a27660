package sourcefile

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/guillermoBallester/txscope/internal/source"
)

const defaultDebounce = 100 * time.Millisecond

// ReloadFunc receives freshly loaded settings. An error leaves the previous
// settings in force; it is logged and the watcher keeps running.
type ReloadFunc func(source.Settings) error

// Watcher reloads a sources file whenever it is written or replaced.
type Watcher struct {
	path     string
	reload   ReloadFunc
	logger   *slog.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// Watch starts watching path. The directory is watched rather than the file
// so editors that save by rename are picked up.
func Watch(path string, reload ReloadFunc, logger *slog.Logger, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		reload:   reload,
		logger:   logger,
		debounce: defaultDebounce,
		watcher:  fw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		if closeErr := fw.Close(); closeErr != nil {
			logger.Error("closing file watcher", slog.String("error", closeErr.Error()))
		}
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("sources file watch error", slog.String("error", err.Error()))

		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.apply)
}

func (w *Watcher) apply() {
	settings, err := LoadFromFile(w.path)
	if err == nil {
		err = w.reload(settings)
	}
	if err != nil {
		w.logger.Error("sources reload failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("sources reloaded",
		slog.String("path", w.path),
		slog.Int("count", len(settings)),
	)
}

// Close stops the watcher. A reload already in flight may still complete.
func (w *Watcher) Close() error {
	close(w.stop)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.watcher.Close()
	<-w.done
	return err
}
