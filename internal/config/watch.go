package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const reloadDebounce = 100 * time.Millisecond

// RetentionWatcher reloads a retention override file when it changes and
// hands each valid version to the registered callbacks. Invalid versions are
// logged and ignored; the last good config stays in effect.
type RetentionWatcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu        sync.Mutex
	callbacks []func(Retention)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WatchRetentionFile starts watching path. The parent directory is watched
// so editors that replace the file atomically are still picked up.
func WatchRetentionFile(path string) (*RetentionWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating retention watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &RetentionWatcher{
		path:    path,
		watcher: watcher,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// OnChange registers a callback invoked with every successfully reloaded config.
func (w *RetentionWatcher) OnChange(cb func(Retention)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Close stops the watcher and waits for the loop to exit.
func (w *RetentionWatcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *RetentionWatcher) watchLoop() {
	defer close(w.done)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", w.path).Msg("retention_watch_error")
		}
	}
}

func (w *RetentionWatcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	r, err := LoadRetentionFile(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("retention_reload_failed")
		return
	}
	log.Info().Str("path", w.path).Str("verbosity", string(r.Verbosity)).Bool("enabled", r.Enabled).Msg("retention_reloaded")

	w.mu.Lock()
	callbacks := append([]func(Retention){}, w.callbacks...)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(r)
	}
}
