package engine

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher serves the current registry and swaps it atomically when a bundle
// file in the models directory changes. Engines stay load-then-freeze: a
// reload builds a whole new registry and a broken write keeps the old one
// serving.
type Watcher struct {
	dir     string
	log     *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current *Registry

	done chan struct{}
}

// NewWatcher loads the initial registry and starts watching dir.
func NewWatcher(dir string, log *zap.Logger) (*Watcher, error) {
	registry, err := LoadRegistry(dir, log)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	w := &Watcher{
		dir:     dir,
		log:     log,
		watcher: fsw,
		current: registry,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Registry returns the currently serving registry.
func (w *Watcher) Registry() *Registry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Close stops watching. The last registry keeps serving.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("bundle watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	registry, err := LoadRegistry(w.dir, w.log)
	if err != nil {
		w.log.Error("bundle reload failed, keeping current models", zap.Error(err))
		return
	}
	w.mu.Lock()
	w.current = registry
	w.mu.Unlock()
	w.log.Info("model bundles reloaded", zap.String("dir", w.dir))
}
