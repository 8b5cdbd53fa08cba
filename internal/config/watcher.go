package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/ragcore/ragcore/internal/obslog"
)

// Watcher reloads a config file on write events and applies the change to
// a Store, using fsnotify the way Aman-CERP/amanmcp watches its own
// config. A reload only updates the Store: the logger, the CORS settings
// of the HTTP server, and the embedding provider built by `ragcore serve`
// read the config once at startup, so a reload does not change them.
type Watcher struct {
	path    string
	store   *Store
	log     obslog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher starts watching path for changes, applying reloads to store.
func NewWatcher(path string, store *Store, log obslog.Logger) (*Watcher, error) {
	if log == nil {
		log = obslog.Nop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	w := &Watcher{path: path, store: store, log: log, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("config reload failed", "path", w.path, "error", err.Error())
				continue
			}
			w.store.Set(cfg)
			w.log.Info("config reloaded", "path", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", "error", err.Error())
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
