package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a config file on disk and invokes onChange with the
// freshly reloaded File whenever it is written. It debounces bursts of
// writes (editors often emit several events per save) with a plain timer,
// since the bridge core only needs a single-purpose debounce, not a
// general-purpose helper type.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*File)
	done     chan struct{}
}

// NewWatcher starts watching path's parent directory (fsnotify watches
// directories more reliably than single files across editors' save
// strategies — atomic-rename saves replace the inode).
func NewWatcher(path string, onChange func(*File)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{path: path, watcher: fw, onChange: onChange, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var debounce *time.Timer
	target := filepath.Clean(w.path)
	reload := func() {
		f, err := Load(w.path)
		if err != nil {
			slog.Warn("config.watch.reload_failed", "path", w.path, "error", err)
			return
		}
		slog.Info("config.watch.reloaded", "path", w.path)
		w.onChange(f)
	}
	for {
		select {
		case <-w.done:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config.watch.error", "path", w.path, "error", err)
		}
	}
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}
