package config

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config directory and rebuilds the snapshot when
// settings.toml or actions.toml changes. It watches the directory, not
// the files, to survive atomic saves (write-to-temp + rename).
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	onReload func(old, new *Snapshot, diff *DiffResult)

	mu      sync.Mutex
	current *Snapshot
}

func NewWatcher(dir string, initial *Snapshot, onReload func(old, new *Snapshot, diff *DiffResult)) (*Watcher, error) {
	dir, err := filepath.Abs(dir)
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

	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		onReload: onReload,
		current:  initial,
	}, nil
}

func (w *Watcher) Run() {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			switch filepath.Base(event.Name) {
			case "settings.toml", "actions.toml":
			default:
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, func() {
				w.reload()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) ForceReload() {
	w.reload()
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) reload() {
	newSnap, err := LoadSnapshot(w.dir)
	if err != nil {
		slog.Error("config reload failed, keeping current config", "dir", w.dir, "error", err)
		return
	}

	w.mu.Lock()
	old := w.current
	diff := Diff(old, newSnap)
	if !diff.HasChanges() {
		w.mu.Unlock()
		slog.Debug("config file changed on disk but content is identical")
		return
	}
	w.current = newSnap
	w.mu.Unlock()

	slog.Info("config reloaded",
		"changed_keys", diff.ChangedKeys(),
		"actions_changed", diff.ActionsChanged(),
	)

	if w.onReload != nil {
		w.onReload(old, newSnap, diff)
	}
}
