package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file whenever it changes on disk and
// delivers every successfully validated config on Updates(). Broken
// files are logged and skipped, the running config stays in place.
type Watcher struct {
	path     string
	realhw   bool
	debounce time.Duration
	updates  chan *Config
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
}

func NewWatcher(cfile string, realhw bool, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(cfile),
		realhw:   realhw,
		debounce: debounce,
		updates:  make(chan *Config, 1),
	}
}

func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Start watches the directory of the config file, editors often replace
// the file instead of writing it in place.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}
	w.watcher = watcher

	ctx, w.cancel = context.WithCancel(ctx)
	slog.Info("Config watcher started", "path", w.path, "debounce", w.debounce)
	go w.watch(ctx)
	return nil
}

func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			slog.Debug("Config watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				slog.Debug("Config file change detected", "op", event.Op.String())
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			w.reload(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	conf, err := ReadConfig(w.path, w.realhw)
	if err != nil {
		slog.Warn("Ignoring changed config file", "error", err)
		return
	}
	slog.Info("Config file changed, reloading", "path", w.path)
	select {
	case w.updates <- conf:
	case <-ctx.Done():
	}
}
