package scripting

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadDebounce is how long the scripts tree must stay quiet before a
// change is reported.
const ReloadDebounce = 200 * time.Millisecond

// Watcher monitors the scripts tree for .lua changes using fsnotify.
// It only signals; the game loop decides when to call Engine.Reload.
type Watcher struct {
	Dir     string
	Changes <-chan struct{} // one value per settled burst of edits

	changes chan struct{}
	done    chan struct{}
	watcher *fsnotify.Watcher
	log     *zap.Logger
}

// NewWatcher creates a watcher for the scripts root.
func NewWatcher(dir string, log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan struct{}, 1)
	return &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
		log:     log,
	}, nil
}

// Start watches the root and every script subdirectory that exists.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}
	for _, sub := range scriptDirs {
		p := filepath.Join(w.Dir, sub)
		if fi, err := os.Stat(p); err == nil && fi.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				return err
			}
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var last time.Time
	ticker := time.NewTicker(ReloadDebounce / 2)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) && w.isScriptDir(ev.Name) {
				if err := w.watcher.Add(ev.Name); err != nil {
					w.log.Warn("watch script dir", zap.String("dir", ev.Name), zap.Error(err))
				}
				last = time.Now()
				continue
			}
			if !isScript(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				last = time.Now()
			}

		case <-ticker.C:
			if !last.IsZero() && time.Since(last) >= ReloadDebounce {
				last = time.Time{}
				w.signal()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("script watcher error", zap.Error(err))
		}
	}
}

// signal never blocks; a pending notification already covers this change.
func (w *Watcher) signal() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *Watcher) isScriptDir(name string) bool {
	if filepath.Dir(name) != filepath.Clean(w.Dir) {
		return false
	}
	base := filepath.Base(name)
	for _, sub := range scriptDirs {
		if base == sub {
			return true
		}
	}
	return false
}

func isScript(name string) bool {
	return filepath.Ext(name) == ".lua"
}
