package scene

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/lumen/engine/core"
)

// Watcher reloads a scene file when it changes on disk. Editors often replace
// the file with a rename, so the parent directory is watched and events are
// filtered down to the scene path. Writes arrive in bursts; a short debounce
// window collapses them into a single reload.
type Watcher struct {
	path     string
	fsnotify *fsnotify.Watcher
	onReload func(*Scene)
	done     chan struct{}
}

const reloadDebounce = 150 * time.Millisecond

func NewWatcher(path string, onReload func(*Scene)) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fsWatch.Close()
		return nil, err
	}
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.start()
	return w, nil
}

func (w *Watcher) Close() {
	close(w.done)
}

func (w *Watcher) start() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		w.fsnotify.Close()
	}()

	fire := make(chan struct{}, 1)
	for {
		select {
		case e := <-w.fsnotify.Events:
			name, err := filepath.Abs(e.Name)
			if err != nil || name != w.path {
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.reload()

		case err := <-w.fsnotify.Errors:
			core.LogError("scene watcher: %s", err.Error())

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	if _, err := os.Stat(w.path); err != nil {
		return
	}
	s, err := Load(w.path)
	if err != nil {
		// keep rendering the previous scene, a broken save is not fatal
		core.LogError("scene watcher: reload failed: %s", err.Error())
		return
	}
	core.LogInfo("scene watcher: reloaded %s", w.path)
	w.onReload(s)
}
