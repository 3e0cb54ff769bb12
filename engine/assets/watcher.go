package assets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/anima-gpu/engine/core"
)

var ErrWatcherClosed = errors.New("asset watcher already closed")

/**
 * @brief Watches a directory tree. Events are collected on a background
 * goroutine and handed to the render thread through Poll; nothing here ever
 * touches the device.
 */
type Watcher struct {
	root     string
	fsnotify *fsnotify.Watcher

	mutex   sync.Mutex
	changed map[string]struct{}
	closed  bool

	done    chan struct{}
	stopped chan struct{}
}

func NewWatcher(root string) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     filepath.Clean(root),
		fsnotify: fsWatch,
		changed:  make(map[string]struct{}),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if err := w.watchRecursive(w.root, false); err != nil {
		fsWatch.Close()
		return nil, err
	}
	go w.start()
	return w, nil
}

// Poll returns the files written or created since the last call, relative to
// the root in slash form and sorted. It never blocks.
func (w *Watcher) Poll() []string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if len(w.changed) == 0 {
		return nil
	}
	out := make([]string, 0, len(w.changed))
	for path := range w.changed {
		out = append(out, path)
	}
	clear(w.changed)
	sort.Strings(out)
	return out
}

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return ErrWatcherClosed
	}
	w.closed = true
	w.mutex.Unlock()

	close(w.done)
	<-w.stopped
	return w.fsnotify.Close()
}

func (w *Watcher) start() {
	defer close(w.stopped)
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			w.handleEvent(e)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(e fsnotify.Event) {
	if e.Has(fsnotify.Create) {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			// files may land before the watch does, so report what is already there
			if err := w.watchRecursive(e.Name, true); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
			return
		}
	}
	// a removed directory cannot be stat'ed; dropping a watch that is not
	// there is harmless
	if e.Has(fsnotify.Remove) {
		_ = w.fsnotify.Remove(e.Name)
		return
	}
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
		w.markChanged(e.Name)
	}
}

func (w *Watcher) watchRecursive(path string, report bool) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsnotify.Add(walkPath)
		}
		if report {
			w.markChanged(walkPath)
		}
		return nil
	})
}

func (w *Watcher) markChanged(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	w.mutex.Lock()
	w.changed[filepath.ToSlash(rel)] = struct{}{}
	w.mutex.Unlock()
}
