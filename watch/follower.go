// Package watch reloads the bound document when another program changes it.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"mutext/document"
)

// Reloader re-reads path into the editor buffer.
type Reloader interface {
	Reload(path string) error
}

// Follower watches the directory of a single file so that editors which
// save by rename are still noticed.
type Follower struct {
	reloader Reloader
	watcher  *fsnotify.Watcher
	log      *slog.Logger

	mu    sync.Mutex
	path  string // absolute, for matching events
	bound string // as given to Follow, for Reload
	dir   string
}

func NewFollower(reloader Reloader, logger *slog.Logger) (*Follower, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{reloader: reloader, watcher: w, log: logger}, nil
}

// Follow switches the watch to path. An empty path stops watching.
func (f *Follower) Follow(bound string) error {
	path := bound
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		path = abs
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if path == f.path {
		f.bound = bound
		return nil
	}

	dir := ""
	if path != "" {
		dir = filepath.Dir(path)
	}
	if dir != f.dir {
		if f.dir != "" {
			if err := f.watcher.Remove(f.dir); err != nil {
				f.log.Debug("remove watch", "dir", f.dir, "error", err)
			}
		}
		if dir != "" {
			if err := f.watcher.Add(dir); err != nil {
				f.path, f.bound, f.dir = "", "", ""
				return err
			}
		}
	}
	f.path, f.bound, f.dir = path, bound, dir
	f.log.Debug("following", "path", path)
	return nil
}

// Following returns the absolute path being watched, or "".
func (f *Follower) Following() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

// Run handles watcher events until ctx is done or the watcher is closed.
func (f *Follower) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			f.mu.Lock()
			match, bound := name == f.path, f.bound
			f.mu.Unlock()
			if match {
				f.reload(bound)
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("watcher error", "error", err)
		}
	}
}

func (f *Follower) reload(path string) {
	err := f.reloader.Reload(path)
	switch {
	case err == nil:
	case errors.Is(err, document.ErrDirty):
		f.log.Info("file changed on disk, keeping unsaved edits", "path", path)
	default:
		f.log.Warn("reload changed file", "path", path, "error", err)
	}
}

func (f *Follower) Close() error {
	return f.watcher.Close()
}
