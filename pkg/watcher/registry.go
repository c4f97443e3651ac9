package watcher

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// registry binds directories to one fsnotify watcher.
// fsnotify watches are not recursive, so each directory is added on its own.
type registry struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger

	mu     sync.Mutex
	dirs   map[string]struct{}
	closed bool
}

// newRegistry creates the watch primitive.
func newRegistry(log logger.Logger) (*registry, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &registry{
		fsw:    fsw,
		logger: log,
		dirs:   make(map[string]struct{}),
	}, nil
}

// register adds every directory and stops at the first failure.
func (r *registry) register(dirs []string) error {
	for _, dir := range dirs {
		if err := r.add(dir); err != nil {
			return err
		}
	}
	return nil
}

// add registers one directory. Adding a registered directory is a no-op.
func (r *registry) add(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fsnotify.ErrClosed
	}
	if _, exists := r.dirs[dir]; exists {
		return nil
	}

	if err := r.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	r.dirs[dir] = struct{}{}

	r.logger.Debug("directory registered", "path", dir)
	return nil
}

// remove forgets a directory. The kernel drops the watch of a deleted
// directory on its own, so a missing watch is not an error.
func (r *registry) remove(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dirs[dir]; !exists {
		return
	}
	delete(r.dirs, dir)

	if r.closed {
		return
	}
	if err := r.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		r.logger.Debug("failed to remove watch", "path", dir, "error", err)
	}
}

// list returns the registered directories, sorted.
func (r *registry) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	dirs := make([]string, 0, len(r.dirs))
	for dir := range r.dirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// count returns the number of registered directories.
func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.dirs)
}

// closeAll releases the watch primitive. Closing it closes the Events and
// Errors channels, which ends the raw event loop.
func (r *registry) closeAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.dirs = make(map[string]struct{})

	if err := r.fsw.Close(); err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}
