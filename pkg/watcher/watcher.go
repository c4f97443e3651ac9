package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/0xmhha/dirwatch/pkg/discovery"
	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

type state int

const (
	stateNew state = iota
	stateRunning
	stateStopped
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	config Config
	logger logger.Logger

	mu    sync.Mutex
	state state

	reg        *registry
	buffer     *coalescingBuffer
	dispatch   *dispatcher
	listener   Listener
	listenDone chan struct{}

	// known holds the paths believed to be directories. It is read and
	// written by the dispatcher goroutine only.
	known map[string]struct{}

	// removedDirs collects directories deleted during the current cycle.
	removedDirs []string

	rawEvents  atomic.Uint64
	coalesced  atomic.Uint64
	cycles     atomic.Uint64
	dispatched atomic.Uint64
	failures   atomic.Uint64
	overflows  atomic.Uint64
	fsErrors   atomic.Uint64
}

// New creates a watcher. Directories are only touched by Start.
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if cfg.QuietPeriod < 0 {
		return nil, ErrInvalidQuietPeriod
	}
	if cfg.QuietPeriod == 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}

	policy, err := ParseOverflowPolicy(string(cfg.Overflow))
	if err != nil {
		return nil, err
	}
	cfg.Overflow = policy

	if len(cfg.Dirs) == 0 {
		return nil, ErrNoDirectories
	}

	log = log.Component("watcher")
	log.Debug("watcher created",
		"quiet_period", cfg.QuietPeriod,
		"recursive", cfg.Recursive,
		"overflow", cfg.Overflow)

	return &watcher{
		config: cfg,
		logger: log,
		known:  make(map[string]struct{}),
	}, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(listener Listener) error {
	if listener == nil {
		return ErrNilListener
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrWatcherStopped
	}

	dirs, err := w.resolveDirs()
	if err != nil {
		return err
	}

	reg, err := newRegistry(w.logger)
	if err != nil {
		return err
	}
	if err := reg.register(dirs); err != nil {
		if closeErr := reg.closeAll(); closeErr != nil {
			w.logger.Error("failed to release watcher after registration error", "error", closeErr)
		}
		return err
	}

	for _, dir := range dirs {
		w.known[dir] = struct{}{}
	}

	w.reg = reg
	w.listener = listener
	w.buffer = newCoalescingBuffer()
	w.dispatch = newDispatcher(w.config.QuietPeriod, w.buffer, w, &w.cycles)
	w.listenDone = make(chan struct{})
	w.state = stateRunning

	go w.listen()
	go w.dispatch.run()

	w.logger.Info("watcher started",
		"roots", len(w.config.Dirs),
		"directories", len(dirs),
		"quiet_period", w.config.QuietPeriod)

	return nil
}

// Stop implements Watcher.Stop.
func (w *watcher) Stop() error {
	w.mu.Lock()
	switch w.state {
	case stateNew:
		w.mu.Unlock()
		return ErrNotStarted
	case stateStopped:
		// A Stop issued from a callback did not wait for that callback.
		d := w.dispatch
		w.mu.Unlock()
		if d != nil {
			d.stop()
		}
		return nil
	}
	w.state = stateStopped
	w.mu.Unlock()

	closeErr := w.reg.closeAll()
	<-w.listenDone
	w.dispatch.stop()

	if closeErr != nil {
		w.logger.Error("watcher stopped with error", "error", closeErr)
		return closeErr
	}

	w.logger.Info("watcher stopped",
		"cycles", w.cycles.Load(),
		"dispatched", w.dispatched.Load())
	return nil
}

// Dirs implements Watcher.Dirs.
func (w *watcher) Dirs() []string {
	w.mu.Lock()
	reg := w.reg
	w.mu.Unlock()

	if reg == nil {
		return nil
	}
	return reg.list()
}

// Stats implements Watcher.Stats.
func (w *watcher) Stats() Stats {
	stats := Stats{
		RawEvents:        w.rawEvents.Load(),
		Coalesced:        w.coalesced.Load(),
		Cycles:           w.cycles.Load(),
		Dispatched:       w.dispatched.Load(),
		ListenerFailures: w.failures.Load(),
		Overflows:        w.overflows.Load(),
		Errors:           w.fsErrors.Load(),
	}

	w.mu.Lock()
	reg := w.reg
	w.mu.Unlock()
	if reg != nil {
		stats.Directories = reg.count()
	}

	return stats
}

// resolveDirs makes the configured roots absolute, checks them, and expands
// them to the whole tree when Recursive is set.
func (w *watcher) resolveDirs() ([]string, error) {
	seen := make(map[string]struct{})
	dirs := make([]string, 0, len(w.config.Dirs))

	add := func(dir string) {
		if _, exists := seen[dir]; exists {
			return
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	disc := discovery.New(w.logger)

	for _, root := range w.config.Dirs {
		abs, err := filepath.Abs(discovery.ExpandHome(root))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrNotDirectory, abs)
		}

		if !w.config.Recursive {
			add(abs)
			continue
		}

		tree, err := disc.Directories(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", abs, err)
		}
		for _, dir := range tree {
			add(dir)
		}
	}

	return dirs, nil
}

// listen is the raw event loop. It ends when the fsnotify watcher is closed.
func (w *watcher) listen() {
	defer close(w.listenDone)

	for {
		select {
		case event, ok := <-w.reg.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.reg.fsw.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

// handleEvent buffers one raw notification and signals the dispatcher.
func (w *watcher) handleEvent(event fsnotify.Event) {
	kinds := kindsOf(event.Op)
	if len(kinds) == 0 {
		w.logger.Debug("ignoring notification", "op", event.Op.String(), "path", event.Name)
		return
	}

	path := filepath.Clean(event.Name)
	for _, kind := range kinds {
		w.rawEvents.Add(1)
		if !w.buffer.put(pendingChange{Path: path, Kind: kind}) {
			w.coalesced.Add(1)
		}
	}

	w.dispatch.notify()
}

// handleError handles an error reported by fsnotify. An overflow means
// notifications were dropped by the kernel.
func (w *watcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.overflows.Add(1)
		w.logger.Warn("notification queue overflow, changes may have been missed",
			"policy", w.config.Overflow)
		w.buffer.markOverflow()
		w.dispatch.notify()
		return
	}

	w.fsErrors.Add(1)
	w.logger.Error("fsnotify error", "error", err)
}

// kindsOf maps fsnotify op bits to buffered kinds. A rename is reported
// for the old name; the new name arrives as a create.
func kindsOf(op fsnotify.Op) []Kind {
	kinds := make([]Kind, 0, 2)
	if op.Has(fsnotify.Create) {
		kinds = append(kinds, KindCreated)
	}
	if op.Has(fsnotify.Write) {
		kinds = append(kinds, KindModified)
	}
	if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
		kinds = append(kinds, KindDeleted)
	}
	return kinds
}

// handle classifies one pending change and delivers it.
func (w *watcher) handle(c pendingChange) {
	change, ok := w.classify(c)
	if !ok {
		return
	}
	w.deliver(change)
}

// classify decides file or directory and the change type from the state of
// the filesystem at dispatch time.
func (w *watcher) classify(c pendingChange) (Change, bool) {
	isDir, exists, err := probe(c.Path)
	kind := c.Kind
	if err != nil {
		w.logger.Debug("probe failed, classifying as deleted", "path", c.Path, "error", err)
		kind = KindDeleted
	}

	switch kind {
	case KindModified:
		if isDir {
			w.known[c.Path] = struct{}{}
			return Change{}, false
		}
		if !exists {
			return Change{}, false
		}
		return Change{Type: FileModified, Path: c.Path}, true

	case KindCreated:
		if isDir {
			w.known[c.Path] = struct{}{}
			w.watchNewDirectory(c.Path)
			return Change{Type: DirectoryCreated, Path: c.Path}, true
		}
		return Change{Type: FileCreated, Path: c.Path}, true

	case KindDeleted:
		if _, wasDir := w.known[c.Path]; wasDir {
			delete(w.known, c.Path)
			w.reg.remove(c.Path)
			w.removedDirs = append(w.removedDirs, c.Path)
			return Change{Type: DirectoryDeleted, Path: c.Path}, true
		}
		return Change{Type: FileDeleted, Path: c.Path}, true
	}

	return Change{}, false
}

// watchNewDirectory registers a directory found at dispatch time. Entries
// that already exist in it were never observed, so they are fed back into
// the buffer and reported by the next cycle.
func (w *watcher) watchNewDirectory(dir string) {
	if err := w.reg.add(dir); err != nil {
		w.logger.Warn("failed to register new directory", "path", dir, "error", err)
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.logger.Debug("failed to list new directory", "path", dir, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	for _, entry := range entries {
		w.buffer.put(pendingChange{Path: filepath.Join(dir, entry.Name()), Kind: KindCreated})
	}
	w.dispatch.notify()
}

// deliver calls the listener, containing errors and panics.
func (w *watcher) deliver(c Change) {
	w.dispatched.Add(1)

	defer func() {
		if r := recover(); r != nil {
			w.failures.Add(1)
			w.logger.Error("listener panicked", "change", c.Type.String(), "path", c.Path, "panic", r)
		}
	}()

	if err := w.listener.OnChange(c); err != nil {
		w.failures.Add(1)
		w.logger.Error("listener failed", "change", c.Type.String(), "path", c.Path, "error", err)
	}
}

// finishCycle runs after every entry of a batch was handled.
func (w *watcher) finishCycle(overflowed bool) {
	w.forgetRemovedSubtrees()

	if !overflowed || w.config.Overflow != OverflowNotify {
		return
	}

	handler, ok := w.listener.(OverflowHandler)
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.failures.Add(1)
			w.logger.Error("overflow handler panicked", "panic", r)
		}
	}()
	handler.OnOverflow()
}

// forgetRemovedSubtrees drops known directories below directories deleted
// in this cycle. Done after the batch so that entries for the children in
// the same batch are still classified as directories.
func (w *watcher) forgetRemovedSubtrees() {
	if len(w.removedDirs) == 0 {
		return
	}

	for _, removed := range w.removedDirs {
		prefix := removed + string(filepath.Separator)
		for path := range w.known {
			if strings.HasPrefix(path, prefix) {
				delete(w.known, path)
				w.reg.remove(path)
			}
		}
	}
	w.removedDirs = w.removedDirs[:0]
}

// probe stats a path. A missing path is not an error.
func probe(path string) (isDir, exists bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return info.IsDir(), true, nil
}
