package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/0xmhha/dirwatch/pkg/discovery"
	"github.com/0xmhha/dirwatch/pkg/filter"
	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/0xmhha/dirwatch/pkg/watcher"
)

// Collection is a live index of the files under a base directory.
// Queries are safe for concurrent use with watching.
type Collection struct {
	baseDir string
	filter  *filter.RuleSet
	config  Config
	logger  logger.Logger
	disc    discovery.Discoverer

	mu    sync.RWMutex
	files map[string]File

	watchMu   sync.Mutex
	watcher   watcher.Watcher
	lastStats watcher.Stats
	session   atomic.Pointer[journal.Session]

	counters struct {
		filesCreated       atomic.Uint64
		filesModified      atomic.Uint64
		filesDeleted       atomic.Uint64
		directoriesCreated atomic.Uint64
		directoriesDeleted atomic.Uint64
		touched            atomic.Uint64
		refreshes          atomic.Uint64
		overflows          atomic.Uint64
	}
}

// New creates an empty collection. Call Refresh or StartWatching to fill it.
func New(cfg Config, log logger.Logger) (*Collection, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, ErrEmptyBaseDir
	}

	base, err := filepath.Abs(discovery.ExpandHome(cfg.BaseDir))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}

	rules := cfg.Filter
	if rules == nil {
		rules = filter.MatchAll()
	}

	if cfg.Overflow == "" {
		cfg.Overflow = watcher.OverflowNotify
	}

	log = log.Component("collection").With("base_dir", base)

	return &Collection{
		baseDir: base,
		filter:  rules,
		config:  cfg,
		logger:  log,
		disc:    discovery.New(log),
		files:   make(map[string]File),
	}, nil
}

// BaseDir returns the absolute base directory.
func (c *Collection) BaseDir() string {
	return c.baseDir
}

// Filter returns the rules selecting indexed files.
func (c *Collection) Filter() *filter.RuleSet {
	return c.filter
}

// Refresh re-scans the whole tree and replaces the index.
func (c *Collection) Refresh() error {
	found, err := c.disc.Files(c.baseDir, c.filter.Matches)
	if err != nil {
		return fmt.Errorf("failed to scan collection: %w", err)
	}

	files := make(map[string]File, len(found))
	for _, f := range found {
		scanned, err := scanFile(f.RelPath, f.Path)
		if err != nil {
			c.logger.Debug("skipping file that vanished during scan", "path", f.Path, "error", err)
			continue
		}
		files[f.RelPath] = scanned
	}

	c.mu.Lock()
	c.files = files
	c.mu.Unlock()

	c.counters.refreshes.Add(1)
	c.logger.Info("collection refreshed", "files", len(files))

	if c.config.Observer != nil {
		c.config.Observer.OnCollectionRefreshed(len(files))
	}
	return nil
}

// StartWatching refreshes the index and starts a recursive watcher over
// the base directory. After StopWatching it can be called again; a new
// watcher and a new journal session are created.
func (c *Collection) StartWatching() error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	if c.watcher != nil {
		return ErrAlreadyWatching
	}

	if err := c.Refresh(); err != nil {
		return err
	}

	w, err := watcher.New(watcher.Config{
		Dirs:        []string{c.baseDir},
		QuietPeriod: c.config.QuietPeriod,
		Recursive:   true,
		Overflow:    c.config.Overflow,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.Start(c); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// No change is dispatched before a quiet period has passed, so the
	// session is in place before the first record.
	if c.config.Journal != nil {
		session, err := c.config.Journal.BeginSession([]string{c.baseDir})
		if err != nil {
			if stopErr := w.Stop(); stopErr != nil {
				c.logger.Error("failed to stop watcher after journal error", "error", stopErr)
			}
			return fmt.Errorf("failed to begin journal session: %w", err)
		}
		c.session.Store(session)
	}
	c.watcher = w

	return nil
}

// StopWatching stops the watcher. Stopping a collection that is not
// watching is a no-op.
func (c *Collection) StopWatching() error {
	c.watchMu.Lock()
	w := c.watcher
	c.watcher = nil
	c.watchMu.Unlock()

	if w == nil {
		return nil
	}

	err := w.Stop()

	c.watchMu.Lock()
	c.lastStats = w.Stats()
	c.watchMu.Unlock()

	return err
}

// Watching reports whether a watcher is running.
func (c *Collection) Watching() bool {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	return c.watcher != nil
}

// WatcherStats returns the running watcher's counters. After
// StopWatching it returns the final counters of the stopped watcher.
func (c *Collection) WatcherStats() watcher.Stats {
	c.watchMu.Lock()
	w, last := c.watcher, c.lastStats
	c.watchMu.Unlock()

	if w == nil {
		return last
	}
	return w.Stats()
}

// Session returns the current journal session, or nil.
func (c *Collection) Session() *journal.Session {
	return c.session.Load()
}

// OnChange implements watcher.Listener. Every change type is idempotent:
// duplicates and out-of-order deletes of already removed entries are
// harmless.
func (c *Collection) OnChange(change watcher.Change) error {
	name := discovery.RelPath(c.baseDir, change.Path)

	switch change.Type {
	case watcher.FileCreated:
		c.counters.filesCreated.Add(1)
		if c.filter.Matches(change.Path) {
			c.index(name, change.Path)
		}

	case watcher.FileModified:
		c.counters.filesModified.Add(1)
		c.reexamine(name, change.Path)

	case watcher.FileDeleted:
		c.counters.filesDeleted.Add(1)
		c.remove(name)

	case watcher.DirectoryCreated:
		c.counters.directoriesCreated.Add(1)
		c.indexDirectory(change.Path)

	case watcher.DirectoryDeleted:
		c.counters.directoriesDeleted.Add(1)
		c.removeDirectory(name)
	}

	if obs, ok := c.config.Observer.(ChangeObserver); ok {
		obs.OnCollectionChange(change, name)
	}

	return c.record(change, name)
}

// OnOverflow implements watcher.OverflowHandler. Lost notifications leave
// the index in an unknown state, so it is rebuilt.
func (c *Collection) OnOverflow() {
	c.counters.overflows.Add(1)
	c.logger.Warn("notifications lost, re-scanning collection")

	if err := c.Refresh(); err != nil {
		c.logger.Error("re-scan after overflow failed", "error", err)
	}
}

// index adds or replaces one file.
func (c *Collection) index(name, path string) {
	f, err := scanFile(name, path)
	if err != nil {
		c.logger.Debug("failed to scan file", "path", path, "error", err)
		return
	}

	c.mu.Lock()
	c.files[name] = f
	c.mu.Unlock()
}

// reexamine handles a modification. Content rules may make a file enter
// or leave the collection; a file whose digest changed is touched.
func (c *Collection) reexamine(name, path string) {
	if !c.filter.Matches(path) {
		c.remove(name)
		return
	}

	f, err := scanFile(name, path)
	if err != nil {
		c.logger.Debug("failed to scan file", "path", path, "error", err)
		return
	}

	c.mu.Lock()
	prev, tracked := c.files[name]
	c.files[name] = f
	c.mu.Unlock()

	if tracked && prev.Digest == f.Digest {
		c.logger.Debug("modification without content change", "name", name)
		return
	}

	c.counters.touched.Add(1)
	if c.config.Observer != nil {
		c.config.Observer.OnFileTouched(name)
	}
}

func (c *Collection) remove(name string) {
	c.mu.Lock()
	delete(c.files, name)
	c.mu.Unlock()
}

// indexDirectory indexes the files already inside a new directory.
func (c *Collection) indexDirectory(dir string) {
	found, err := c.disc.Files(dir, c.filter.Matches)
	if err != nil {
		c.logger.Debug("failed to scan new directory", "path", dir, "error", err)
		return
	}

	for _, f := range found {
		c.index(discovery.RelPath(c.baseDir, f.Path), f.Path)
	}
}

// removeDirectory drops every entry below name.
func (c *Collection) removeDirectory(name string) {
	prefix := name + "/"

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.files {
		if strings.HasPrefix(key, prefix) {
			delete(c.files, key)
		}
	}
}

// record appends the change to the journal when one is configured.
func (c *Collection) record(change watcher.Change, name string) error {
	if c.config.Journal == nil {
		return nil
	}

	var sessionID string
	if s := c.session.Load(); s != nil {
		sessionID = s.ID
	}

	if err := c.config.Journal.Append(journal.Entry{
		Session: sessionID,
		Type:    change.Type.String(),
		Path:    name,
	}); err != nil {
		return fmt.Errorf("failed to journal %s: %w", change, err)
	}
	return nil
}

// FileNames returns the names of all indexed files, sorted.
func (c *Collection) FileNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.files))
	for name := range c.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files returns all indexed files, sorted by name.
func (c *Collection) Files() []File {
	c.mu.RLock()
	defer c.mu.RUnlock()

	files := make([]File, 0, len(c.files))
	for _, f := range c.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files
}

// Contains reports whether name is indexed. Backslashes are accepted.
func (c *Collection) Contains(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.files[normalizeName(name)]
	return exists
}

// File returns the indexed entry for name.
func (c *Collection) File(name string) (File, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, exists := c.files[normalizeName(name)]
	if !exists {
		return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	return f, nil
}

// Contents reads the current contents of an indexed file.
func (c *Collection) Contents(name string) ([]byte, error) {
	f, err := c.File(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Len returns the number of indexed files.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}

// Counters returns a snapshot of the callback counters.
func (c *Collection) Counters() Counters {
	return Counters{
		FilesCreated:       c.counters.filesCreated.Load(),
		FilesModified:      c.counters.filesModified.Load(),
		FilesDeleted:       c.counters.filesDeleted.Load(),
		DirectoriesCreated: c.counters.directoriesCreated.Load(),
		DirectoriesDeleted: c.counters.directoriesDeleted.Load(),
		Touched:            c.counters.touched.Load(),
		Refreshes:          c.counters.refreshes.Load(),
		Overflows:          c.counters.overflows.Load(),
	}
}

// Description names the collection.
func (c *Collection) Description() string {
	return fmt.Sprintf("directory: '%s' (%d files)", c.baseDir, c.Len())
}

func normalizeName(name string) string {
	return strings.TrimPrefix(strings.ReplaceAll(name, "\\", "/"), "/")
}
