package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/0xmhha/dirwatch/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Listener that keeps every change it receives.
type recorder struct {
	mu        sync.Mutex
	changes   []Change
	overflows int
}

func (r *recorder) OnChange(c Change) error {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
	return nil
}

func (r *recorder) OnOverflow() {
	r.mu.Lock()
	r.overflows++
	r.mu.Unlock()
}

func (r *recorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func (r *recorder) count(c Change) int {
	n := 0
	for _, got := range r.all() {
		if got == c {
			n++
		}
	}
	return n
}

// waitFor blocks until want has been received at least once.
func (r *recorder) waitFor(t *testing.T, want Change) {
	t.Helper()
	require.Eventually(t, func() bool {
		return r.count(want) > 0
	}, 2*time.Second, 5*time.Millisecond, "waiting for %s, got %v", want, r.all())
}

// settle waits long enough for any pending cycle to run.
func settle() {
	time.Sleep(4 * testQuiet)
}

func startWatcher(t *testing.T, cfg Config, l Listener) Watcher {
	t.Helper()

	if cfg.QuietPeriod == 0 {
		cfg.QuietPeriod = testQuiet
	}
	w, err := New(cfg, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, w.Start(l))
	t.Cleanup(func() {
		_ = w.Stop() // nolint:errcheck
	})
	return w
}

// tempDir returns a temp dir with symlinks resolved, so paths match what
// the watcher reports.
func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

// touch creates an empty file, which produces a create notification only.
func touch(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"no directories", Config{}, ErrNoDirectories},
		{"negative quiet period", Config{Dirs: []string{"/tmp"}, QuietPeriod: -time.Second}, ErrInvalidQuietPeriod},
		{"bad overflow policy", Config{Dirs: []string{"/tmp"}, Overflow: "drop"}, ErrInvalidOverflowPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, logger.Noop())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	w, err := New(Config{Dirs: []string{"/tmp"}}, logger.Noop())
	require.NoError(t, err)

	impl := w.(*watcher)
	assert.Equal(t, DefaultQuietPeriod, impl.config.QuietPeriod)
	assert.Equal(t, OverflowLog, impl.config.Overflow)
}

func TestStartErrors(t *testing.T) {
	dir := tempDir(t)
	file := filepath.Join(dir, "plain.txt")
	touch(t, file)

	t.Run("nil listener", func(t *testing.T) {
		w, err := New(Config{Dirs: []string{dir}}, logger.Noop())
		require.NoError(t, err)
		assert.ErrorIs(t, w.Start(nil), ErrNilListener)
	})

	t.Run("missing directory", func(t *testing.T) {
		w, err := New(Config{Dirs: []string{filepath.Join(dir, "missing")}}, logger.Noop())
		require.NoError(t, err)
		err = w.Start(&recorder{})
		assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
		assert.Empty(t, w.Dirs())
	})

	t.Run("not a directory", func(t *testing.T) {
		w, err := New(Config{Dirs: []string{file}}, logger.Noop())
		require.NoError(t, err)
		assert.ErrorIs(t, w.Start(&recorder{}), ErrNotDirectory)
	})
}

func TestLifecycle(t *testing.T) {
	dir := tempDir(t)

	w, err := New(Config{Dirs: []string{dir}, QuietPeriod: testQuiet}, logger.Noop())
	require.NoError(t, err)

	assert.ErrorIs(t, w.Stop(), ErrNotStarted)

	require.NoError(t, w.Start(&recorder{}))
	assert.ErrorIs(t, w.Start(&recorder{}), ErrAlreadyStarted)
	assert.Equal(t, []string{dir}, w.Dirs())
	assert.Equal(t, 1, w.Stats().Directories)

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "second Stop is a no-op")
	assert.ErrorIs(t, w.Start(&recorder{}), ErrWatcherStopped)
	assert.Empty(t, w.Dirs())
}

func TestFileLifecycleScenario(t *testing.T) {
	dir := tempDir(t)
	rec := &recorder{}
	w := startWatcher(t, Config{Dirs: []string{dir}}, rec)

	path := filepath.Join(dir, "a.txt")

	touch(t, path)
	rec.waitFor(t, Change{Type: FileCreated, Path: path})
	settle()

	require.NoError(t, os.WriteFile(path, []byte("one"), 0600))
	require.NoError(t, os.WriteFile(path, []byte("two"), 0600))
	rec.waitFor(t, Change{Type: FileModified, Path: path})
	settle()
	assert.Equal(t, 1, rec.count(Change{Type: FileModified, Path: path}))

	require.NoError(t, os.Remove(path))
	rec.waitFor(t, Change{Type: FileDeleted, Path: path})
	settle()

	assert.Equal(t, []Change{
		{Type: FileCreated, Path: path},
		{Type: FileModified, Path: path},
		{Type: FileDeleted, Path: path},
	}, rec.all())

	stats := w.Stats()
	assert.Equal(t, uint64(3), stats.Dispatched)
	assert.GreaterOrEqual(t, stats.RawEvents, uint64(3))
}

func TestRapidModifiesCollapse(t *testing.T) {
	dir := tempDir(t)
	path := filepath.Join(dir, "busy.log")
	touch(t, path)

	rec := &recorder{}
	startWatcher(t, Config{Dirs: []string{dir}, QuietPeriod: 100 * time.Millisecond}, rec)

	for i := 0; i < 20; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0600))
	}

	rec.waitFor(t, Change{Type: FileModified, Path: path})
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []Change{{Type: FileModified, Path: path}}, rec.all())
}

func TestCreateThenDeleteWithinQuietPeriod(t *testing.T) {
	dir := tempDir(t)
	rec := &recorder{}
	startWatcher(t, Config{Dirs: []string{dir}, QuietPeriod: 100 * time.Millisecond}, rec)

	path := filepath.Join(dir, "short-lived.txt")
	touch(t, path)
	require.NoError(t, os.Remove(path))

	rec.waitFor(t, Change{Type: FileDeleted, Path: path})
	assert.Equal(t, []Change{
		{Type: FileCreated, Path: path},
		{Type: FileDeleted, Path: path},
	}, rec.all())
}

func TestDirectoryScenario(t *testing.T) {
	dir := tempDir(t)
	rec := &recorder{}
	w := startWatcher(t, Config{Dirs: []string{dir}}, rec)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0700))
	rec.waitFor(t, Change{Type: DirectoryCreated, Path: sub})
	assert.Contains(t, w.Dirs(), sub)

	file := filepath.Join(sub, "b.txt")
	touch(t, file)
	rec.waitFor(t, Change{Type: FileCreated, Path: file})
	settle()

	require.NoError(t, os.RemoveAll(sub))
	rec.waitFor(t, Change{Type: DirectoryDeleted, Path: sub})
	settle()

	assert.Equal(t, 1, rec.count(Change{Type: DirectoryCreated, Path: sub}))
	assert.Equal(t, 1, rec.count(Change{Type: DirectoryDeleted, Path: sub}))
	assert.Zero(t, rec.count(Change{Type: FileDeleted, Path: sub}), "a known directory is never reported as a file")
	assert.NotContains(t, w.Dirs(), sub)

	// The file inside may or may not be reported; nothing else is.
	for _, c := range rec.all() {
		assert.Contains(t, []string{sub, file}, c.Path)
	}
}

func TestDirectoryPopulatedBeforeWatch(t *testing.T) {
	dir := tempDir(t)
	rec := &recorder{}
	startWatcher(t, Config{Dirs: []string{dir}}, rec)

	// Staged outside the watched tree and moved in, so the nested entries
	// exist before any watch on them.
	staging := tempDir(t)
	nested := filepath.Join(staging, "tree", "inner")
	require.NoError(t, os.MkdirAll(nested, 0700))
	touch(t, filepath.Join(nested, "deep.txt"))
	require.NoError(t, os.Rename(filepath.Join(staging, "tree"), filepath.Join(dir, "tree")))

	tree := filepath.Join(dir, "tree")
	rec.waitFor(t, Change{Type: DirectoryCreated, Path: tree})
	rec.waitFor(t, Change{Type: DirectoryCreated, Path: filepath.Join(tree, "inner")})
	rec.waitFor(t, Change{Type: FileCreated, Path: filepath.Join(tree, "inner", "deep.txt")})
}

func TestRecursiveRegistration(t *testing.T) {
	dir := tempDir(t)
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0700))

	rec := &recorder{}
	w := startWatcher(t, Config{Dirs: []string{dir}, Recursive: true}, rec)

	assert.Equal(t, []string{dir, filepath.Join(dir, "a"), nested}, w.Dirs())

	file := filepath.Join(nested, "c.txt")
	touch(t, file)
	rec.waitFor(t, Change{Type: FileCreated, Path: file})

	// Removing a known nested directory is reported as a directory.
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "a")))
	rec.waitFor(t, Change{Type: DirectoryDeleted, Path: filepath.Join(dir, "a")})
	settle()
	assert.Equal(t, []string{dir}, w.Dirs())
}

func TestListenerFailuresDoNotStopBatch(t *testing.T) {
	dir := tempDir(t)

	var mu sync.Mutex
	var seen []string
	listener := ListenerFunc(func(c Change) error {
		mu.Lock()
		seen = append(seen, filepath.Base(c.Path))
		mu.Unlock()

		switch filepath.Base(c.Path) {
		case "panic.txt":
			panic("boom")
		case "error.txt":
			return errors.New("listener failed")
		}
		return nil
	})

	w := startWatcher(t, Config{Dirs: []string{dir}, QuietPeriod: 100 * time.Millisecond}, listener)

	for _, name := range []string{"panic.txt", "error.txt", "ok.txt"} {
		touch(t, filepath.Join(dir, name))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"panic.txt", "error.txt", "ok.txt"}, seen)
	mu.Unlock()
	assert.Equal(t, uint64(2), w.Stats().ListenerFailures)
}

func TestStopJoinsInFlightCallback(t *testing.T) {
	dir := tempDir(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var calls sync.Map

	listener := ListenerFunc(func(c Change) error {
		calls.Store(c.Path, true)
		once.Do(func() {
			close(entered)
			<-release
		})
		return nil
	})

	w, err := New(Config{Dirs: []string{dir}, QuietPeriod: 100 * time.Millisecond}, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, w.Start(listener))

	touch(t, filepath.Join(dir, "one.txt"))
	touch(t, filepath.Join(dir, "two.txt"))

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("callback did not start")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a callback was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	before := w.Stats().Dispatched
	touch(t, filepath.Join(dir, "three.txt"))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, w.Stats().Dispatched, "no callback after Stop")
	_, late := calls.Load(filepath.Join(dir, "three.txt"))
	assert.False(t, late)
}

func TestStopFromCallback(t *testing.T) {
	dir := tempDir(t)

	var w Watcher
	stopErr := make(chan error, 1)
	var once sync.Once

	listener := ListenerFunc(func(c Change) error {
		once.Do(func() {
			stopErr <- w.Stop()
		})
		return nil
	})

	var err error
	w, err = New(Config{Dirs: []string{dir}, QuietPeriod: testQuiet}, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, w.Start(listener))

	touch(t, filepath.Join(dir, "trigger.txt"))

	select {
	case err := <-stopErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop from inside a callback deadlocked")
	}

	assert.ErrorIs(t, w.Start(listener), ErrWatcherStopped)
}

func TestSecondStopWaitsForStoppingCallback(t *testing.T) {
	dir := tempDir(t)

	var w Watcher
	stopped := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	listener := ListenerFunc(func(c Change) error {
		once.Do(func() {
			_ = w.Stop() // nolint:errcheck
			close(stopped)
			<-release
		})
		return nil
	})

	var err error
	w, err = New(Config{Dirs: []string{dir}, QuietPeriod: testQuiet}, logger.Noop())
	require.NoError(t, err)
	require.NoError(t, w.Start(listener))

	touch(t, filepath.Join(dir, "trigger.txt"))

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never stopped the watcher")
	}

	returned := make(chan error, 1)
	go func() { returned <- w.Stop() }()

	select {
	case <-returned:
		t.Fatal("Stop returned while the stopping callback was still running")
	case <-time.After(3 * testQuiet):
	}

	close(release)

	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the callback finished")
	}
}

func TestClassify(t *testing.T) {
	dir := tempDir(t)

	reg, err := newRegistry(logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reg.closeAll() // nolint:errcheck
	})
	require.NoError(t, reg.register([]string{dir}))

	w := &watcher{
		config: Config{QuietPeriod: testQuiet, Overflow: OverflowLog},
		logger: logger.Noop(),
		reg:    reg,
		buffer: newCoalescingBuffer(),
		known:  map[string]struct{}{dir: {}},
	}
	w.dispatch = newDispatcher(testQuiet, w.buffer, w, &w.cycles)

	file := filepath.Join(dir, "f.txt")
	touch(t, file)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0700))
	touch(t, filepath.Join(sub, "inside.txt"))

	// Stat through a regular file fails with ENOTDIR, not ENOENT.
	underFile := filepath.Join(file, "child")
	_, statErr := os.Stat(underFile)
	require.Error(t, statErr)
	require.False(t, os.IsNotExist(statErr))

	tests := []struct {
		name   string
		in     pendingChange
		want   Change
		wantOK bool
	}{
		{"modified file", pendingChange{file, KindModified}, Change{FileModified, file}, true},
		{"modified directory is silent", pendingChange{sub, KindModified}, Change{}, false},
		{"modified vanished path is silent", pendingChange{filepath.Join(dir, "gone"), KindModified}, Change{}, false},
		{"created file", pendingChange{file, KindCreated}, Change{FileCreated, file}, true},
		{"created directory", pendingChange{sub, KindCreated}, Change{DirectoryCreated, sub}, true},
		{"created but already gone", pendingChange{filepath.Join(dir, "gone"), KindCreated}, Change{FileCreated, filepath.Join(dir, "gone")}, true},
		{"deleted known directory", pendingChange{sub, KindDeleted}, Change{DirectoryDeleted, sub}, true},
		{"deleted file", pendingChange{file, KindDeleted}, Change{FileDeleted, file}, true},
		{"modified with stat error is deleted", pendingChange{underFile, KindModified}, Change{FileDeleted, underFile}, true},
		{"created with stat error is deleted", pendingChange{underFile, KindCreated}, Change{FileDeleted, underFile}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := w.classify(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	// The created directory was registered and its entry fed back.
	assert.NotContains(t, w.known, sub, "removed by the delete case")
	batch, _ := w.buffer.drain()
	assert.Contains(t, batch, pendingChange{Path: filepath.Join(sub, "inside.txt"), Kind: KindCreated})
}

func TestStatErrorDoesNotStopBatch(t *testing.T) {
	dir := tempDir(t)

	reg, err := newRegistry(logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reg.closeAll() // nolint:errcheck
	})
	require.NoError(t, reg.register([]string{dir}))

	rec := &recorder{}
	w := &watcher{
		config:   Config{QuietPeriod: testQuiet, Overflow: OverflowLog},
		logger:   logger.Noop(),
		reg:      reg,
		buffer:   newCoalescingBuffer(),
		listener: rec,
		known:    map[string]struct{}{dir: {}},
	}
	w.dispatch = newDispatcher(testQuiet, w.buffer, w, &w.cycles)

	file := filepath.Join(dir, "f.txt")
	touch(t, file)
	other := filepath.Join(dir, "g.txt")
	touch(t, other)
	underFile := filepath.Join(file, "child")

	w.buffer.put(pendingChange{Path: underFile, Kind: KindModified})
	w.buffer.put(pendingChange{Path: file, Kind: KindModified})
	w.buffer.put(pendingChange{Path: other, Kind: KindCreated})

	w.dispatch.flush()

	assert.Equal(t, []Change{
		{Type: FileDeleted, Path: underFile},
		{Type: FileModified, Path: file},
		{Type: FileCreated, Path: other},
	}, rec.all())
	assert.Equal(t, uint64(1), w.cycles.Load())
	assert.Equal(t, uint64(3), w.dispatched.Load())
}

func TestForgetRemovedSubtrees(t *testing.T) {
	reg, err := newRegistry(logger.Noop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = reg.closeAll() // nolint:errcheck
	})

	w := &watcher{
		logger: logger.Noop(),
		reg:    reg,
		known: map[string]struct{}{
			"/d":         {},
			"/d/sub/x":   {},
			"/d/sub/x/y": {},
			"/d/subway":  {},
		},
		removedDirs: []string{"/d/sub"},
	}

	w.finishCycle(false)

	assert.Equal(t, map[string]struct{}{"/d": {}, "/d/subway": {}}, w.known)
	assert.Empty(t, w.removedDirs)
}

func TestFinishCycleOverflowPolicy(t *testing.T) {
	tests := []struct {
		name       string
		policy     OverflowPolicy
		overflowed bool
		want       int
	}{
		{"notify on overflow", OverflowNotify, true, 1},
		{"notify without overflow", OverflowNotify, false, 0},
		{"log only", OverflowLog, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			w := &watcher{
				config:   Config{Overflow: tt.policy},
				logger:   logger.Noop(),
				listener: rec,
				known:    make(map[string]struct{}),
			}

			w.finishCycle(tt.overflowed)
			assert.Equal(t, tt.want, rec.overflows)
		})
	}
}

func TestHandleErrorOverflow(t *testing.T) {
	w := &watcher{
		config: Config{Overflow: OverflowNotify},
		logger: logger.Noop(),
		buffer: newCoalescingBuffer(),
	}
	w.dispatch = newDispatcher(testQuiet, w.buffer, w, &w.cycles)

	w.handleError(fsnotify.ErrEventOverflow)
	w.handleError(errors.New("read failed"))

	assert.Equal(t, uint64(1), w.Stats().Overflows)
	assert.Equal(t, uint64(1), w.Stats().Errors)

	_, overflowed := w.buffer.drain()
	assert.True(t, overflowed)
}

func TestKindsOf(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want []Kind
	}{
		{fsnotify.Create, []Kind{KindCreated}},
		{fsnotify.Write, []Kind{KindModified}},
		{fsnotify.Remove, []Kind{KindDeleted}},
		{fsnotify.Rename, []Kind{KindDeleted}},
		{fsnotify.Chmod, []Kind{}},
		{fsnotify.Create | fsnotify.Write, []Kind{KindCreated, KindModified}},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, kindsOf(tt.op))
		})
	}
}

func TestParseChangeType(t *testing.T) {
	for ct := FileCreated; ct <= DirectoryDeleted; ct++ {
		got, err := ParseChangeType(ct.String())
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}

	got, err := ParseChangeType("file_modified")
	require.NoError(t, err)
	assert.Equal(t, FileModified, got)

	_, err = ParseChangeType("DIRECTORY_MODIFIED")
	assert.ErrorIs(t, err, ErrUnknownChangeType)
}

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OverflowPolicy
		wantErr bool
	}{
		{"", OverflowLog, false},
		{"log", OverflowLog, false},
		{"NOTIFY", OverflowNotify, false},
		{"ignore", "", true},
	}

	for _, tt := range tests {
		got, err := ParseOverflowPolicy(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidOverflowPolicy)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestChangeString(t *testing.T) {
	assert.Equal(t, "DIRECTORY_CREATED /d/sub", Change{Type: DirectoryCreated, Path: "/d/sub"}.String())
	assert.True(t, DirectoryDeleted.IsDirectory())
	assert.False(t, FileDeleted.IsDirectory())
	assert.Equal(t, "UNKNOWN", ChangeType(0).String())
	assert.Equal(t, "MODIFIED", KindModified.String())
}
