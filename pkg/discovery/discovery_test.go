package discovery

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	debugCalls []string
	infoCalls  []string
	warnCalls  []string
	errorCalls []string
}

func (m *mockLogger) Debug(msg string, keysAndValues ...interface{}) {
	m.debugCalls = append(m.debugCalls, msg)
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.infoCalls = append(m.infoCalls, msg)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.warnCalls = append(m.warnCalls, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.errorCalls = append(m.errorCalls, msg)
}

// buildTree creates:
//
//	root/
//	  a.txt
//	  docs/
//	    b.md
//	    deep/
//	      c.md
//	  empty/
func buildTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	for _, dir := range []string{"docs/deep", "empty"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0700); err != nil {
			t.Fatal(err)
		}
	}
	createFile(t, filepath.Join(root, "a.txt"), "alpha")
	createFile(t, filepath.Join(root, "docs", "b.md"), "bravo")
	createFile(t, filepath.Join(root, "docs", "deep", "c.md"), "charlie")

	return root
}

func TestDirectories(t *testing.T) {
	root := buildTree(t)
	d := New(&mockLogger{})

	dirs, err := d.Directories(root)
	if err != nil {
		t.Fatalf("Directories() error = %v", err)
	}

	want := []string{
		root,
		filepath.Join(root, "docs"),
		filepath.Join(root, "docs", "deep"),
		filepath.Join(root, "empty"),
	}
	if len(dirs) != len(want) {
		t.Fatalf("Directories() = %v, want %v", dirs, want)
	}
	for i := range want {
		if dirs[i] != want[i] {
			t.Errorf("Directories()[%d] = %s, want %s", i, dirs[i], want[i])
		}
	}
}

func TestFiles(t *testing.T) {
	root := buildTree(t)
	d := New(&mockLogger{})

	files, err := d.Files(root, nil)
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}

	wantRel := []string{"a.txt", "docs/b.md", "docs/deep/c.md"}
	if len(files) != len(wantRel) {
		t.Fatalf("Files() returned %d files, want %d", len(files), len(wantRel))
	}
	for i, f := range files {
		if f.RelPath != wantRel[i] {
			t.Errorf("Files()[%d].RelPath = %s, want %s", i, f.RelPath, wantRel[i])
		}
		if f.Size == 0 {
			t.Errorf("Files()[%d] has zero Size", i)
		}
		if f.ModTime.IsZero() {
			t.Errorf("Files()[%d] has zero ModTime", i)
		}
		if !filepath.IsAbs(f.Path) {
			t.Errorf("Files()[%d].Path = %s, want absolute", i, f.Path)
		}
	}
}

func TestFilesWithMatch(t *testing.T) {
	root := buildTree(t)
	d := New(&mockLogger{})

	files, err := d.Files(root, func(path string) bool {
		return strings.HasSuffix(path, ".md")
	})
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("Files() returned %d files, want 2", len(files))
	}
	if files[0].RelPath != "docs/b.md" || files[1].RelPath != "docs/deep/c.md" {
		t.Errorf("Files() = %+v", files)
	}
}

func TestRootErrors(t *testing.T) {
	root := buildTree(t)
	d := New(&mockLogger{})

	_, err := d.Directories(filepath.Join(root, "missing"))
	if !errors.Is(err, ErrRootNotFound) {
		t.Errorf("Directories(missing) error = %v, want ErrRootNotFound", err)
	}

	_, err = d.Files(filepath.Join(root, "a.txt"), nil)
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Files(file) error = %v, want ErrNotDirectory", err)
	}
}

func TestUnreadableSubtreeSkipped(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	root := buildTree(t)
	locked := filepath.Join(root, "locked")
	if err := os.MkdirAll(filepath.Join(locked, "inner"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(locked, 0700) // nolint:errcheck
	})

	logger := &mockLogger{}
	dirs, err := New(logger).Directories(root)
	if err != nil {
		t.Fatalf("Directories() error = %v", err)
	}

	for _, dir := range dirs {
		if dir == filepath.Join(locked, "inner") {
			t.Error("Directories() descended into an unreadable directory")
		}
	}
	if len(logger.warnCalls) == 0 {
		t.Error("expected a warning for the unreadable directory")
	}
}

func TestRelPath(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"/srv/data", "/srv/data/a.txt", "a.txt"},
		{"/srv/data", "/srv/data/x/y.txt", "x/y.txt"},
		{"/srv/data", "/srv/other/z.txt", "/srv/other/z.txt"},
	}

	for _, tt := range tests {
		if got := RelPath(filepath.FromSlash(tt.base), filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("RelPath(%s, %s) = %s, want %s", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestExpandHome(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tilde only", "~", homeDir},
		{"tilde with path", "~/notes", filepath.Join(homeDir, "notes")},
		{"absolute path", "/absolute/path", "/absolute/path"},
		{"relative path", "relative/path", "relative/path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandHome(tt.input); got != tt.want {
				t.Errorf("ExpandHome(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// createFile is a helper to create a file with content.
func createFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
}
