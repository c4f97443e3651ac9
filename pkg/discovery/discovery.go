// Package discovery walks directory trees for dirwatch.
//
// It lists the directories that need a watch of their own (fsnotify watches
// are not recursive) and the files that make up a collection's initial
// index.
//
// Example usage:
//
//	d := discovery.New(logger.Default())
//	dirs, err := d.Directories("~/notes")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	files, err := d.Files("~/notes", func(path string) bool {
//	    return strings.HasSuffix(path, ".md")
//	})
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// File is a regular file found under a root.
type File struct {
	// Path is the absolute path of the file.
	Path string

	// RelPath is the slash-separated path relative to the root.
	RelPath string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time
}

// Discoverer walks directory trees.
type Discoverer interface {
	// Directories returns root and every directory below it, parents
	// before children. Unreadable subtrees are skipped.
	Directories(root string) ([]string, error)

	// Files returns the regular files below root accepted by match,
	// sorted by RelPath. A nil match accepts every file.
	Files(root string, match func(path string) bool) ([]File, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	logger Logger
}

// New creates a new Discoverer.
func New(logger Logger) Discoverer {
	return &discoverer{
		logger: logger,
	}
}

// Directories implements Discoverer.Directories.
func (d *discoverer) Directories(root string) ([]string, error) {
	abs, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	var dirs []string
	err = filepath.WalkDir(abs, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			d.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", abs, err)
	}

	d.logger.Debug("directories discovered", "root", abs, "count", len(dirs))
	return dirs, nil
}

// Files implements Discoverer.Files.
func (d *discoverer) Files(root string, match func(path string) bool) ([]File, error) {
	abs, err := checkRoot(root)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, 16)
	err = filepath.WalkDir(abs, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == abs {
				return walkErr
			}
			d.logger.Warn("skipping unreadable path", "path", path, "error", walkErr)
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}
		if match != nil && !match(path) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			// Removed between listing and stat.
			d.logger.Debug("failed to get file info", "path", path, "error", err)
			return nil
		}

		files = append(files, File{
			Path:    path,
			RelPath: RelPath(abs, path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", abs, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})

	d.logger.Debug("files discovered", "root", abs, "count", len(files))
	return files, nil
}

// checkRoot expands and validates a root directory.
func checkRoot(root string) (string, error) {
	abs, err := filepath.Abs(ExpandHome(root))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrRootNotFound, abs)
		}
		return "", fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	return abs, nil
}

// RelPath returns path relative to base with forward slashes.
// Paths outside base are returned unchanged (slash-converted).
func RelPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
