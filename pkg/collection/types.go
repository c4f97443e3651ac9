// Package collection keeps a live, name-indexed view of the files under a
// base directory.
//
// A Collection is built by a full scan and then kept in sync by a
// watcher.Watcher: it implements watcher.Listener, so every classified
// change updates the index. Files are named by their slash-separated path
// relative to the base directory. Interested parties register an Observer
// to hear when a tracked file's contents actually changed.
//
// Example usage:
//
//	rules, err := filter.New(filter.Rules{IncludeNames: []string{"*.md"}})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c, err := collection.New(collection.Config{
//	    BaseDir: "~/notes",
//	    Filter:  rules,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.StartWatching(); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.StopWatching()
package collection

import (
	"time"

	"github.com/0xmhha/dirwatch/pkg/filter"
	"github.com/0xmhha/dirwatch/pkg/journal"
	"github.com/0xmhha/dirwatch/pkg/watcher"
)

// File is an indexed file.
type File struct {
	// Name is the slash-separated path relative to the base directory.
	Name string `json:"name"`

	// Path is the absolute path.
	Path string `json:"path"`

	// Size is the file size in bytes at the last scan.
	Size int64 `json:"size"`

	// ModTime is the modification time at the last scan.
	ModTime time.Time `json:"mod_time"`

	// Digest is the xxhash64 of the contents at the last scan.
	Digest uint64 `json:"digest"`
}

// Observer is notified about collection changes. Calls happen on the
// watcher's dispatcher goroutine, or on the caller's goroutine for Refresh.
type Observer interface {
	// OnFileTouched is called when a tracked file's contents changed.
	OnFileTouched(name string)

	// OnCollectionRefreshed is called after a full re-scan.
	OnCollectionRefreshed(files int)
}

// ChangeObserver is implemented by observers that also want every
// classified change the collection receives, whether or not it changed
// the index.
type ChangeObserver interface {
	OnCollectionChange(c watcher.Change, name string)
}

// Counters counts the callbacks received per change type, plus derived
// events.
type Counters struct {
	FilesCreated       uint64 `json:"files_created"`
	FilesModified      uint64 `json:"files_modified"`
	FilesDeleted       uint64 `json:"files_deleted"`
	DirectoriesCreated uint64 `json:"directories_created"`
	DirectoriesDeleted uint64 `json:"directories_deleted"`

	// Touched counts OnFileTouched notifications.
	Touched uint64 `json:"touched"`

	// Refreshes counts full re-scans, including the initial one.
	Refreshes uint64 `json:"refreshes"`

	// Overflows counts re-scans caused by lost notifications.
	Overflows uint64 `json:"overflows"`
}

// Config configures a Collection.
type Config struct {
	// BaseDir is the collection root. "~" is expanded.
	BaseDir string

	// Filter selects the indexed files. Nil indexes every regular file.
	Filter *filter.RuleSet

	// QuietPeriod is passed to the watcher. Zero means
	// watcher.DefaultQuietPeriod.
	QuietPeriod time.Duration

	// Overflow is passed to the watcher. With OverflowNotify, lost
	// notifications trigger a Refresh.
	// Default: watcher.OverflowNotify.
	Overflow watcher.OverflowPolicy

	// Journal, when set, records every change delivered while watching.
	Journal journal.Journal

	// Observer, when set, is notified of touched files and refreshes.
	Observer Observer
}
