// Package main provides the dirwatch CLI application.
//
// Dirwatch watches directory trees and reports debounced, classified
// changes: files created, modified or deleted and directories created or
// deleted. Changes can be recorded to a persistent journal and reviewed
// later.
package main

import (
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
