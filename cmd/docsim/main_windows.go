//go:build windows

package main

import "time"

// fileCleanupDelay waits for SQLite and log file handles to be released before TempDir cleanup.
func fileCleanupDelay() {
	time.Sleep(500 * time.Millisecond)
}
