//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// processExists reports whether a process with the given PID is alive
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds; probe with signal 0
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM: the process exists but is not ours to signal
	if errors.Is(err, syscall.EPERM) {
		return true
	}
	return false
}
