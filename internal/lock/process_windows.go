//go:build windows

package lock

import (
	"errors"

	"golang.org/x/sys/windows"
)

// processExists reports whether a process with the given PID is alive
func processExists(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// Access denied still means the process is running
		return errors.Is(err, windows.ERROR_ACCESS_DENIED)
	}
	windows.CloseHandle(handle)
	return true
}
