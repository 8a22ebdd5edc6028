//go:build !linux

package fileio

import (
	"os"
	"time"
)

// accessTime is unavailable on this platform; callers fall back to
// the current time when restoring mtime
func accessTime(_ os.FileInfo) (time.Time, bool) {
	return time.Time{}, false
}
