// Package lock enforces the one-participant-per-shared-directory
// assumption. The lock file lives under the user cache directory,
// keyed by the shared directory's absolute path, so the shared
// directory itself stays free of sidecar files.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ning0612/dirshare/internal/core/checksum"
)

// DefaultStaleTimeout is the duration after which a lock whose holder
// cannot be probed is considered stale
const DefaultStaleTimeout = 30 * time.Minute

// LockInfo contains metadata about the lock holder
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	Directory string    `json:"directory"`
}

// DirLock is a file-based lock guarding one shared directory
type DirLock struct {
	directory    string
	lockPath     string
	staleTimeout time.Duration
	info         *LockInfo
}

// New creates a lock instance for the given shared directory.
// lockDir overrides the location of lock files; empty means the user
// cache directory.
func New(sharedDir, lockDir string) (*DirLock, error) {
	abs, err := filepath.Abs(sharedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory: %w", err)
	}

	if lockDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get cache dir: %w", err)
		}
		lockDir = filepath.Join(cacheDir, "dirshare", "locks")
	}

	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	// Key the lock file by path so distinct directories never contend
	name := fmt.Sprintf("%s-%08x.lock", filepath.Base(abs), checksum.Sum([]byte(abs)))

	return &DirLock{
		directory:    abs,
		lockPath:     filepath.Join(lockDir, name),
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// SetStaleTimeout sets the duration after which a lock is considered stale
func (l *DirLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Acquire attempts to acquire the lock.
// Returns a LockError if another live participant holds it.
func (l *DirLock) Acquire() error {
	if l.info != nil {
		return nil // already held by this instance
	}

	// Check for existing lock
	existingInfo, err := l.readLockInfo()
	if err == nil {
		if l.isStale(existingInfo) {
			if err := os.Remove(l.lockPath); err != nil {
				return fmt.Errorf("failed to remove stale lock: %w", err)
			}
		} else {
			return &LockError{
				Holder: existingInfo,
				Reason: "directory is already served by another participant",
			}
		}
	}

	hostname, _ := os.Hostname()
	info := &LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Directory: l.directory,
	}

	// Create the lock file atomically using O_CREATE|O_EXCL
	file, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			// Another process acquired the lock between our check and create
			existingInfo, readErr := l.readLockInfo()
			if readErr != nil {
				return fmt.Errorf("lock acquisition race condition: %w", err)
			}
			return &LockError{
				Holder: existingInfo,
				Reason: "lock acquired by another process during acquisition",
			}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(info); err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.info = info
	return nil
}

// Release releases the lock
func (l *DirLock) Release() error {
	if l.info == nil {
		return nil // Not holding lock
	}

	// Verify we still own the lock before removing
	existingInfo, err := l.readLockInfo()
	if err != nil {
		l.info = nil
		return nil // Lock file doesn't exist, consider it released
	}

	if !l.isHeldByThisInstance(existingInfo) {
		l.info = nil
		return fmt.Errorf("lock was stolen by another process")
	}

	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	l.info = nil
	return nil
}

// IsLocked checks if a lock is currently held by a live holder
func (l *DirLock) IsLocked() bool {
	info, err := l.readLockInfo()
	if err != nil {
		return false
	}
	return !l.isStale(info)
}

// readLockInfo reads the lock information from file
func (l *DirLock) readLockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file format: %w", err)
	}

	return &info, nil
}

// isStale checks if a lock is stale.
// A lock is only stale when its holder process is dead; the timeout
// applies as a fallback for locks written on another host.
func (l *DirLock) isStale(info *LockInfo) bool {
	hostname, _ := os.Hostname()

	if info.Hostname == hostname {
		return !processExists(info.PID)
	}

	// Different host: can't check the process, use timeout as fallback
	return time.Since(info.StartTime) > l.staleTimeout
}

// isHeldByThisInstance checks if the lock is held by this DirLock instance
func (l *DirLock) isHeldByThisInstance(info *LockInfo) bool {
	if l.info == nil {
		return false
	}
	hostname, _ := os.Hostname()
	return info.PID == os.Getpid() &&
		info.Hostname == hostname &&
		l.info.StartTime.Equal(info.StartTime)
}

// LockError represents an error when the lock cannot be acquired
type LockError struct {
	Holder *LockInfo
	Reason string
}

func (e *LockError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (held by PID %d on %s since %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

// IsLockError checks if an error is a LockError
func IsLockError(err error) bool {
	_, ok := err.(*LockError)
	return ok
}
