// Package monitor detects directory changes by periodic snapshot
// diffing. Polling avoids platform-specific notification semantics;
// the caller's cadence bounds convergence latency.
package monitor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/fileio"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/tracker"
)

// Monitor diffs the shared directory against its previous snapshot.
// It owns the previous-state map; only its own calls mutate it.
type Monitor struct {
	mu       sync.Mutex
	dir      *fileio.Dir
	tracker  *tracker.Tracker
	previous map[string]domain.FileState
}

// Changes is the result of one scan
type Changes struct {
	Created  []string
	Modified []string
	Deleted  []string
}

// Empty reports whether the scan found nothing
func (c Changes) Empty() bool {
	return len(c.Created) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// New creates a monitor over the given directory
func New(dir *fileio.Dir, tr *tracker.Tracker) *Monitor {
	return &Monitor{
		dir:      dir,
		tracker:  tr,
		previous: make(map[string]domain.FileState),
	}
}

// stateOf computes the snapshot row for one file. Any read or stat
// failure skips the file for this scan; it surfaces again once
// readable, or as a deletion if it stays unlisted.
func (m *Monitor) stateOf(name string) (domain.FileState, bool) {
	size, err := m.dir.Size(name)
	if err != nil {
		return domain.FileState{}, false
	}

	mtime, err := m.dir.MTime(name)
	if err != nil {
		return domain.FileState{}, false
	}

	crc, err := m.dir.Checksum(name)
	if err != nil {
		return domain.FileState{}, false
	}

	return domain.FileState{Size: size, ModTime: mtime, Checksum: crc}, true
}

// Scan lists the directory, diffs against the previous snapshot, and
// returns the created, modified, and deleted names in sorted order.
// Suppressed names are skipped entirely: not classified, and their
// previous row is retained so that when suppression ends the file
// compares against its pre-overwrite state instead of looking newly
// created. A listing failure leaves the previous snapshot untouched.
func (m *Monitor) Scan() (Changes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.dir.ListRegular()
	if err != nil {
		return Changes{}, fmt.Errorf("list directory: %w", err)
	}

	current := make(map[string]domain.FileState, len(names))
	for _, name := range names {
		state, ok := m.stateOf(name)
		if !ok {
			continue
		}
		current[name] = state
	}

	var changes Changes
	next := make(map[string]domain.FileState, len(current))

	for name, state := range current {
		if m.tracker.IsSuppressed(name) {
			logger.Get().Debug("skipping suppressed file", "filename", name)
			if prev, ok := m.previous[name]; ok {
				next[name] = prev
			}
			continue
		}

		next[name] = state

		prev, ok := m.previous[name]
		if !ok {
			changes.Created = append(changes.Created, name)
			continue
		}
		if !state.Equal(prev) {
			changes.Modified = append(changes.Modified, name)
		}
	}

	for name, prev := range m.previous {
		if _, ok := current[name]; ok {
			continue
		}
		if m.tracker.IsSuppressed(name) {
			next[name] = prev
			continue
		}
		changes.Deleted = append(changes.Deleted, name)
	}

	m.previous = next

	sort.Strings(changes.Created)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Deleted)

	return changes, nil
}

// Snapshot returns metadata for every readable file and seeds the
// previous-state map with what it saw, so the first periodic scan
// does not re-announce files already covered by the initial push.
func (m *Monitor) Snapshot() []domain.FileMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.dir.ListRegular()
	if err != nil {
		logger.Get().Error("failed to list directory", "dir", m.dir.Root(), "error", err)
		return nil
	}

	result := make([]domain.FileMetadata, 0, len(names))
	for _, name := range names {
		state, ok := m.stateOf(name)
		if !ok {
			continue
		}
		m.previous[name] = state
		result = append(result, domain.FileMetadata{
			Filename: name,
			Size:     state.Size,
			ModTime:  state.ModTime,
			Checksum: state.Checksum,
		})
	}

	return result
}

// MetadataOf returns the current metadata for one file, or false if
// it cannot be read
func (m *Monitor) MetadataOf(name string) (domain.FileMetadata, bool) {
	state, ok := m.stateOf(name)
	if !ok {
		return domain.FileMetadata{}, false
	}
	return domain.FileMetadata{
		Filename: name,
		Size:     state.Size,
		ModTime:  state.ModTime,
		Checksum: state.Checksum,
	}, true
}

// Absorb records the file's present state as already seen, or drops
// the row if the file is gone. The router calls this after installing
// or unlinking a file on behalf of a remote participant, before
// resuming notifications, so the change is not re-published as local.
func (m *Monitor) Absorb(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.stateOf(name)
	if !ok {
		delete(m.previous, name)
		return
	}
	m.previous[name] = state
}
