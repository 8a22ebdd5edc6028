// Package router holds the per-topic listeners. Each listener is
// constructed with an explicit capabilities record - directory
// handle, suppression tracker, monitor - and implements the
// transport Handler interface for its topic. Errors are logged and
// never propagated back across the transport boundary.
package router

import (
	"github.com/Ning0612/dirshare/internal/core/conflict"
	"github.com/Ning0612/dirshare/internal/core/monitor"
	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/fileio"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/tracker"
)

// Deps is the capabilities record shared by the listeners
type Deps struct {
	Dir     *fileio.Dir
	Tracker *tracker.Tracker
	Monitor *monitor.Monitor
}

// install writes validated bytes to the shared directory, restores
// the originator's mtime, and absorbs the new state into the monitor
// so the write is not re-published as a local change. The caller owns
// the mtime policy decision and the resume.
func (d Deps) install(name string, data []byte, mtime domain.MTime) bool {
	log := logger.Get()

	// Idempotent when the event handler already suppressed the name;
	// necessary when the bytes arrived without a preceding event
	d.Tracker.Suppress(name)

	if err := d.Dir.WriteAll(name, data); err != nil {
		log.Error("failed to write file", "filename", name, "error", err)
		return false
	}

	if err := d.Dir.SetMTime(name, mtime); err != nil {
		// The file was written; a lost mtime only weakens future
		// conflict comparisons
		log.Warn("failed to restore mtime", "filename", name, "error", err)
	}

	if d.Monitor != nil {
		d.Monitor.Absorb(name)
	}
	return true
}

// remoteWins compares the local file's mtime against an incoming one.
// A missing or unreadable local file counts as a remote win: there is
// nothing newer to protect.
func (d Deps) remoteWins(name string, remote domain.MTime) bool {
	if !d.Dir.ExistsRegular(name) {
		return true
	}

	local, err := d.Dir.MTime(name)
	if err != nil {
		logger.Get().Error("failed to read local mtime", "filename", name, "error", err)
		return true
	}

	return conflict.Decide(local, remote) == conflict.AcceptRemote
}
