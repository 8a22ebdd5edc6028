package router

import (
	"encoding/json"

	"github.com/Ning0612/dirshare/internal/core/conflict"
	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/transport"
)

// EventListener handles the file-events topic. Its job is the
// accept-or-reject decision: an accepted CREATE/MODIFY suppresses the
// filename so the forthcoming bytes can land without echoing; an
// accepted DELETE unlinks directly.
type EventListener struct {
	deps Deps
}

// NewEventListener creates the listener with its capabilities
func NewEventListener(deps Deps) *EventListener {
	return &EventListener{deps: deps}
}

// HandleSample implements transport.Handler
func (l *EventListener) HandleSample(sample transport.Sample) {
	if !sample.Valid {
		return
	}

	var event domain.FileEvent
	if err := json.Unmarshal(sample.Data, &event); err != nil {
		logger.Get().Error("dropping malformed FileEvent", "error", err)
		return
	}

	log := logger.Get()
	log.Info("FileEvent received", "filename", event.Filename, "operation", event.Operation.String())

	if !domain.ValidFilename(event.Filename) {
		log.Error("invalid filename in FileEvent", "filename", event.Filename)
		return
	}

	switch event.Operation {
	case domain.OpCreate:
		l.handleCreate(event)
	case domain.OpModify:
		l.handleModify(event)
	case domain.OpDelete:
		l.handleDelete(event)
	default:
		log.Error("unknown operation in FileEvent", "operation", int(event.Operation))
	}
}

// handleCreate accepts a creation unless the file already exists
func (l *EventListener) handleCreate(event domain.FileEvent) {
	log := logger.Get()

	if l.deps.Dir.ExistsRegular(event.Filename) {
		log.Info("file already exists locally, ignoring CREATE", "filename", event.Filename)
		return
	}

	// The bytes arrive separately as FileContent or FileChunks;
	// suppress now so their write does not echo
	l.deps.Tracker.Suppress(event.Filename)
	log.Info("awaiting content for created file", "filename", event.Filename)
}

// handleModify accepts a modification when the remote version is
// strictly newer than the local file
func (l *EventListener) handleModify(event domain.FileEvent) {
	log := logger.Get()

	if !l.deps.Dir.ExistsRegular(event.Filename) {
		log.Info("local file missing, treating MODIFY as CREATE", "filename", event.Filename)
		l.deps.Tracker.Suppress(event.Filename)
		return
	}

	local, err := l.deps.Dir.MTime(event.Filename)
	if err != nil {
		log.Error("failed to read local mtime", "filename", event.Filename, "error", err)
		return
	}

	remote := event.Metadata.ModTime
	log.Debug("mtime comparison",
		"filename", event.Filename,
		"local_sec", local.Sec, "local_nsec", local.Nsec,
		"remote_sec", remote.Sec, "remote_nsec", remote.Nsec)

	if conflict.Decide(local, remote) != conflict.AcceptRemote {
		log.Info("local file is newer or same, ignoring MODIFY", "filename", event.Filename)
		return
	}

	l.deps.Tracker.Suppress(event.Filename)
	log.Info("remote file is newer, accepting MODIFY", "filename", event.Filename)
}

// handleDelete unlinks the local file when the deletion happened
// after the file's local modification. The event's emission time is
// the tiebreaker because the file no longer exists remotely.
func (l *EventListener) handleDelete(event domain.FileEvent) {
	log := logger.Get()

	if !l.deps.Dir.ExistsRegular(event.Filename) {
		log.Info("local file missing, ignoring DELETE", "filename", event.Filename)
		return
	}

	local, err := l.deps.Dir.MTime(event.Filename)
	if err != nil {
		log.Error("failed to read local mtime", "filename", event.Filename, "error", err)
		return
	}

	if conflict.Decide(local, event.EventTime) != conflict.AcceptRemote {
		log.Info("local file is newer than deletion, keeping", "filename", event.Filename)
		return
	}

	l.deps.Tracker.Suppress(event.Filename)
	defer l.deps.Tracker.Resume(event.Filename)

	if err := l.deps.Dir.Unlink(event.Filename); err != nil {
		log.Error("failed to unlink file", "filename", event.Filename, "error", err)
		return
	}

	if l.deps.Monitor != nil {
		l.deps.Monitor.Absorb(event.Filename)
	}
	log.Info("deleted file per remote event", "filename", event.Filename)
}
