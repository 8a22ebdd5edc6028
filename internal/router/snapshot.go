package router

import (
	"encoding/json"

	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/transport"
)

// SnapshotListener handles the directory-snapshot topic. The snapshot
// is a "what I have" summary: files we lack are noted and expected to
// arrive through the originator's durable bulk push; local files the
// snapshot omits are left untouched. There is no pull request topic.
type SnapshotListener struct {
	deps Deps
}

// NewSnapshotListener creates the listener with its capabilities
func NewSnapshotListener(deps Deps) *SnapshotListener {
	return &SnapshotListener{deps: deps}
}

// HandleSample implements transport.Handler
func (l *SnapshotListener) HandleSample(sample transport.Sample) {
	if !sample.Valid {
		return
	}

	var snapshot domain.DirectorySnapshot
	if err := json.Unmarshal(sample.Data, &snapshot); err != nil {
		logger.Get().Error("dropping malformed DirectorySnapshot", "error", err)
		return
	}

	logger.Get().Info("DirectorySnapshot received",
		"participant_id", snapshot.ParticipantID,
		"file_count", snapshot.FileCount)

	l.process(snapshot)
}

func (l *SnapshotListener) process(snapshot domain.DirectorySnapshot) {
	log := logger.Get()

	names, err := l.deps.Dir.ListRegular()
	if err != nil {
		log.Error("failed to list directory", "error", err)
		return
	}

	local := make(map[string]struct{}, len(names))
	for _, name := range names {
		local[name] = struct{}{}
	}

	for _, meta := range snapshot.Files {
		if !domain.ValidFilename(meta.Filename) {
			log.Error("invalid filename in DirectorySnapshot", "filename", meta.Filename)
			continue
		}

		if _, ok := local[meta.Filename]; !ok {
			// The originating participant's bulk push is durable;
			// the bytes arrive without us asking
			log.Info("file missing locally, awaiting remote push",
				"filename", meta.Filename,
				"size", meta.Size)
		} else {
			log.Debug("file already exists locally", "filename", meta.Filename)
		}
	}
}
