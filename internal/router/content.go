package router

import (
	"encoding/json"

	"github.com/Ning0612/dirshare/internal/core/checksum"
	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/transport"
)

// ContentListener handles the file-content topic: whole small files.
// It performs the mtime check itself rather than trusting a prior
// FileEvent - events and content race across topics - and resumes the
// filename on every exit path so suppression cannot leak.
type ContentListener struct {
	deps Deps
}

// NewContentListener creates the listener with its capabilities
func NewContentListener(deps Deps) *ContentListener {
	return &ContentListener{deps: deps}
}

// HandleSample implements transport.Handler
func (l *ContentListener) HandleSample(sample transport.Sample) {
	if !sample.Valid {
		return
	}

	var content domain.FileContent
	if err := json.Unmarshal(sample.Data, &content); err != nil {
		logger.Get().Error("dropping malformed FileContent", "error", err)
		return
	}

	logger.Get().Info("FileContent received", "filename", content.Filename, "size", content.Size)

	if !domain.ValidFilename(content.Filename) {
		logger.Get().Error("invalid filename in FileContent", "filename", content.Filename)
		return
	}

	l.process(content)
}

func (l *ContentListener) process(content domain.FileContent) {
	log := logger.Get()

	// Whatever happens below, the monitor must not stay blind to
	// this filename
	defer l.deps.Tracker.Resume(content.Filename)

	if !l.deps.remoteWins(content.Filename, content.ModTime) {
		log.Info("local file is newer or same, ignoring FileContent", "filename", content.Filename)
		return
	}

	if content.Size != uint64(len(content.Data)) {
		log.Error("size mismatch in FileContent",
			"filename", content.Filename,
			"declared", content.Size,
			"actual", len(content.Data))
		return
	}

	if len(content.Data) > 0 {
		computed := checksum.Sum(content.Data)
		if computed != content.Checksum {
			log.Error("checksum mismatch in FileContent",
				"filename", content.Filename,
				"expected", content.Checksum,
				"computed", computed)
			return
		}
	}

	if !l.deps.install(content.Filename, content.Data, content.ModTime) {
		return
	}

	log.Info("wrote file from FileContent",
		"filename", content.Filename,
		"size", content.Size,
		"checksum", content.Checksum)
}
