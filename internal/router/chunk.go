package router

import (
	"encoding/json"
	"errors"

	"github.com/Ning0612/dirshare/internal/core/transfer"
	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/transport"
)

// ChunkListener handles the file-chunks topic. Per-chunk receipt and
// validation are delegated to the reassembly buffer; once a transfer
// completes, finalization mirrors the content listener.
type ChunkListener struct {
	deps   Deps
	buffer *transfer.Buffer
}

// NewChunkListener creates the listener with its capabilities
func NewChunkListener(deps Deps, buffer *transfer.Buffer) *ChunkListener {
	return &ChunkListener{deps: deps, buffer: buffer}
}

// HandleSample implements transport.Handler
func (l *ChunkListener) HandleSample(sample transport.Sample) {
	if !sample.Valid {
		return
	}

	var chunk domain.FileChunk
	if err := json.Unmarshal(sample.Data, &chunk); err != nil {
		logger.Get().Error("dropping malformed FileChunk", "error", err)
		return
	}

	logger.Get().Debug("FileChunk received",
		"filename", chunk.Filename,
		"chunk", chunk.ChunkID+1,
		"total_chunks", chunk.TotalChunks,
		"bytes", len(chunk.Data))

	if !domain.ValidFilename(chunk.Filename) {
		logger.Get().Error("invalid filename in FileChunk", "filename", chunk.Filename)
		return
	}

	l.process(chunk)
}

func (l *ChunkListener) process(chunk domain.FileChunk) {
	log := logger.Get()

	assembled, err := l.buffer.ProcessChunk(chunk)
	if err != nil {
		if errors.Is(err, domain.ErrTransferFailed) {
			// The whole transfer is gone; let the monitor see the
			// file again so a re-publication can land
			l.deps.Tracker.Resume(chunk.Filename)
		}
		log.Error("chunk rejected", "filename", chunk.Filename, "error", err)
		return
	}
	if assembled == nil {
		return // transfer still in progress
	}

	l.finalize(*assembled)
}

// finalize installs a completed transfer, mirroring the FileContent
// path: mtime policy, write, mtime restore, resume on every exit
func (l *ChunkListener) finalize(assembled transfer.Assembled) {
	log := logger.Get()

	defer l.deps.Tracker.Resume(assembled.Filename)

	if !l.deps.remoteWins(assembled.Filename, assembled.ModTime) {
		log.Info("local file is newer or same, ignoring reassembled transfer",
			"filename", assembled.Filename)
		return
	}

	if !l.deps.install(assembled.Filename, assembled.Data, assembled.ModTime) {
		return
	}

	log.Info("wrote reassembled file",
		"filename", assembled.Filename,
		"size", assembled.Size,
		"checksum", assembled.Checksum)
}
