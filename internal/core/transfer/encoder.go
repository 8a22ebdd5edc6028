// Package transfer frames outbound files and reassembles inbound
// chunked transfers. Files below the threshold travel as a single
// FileContent message; larger files are cut into fixed-size chunks
// with per-chunk and whole-file CRC32 fields.
package transfer

import (
	"time"

	"github.com/Ning0612/dirshare/internal/core/checksum"
	"github.com/Ning0612/dirshare/internal/domain"
)

// Encoder decides the transfer shape for a file and produces the
// corresponding messages
type Encoder struct {
	// Threshold: files strictly smaller travel whole
	Threshold uint64

	// ChunkSize is the length of every chunk but the last
	ChunkSize uint64

	// Pacing is the delay between consecutive chunk submissions.
	// Throughput shaping for the transport send buffer, not a
	// correctness concern.
	Pacing time.Duration
}

// NewEncoder returns an encoder with the protocol defaults
func NewEncoder() *Encoder {
	return &Encoder{
		Threshold: domain.ChunkThreshold,
		ChunkSize: domain.ChunkSize,
		Pacing:    domain.ChunkPacing,
	}
}

// Frame produces either one FileContent (small file) or the chunk
// sequence (large file). Exactly one of the results is non-nil/empty.
// The metadata's size, checksum, and mtime are carried verbatim.
func (e *Encoder) Frame(meta domain.FileMetadata, data []byte) (*domain.FileContent, []domain.FileChunk) {
	if meta.Size < e.Threshold {
		return &domain.FileContent{
			Filename: meta.Filename,
			Size:     meta.Size,
			Checksum: meta.Checksum,
			ModTime:  meta.ModTime,
			Data:     data,
		}, nil
	}

	totalChunks := uint32((meta.Size + e.ChunkSize - 1) / e.ChunkSize)
	chunks := make([]domain.FileChunk, 0, totalChunks)

	for chunkID := uint32(0); chunkID < totalChunks; chunkID++ {
		offset := uint64(chunkID) * e.ChunkSize
		end := offset + e.ChunkSize
		if end > meta.Size {
			end = meta.Size
		}
		part := data[offset:end]

		chunks = append(chunks, domain.FileChunk{
			Filename:      meta.Filename,
			ChunkID:       chunkID,
			TotalChunks:   totalChunks,
			FileSize:      meta.Size,
			FileChecksum:  meta.Checksum,
			ModTime:       meta.ModTime,
			ChunkChecksum: checksum.Sum(part),
			Data:          part,
		})
	}

	return nil, chunks
}

// ChunkSink consumes one chunk, typically by publishing it
type ChunkSink func(domain.FileChunk) error

// SendChunks submits chunks through the sink in order, sleeping the
// pacing delay between consecutive submissions. Stops on the first
// sink error.
func (e *Encoder) SendChunks(chunks []domain.FileChunk, sink ChunkSink) error {
	for i, chunk := range chunks {
		if i > 0 && e.Pacing > 0 {
			time.Sleep(e.Pacing)
		}
		if err := sink(chunk); err != nil {
			return err
		}
	}
	return nil
}
