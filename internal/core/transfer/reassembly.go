package transfer

import (
	"fmt"
	"sync"

	"github.com/Ning0612/dirshare/internal/core/checksum"
	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/logger"
)

// Assembled is a completed inbound transfer ready for installation
type Assembled struct {
	Filename string
	Data     []byte
	Size     uint64
	Checksum uint32
	ModTime  domain.MTime
}

// partial is the accumulator for one in-progress chunked transfer
type partial struct {
	totalChunks  uint32
	fileSize     uint64
	fileChecksum uint32
	mtime        domain.MTime

	data     []byte
	received []bool
	count    uint32
}

func newPartial(chunk domain.FileChunk) *partial {
	return &partial{
		totalChunks:  chunk.TotalChunks,
		fileSize:     chunk.FileSize,
		fileChecksum: chunk.FileChecksum,
		mtime:        chunk.ModTime,
		data:         make([]byte, chunk.FileSize),
		received:     make([]bool, chunk.TotalChunks),
	}
}

// matches checks the transfer-wide fields a chunk must agree on
func (p *partial) matches(chunk domain.FileChunk) bool {
	return chunk.TotalChunks == p.totalChunks &&
		chunk.FileSize == p.fileSize &&
		chunk.FileChecksum == p.fileChecksum &&
		chunk.ModTime.Equal(p.mtime)
}

// Buffer accumulates inbound chunks per filename until a transfer is
// complete. All methods are safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	inflight map[string]*partial

	// ChunkSize determines chunk placement offsets
	chunkSize uint64
}

// NewBuffer creates an empty reassembly buffer
func NewBuffer() *Buffer {
	return &Buffer{
		inflight:  make(map[string]*partial),
		chunkSize: domain.ChunkSize,
	}
}

// ProcessChunk validates and places one chunk. Returns a non-nil
// Assembled when the chunk completed its transfer and the whole-file
// checksum verified. Errors:
//
//   - domain.ErrChecksumMismatch: the chunk's own CRC failed; the
//     chunk is dropped and the transfer continues.
//   - domain.ErrTransferFailed: the reassembled file's CRC failed;
//     the transfer is discarded and the caller must resume the name.
//   - domain.ErrChunkConflict: transfer-wide metadata disagreed with
//     the live accumulator and the chunk was not newer; dropped.
//   - domain.ErrChunkOutOfRange: placement would overrun the declared
//     file size; chunk dropped.
//
// A chunk whose metadata disagrees but carries a strictly newer mtime
// replaces the accumulator: the old transfer is abandoned in favor of
// the newer one. Duplicate delivery of an identical chunk is
// idempotent.
func (b *Buffer) ProcessChunk(chunk domain.FileChunk) (*Assembled, error) {
	if len(chunk.Data) > 0 {
		computed := checksum.Sum(chunk.Data)
		if computed != chunk.ChunkChecksum {
			return nil, fmt.Errorf("%w: %s chunk %d expected 0x%08X computed 0x%08X",
				domain.ErrChecksumMismatch, chunk.Filename, chunk.ChunkID,
				chunk.ChunkChecksum, computed)
		}
	}

	if chunk.TotalChunks == 0 || chunk.ChunkID >= chunk.TotalChunks {
		return nil, fmt.Errorf("%w: %s chunk %d of %d",
			domain.ErrChunkOutOfRange, chunk.Filename, chunk.ChunkID, chunk.TotalChunks)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.inflight[chunk.Filename]
	if !ok {
		p = newPartial(chunk)
		b.inflight[chunk.Filename] = p
		logger.Get().Info("starting reassembly",
			"filename", chunk.Filename,
			"size", chunk.FileSize,
			"total_chunks", chunk.TotalChunks)
	} else if !p.matches(chunk) {
		if chunk.ModTime.After(p.mtime) {
			// A newer transfer for the same name supersedes the one
			// in progress
			logger.Get().Warn("restarting reassembly for newer transfer",
				"filename", chunk.Filename)
			p = newPartial(chunk)
			b.inflight[chunk.Filename] = p
		} else {
			return nil, fmt.Errorf("%w: %s chunk %d",
				domain.ErrChunkConflict, chunk.Filename, chunk.ChunkID)
		}
	}

	offset := uint64(chunk.ChunkID) * b.chunkSize
	if offset+uint64(len(chunk.Data)) > p.fileSize {
		return nil, fmt.Errorf("%w: %s chunk %d",
			domain.ErrChunkOutOfRange, chunk.Filename, chunk.ChunkID)
	}

	copy(p.data[offset:], chunk.Data)
	if !p.received[chunk.ChunkID] {
		p.received[chunk.ChunkID] = true
		p.count++
	}

	logger.Get().Debug("reassembly progress",
		"filename", chunk.Filename,
		"received", p.count,
		"total_chunks", p.totalChunks)

	if p.count < p.totalChunks {
		return nil, nil
	}

	// Transfer complete: the accumulator is consumed either way
	delete(b.inflight, chunk.Filename)

	computed := checksum.Sum(p.data)
	if computed != p.fileChecksum {
		return nil, fmt.Errorf("%w: %s reassembled checksum expected 0x%08X computed 0x%08X",
			domain.ErrTransferFailed, chunk.Filename, p.fileChecksum, computed)
	}

	return &Assembled{
		Filename: chunk.Filename,
		Data:     p.data,
		Size:     p.fileSize,
		Checksum: p.fileChecksum,
		ModTime:  p.mtime,
	}, nil
}

// Pending reports whether a transfer for the name is in progress
func (b *Buffer) Pending(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.inflight[name]
	return ok
}

// Len returns the number of in-progress transfers
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inflight)
}
