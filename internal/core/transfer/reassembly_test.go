package transfer

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/Ning0612/dirshare/internal/domain"
)

// chunksFor frames data into a chunk stream for reassembly tests
func chunksFor(t *testing.T, name string, data []byte, sec uint64) []domain.FileChunk {
	t.Helper()

	enc := NewEncoder()
	enc.Pacing = 0
	_, chunks := enc.Frame(metaFor(name, data, sec), data)
	if chunks == nil {
		t.Fatal("fixture file too small to chunk")
	}
	return chunks
}

func TestProcessChunk_InOrderCompletes(t *testing.T) {
	data := make([]byte, int(domain.ChunkThreshold)+3)
	rand.Read(data)
	chunks := chunksFor(t, "f.bin", data, 100)

	buf := NewBuffer()
	for i, chunk := range chunks {
		assembled, err := buf.ProcessChunk(chunk)
		if err != nil {
			t.Fatalf("chunk %d rejected: %v", i, err)
		}
		if i < len(chunks)-1 && assembled != nil {
			t.Fatalf("transfer completed early at chunk %d", i)
		}
		if i == len(chunks)-1 {
			if assembled == nil {
				t.Fatal("transfer did not complete on last chunk")
			}
			if !bytes.Equal(assembled.Data, data) {
				t.Fatal("reassembled bytes differ from original")
			}
			if assembled.ModTime.Sec != 100 {
				t.Errorf("assembled mtime = %d, want 100", assembled.ModTime.Sec)
			}
		}
	}

	if buf.Len() != 0 {
		t.Errorf("buffer should be empty after completion, has %d", buf.Len())
	}
}

func TestProcessChunk_AnyPermutationCompletes(t *testing.T) {
	data := make([]byte, int(domain.ChunkThreshold)) // exactly ten chunks
	rand.Read(data)
	chunks := chunksFor(t, "eps.bin", data, 100)

	order := []int{2, 0, 4, 1, 3, 5, 7, 9, 6, 8}
	if len(order) != len(chunks) {
		t.Fatalf("fixture produced %d chunks, want %d", len(chunks), len(order))
	}

	buf := NewBuffer()
	var assembled *Assembled
	for _, idx := range order {
		result, err := buf.ProcessChunk(chunks[idx])
		if err != nil {
			t.Fatalf("chunk %d rejected: %v", idx, err)
		}
		if result != nil {
			assembled = result
		}
	}

	if assembled == nil {
		t.Fatal("permuted delivery did not complete the transfer")
	}
	if !bytes.Equal(assembled.Data, data) {
		t.Fatal("reassembled bytes differ from original")
	}
}

func TestProcessChunk_DuplicateIsIdempotent(t *testing.T) {
	data := make([]byte, int(domain.ChunkThreshold))
	rand.Read(data)
	chunks := chunksFor(t, "dup.bin", data, 100)

	buf := NewBuffer()
	for _, chunk := range chunks[:len(chunks)-1] {
		if _, err := buf.ProcessChunk(chunk); err != nil {
			t.Fatalf("chunk rejected: %v", err)
		}
		// Deliver every chunk twice
		if _, err := buf.ProcessChunk(chunk); err != nil {
			t.Fatalf("duplicate chunk rejected: %v", err)
		}
	}

	assembled, err := buf.ProcessChunk(chunks[len(chunks)-1])
	if err != nil {
		t.Fatalf("final chunk rejected: %v", err)
	}
	if assembled == nil || !bytes.Equal(assembled.Data, data) {
		t.Fatal("duplicates corrupted the transfer")
	}
}

func TestProcessChunk_BadChunkChecksumDropped(t *testing.T) {
	data := make([]byte, int(domain.ChunkThreshold))
	chunks := chunksFor(t, "bad.bin", data, 100)

	corrupted := chunks[0]
	corrupted.ChunkChecksum ^= 0xFFFFFFFF

	buf := NewBuffer()
	_, err := buf.ProcessChunk(corrupted)
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}

	// The transfer is not poisoned: the correct chunk still lands
	if _, err := buf.ProcessChunk(chunks[0]); err != nil {
		t.Fatalf("clean chunk rejected after corrupt one: %v", err)
	}
}

func TestProcessChunk_MetadataConflictDropped(t *testing.T) {
	data := make([]byte, int(domain.ChunkThreshold))
	chunks := chunksFor(t, "conf.bin", data, 100)

	buf := NewBuffer()
	if _, err := buf.ProcessChunk(chunks[0]); err != nil {
		t.Fatalf("first chunk rejected: %v", err)
	}

	// Same mtime but different declared size: dropped, accumulator kept
	rogue := chunks[1]
	rogue.FileSize++
	if _, err := buf.ProcessChunk(rogue); !errors.Is(err, domain.ErrChunkConflict) {
		t.Fatalf("got %v, want ErrChunkConflict", err)
	}
	if !buf.Pending("conf.bin") {
		t.Fatal("accumulator must survive a conflicting chunk")
	}
}

func TestProcessChunk_NewerTransferRestartsAccumulator(t *testing.T) {
	oldData := make([]byte, int(domain.ChunkThreshold))
	newData := make([]byte, int(domain.ChunkThreshold))
	rand.Read(oldData)
	rand.Read(newData)

	oldChunks := chunksFor(t, "r.bin", oldData, 100)
	newChunks := chunksFor(t, "r.bin", newData, 200)

	buf := NewBuffer()
	if _, err := buf.ProcessChunk(oldChunks[0]); err != nil {
		t.Fatalf("old chunk rejected: %v", err)
	}

	// A strictly newer transfer replaces the one in progress
	if _, err := buf.ProcessChunk(newChunks[0]); err != nil {
		t.Fatalf("newer chunk rejected: %v", err)
	}

	// Old chunks are now the conflicting ones
	if _, err := buf.ProcessChunk(oldChunks[1]); !errors.Is(err, domain.ErrChunkConflict) {
		t.Fatalf("got %v, want ErrChunkConflict for stale chunk", err)
	}

	// Completing the new transfer yields the new bytes
	var assembled *Assembled
	for _, chunk := range newChunks[1:] {
		result, err := buf.ProcessChunk(chunk)
		if err != nil {
			t.Fatalf("new chunk rejected: %v", err)
		}
		if result != nil {
			assembled = result
		}
	}
	if assembled == nil || !bytes.Equal(assembled.Data, newData) {
		t.Fatal("restarted transfer did not assemble the newer bytes")
	}
}

func TestProcessChunk_OutOfRangeRejected(t *testing.T) {
	data := make([]byte, int(domain.ChunkThreshold))
	chunks := chunksFor(t, "o.bin", data, 100)

	buf := NewBuffer()

	tooFar := chunks[0]
	tooFar.ChunkID = tooFar.TotalChunks // beyond the declared count
	if _, err := buf.ProcessChunk(tooFar); !errors.Is(err, domain.ErrChunkOutOfRange) {
		t.Fatalf("got %v, want ErrChunkOutOfRange", err)
	}
}

func TestProcessChunk_WholeFileChecksumFailureDiscards(t *testing.T) {
	data := make([]byte, int(domain.ChunkThreshold))
	rand.Read(data)
	chunks := chunksFor(t, "w.bin", data, 100)

	// Declare a wrong whole-file checksum on every chunk, keeping the
	// per-chunk checksums intact
	for i := range chunks {
		chunks[i].FileChecksum ^= 0xFFFFFFFF
	}

	buf := NewBuffer()
	var finalErr error
	for _, chunk := range chunks {
		if _, err := buf.ProcessChunk(chunk); err != nil {
			finalErr = err
		}
	}

	if !errors.Is(finalErr, domain.ErrTransferFailed) {
		t.Fatalf("got %v, want ErrTransferFailed", finalErr)
	}
	if buf.Pending("w.bin") {
		t.Error("failed transfer must discard the accumulator")
	}

	// A clean re-publication succeeds from scratch
	clean := chunksFor(t, "w.bin", data, 100)
	var assembled *Assembled
	for _, chunk := range clean {
		result, err := buf.ProcessChunk(chunk)
		if err != nil {
			t.Fatalf("clean chunk rejected: %v", err)
		}
		if result != nil {
			assembled = result
		}
	}
	if assembled == nil || !bytes.Equal(assembled.Data, data) {
		t.Fatal("re-publication after failure did not assemble")
	}
}
