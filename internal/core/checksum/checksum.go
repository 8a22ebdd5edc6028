// Package checksum provides CRC32 integrity checking for file
// transfers: one-shot over a buffer, incrementally over a stream of
// chunks, and streaming over a file without loading it into memory.
//
// The polynomial is IEEE 802.3 (0xEDB88320 reflected), initial value
// 0xFFFFFFFF, final XOR 0xFFFFFFFF - the conventional CRC32 that
// hash/crc32 implements with the IEEE table.
package checksum

import (
	"fmt"
	"hash/crc32"
	"io"
)

// Sum computes the CRC32 of a buffer in one pass
func Sum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Digest computes a CRC32 incrementally. Feeding chunks a then b
// produces the same result as Sum over their concatenation.
type Digest struct {
	crc uint32
}

// New returns a fresh Digest
func New() *Digest {
	return &Digest{}
}

// Feed extends the digest with the next chunk of data
func (d *Digest) Feed(data []byte) {
	d.crc = crc32.Update(d.crc, crc32.IEEETable, data)
}

// Finalize returns the checksum over everything fed so far.
// The digest may continue to be fed afterwards.
func (d *Digest) Finalize() uint32 {
	return d.crc
}

// Options configures streaming reads
type Options struct {
	// BufferSize: size of buffer for streaming reads
	// Default: 32KB
	BufferSize int
}

// DefaultOptions returns the recommended default options
func DefaultOptions() Options {
	return Options{
		BufferSize: 32 * 1024, // 32KB
	}
}

// SumReader streams r through a Digest and returns the checksum.
// The whole input is never held in memory at once.
func SumReader(r io.Reader, opts Options) (uint32, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}

	d := New()
	buf := make([]byte, opts.BufferSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			d.Feed(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read error: %w", err)
		}
	}

	return d.Finalize(), nil
}
