package domain

import "time"

const (
	// ChunkThreshold: files strictly smaller are sent as one
	// FileContent message; files at or above are chunked.
	ChunkThreshold uint64 = 10 * 1024 * 1024 // 10MiB

	// ChunkSize is the byte length of every chunk except the last
	ChunkSize uint64 = 1024 * 1024 // 1MiB

	// PollInterval is the directory scan cadence
	PollInterval = 2 * time.Second

	// DiscoveryWait bounds the startup wait for a peer; expiry is not
	// fatal, the participant proceeds alone.
	DiscoveryWait = 30 * time.Second

	// ChunkPacing is the delay between consecutive chunk publications,
	// shaping throughput so the transport send buffer is not saturated
	ChunkPacing = 10 * time.Millisecond
)
