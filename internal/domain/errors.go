package domain

import "errors"

// File I/O errors - 檔案層錯誤
var (
	// ErrNotFound indicates the requested file does not exist
	ErrNotFound = errors.New("file not found")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotRegularFile indicates the path is not a regular file
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrInvalidFilename indicates the name failed validity rules
	ErrInvalidFilename = errors.New("invalid filename")
)

// Transfer errors - 傳輸層錯誤
var (
	// ErrChecksumMismatch indicates a CRC32 verification failure
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrSizeMismatch indicates declared size differs from actual bytes
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrChunkConflict indicates chunk metadata disagrees with the
	// in-progress transfer for the same filename
	ErrChunkConflict = errors.New("inconsistent chunk metadata")

	// ErrChunkOutOfRange indicates a chunk whose bytes would fall
	// outside the declared file size
	ErrChunkOutOfRange = errors.New("chunk exceeds file size")

	// ErrRejectedOlder indicates the incoming version lost the
	// modification-time comparison; informational, not a fault
	ErrRejectedOlder = errors.New("local file is newer or same")

	// ErrTransferFailed indicates a completed reassembly whose
	// whole-file checksum did not verify; the transfer is discarded
	ErrTransferFailed = errors.New("transfer failed")
)

// Config errors - 設定檔錯誤
var (
	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")
)

// Transport errors
var (
	// ErrTransportClosed indicates the bus has been shut down
	ErrTransportClosed = errors.New("transport closed")

	// ErrUnknownTopic indicates a topic name the bus does not carry
	ErrUnknownTopic = errors.New("unknown topic")
)
