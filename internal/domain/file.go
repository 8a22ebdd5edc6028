package domain

import "time"

// MTime is a file modification time split into whole seconds and
// nanoseconds, as carried on the wire. Comparison is lexicographic:
// seconds first, then nanoseconds.
type MTime struct {
	Sec  uint64 `json:"sec"`
	Nsec uint32 `json:"nsec"`
}

// MTimeFromTime converts a time.Time to an MTime.
// Times before the epoch clamp to zero.
func MTimeFromTime(t time.Time) MTime {
	if t.Unix() < 0 {
		return MTime{}
	}
	return MTime{
		Sec:  uint64(t.Unix()),
		Nsec: uint32(t.Nanosecond()),
	}
}

// Time converts back to a time.Time in the local zone.
func (m MTime) Time() time.Time {
	return time.Unix(int64(m.Sec), int64(m.Nsec))
}

// After reports whether m is strictly later than other.
func (m MTime) After(other MTime) bool {
	if m.Sec != other.Sec {
		return m.Sec > other.Sec
	}
	return m.Nsec > other.Nsec
}

// Equal reports whether m and other are the same instant.
func (m MTime) Equal(other MTime) bool {
	return m.Sec == other.Sec && m.Nsec == other.Nsec
}

// FileState is the monitor's internal snapshot row for one file.
// Two states are equal iff size, mtime, and checksum all match.
type FileState struct {
	// Size in bytes
	Size uint64

	// ModTime is the last modification time
	ModTime MTime

	// Checksum is the CRC32 of the full file contents
	Checksum uint32
}

// Equal reports whether two states describe the same file version
func (s FileState) Equal(other FileState) bool {
	return s.Size == other.Size &&
		s.ModTime.Equal(other.ModTime) &&
		s.Checksum == other.Checksum
}

// FileMetadata is the on-wire summary of one file: what a snapshot row
// and an event carry. Checksum is the CRC32 of exactly Size bytes;
// ModTime reflects the moment of capture.
type FileMetadata struct {
	Filename string `json:"filename"`
	Size     uint64 `json:"size"`
	ModTime  MTime  `json:"mtime"`
	Checksum uint32 `json:"checksum"`
}

// State returns the FileState view of the metadata.
func (m FileMetadata) State() FileState {
	return FileState{Size: m.Size, ModTime: m.ModTime, Checksum: m.Checksum}
}
