// Package conflict implements last-writer-wins resolution over
// modification times. The decision is a pure function of the
// (local, remote) pair; ties favor the local side.
package conflict

import "github.com/Ning0612/dirshare/internal/domain"

// Decision is the outcome of comparing an incoming version against
// the local one
type Decision int

const (
	// KeepLocal rejects the incoming version: local is newer or same
	KeepLocal Decision = iota
	// AcceptRemote applies the incoming version: remote is strictly newer
	AcceptRemote
)

// String returns the decision name for logging
func (d Decision) String() string {
	switch d {
	case KeepLocal:
		return "keep-local"
	case AcceptRemote:
		return "accept-remote"
	default:
		return "unknown"
	}
}

// Decide compares modification times lexicographically by
// (sec, nsec). The remote side wins only when strictly newer.
//
// Filesystems that report nsec 0 can lose second-level ties against
// events carrying nonzero nanoseconds; that bias toward remote writes
// is accepted rather than normalizing precision away.
func Decide(local, remote domain.MTime) Decision {
	if remote.After(local) {
		return AcceptRemote
	}
	return KeepLocal
}
