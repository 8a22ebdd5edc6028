// Package scheduler drives the periodic directory scan. The interval
// loop, stop semantics, and status reporting follow a ticker-based
// design: Start launches the loop, Stop waits for it to drain, and
// Status exposes run statistics.
package scheduler

import (
	"context"
	"time"
)

// Scheduler defines the interface for scan loop drivers
type Scheduler interface {
	// Start begins the scheduling loop
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler
	Stop() error

	// Status returns the current scheduler status
	Status() *Status
}

// Status represents the current state of a scheduler
type Status struct {
	Running        bool
	LastRunTime    time.Time
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string
}

// ScanRunner is the interface schedulers use to execute one scan pass
type ScanRunner interface {
	// RunScan executes one scan-and-publish pass
	RunScan(ctx context.Context) error
}

// Config contains scheduler configuration
type Config struct {
	// Interval specifies the duration between scan passes
	Interval time.Duration
}
