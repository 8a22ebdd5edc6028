// Package progress reports on the initial bulk push: how many files
// and bytes of the startup snapshot have been published so far.
// Reporters must tolerate concurrent calls; several files are pushed
// in parallel.
package progress

import "sync"

// Reporter handles progress reporting for the bulk push
type Reporter interface {
	// SetTotal sets the total number of files and bytes to publish
	SetTotal(totalFiles int, totalBytes int64)
	// Start begins tracking one file's publication
	Start(filename string, totalBytes int64)
	// Complete marks one file as published
	Complete(filename string, totalBytes int64)
	// Error reports a failure publishing one file
	Error(filename string, err error)
}

// Callback is a function that receives progress updates
type Callback func(update Update)

// Update represents a progress update
type Update struct {
	Type           UpdateType
	CurrentFile    string
	CurrentTotal   int64
	FilesCompleted int
	FilesTotal     int
	BytesCompleted int64
	BytesTotal     int64
	Error          error
}

// UpdateType indicates the type of progress update
type UpdateType int

const (
	UpdateStart UpdateType = iota
	UpdateComplete
	UpdateError
)

// CallbackReporter implements Reporter with a callback function
type CallbackReporter struct {
	callback Callback

	mu             sync.Mutex
	filesTotal     int
	bytesTotal     int64
	filesCompleted int
	bytesCompleted int64
}

// NewCallbackReporter creates a new CallbackReporter
func NewCallbackReporter(callback Callback) *CallbackReporter {
	return &CallbackReporter{
		callback: callback,
	}
}

// SetTotal sets the total number of files and bytes to publish
func (r *CallbackReporter) SetTotal(totalFiles int, totalBytes int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filesTotal = totalFiles
	r.bytesTotal = totalBytes
}

// Start begins tracking one file's publication
func (r *CallbackReporter) Start(filename string, totalBytes int64) {
	r.mu.Lock()
	// Capture values for callback outside lock
	update := Update{
		Type:           UpdateStart,
		CurrentFile:    filename,
		CurrentTotal:   totalBytes,
		FilesCompleted: r.filesCompleted,
		FilesTotal:     r.filesTotal,
		BytesCompleted: r.bytesCompleted,
		BytesTotal:     r.bytesTotal,
	}
	callback := r.callback
	r.mu.Unlock()

	// Call callback outside lock to prevent deadlock
	if callback != nil {
		callback(update)
	}
}

// Complete marks one file as published
func (r *CallbackReporter) Complete(filename string, totalBytes int64) {
	r.mu.Lock()
	r.filesCompleted++
	r.bytesCompleted += totalBytes

	update := Update{
		Type:           UpdateComplete,
		CurrentFile:    filename,
		CurrentTotal:   totalBytes,
		FilesCompleted: r.filesCompleted,
		FilesTotal:     r.filesTotal,
		BytesCompleted: r.bytesCompleted,
		BytesTotal:     r.bytesTotal,
	}
	callback := r.callback
	r.mu.Unlock()

	if callback != nil {
		callback(update)
	}
}

// Error reports a failure publishing one file
func (r *CallbackReporter) Error(filename string, err error) {
	r.mu.Lock()
	update := Update{
		Type:           UpdateError,
		CurrentFile:    filename,
		FilesCompleted: r.filesCompleted,
		FilesTotal:     r.filesTotal,
		BytesCompleted: r.bytesCompleted,
		BytesTotal:     r.bytesTotal,
		Error:          err,
	}
	callback := r.callback
	r.mu.Unlock()

	if callback != nil {
		callback(update)
	}
}

// NullReporter discards all updates
type NullReporter struct{}

func (NullReporter) SetTotal(int, int64)    {}
func (NullReporter) Start(string, int64)    {}
func (NullReporter) Complete(string, int64) {}
func (NullReporter) Error(string, error)    {}
