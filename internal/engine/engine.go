// Package engine is the top-level orchestrator: it wires the
// monitor, tracker, encoder, and listeners onto the transport,
// publishes the startup snapshot and bulk transfer, and drives the
// periodic scan loop that turns local deltas into publications.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ning0612/dirshare/internal/core/monitor"
	"github.com/Ning0612/dirshare/internal/core/transfer"
	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/fileio"
	"github.com/Ning0612/dirshare/internal/logger"
	"github.com/Ning0612/dirshare/internal/progress"
	"github.com/Ning0612/dirshare/internal/router"
	"github.com/Ning0612/dirshare/internal/scheduler"
	"github.com/Ning0612/dirshare/internal/tracker"
	"github.com/Ning0612/dirshare/internal/transport"
)

// Options tunes an engine
type Options struct {
	// PollInterval is the scan cadence; zero means the default
	PollInterval time.Duration

	// DiscoveryWait bounds the startup wait for a peer; zero means
	// the default
	DiscoveryWait time.Duration

	// Reporter receives bulk-push progress; nil discards it
	Reporter progress.Reporter
}

// Engine is one participant's replication driver
type Engine struct {
	participantID string
	dir           *fileio.Dir
	bus           transport.Bus
	tracker       *tracker.Tracker
	monitor       *monitor.Monitor
	encoder       *transfer.Encoder
	reporter      progress.Reporter
	opts          Options

	eventWriter    transport.Writer
	snapshotWriter transport.Writer
	contentWriter  transport.Writer
	chunkWriter    transport.Writer

	sched *scheduler.IntervalScheduler
}

// New wires an engine onto the bus: four writers, four listeners,
// and the scan scheduler. Nothing is published until Start.
func New(dir *fileio.Dir, bus transport.Bus, opts Options) (*Engine, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = domain.PollInterval
	}
	if opts.DiscoveryWait <= 0 {
		opts.DiscoveryWait = domain.DiscoveryWait
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.NullReporter{}
	}

	tr := tracker.New()
	mon := monitor.New(dir, tr)

	e := &Engine{
		participantID: uuid.NewString(),
		dir:           dir,
		bus:           bus,
		tracker:       tr,
		monitor:       mon,
		encoder:       transfer.NewEncoder(),
		reporter:      opts.Reporter,
		opts:          opts,
	}

	var err error
	if e.eventWriter, err = bus.CreateWriter(transport.TopicFileEvents); err != nil {
		return nil, fmt.Errorf("create file-events writer: %w", err)
	}
	if e.snapshotWriter, err = bus.CreateWriter(transport.TopicSnapshot); err != nil {
		return nil, fmt.Errorf("create directory-snapshot writer: %w", err)
	}
	if e.contentWriter, err = bus.CreateWriter(transport.TopicFileContent); err != nil {
		return nil, fmt.Errorf("create file-content writer: %w", err)
	}
	if e.chunkWriter, err = bus.CreateWriter(transport.TopicFileChunks); err != nil {
		return nil, fmt.Errorf("create file-chunks writer: %w", err)
	}

	deps := router.Deps{Dir: dir, Tracker: tr, Monitor: mon}
	buffer := transfer.NewBuffer()

	if err := bus.Subscribe(transport.TopicFileEvents, router.NewEventListener(deps)); err != nil {
		return nil, fmt.Errorf("subscribe file-events: %w", err)
	}
	if err := bus.Subscribe(transport.TopicSnapshot, router.NewSnapshotListener(deps)); err != nil {
		return nil, fmt.Errorf("subscribe directory-snapshot: %w", err)
	}
	if err := bus.Subscribe(transport.TopicFileContent, router.NewContentListener(deps)); err != nil {
		return nil, fmt.Errorf("subscribe file-content: %w", err)
	}
	if err := bus.Subscribe(transport.TopicFileChunks, router.NewChunkListener(deps, buffer)); err != nil {
		return nil, fmt.Errorf("subscribe file-chunks: %w", err)
	}

	e.sched, err = scheduler.NewIntervalScheduler(scheduler.Config{Interval: opts.PollInterval}, e)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// ParticipantID returns this engine's generated identity
func (e *Engine) ParticipantID() string {
	return e.participantID
}

// Tracker exposes the suppression tracker (introspection and tests)
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// Start performs the startup sequence - discovery wait, snapshot
// publication, bulk push - and launches the periodic scan loop.
func (e *Engine) Start(ctx context.Context) error {
	log := logger.Get()

	log.Info("waiting for participant discovery", "timeout", e.opts.DiscoveryWait)
	if e.bus.WaitForPeer(ctx, e.opts.DiscoveryWait) {
		log.Info("peer discovered")
	} else {
		log.Info("no other participants discovered yet, continuing")
	}

	snapshot := e.monitor.Snapshot()
	if err := e.publishSnapshot(snapshot); err != nil {
		return fmt.Errorf("publish initial snapshot: %w", err)
	}
	log.Info("initial snapshot published", "file_count", len(snapshot))

	e.bulkPush(snapshot)

	if err := e.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scan loop: %w", err)
	}
	log.Info("replication running", "dir", e.dir.Root(), "poll_interval", e.opts.PollInterval)

	return nil
}

// Stop halts the scan loop and tears down the transport
func (e *Engine) Stop() error {
	if err := e.sched.Stop(); err != nil {
		logger.Get().Warn("scan loop stop", "error", err)
	}
	return e.bus.Close()
}

// Status returns scan loop statistics
func (e *Engine) Status() *scheduler.Status {
	return e.sched.Status()
}

// publishSnapshot sends the directory summary
func (e *Engine) publishSnapshot(files []domain.FileMetadata) error {
	snapshot := domain.DirectorySnapshot{
		ParticipantID: e.participantID,
		SnapshotTime:  domain.MTimeFromTime(time.Now()),
		Files:         files,
		FileCount:     uint32(len(files)),
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return e.snapshotWriter.Write(payload)
}

// bulkPushConcurrency bounds parallel file publications during the
// initial push. Chunks of one file stay ordered because each file is
// published by a single goroutine.
const bulkPushConcurrency = 4

// bulkPush publishes every file of the startup snapshot
func (e *Engine) bulkPush(files []domain.FileMetadata) {
	var totalBytes int64
	for _, meta := range files {
		totalBytes += int64(meta.Size)
	}
	e.reporter.SetTotal(len(files), totalBytes)

	var g errgroup.Group
	g.SetLimit(bulkPushConcurrency)

	for _, meta := range files {
		g.Go(func() error {
			e.reporter.Start(meta.Filename, int64(meta.Size))
			if err := e.publishFile(meta); err != nil {
				e.reporter.Error(meta.Filename, err)
				logger.Get().Error("failed to publish file", "filename", meta.Filename, "error", err)
				return nil // a single unreadable file must not abort the push
			}
			e.reporter.Complete(meta.Filename, int64(meta.Size))
			return nil
		})
	}

	g.Wait()
}

// RunScan implements scheduler.ScanRunner: one diff pass, publishing
// an event plus content for every created and modified file and an
// event for every deletion
func (e *Engine) RunScan(ctx context.Context) error {
	changes, err := e.monitor.Scan()
	if err != nil {
		logger.Get().Error("scan failed", "error", err)
		return err
	}

	if n := e.tracker.Len(); n > 0 {
		logger.Get().Debug("remote updates in progress", "suppressed", n)
	}
	if changes.Empty() {
		return nil
	}

	for _, name := range changes.Created {
		e.publishChange(name, domain.OpCreate)
	}
	for _, name := range changes.Modified {
		e.publishChange(name, domain.OpModify)
	}
	for _, name := range changes.Deleted {
		e.publishDelete(name)
	}

	return nil
}

// publishChange announces one created or modified file and publishes
// its bytes
func (e *Engine) publishChange(name string, op domain.Operation) {
	log := logger.Get()
	log.Info("file change detected", "filename", name, "operation", op.String())

	meta, ok := e.monitor.MetadataOf(name)
	if !ok {
		log.Error("failed to read metadata", "filename", name)
		return
	}

	if err := e.publishEvent(domain.FileEvent{
		Filename:  name,
		Operation: op,
		EventTime: domain.MTimeFromTime(time.Now()),
		Metadata:  meta,
	}); err != nil {
		log.Error("failed to publish event", "filename", name, "operation", op.String(), "error", err)
		return
	}

	if err := e.publishFile(meta); err != nil {
		log.Error("failed to publish file", "filename", name, "error", err)
	}
}

// publishDelete announces one deletion. The event's emission time is
// the conflict tiebreaker; the metadata carries only the filename.
func (e *Engine) publishDelete(name string) {
	logger.Get().Info("file deletion detected", "filename", name)

	err := e.publishEvent(domain.FileEvent{
		Filename:  name,
		Operation: domain.OpDelete,
		EventTime: domain.MTimeFromTime(time.Now()),
		Metadata:  domain.FileMetadata{Filename: name},
	})
	if err != nil {
		logger.Get().Error("failed to publish delete event", "filename", name, "error", err)
	}
}

func (e *Engine) publishEvent(event domain.FileEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.eventWriter.Write(payload)
}

// publishFile frames one file as FileContent or FileChunks and
// publishes it. This is the single encode path for the initial push
// and for created and modified files.
func (e *Engine) publishFile(meta domain.FileMetadata) error {
	data, err := e.dir.ReadAll(meta.Filename)
	if err != nil {
		return fmt.Errorf("read %s: %w", meta.Filename, err)
	}

	content, chunks := e.encoder.Frame(meta, data)

	if content != nil {
		payload, err := json.Marshal(content)
		if err != nil {
			return err
		}
		if err := e.contentWriter.Write(payload); err != nil {
			return err
		}
		logger.Get().Info("published FileContent", "filename", meta.Filename, "size", meta.Size)
		return nil
	}

	logger.Get().Info("publishing FileChunks",
		"filename", meta.Filename,
		"size", meta.Size,
		"total_chunks", len(chunks))

	err = e.encoder.SendChunks(chunks, func(chunk domain.FileChunk) error {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		return e.chunkWriter.Write(payload)
	})
	if err != nil {
		return err
	}

	logger.Get().Info("completed publishing chunks", "filename", meta.Filename)
	return nil
}
