package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Ning0612/dirshare/internal/domain"
	"github.com/Ning0612/dirshare/internal/fileio"
	"github.com/Ning0612/dirshare/internal/testutil"
	"github.com/Ning0612/dirshare/internal/transport"
	"github.com/Ning0612/dirshare/internal/transport/membus"
)

const (
	testPoll      = 50 * time.Millisecond
	testDiscovery = 200 * time.Millisecond
	waitLong      = 15 * time.Second
)

// eventProbe records every FileEvent seen on the bus
type eventProbe struct {
	mu     sync.Mutex
	events []domain.FileEvent
}

func (p *eventProbe) HandleSample(sample transport.Sample) {
	var event domain.FileEvent
	if err := json.Unmarshal(sample.Data, &event); err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *eventProbe) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newProbe(t *testing.T, hub *membus.Hub) *eventProbe {
	t.Helper()

	probe := &eventProbe{}
	part := hub.Join()
	t.Cleanup(func() { part.Close() })
	if err := part.Subscribe(transport.TopicFileEvents, probe); err != nil {
		t.Fatalf("probe subscribe failed: %v", err)
	}
	return probe
}

// wireParticipant builds one engine over its own directory. Wiring
// subscribes its listeners; nothing is published until start.
func wireParticipant(t *testing.T, hub *membus.Hub, root string) *Engine {
	t.Helper()

	dir, err := fileio.New(root)
	if err != nil {
		t.Fatalf("fileio.New failed: %v", err)
	}

	eng, err := New(dir, hub.Join(), Options{
		PollInterval:  testPoll,
		DiscoveryWait: testDiscovery,
	})
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	return eng
}

func startEngine(t *testing.T, eng *Engine) {
	t.Helper()

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("engine.Start failed: %v", err)
	}
	t.Cleanup(func() { eng.Stop() })
}

// startCluster wires every participant before starting any of them,
// so each bulk push reaches every peer's live subscriptions
func startCluster(t *testing.T, hub *membus.Hub, roots ...string) []*Engine {
	t.Helper()

	engines := make([]*Engine, 0, len(roots))
	for _, root := range roots {
		engines = append(engines, wireParticipant(t, hub, root))
	}
	for _, eng := range engines {
		startEngine(t, eng)
	}
	return engines
}

func fileEquals(path string, want []byte) bool {
	got, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Equal(got, want)
}

func TestSmallFilePropagation(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	content := []byte{0x48, 0x69}
	pathA := testutil.CreateTestFile(t, dirA, "alpha.txt", content)
	testutil.SetMTime(t, pathA, time.Unix(1000, 0))

	probe := newProbe(t, hub)
	startCluster(t, hub, dirA, dirB)

	pathB := filepath.Join(dirB, "alpha.txt")
	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathB, content)
	}, "alpha.txt did not propagate to B")

	info, err := os.Stat(pathB)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.ModTime().Unix() != 1000 {
		t.Errorf("mtime = %d, want 1000", info.ModTime().Unix())
	}

	// The bulk push carries no events, and B must not re-announce the
	// file it installed
	time.Sleep(5 * testPoll)
	if n := probe.count(); n != 0 {
		t.Errorf("expected no FileEvents on the bus, saw %d", n)
	}
}

func TestLargeFileChunking(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	// 10MiB + 1 byte: eleven chunks on the wire
	content := testutil.RandomBytes(t, 10*1024*1024+1)
	testutil.CreateTestFile(t, dirA, "beta.bin", content)

	startCluster(t, hub, dirA, dirB)

	pathB := filepath.Join(dirB, "beta.bin")
	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathB, content)
	}, "beta.bin did not reassemble at B")
}

func TestLastWriterWins(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	newer := []byte("the newer content")
	older := []byte("the older content")

	pathA := testutil.CreateTestFile(t, dirA, "gamma.txt", newer)
	testutil.SetMTime(t, pathA, time.Unix(2000, 0))
	pathB := testutil.CreateTestFile(t, dirB, "gamma.txt", older)
	testutil.SetMTime(t, pathB, time.Unix(1500, 0))

	startCluster(t, hub, dirA, dirB)

	// Both sides converge on the newer version
	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathB, newer)
	}, "B did not adopt the newer version")

	time.Sleep(5 * testPoll)
	if !fileEquals(pathA, newer) {
		t.Error("A lost its newer version")
	}

	info, err := os.Stat(pathB)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.ModTime().Unix() != 2000 {
		t.Errorf("B's mtime = %d, want 2000", info.ModTime().Unix())
	}
}

func TestLastWriterWins_Reversed(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	newer := []byte("now B is newer")
	older := []byte("and A is older")

	pathA := testutil.CreateTestFile(t, dirA, "gamma.txt", older)
	testutil.SetMTime(t, pathA, time.Unix(1500, 0))
	pathB := testutil.CreateTestFile(t, dirB, "gamma.txt", newer)
	testutil.SetMTime(t, pathB, time.Unix(2000, 0))

	startCluster(t, hub, dirA, dirB)

	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathA, newer)
	}, "A did not adopt B's newer version")

	time.Sleep(5 * testPoll)
	if !fileEquals(pathB, newer) {
		t.Error("B lost its newer version")
	}
}

func TestDeletePropagation(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	content := []byte("shared everywhere")
	pathA := testutil.CreateTestFile(t, dirA, "zeta.txt", content)
	testutil.SetMTime(t, pathA, time.Unix(1000, 0))
	pathB := testutil.CreateTestFile(t, dirB, "zeta.txt", content)
	testutil.SetMTime(t, pathB, time.Unix(1000, 0))

	startCluster(t, hub, dirA, dirB)

	// Let both sides settle, then delete at A
	time.Sleep(4 * testPoll)
	if err := os.Remove(pathA); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	testutil.AssertEventually(t, waitLong, func() bool {
		_, err := os.Stat(pathB)
		return os.IsNotExist(err)
	}, "deletion did not propagate to B")
}

func TestSteadyStateCreatePropagates(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	startCluster(t, hub, dirA, dirB)

	// Both running and empty; drop a new file into A
	time.Sleep(2 * testPoll)
	content := []byte("created at runtime")
	testutil.CreateTestFile(t, dirA, "live.txt", content)

	pathB := filepath.Join(dirB, "live.txt")
	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathB, content)
	}, "runtime creation did not propagate")
}

func TestSteadyStateModifyPropagates(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	v1 := []byte("version one")
	pathA := testutil.CreateTestFile(t, dirA, "doc.txt", v1)
	testutil.SetMTime(t, pathA, time.Unix(1000, 0))

	startCluster(t, hub, dirA, dirB)

	pathB := filepath.Join(dirB, "doc.txt")
	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathB, v1)
	}, "initial version did not propagate")

	// Rewrite with a newer mtime
	v2 := []byte("version two, longer than before")
	testutil.CreateTestFile(t, dirA, "doc.txt", v2)

	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathB, v2)
	}, "modification did not propagate")
}

func TestNoEchoQuiescence(t *testing.T) {
	hub := membus.NewHub()

	dirA, cleanupA := testutil.TempDir(t)
	defer cleanupA()
	dirB, cleanupB := testutil.TempDir(t)
	defer cleanupB()

	probe := newProbe(t, hub)
	startCluster(t, hub, dirA, dirB)

	time.Sleep(2 * testPoll)
	content := []byte("one change, one event")
	testutil.CreateTestFile(t, dirA, "once.txt", content)

	pathB := filepath.Join(dirB, "once.txt")
	testutil.AssertEventually(t, waitLong, func() bool {
		return fileEquals(pathB, content)
	}, "change did not propagate")

	// Exactly one CREATE from A; B's write-back must not echo
	testutil.AssertEventually(t, waitLong, func() bool {
		return probe.count() >= 1
	}, "the originating CREATE was not published")

	settled := probe.count()
	time.Sleep(6 * testPoll)
	if n := probe.count(); n != settled {
		t.Errorf("event count grew from %d to %d after convergence: echo", settled, n)
	}
	if settled != 1 {
		t.Errorf("expected exactly one FileEvent, saw %d", settled)
	}
}
