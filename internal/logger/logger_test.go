package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

// resetForTest clears the global logger state between tests
func resetForTest() {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = nil
	initialized = false
}

func TestGet_BeforeInitReturnsNullLogger(t *testing.T) {
	resetForTest()

	log := Get()
	if _, ok := log.(*NullLogger); !ok {
		t.Errorf("uninitialized Get() = %T, want *NullLogger", log)
	}
	// Must not panic
	log.Info("into the void")
}

func TestInit_WritesThroughConfiguredWriter(t *testing.T) {
	resetForTest()
	defer Shutdown()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelInfo, Format: FormatText, Writer: &syncBuffer{buf: &buf}}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Get().Info("hello log", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello log") || !strings.Contains(out, "key=value") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestInit_Twice(t *testing.T) {
	resetForTest()
	defer Shutdown()

	if err := Init(Config{}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := Init(Config{}); err == nil {
		t.Error("second Init should fail before Shutdown")
	}
}

func TestLevelFiltering(t *testing.T) {
	resetForTest()
	defer Shutdown()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelWarn, Writer: &syncBuffer{buf: &buf}}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Get().Debug("too quiet")
	Get().Info("still too quiet")
	Get().Warn("loud enough")

	out := buf.String()
	if strings.Contains(out, "too quiet") {
		t.Errorf("suppressed levels leaked: %q", out)
	}
	if !strings.Contains(out, "loud enough") {
		t.Errorf("warn level missing: %q", out)
	}
}

func TestWith_AddsContext(t *testing.T) {
	resetForTest()
	defer Shutdown()

	var buf bytes.Buffer
	if err := Init(Config{Level: LevelInfo, Writer: &syncBuffer{buf: &buf}}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	With("component", "monitor").Info("scanning")
	if !strings.Contains(buf.String(), "component=monitor") {
		t.Errorf("context attribute missing: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != LevelDebug || ParseLevel("warning") != LevelWarn {
		t.Error("ParseLevel is case-sensitive or misses aliases")
	}
	if ParseLevel("nonsense") != LevelInfo {
		t.Error("unknown level should default to info")
	}
}

// syncBuffer makes a bytes.Buffer safe for the logger's writers
type syncBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}
