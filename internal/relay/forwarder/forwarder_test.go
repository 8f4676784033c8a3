package forwarder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"relay/internal/relay"
	"relay/internal/relay/metrics"
)

// stubSink records appended rows and can be told to fail.
type stubSink struct {
	mu      sync.Mutex
	records []relay.ServoRecord
	fails   int // fail this many calls before succeeding; -1 = always fail
	calls   int

	appended chan struct{}
}

func newStubSink() *stubSink {
	return &stubSink{appended: make(chan struct{}, 128)}
}

func (s *stubSink) Name() string { return "stub" }

func (s *stubSink) Append(ctx context.Context, record relay.ServoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fails == -1 || s.calls <= s.fails {
		return errors.New("sink down")
	}
	s.records = append(s.records, record)
	s.appended <- struct{}{}
	return nil
}

func (s *stubSink) appendedRecords() []relay.ServoRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]relay.ServoRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *stubSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig() Config {
	return Config{
		QueueSize:      4,
		Workers:        1,
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		RetryBackoff:   time.Millisecond,
	}
}

func task(jenis string) relay.SinkTask {
	return relay.SinkTask{
		Record:     relay.ServoRecord{Waktu: "1 Januari 2026 08.00.00", Jenis: jenis, Source: "manual", Aksi: "Servo pemberi " + jenis + " berjalan"},
		EnqueuedAt: time.Now(),
	}
}

func TestEnqueueForwardsRecord(t *testing.T) {
	sink := newStubSink()
	f, err := New(sink, zap.NewNop(), metrics.NewRegistry(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.Start(context.Background())
	defer f.Close()

	if !f.Enqueue(task("pakan")) {
		t.Fatal("Enqueue returned false on empty queue")
	}

	select {
	case <-sink.appended:
	case <-time.After(2 * time.Second):
		t.Fatal("record was not forwarded")
	}

	got := sink.appendedRecords()
	if len(got) != 1 || got[0].Jenis != "pakan" {
		t.Fatalf("appended records = %+v, want one pakan record", got)
	}
}

func TestEnqueueNeverBlocksAndCountsDrops(t *testing.T) {
	sink := newStubSink()
	cfg := testConfig()
	cfg.QueueSize = 2
	f, err := New(sink, zap.NewNop(), metrics.NewRegistry(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Workers intentionally not started: the queue fills up.

	accepted := 0
	for i := 0; i < 10; i++ {
		done := make(chan bool, 1)
		go func() { done <- f.Enqueue(task("pupuk")) }()
		select {
		case ok := <-done:
			if ok {
				accepted++
			}
		case <-time.After(time.Second):
			t.Fatal("Enqueue blocked")
		}
	}

	if accepted != cfg.QueueSize {
		t.Errorf("accepted %d tasks, want %d (queue capacity)", accepted, cfg.QueueSize)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	sink := newStubSink()
	sink.fails = 2
	f, err := New(sink, zap.NewNop(), metrics.NewRegistry(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.Start(context.Background())
	defer f.Close()

	f.Enqueue(task("pakan"))

	select {
	case <-sink.appended:
	case <-time.After(2 * time.Second):
		t.Fatal("record was not forwarded after retries")
	}

	if got := sink.callCount(); got != 3 {
		t.Errorf("sink called %d times, want 3", got)
	}
}

func TestBoundedAttemptsOnPersistentFailure(t *testing.T) {
	sink := newStubSink()
	sink.fails = -1
	cfg := testConfig()
	f, err := New(sink, zap.NewNop(), metrics.NewRegistry(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.Start(context.Background())

	f.Enqueue(task("pakan"))
	f.Close() // drains the queue before returning

	if got := sink.callCount(); got != cfg.MaxAttempts {
		t.Errorf("sink called %d times, want %d", got, cfg.MaxAttempts)
	}
}

func TestEnqueueAfterCloseIsDropped(t *testing.T) {
	sink := newStubSink()
	f, err := New(sink, zap.NewNop(), metrics.NewRegistry(), testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.Start(context.Background())
	f.Close()

	if f.Enqueue(task("pakan")) {
		t.Error("Enqueue after Close returned true")
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	sink := newStubSink()
	cfg := testConfig()
	cfg.QueueSize = 8
	f, err := New(sink, zap.NewNop(), metrics.NewRegistry(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 5; i++ {
		f.Enqueue(task("pakan"))
	}

	f.Start(context.Background())
	f.Close()

	if got := len(sink.appendedRecords()); got != 5 {
		t.Errorf("drained %d records, want 5", got)
	}
}

// Shutdown order matters: Close must complete before the workers'
// context is cancelled, or queued records never reach the sink.
func TestShutdownDrainsBeforeCancel(t *testing.T) {
	sink := newStubSink()
	cfg := testConfig()
	cfg.QueueSize = 8
	f, err := New(sink, zap.NewNop(), metrics.NewRegistry(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.Start(ctx)

	for i := 0; i < 5; i++ {
		f.Enqueue(task("pupuk"))
	}

	f.Close()
	cancel()

	if got := len(sink.appendedRecords()); got != 5 {
		t.Errorf("drained %d records, want 5", got)
	}
}
