package relay

import (
	"context"
	"time"
)

// ServoRecord is the structured row mirrored to the external durable log
// for every servo action. Field names follow the log's expected schema.
type ServoRecord struct {
	Waktu  string `json:"waktu"`
	Jenis  string `json:"jenis"`
	Source string `json:"source"`
	Aksi   string `json:"aksi"`
}

// SinkTask is one queued forwarding attempt. Tasks are consumed and
// discarded whether the append succeeds or exhausts its attempts; they
// are not persisted across restarts.
type SinkTask struct {
	Record     ServoRecord
	EnqueuedAt time.Time
}

// Forwarder mirrors selected events to an external durable log without
// ever blocking the caller.
type Forwarder interface {
	// Enqueue accepts a task and returns immediately. It reports false
	// when the task was dropped because the queue is full; the drop is
	// counted and logged by the implementation, never escalated.
	Enqueue(task SinkTask) bool
}

// Sink is the external durable log a Forwarder appends records to.
type Sink interface {
	// Name identifies the sink backend in logs and metrics.
	Name() string

	// Append writes one record to the log. The context carries the
	// per-attempt timeout.
	Append(ctx context.Context, record ServoRecord) error
}
