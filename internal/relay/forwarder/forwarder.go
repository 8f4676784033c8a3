// Package forwarder mirrors servo actions to the external durable log
// asynchronously, decoupled from the ingest path. Forwarding is best
// effort: a full queue drops the task and a failed append is surfaced
// only through logs and metrics, never to the originating request.
package forwarder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"relay/internal/relay"
	"relay/internal/relay/metrics"
	"relay/internal/validator"
)

// Config holds the forwarder's queue and retry settings.
type Config struct {
	QueueSize      int           `env:"FORWARD_QUEUE_SIZE" envDefault:"64"`
	Workers        int           `env:"FORWARD_WORKERS" envDefault:"2"`
	MaxAttempts    int           `env:"FORWARD_MAX_ATTEMPTS" envDefault:"3"`
	AttemptTimeout time.Duration `env:"FORWARD_ATTEMPT_TIMEOUT" envDefault:"10s"`
	RetryBackoff   time.Duration `env:"FORWARD_RETRY_BACKOFF" envDefault:"1s"`
}

// Forwarder is the relay.Forwarder implementation: a fixed-capacity task
// channel drained by a small pool of workers.
type Forwarder struct {
	sink     relay.Sink
	logger   *zap.Logger
	registry *metrics.Registry
	config   Config

	tasks chan relay.SinkTask
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// New creates a forwarder. Start must be called before tasks are drained.
func New(sink relay.Sink, logger *zap.Logger, registry *metrics.Registry, config Config) (*Forwarder, error) {
	f := Forwarder{
		sink:     sink,
		logger:   logger.Named("forwarder"),
		registry: registry,
		config:   config,
		tasks:    make(chan relay.SinkTask, config.QueueSize),
	}

	if err := validator.Validate("forwarder", f.sink, f.logger, f.registry,
		config.QueueSize, config.Workers, config.MaxAttempts, config.AttemptTimeout); err != nil {
		return nil, fmt.Errorf("failed to validate forwarder deps: %w", err)
	}

	return &f, nil
}

// Start launches the worker goroutines. Workers stop when the context is
// cancelled or the queue is closed and drained.
func (f *Forwarder) Start(ctx context.Context) {
	for i := 0; i < f.config.Workers; i++ {
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			f.run(ctx)
		}()
	}
}

// Enqueue accepts a task without blocking. A full queue drops the task,
// counts it, and reports false.
func (f *Forwarder) Enqueue(task relay.SinkTask) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		f.registry.RecordForwardDrop()
		f.logger.Warn("task dropped: forwarder closed", zap.String("jenis", task.Record.Jenis))
		return false
	}

	select {
	case f.tasks <- task:
		return true
	default:
		f.registry.RecordForwardDrop()
		f.logger.Warn("task dropped: queue full",
			zap.String("jenis", task.Record.Jenis),
			zap.Int("queue_size", f.config.QueueSize),
		)
		return false
	}
}

// Close stops accepting tasks and waits for the workers to drain the
// queue.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.tasks)
	f.mu.Unlock()

	f.wg.Wait()
	f.logger.Info("forwarder stopped")
}

// QueueLen returns how many tasks are currently queued.
func (f *Forwarder) QueueLen() int {
	return len(f.tasks)
}

func (f *Forwarder) run(ctx context.Context) {
	for {
		select {
		case task, ok := <-f.tasks:
			if !ok {
				return
			}
			f.forward(ctx, task)
		case <-ctx.Done():
			return
		}
	}
}

// forward performs the bounded attempt policy for one task. Exhaustion is
// logged and counted; the event was already broadcast and the device
// response already sent, so there is nothing to escalate to.
func (f *Forwarder) forward(ctx context.Context, task relay.SinkTask) {
	var err error
	start := time.Now()

	for attempt := 1; attempt <= f.config.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, f.config.AttemptTimeout)
		err = f.sink.Append(attemptCtx, task.Record)
		cancel()

		if err == nil {
			f.registry.RecordForward(f.sink.Name(), time.Since(start), nil)
			f.logger.Debug("record forwarded",
				zap.String("sink", f.sink.Name()),
				zap.String("jenis", task.Record.Jenis),
				zap.Int("attempt", attempt),
				zap.Duration("queue_wait", start.Sub(task.EnqueuedAt)),
			)
			return
		}

		if ctx.Err() != nil {
			break
		}
		if attempt < f.config.MaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * f.config.RetryBackoff):
			case <-ctx.Done():
			}
		}
	}

	f.registry.RecordForward(f.sink.Name(), time.Since(start), err)
	f.logger.Error("record lost after exhausting forward attempts",
		zap.String("sink", f.sink.Name()),
		zap.String("jenis", task.Record.Jenis),
		zap.Int("attempts", f.config.MaxAttempts),
		zap.Error(err),
	)
}
