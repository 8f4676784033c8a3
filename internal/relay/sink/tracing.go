package sink

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"relay/internal/relay"
	"relay/internal/relay/tracing"
)

// TracedSink wraps a relay.Sink with distributed tracing.
// Layer order: TracedSink -> Sink (real thing)
type TracedSink struct {
	sink   relay.Sink
	tracer *tracing.Tracer
}

// NewTracedSink creates a traced sink wrapping the given backend.
func NewTracedSink(sink relay.Sink, tracer *tracing.Tracer) relay.Sink {
	return &TracedSink{
		sink:   sink,
		tracer: tracer,
	}
}

// Name implements relay.Sink.
func (s *TracedSink) Name() string { return s.sink.Name() }

// Append implements relay.Sink.Append with distributed tracing.
func (s *TracedSink) Append(ctx context.Context, record relay.ServoRecord) error {
	ctx, span := s.tracer.StartSpan(ctx, "sink.append")
	defer span.End()

	span.SetAttributes(s.tracer.SinkAttributes(s.sink.Name(), record.Jenis)...)

	err := s.sink.Append(ctx, record)

	if err != nil {
		s.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(s.tracer.ErrorAttributes(err)...)

	return err
}
