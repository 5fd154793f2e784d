package durable

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// OTelObserver implements Observer using OpenTelemetry for traces and
// metrics. This provides automatic integration with OTLP exporters
// (Jaeger, Tempo, Datadog, etc.).
//
// Example:
//
//	tracer := otel.Tracer("oplog")
//	meter := otel.Meter("oplog")
//	observer, _ := durable.NewOTelObserver(tracer, meter)
//	w, _ := durable.NewWorker(ctx, log, durable.WithObserver(observer))
type OTelObserver struct {
	tracer trace.Tracer

	// Metrics
	callDuration  metric.Float64Histogram
	replayHits    metric.Int64Counter
	liveCalls     metric.Int64Counter
	callErrors    metric.Int64Counter
	modeSwitches  metric.Int64Counter
	batchDuration metric.Float64Histogram
}

// NewOTelObserver creates an OpenTelemetry observer.
func NewOTelObserver(tracer trace.Tracer, meter metric.Meter) (*OTelObserver, error) {
	callDuration, err := meter.Float64Histogram(
		"oplog.call.duration",
		metric.WithDescription("Duration of durable calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create call duration histogram: %w", err)
	}

	replayHits, err := meter.Int64Counter(
		"oplog.replay.hits",
		metric.WithDescription("Calls satisfied from the invocation log"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay hits counter: %w", err)
	}

	liveCalls, err := meter.Int64Counter(
		"oplog.live.calls",
		metric.WithDescription("Calls executed against the real dependency"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create live calls counter: %w", err)
	}

	callErrors, err := meter.Int64Counter(
		"oplog.call.errors",
		metric.WithDescription("Durable calls that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create call errors counter: %w", err)
	}

	modeSwitches, err := meter.Int64Counter(
		"oplog.mode.switches",
		metric.WithDescription("Replay-to-live transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mode switches counter: %w", err)
	}

	batchDuration, err := meter.Float64Histogram(
		"oplog.batch.duration",
		metric.WithDescription("Duration of batch dispatches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch duration histogram: %w", err)
	}

	return &OTelObserver{
		tracer:        tracer,
		callDuration:  callDuration,
		replayHits:    replayHits,
		liveCalls:     liveCalls,
		callErrors:    callErrors,
		modeSwitches:  modeSwitches,
		batchDuration: batchDuration,
	}, nil
}

func (o *OTelObserver) OnCallStart(ctx context.Context, event *CallStartEvent) {
	_, span := o.tracer.Start(ctx, event.Operation.String(),
		trace.WithAttributes(
			attribute.String("worker_id", event.WorkerID),
			attribute.String("operation", event.Operation.String()),
			attribute.String("mode", event.Mode.String()),
		),
	)
	// Note: In real usage, the span should be stored in context and ended
	// in OnCallEnd. Users should rely on trace.SpanFromContext for lifecycle.
	_ = span
}

func (o *OTelObserver) OnCallEnd(ctx context.Context, event *CallEndEvent) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		if event.Err != nil {
			span.SetStatus(codes.Error, event.Err.Error())
			span.RecordError(event.Err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(
			attribute.Bool("replayed", event.Replayed),
			attribute.Int64("seq", int64(event.Seq)),
		)
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", event.Operation.String()),
		attribute.String("mode", event.Mode.String()),
		attribute.Bool("success", event.Err == nil),
		attribute.Bool("replayed", event.Replayed),
	}
	o.callDuration.Record(ctx, event.Duration.Seconds(), metric.WithAttributes(attrs...))

	if event.Replayed {
		o.replayHits.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", event.Operation.String()),
		))
	} else {
		o.liveCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", event.Operation.String()),
		))
	}

	if event.Err != nil {
		o.callErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", event.Operation.String()),
		))
	}
}

func (o *OTelObserver) OnModeSwitch(ctx context.Context, event *ModeSwitchEvent) {
	o.modeSwitches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("worker_id", event.WorkerID),
	))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("mode_switch", trace.WithAttributes(
			attribute.String("worker_id", event.WorkerID),
			attribute.Int64("records_replayed", int64(event.Consumed)),
		))
	}
}

func (o *OTelObserver) OnBatchStart(ctx context.Context, event *BatchStartEvent) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("batch_start", trace.WithAttributes(
			attribute.Int("requests", event.Requests),
			attribute.Int("chunk_size", event.ChunkSize),
		))
	}
}

func (o *OTelObserver) OnBatchEnd(ctx context.Context, event *BatchEndEvent) {
	o.batchDuration.Record(ctx, event.Duration.Seconds(), metric.WithAttributes(
		attribute.String("worker_id", event.WorkerID),
	))

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent("batch_end", trace.WithAttributes(
			attribute.Int("successes", event.Successes),
			attribute.Int("failures", event.Failures),
		))
	}
}
