package durable

import (
	"context"
	"log/slog"
)

// SlogObserver implements Observer using Go's structured logging
// (log/slog). This emits structured logs for all execution events.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	observer := durable.NewSlogObserver(logger, slog.LevelInfo)
//	w, _ := durable.NewWorker(ctx, log, durable.WithObserver(observer))
type SlogObserver struct {
	logger   *slog.Logger
	minLevel slog.Level
}

// NewSlogObserver creates an observer that logs to the given slog.Logger.
// Only events at or above minLevel will be logged.
func NewSlogObserver(logger *slog.Logger, minLevel slog.Level) *SlogObserver {
	return &SlogObserver{
		logger:   logger,
		minLevel: minLevel,
	}
}

func (o *SlogObserver) OnCallStart(ctx context.Context, event *CallStartEvent) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "durable call started",
			slog.String("worker_id", event.WorkerID),
			slog.String("operation", event.Operation.String()),
			slog.String("mode", event.Mode.String()),
		)
	}
}

func (o *SlogObserver) OnCallEnd(ctx context.Context, event *CallEndEvent) {
	if event.Err != nil {
		if o.minLevel <= slog.LevelWarn {
			o.logger.WarnContext(ctx, "durable call failed",
				slog.String("worker_id", event.WorkerID),
				slog.String("operation", event.Operation.String()),
				slog.String("mode", event.Mode.String()),
				slog.Bool("replayed", event.Replayed),
				slog.Uint64("seq", event.Seq),
				slog.Duration("duration", event.Duration),
				slog.String("error", event.Err.Error()),
			)
		}
	} else {
		if o.minLevel <= slog.LevelDebug {
			o.logger.DebugContext(ctx, "durable call completed",
				slog.String("worker_id", event.WorkerID),
				slog.String("operation", event.Operation.String()),
				slog.String("mode", event.Mode.String()),
				slog.Bool("replayed", event.Replayed),
				slog.Uint64("seq", event.Seq),
				slog.Duration("duration", event.Duration),
			)
		}
	}
}

func (o *SlogObserver) OnModeSwitch(ctx context.Context, event *ModeSwitchEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "replay exhausted, switching to live",
			slog.String("worker_id", event.WorkerID),
			slog.Uint64("records_replayed", event.Consumed),
		)
	}
}

func (o *SlogObserver) OnBatchStart(ctx context.Context, event *BatchStartEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "batch dispatch started",
			slog.String("worker_id", event.WorkerID),
			slog.Int("requests", event.Requests),
			slog.Int("chunk_size", event.ChunkSize),
		)
	}
}

func (o *SlogObserver) OnBatchEnd(ctx context.Context, event *BatchEndEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "batch dispatch completed",
			slog.String("worker_id", event.WorkerID),
			slog.Int("requests", event.Requests),
			slog.Int("successes", event.Successes),
			slog.Int("failures", event.Failures),
			slog.Duration("duration", event.Duration),
		)
	}
}
