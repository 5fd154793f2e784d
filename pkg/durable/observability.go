package durable

import (
	"context"
	"time"

	"oplog/pkg/oplog"
)

// Observer is the interface for observing durable execution events.
// Implementations can emit metrics, logs, or traces to their
// observability backend.
//
// All Observer methods are called synchronously on the call path, so
// implementations should be fast and non-blocking. For expensive work
// (e.g. network calls), buffer events and process them asynchronously.
//
// Example implementations:
//   - Prometheus metrics collector
//   - OpenTelemetry tracer
//   - Structured logger (log/slog)
type Observer interface {
	// OnCallStart is called when a durable call begins, live or replayed.
	OnCallStart(ctx context.Context, event *CallStartEvent)

	// OnCallEnd is called when a durable call completes.
	OnCallEnd(ctx context.Context, event *CallEndEvent)

	// OnModeSwitch is called when a worker exhausts its log and switches
	// from replay to live execution. At most once per worker.
	OnModeSwitch(ctx context.Context, event *ModeSwitchEvent)

	// OnBatchStart is called when a fan-out dispatch begins.
	OnBatchStart(ctx context.Context, event *BatchStartEvent)

	// OnBatchEnd is called when a fan-out dispatch completes.
	OnBatchEnd(ctx context.Context, event *BatchEndEvent)
}

// CallStartEvent is emitted when a durable call begins.
type CallStartEvent struct {
	WorkerID  string
	Operation oplog.OperationID
	Mode      Mode
	StartTime time.Time
}

// CallEndEvent is emitted when a durable call completes.
type CallEndEvent struct {
	WorkerID  string
	Operation oplog.OperationID
	Mode      Mode
	Replayed  bool // satisfied from the log, the real operation did not run
	Seq       uint64
	Duration  time.Duration
	Err       error // nil if successful
}

// ModeSwitchEvent is emitted on the replay-to-live transition.
type ModeSwitchEvent struct {
	WorkerID string
	Consumed uint64 // records replayed before the switch
	At       time.Time
}

// BatchStartEvent is emitted when a fan-out dispatch begins.
type BatchStartEvent struct {
	WorkerID  string
	Requests  int
	ChunkSize int
	StartTime time.Time
}

// BatchEndEvent is emitted when a fan-out dispatch completes.
type BatchEndEvent struct {
	WorkerID  string
	Requests  int
	Successes int
	Failures  int
	Duration  time.Duration
}

// NoOpObserver is a no-op implementation of Observer.
// Useful as a base for partial implementations.
type NoOpObserver struct{}

func (NoOpObserver) OnCallStart(ctx context.Context, event *CallStartEvent)   {}
func (NoOpObserver) OnCallEnd(ctx context.Context, event *CallEndEvent)       {}
func (NoOpObserver) OnModeSwitch(ctx context.Context, event *ModeSwitchEvent) {}
func (NoOpObserver) OnBatchStart(ctx context.Context, event *BatchStartEvent) {}
func (NoOpObserver) OnBatchEnd(ctx context.Context, event *BatchEndEvent)     {}

// MultiObserver combines multiple observers into one.
// Events are sent to all observers in order.
type MultiObserver struct {
	Observers []Observer
}

func (m *MultiObserver) OnCallStart(ctx context.Context, event *CallStartEvent) {
	for _, obs := range m.Observers {
		obs.OnCallStart(ctx, event)
	}
}

func (m *MultiObserver) OnCallEnd(ctx context.Context, event *CallEndEvent) {
	for _, obs := range m.Observers {
		obs.OnCallEnd(ctx, event)
	}
}

func (m *MultiObserver) OnModeSwitch(ctx context.Context, event *ModeSwitchEvent) {
	for _, obs := range m.Observers {
		obs.OnModeSwitch(ctx, event)
	}
}

func (m *MultiObserver) OnBatchStart(ctx context.Context, event *BatchStartEvent) {
	for _, obs := range m.Observers {
		obs.OnBatchStart(ctx, event)
	}
}

func (m *MultiObserver) OnBatchEnd(ctx context.Context, event *BatchEndEvent) {
	for _, obs := range m.Observers {
		obs.OnBatchEnd(ctx, event)
	}
}
