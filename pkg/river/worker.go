// Package river provides integration between the durable wrapper and
// River queue.
//
// This package provides a generic worker adapter that runs durable
// functions as River jobs. It handles:
//   - Mapping River job IDs to durable worker identities
//   - Reopening the invocation log on retry so interrupted jobs replay
//   - Error classification for River's retry logic
package river

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/riverqueue/river"

	"oplog/pkg/durable"
	"oplog/pkg/oplog"
)

// JobArgs is the interface that River job args must implement.
type JobArgs interface {
	river.JobArgs
}

// DurableWorker is a River worker that executes a durable function.
// It implements river.Worker for a specific JobArgs type.
//
// Each job gets its own invocation log keyed by the River job ID, so a
// retried job resumes in replay mode and skips work it already
// completed.
//
// Type parameters:
//   - Args: The River job args type (must implement JobArgs)
type DurableWorker[Args JobArgs] struct {
	river.WorkerDefaults[Args]

	// OpenLog opens the invocation log for a worker identity. Called
	// once per job attempt; the same identity maps to the same log
	// across retries.
	OpenLog func(ctx context.Context, workerID string) (oplog.Log, error)

	// Run is the durable function body. It issues calls through the
	// worker and returns the job's final error.
	Run func(ctx context.Context, w *durable.Worker, args Args) error

	// Options are passed to every worker created by this adapter.
	Options []durable.WorkerOption
}

// NewDurableWorker creates a new DurableWorker with the given configuration.
func NewDurableWorker[Args JobArgs](
	openLog func(ctx context.Context, workerID string) (oplog.Log, error),
	run func(ctx context.Context, w *durable.Worker, args Args) error,
	opts ...durable.WorkerOption,
) *DurableWorker[Args] {
	return &DurableWorker[Args]{
		OpenLog: openLog,
		Run:     run,
		Options: opts,
	}
}

// Work executes the durable function for the given job.
// The River job ID is used as the worker identity for traceability.
func (dw *DurableWorker[Args]) Work(ctx context.Context, job *river.Job[Args]) error {
	workerID := fmt.Sprintf("%d", job.ID)

	log, err := dw.OpenLog(ctx, workerID)
	if err != nil {
		return fmt.Errorf("failed to open invocation log for job %s: %w", workerID, err)
	}
	if closer, ok := log.(io.Closer); ok {
		defer closer.Close()
	}

	opts := append([]durable.WorkerOption{durable.WithID(workerID)}, dw.Options...)
	w, err := durable.NewWorker(ctx, log, opts...)
	if err != nil {
		return fmt.Errorf("failed to create worker for job %s: %w", workerID, err)
	}

	if err := dw.Run(ctx, w, job.Args); err != nil {
		return classifyError(err)
	}
	return nil
}

// DispatchWorker is a River worker that fans a batch of payloads out
// through a bounded dispatcher. Partial failures are reported through
// OnOutcome rather than failing the job, matching the dispatcher's
// no-cancellation contract.
type DispatchWorker[Args JobArgs, P, Out any] struct {
	river.WorkerDefaults[Args]

	// OpenLog opens the invocation log for a worker identity.
	OpenLog func(ctx context.Context, workerID string) (oplog.Log, error)

	// Payloads extracts the batch items from job args.
	Payloads func(args Args) []durable.BatchRequest[P]

	// Handler processes a single payload through the worker.
	Handler func(ctx context.Context, w *durable.Worker, req durable.BatchRequest[P]) (Out, error)

	// MaxConcurrency bounds in-flight handlers. Zero means
	// durable.DefaultMaxConcurrency.
	MaxConcurrency int

	// OnOutcome receives the batch outcome before the job completes.
	// Optional.
	OnOutcome func(ctx context.Context, outcome durable.BatchOutcome[Out])

	// Options are passed to every worker created by this adapter.
	Options []durable.WorkerOption
}

// Work fans the job's payloads out through the dispatcher.
func (dw *DispatchWorker[Args, P, Out]) Work(ctx context.Context, job *river.Job[Args]) error {
	workerID := fmt.Sprintf("%d", job.ID)

	log, err := dw.OpenLog(ctx, workerID)
	if err != nil {
		return fmt.Errorf("failed to open invocation log for job %s: %w", workerID, err)
	}
	if closer, ok := log.(io.Closer); ok {
		defer closer.Close()
	}

	opts := append([]durable.WorkerOption{durable.WithID(workerID)}, dw.Options...)
	w, err := durable.NewWorker(ctx, log, opts...)
	if err != nil {
		return fmt.Errorf("failed to create worker for job %s: %w", workerID, err)
	}

	limit := dw.MaxConcurrency
	if limit <= 0 {
		limit = durable.DefaultMaxConcurrency
	}

	outcome := durable.DispatchOn(ctx, w, dw.Payloads(job.Args), limit,
		func(ctx context.Context, req durable.BatchRequest[P]) (Out, error) {
			return dw.Handler(ctx, w, req)
		})

	if dw.OnOutcome != nil {
		dw.OnOutcome(ctx, outcome)
	}

	// The worker itself may have been poisoned by a fatal error even
	// though individual failures are reported per-request.
	if err := w.Err(); err != nil {
		return classifyError(err)
	}
	return nil
}

// classifyError converts durable wrapper errors to River-appropriate
// errors. This helps River decide whether to retry or discard the job.
func classifyError(err error) error {
	// A diverged or corrupt log cannot heal by retrying: the next
	// attempt would replay the same records and fail the same way.
	if oplog.IsFatal(err) {
		return river.JobCancel(err)
	}
	if errors.Is(err, oplog.ErrAppendDuringReplay) {
		return river.JobCancel(err)
	}

	// Context cancellation - don't retry, job was cancelled
	if errors.Is(err, context.Canceled) {
		return river.JobCancel(err)
	}

	// Deadline exceeded - allow retry with backoff
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Transport and provider errors are recorded outcomes; retrying the
	// job replays them deterministically, then continues live from
	// where the previous attempt stopped.
	return err
}
