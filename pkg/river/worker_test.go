package river

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"oplog/pkg/durable"
	"oplog/pkg/oplog"
)

// TestJobArgs is a simple job args type for testing.
type TestJobArgs struct {
	Value string `json:"value"`
}

func (TestJobArgs) Kind() string { return "test_job" }

// Verify TestJobArgs implements JobArgs
var _ JobArgs = TestJobArgs{}

// newTestJob creates a test job with the given ID and args.
func newTestJob[T river.JobArgs](id int64, args T) *river.Job[T] {
	return &river.Job[T]{
		JobRow: &rivertype.JobRow{
			ID: id,
		},
		Args: args,
	}
}

func memoryOpener() func(ctx context.Context, workerID string) (oplog.Log, error) {
	return func(ctx context.Context, workerID string) (oplog.Log, error) {
		return oplog.NewMemoryLog(), nil
	}
}

func TestDurableWorker_Work(t *testing.T) {
	var calls int32

	worker := NewDurableWorker[TestJobArgs](
		memoryOpener(),
		func(ctx context.Context, w *durable.Worker, args TestJobArgs) error {
			n, err := durable.Call(ctx, w, oplog.Op("strings", "length"), args.Value,
				func(ctx context.Context, s string) (int, error) {
					atomic.AddInt32(&calls, 1)
					return len(s), nil
				})
			if err != nil {
				return err
			}
			if n != 5 {
				t.Errorf("Expected length 5, got %d", n)
			}
			return nil
		},
	)

	job := newTestJob(123, TestJobArgs{Value: "hello"})

	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("Work failed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 live call, got %d", got)
	}
}

func TestDurableWorker_WorkerIdentity(t *testing.T) {
	var capturedID string

	worker := NewDurableWorker[TestJobArgs](
		memoryOpener(),
		func(ctx context.Context, w *durable.Worker, args TestJobArgs) error {
			capturedID = w.ID()
			return nil
		},
	)

	job := newTestJob(42, TestJobArgs{Value: "test"})

	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	// Verify worker identity matches River job ID
	if capturedID != "42" {
		t.Errorf("Expected worker ID %q, got %q", "42", capturedID)
	}
}

func TestDurableWorker_ResumesFromLog(t *testing.T) {
	// Simulate River retrying a job: the second attempt reopens the log
	// written by the first attempt and must not re-execute completed
	// calls.
	var liveCalls int32
	var prior *oplog.MemoryLog
	transient := errors.New("downstream flake")

	openLog := func(ctx context.Context, workerID string) (oplog.Log, error) {
		if prior == nil {
			prior = oplog.NewMemoryLog()
			return prior, nil
		}
		return oplog.NewMemoryLogFrom(prior.Records()), nil
	}

	attempt := 0
	worker := NewDurableWorker[TestJobArgs](
		openLog,
		func(ctx context.Context, w *durable.Worker, args TestJobArgs) error {
			attempt++
			for _, name := range []string{"first", "second"} {
				_, err := durable.Call(ctx, w, oplog.Op("steps", name), args.Value,
					func(ctx context.Context, s string) (string, error) {
						atomic.AddInt32(&liveCalls, 1)
						return s, nil
					})
				if err != nil {
					return err
				}
			}
			if attempt == 1 {
				return transient
			}
			return nil
		},
	)

	job := newTestJob(7, TestJobArgs{Value: "payload"})

	err := worker.Work(context.Background(), job)
	if !errors.Is(err, transient) {
		t.Fatalf("Expected transient error from first attempt, got: %v", err)
	}
	if got := atomic.LoadInt32(&liveCalls); got != 2 {
		t.Fatalf("Expected 2 live calls on first attempt, got %d", got)
	}

	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("Second attempt failed: %v", err)
	}

	// Both calls were satisfied from the log on the retry
	if got := atomic.LoadInt32(&liveCalls); got != 2 {
		t.Errorf("Expected no additional live calls on retry, got %d total", got)
	}
}

func TestDurableWorker_FatalErrorCancelsJob(t *testing.T) {
	// An ordering violation means the code diverged from its log.
	// Retrying cannot fix that, so the job must be cancelled.
	var prior *oplog.MemoryLog

	openLog := func(ctx context.Context, workerID string) (oplog.Log, error) {
		if prior == nil {
			prior = oplog.NewMemoryLog()
			return prior, nil
		}
		return oplog.NewMemoryLogFrom(prior.Records()), nil
	}

	first := true
	worker := NewDurableWorker[TestJobArgs](
		openLog,
		func(ctx context.Context, w *durable.Worker, args TestJobArgs) error {
			name := "alpha"
			if !first {
				name = "beta" // diverge from the recorded operation
			}
			_, err := durable.Call(ctx, w, oplog.Op("steps", name), args.Value,
				func(ctx context.Context, s string) (string, error) {
					return s, nil
				})
			if err != nil {
				return err
			}
			if first {
				first = false
				return errors.New("force retry")
			}
			return nil
		},
	)

	job := newTestJob(8, TestJobArgs{Value: "x"})

	if err := worker.Work(context.Background(), job); err == nil {
		t.Fatal("Expected error from first attempt")
	}

	err := worker.Work(context.Background(), job)
	if err == nil {
		t.Fatal("Expected error from diverged retry, got nil")
	}

	// River's cancel wrapper preserves the cause, so the fatal error
	// stays inspectable through the chain.
	var ordErr *oplog.OrderingViolationError
	if !errors.As(err, &ordErr) {
		t.Errorf("Expected ordering violation in chain, got: %v", err)
	}
}

// BatchTestJobArgs for dispatch worker testing
type BatchTestJobArgs struct {
	Values []string `json:"values"`
}

func (BatchTestJobArgs) Kind() string { return "batch_test_job" }

func TestDispatchWorker_Work(t *testing.T) {
	var calls int32
	var captured durable.BatchOutcome[int]

	worker := &DispatchWorker[BatchTestJobArgs, string, int]{
		OpenLog: memoryOpener(),
		Payloads: func(args BatchTestJobArgs) []durable.BatchRequest[string] {
			reqs := make([]durable.BatchRequest[string], len(args.Values))
			for i, v := range args.Values {
				reqs[i] = durable.BatchRequest[string]{RequestID: v, Payload: v}
			}
			return reqs
		},
		Handler: func(ctx context.Context, w *durable.Worker, req durable.BatchRequest[string]) (int, error) {
			atomic.AddInt32(&calls, 1)
			if req.Payload == "bb" {
				return 0, oplog.Provider("bad_item", "rejected", nil)
			}
			return len(req.Payload), nil
		},
		MaxConcurrency: 2,
		OnOutcome: func(ctx context.Context, outcome durable.BatchOutcome[int]) {
			captured = outcome
		},
	}

	job := newTestJob(999, BatchTestJobArgs{Values: []string{"a", "bb", "ccc"}})

	if err := worker.Work(context.Background(), job); err != nil {
		t.Fatalf("Work failed: %v", err)
	}

	// Verify all items were processed
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 handler calls, got %d", got)
	}
	if len(captured.Successes) != 2 {
		t.Errorf("Expected 2 successes, got %d", len(captured.Successes))
	}
	if len(captured.Failures) != 1 {
		t.Errorf("Expected 1 failure, got %d", len(captured.Failures))
	}
}
