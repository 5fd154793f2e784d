package durable

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"oplog/pkg/oplog"
)

// Worker is the unit of execution that owns one invocation log and one
// mode controller. All durable calls made on behalf of a worker go
// through the same log, so a restarted worker pointed at its old log
// replays the original run call for call.
type Worker struct {
	id       string
	log      oplog.Log
	codec    oplog.Codec
	mode     *ModeController
	observer Observer

	// replayMu makes each peek-assert-advance sequence one atomic step;
	// fan-out calls replaying in parallel otherwise interleave their
	// cursor reads.
	replayMu sync.Mutex

	failMu   sync.Mutex
	fatalErr error
}

// WorkerOption configures a Worker at construction time.
type WorkerOption func(*Worker)

// WithCodec sets the record codec. Defaults to JSONCodec.
func WithCodec(c oplog.Codec) WorkerOption {
	return func(w *Worker) { w.codec = c }
}

// WithObserver sets the observer notified of call and batch events.
func WithObserver(o Observer) WorkerOption {
	return func(w *Worker) {
		if o != nil {
			w.observer = o
		}
	}
}

// WithID sets the worker instance ID. Defaults to a random UUID. The ID
// must match the identity the log is keyed by.
func WithID(id string) WorkerOption {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

// NewWorker constructs a worker over the given log. The worker starts in
// Replay mode if the log holds unconsumed records, otherwise Live.
func NewWorker(ctx context.Context, log oplog.Log, opts ...WorkerOption) (*Worker, error) {
	w := &Worker{
		id:       uuid.NewString(),
		log:      log,
		codec:    oplog.JSONCodec{},
		observer: NoOpObserver{},
	}
	for _, opt := range opts {
		opt(w)
	}

	replayable, err := log.Replayable(ctx)
	if err != nil {
		return nil, fmt.Errorf("durable: inspect log: %w", err)
	}
	initial := Live
	if replayable {
		initial = Replay
	}
	w.mode = NewModeController(initial)
	return w, nil
}

// ID returns the worker instance ID.
func (w *Worker) ID() string { return w.id }

// Mode returns the worker's current execution mode.
func (w *Worker) Mode() Mode { return w.mode.Mode() }

// Err returns the fatal error that stopped the worker, if any. Once a
// worker observes an ordering violation, codec failure or session
// contract violation, every subsequent call fails with that error.
func (w *Worker) Err() error {
	w.failMu.Lock()
	defer w.failMu.Unlock()
	return w.fatalErr
}

// fail records the first fatal error and returns it. Later calls keep
// returning the original error rather than guessing at recovery.
func (w *Worker) fail(err error) error {
	w.failMu.Lock()
	defer w.failMu.Unlock()
	if w.fatalErr == nil {
		w.fatalErr = err
	}
	return w.fatalErr
}

// Call runs fn durably under the given operation identity.
//
// In Replay mode the next log record is consumed and its outcome decoded
// and returned; fn is not invoked. When the log is exhausted the worker
// switches to Live once, and the very call that observed exhaustion
// executes live. In Live mode fn runs with nested recording suppressed,
// and its input and outcome are appended to the log — errors exactly as
// symmetrically as successes. fn's result is returned unchanged.
func Call[In, Out any](ctx context.Context, w *Worker, op oplog.OperationID, input In, fn func(context.Context, In) (Out, error)) (Out, error) {
	var zero Out

	// Only the outermost wrapper on a call path records; operations
	// composed inside fn run plain.
	if recordingSuppressed(ctx) {
		return fn(ctx, input)
	}
	if err := w.Err(); err != nil {
		return zero, err
	}

	start := time.Now()
	w.observer.OnCallStart(ctx, &CallStartEvent{
		WorkerID:  w.id,
		Operation: op,
		Mode:      w.mode.Mode(),
		StartTime: start,
	})

	if w.mode.Mode() == Replay {
		rec, ok, err := w.nextReplayRecord(ctx, op)
		if err != nil {
			return zero, err
		}
		if ok {
			out, callErr, decErr := decodeOutcome[Out](w.codec, rec.Outcome)
			if decErr != nil {
				return zero, w.fail(decErr)
			}
			w.observer.OnCallEnd(ctx, &CallEndEvent{
				WorkerID:  w.id,
				Operation: op,
				Mode:      Replay,
				Replayed:  true,
				Seq:       rec.Seq,
				Duration:  time.Since(start),
				Err:       callErr,
			})
			return out, callErr
		}
		// Log exhausted: this call falls through and executes live.
	}

	out, callErr := fn(suppressRecording(ctx), input)

	seq, err := w.appendRecord(ctx, op, input, encodeValue(w.codec, out, callErr))
	if err != nil {
		return zero, err
	}

	w.observer.OnCallEnd(ctx, &CallEndEvent{
		WorkerID:  w.id,
		Operation: op,
		Mode:      Live,
		Seq:       seq,
		Duration:  time.Since(start),
		Err:       callErr,
	})
	return out, callErr
}

// nextReplayRecord consumes the next record during replay, asserting its
// operation identity. ok is false when the log is exhausted, in which
// case the worker has already switched to Live.
func (w *Worker) nextReplayRecord(ctx context.Context, op oplog.OperationID) (oplog.Record, bool, error) {
	w.replayMu.Lock()
	defer w.replayMu.Unlock()

	// Another call may have exhausted the log while we waited.
	if w.mode.Mode() == Live {
		return oplog.Record{}, false, nil
	}

	rec, ok, err := w.log.PeekNext(ctx)
	if err != nil {
		return oplog.Record{}, false, fmt.Errorf("durable: peek log: %w", err)
	}
	if !ok {
		if w.mode.switchToLive() {
			w.observer.OnModeSwitch(ctx, &ModeSwitchEvent{
				WorkerID: w.id,
				Consumed: w.mode.Cursor(),
				At:       time.Now(),
			})
		}
		return oplog.Record{}, false, nil
	}

	if rec.Operation != op {
		return oplog.Record{}, false, w.fail(&oplog.OrderingViolationError{
			Seq:      rec.Seq,
			Recorded: rec.Operation,
			Called:   op,
		})
	}
	if err := w.log.Advance(ctx); err != nil {
		return oplog.Record{}, false, fmt.Errorf("durable: advance log: %w", err)
	}
	w.mode.advanceCursor()
	return rec, true, nil
}

// appendRecord encodes the input and appends one record. Encoding
// failures are fatal; the log could otherwise no longer be replayed
// deterministically.
func (w *Worker) appendRecord(ctx context.Context, op oplog.OperationID, input any, outcome outcomeOrErr) (uint64, error) {
	if outcome.err != nil {
		return 0, w.fail(outcome.err)
	}
	inputBytes, err := w.codec.Encode(input)
	if err != nil {
		return 0, w.fail(err)
	}
	seq, err := w.log.Append(ctx, oplog.Record{
		Operation: op,
		Input:     inputBytes,
		Outcome:   outcome.outcome,
	})
	if err != nil {
		return 0, fmt.Errorf("durable: append log: %w", err)
	}
	return seq, nil
}

// outcomeOrErr carries an encoded outcome or the codec error that
// prevented encoding it.
type outcomeOrErr struct {
	outcome oplog.Outcome
	err     error
}

// encodeValue encodes a call result into a record outcome. Successes and
// failures are recorded symmetrically: both are facts to replay.
func encodeValue(codec oplog.Codec, out any, callErr error) outcomeOrErr {
	if callErr != nil {
		data, err := codec.Encode(oplog.FromError(callErr))
		if err != nil {
			return outcomeOrErr{err: err}
		}
		return outcomeOrErr{outcome: oplog.Outcome{OK: false, Failure: data}}
	}
	data, err := codec.Encode(out)
	if err != nil {
		return outcomeOrErr{err: err}
	}
	return outcomeOrErr{outcome: oplog.Outcome{OK: true, Value: data}}
}

// decodeOutcome decodes a recorded outcome back into a typed result.
func decodeOutcome[Out any](codec oplog.Codec, o oplog.Outcome) (Out, error, error) {
	var zero Out
	if o.OK {
		var out Out
		if err := codec.Decode(o.Value, &out); err != nil {
			return zero, nil, err
		}
		return out, nil, nil
	}
	var opErr oplog.OpError
	if err := codec.Decode(o.Failure, &opErr); err != nil {
		return zero, nil, err
	}
	return zero, &opErr, nil
}

// recordingKey marks a context as already inside a durable call.
type recordingKey struct{}

func suppressRecording(ctx context.Context) context.Context {
	return context.WithValue(ctx, recordingKey{}, true)
}

func recordingSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(recordingKey{}).(bool)
	return v
}
