package durable

import (
	"context"
	"time"

	"oplog/pkg/oplog"
)

// Session is a stateful resource an operation runs against, e.g. an
// interpreter holding user-defined state. A session is exclusively owned
// by the wrapper that created it and is never shared across calls
// running in parallel.
type Session[In, Out any] interface {
	Run(ctx context.Context, input In) (Out, error)
}

// Snapshotable is the optional capability a session can implement to let
// replay skip re-running operations: instead of executing again, the
// wrapper restores the serialized session state captured after the
// original run.
type Snapshotable[Snap any] interface {
	// SnapshotSupported reports whether this session instance can
	// currently take and restore snapshots.
	SnapshotSupported() bool

	TakeSnapshot(ctx context.Context) (Snap, error)
	RestoreSnapshot(ctx context.Context, snap Snap) error
}

// TakeSessionSnapshot captures a snapshot from sess, failing fast with a
// SessionContractError when sess does not support snapshots.
func TakeSessionSnapshot[Snap any](ctx context.Context, sess any) (Snap, error) {
	var zero Snap
	s, ok := sess.(Snapshotable[Snap])
	if !ok || !s.SnapshotSupported() {
		return zero, &oplog.SessionContractError{Op: "take"}
	}
	return s.TakeSnapshot(ctx)
}

// RestoreSessionSnapshot restores a snapshot into sess, failing fast
// with a SessionContractError when sess does not support snapshots.
func RestoreSessionSnapshot[Snap any](ctx context.Context, sess any, snap Snap) error {
	s, ok := sess.(Snapshotable[Snap])
	if !ok || !s.SnapshotSupported() {
		return &oplog.SessionContractError{Op: "restore"}
	}
	return s.RestoreSnapshot(ctx, snap)
}

// sessionResult is the record body for session-oriented operations: the
// operation outcome plus, for snapshot-capable sessions, the state
// captured right after the live run. It is recorded whether the
// operation succeeded or failed, so the record itself always persists.
type sessionResult[Out, Snap any] struct {
	OK       bool           `json:"ok"`
	Value    *Out           `json:"value,omitempty"`
	Failure  *oplog.OpError `json:"failure,omitempty"`
	Snapshot *Snap          `json:"snapshot,omitempty"`
}

// CallOnSession runs a stateful operation durably against sess.
//
// When sess supports snapshots, a live run additionally captures a
// snapshot and persists it with the outcome; the matching replay step
// restores the snapshot and returns the recorded outcome without running
// the operation, so expensive or non-repeatable work is skipped during
// recovery. When sess does not support snapshots, the record is still
// written for ordering and audit, but replay must run the operation
// again: there is no other way to reconstruct the session's state.
func CallOnSession[In, Out, Snap any](ctx context.Context, w *Worker, op oplog.OperationID, input In, sess Session[In, Out]) (Out, error) {
	var zero Out

	if recordingSuppressed(ctx) {
		return sess.Run(ctx, input)
	}
	if err := w.Err(); err != nil {
		return zero, err
	}

	capable := false
	if s, ok := any(sess).(Snapshotable[Snap]); ok {
		capable = s.SnapshotSupported()
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
			if capable {
				return replaySessionFromRecord[In, Out, Snap](ctx, w, op, sess, rec, start)
			}
			// No snapshot to restore: the recorded entry covers
			// ordering only, and the operation has to run again.
			out, callErr := sess.Run(suppressRecording(ctx), input)
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
		// Log exhausted: execute live below.
	}

	out, callErr := sess.Run(suppressRecording(ctx), input)

	result := sessionResult[Out, Snap]{OK: callErr == nil}
	if callErr != nil {
		result.Failure = oplog.FromError(callErr)
	} else {
		result.Value = &out
	}
	if capable {
		snap, err := TakeSessionSnapshot[Snap](ctx, sess)
		if err != nil {
			// Without the snapshot the record would replay
			// incorrectly; leave no record so a restart re-executes
			// this call live.
			return zero, err
		}
		result.Snapshot = &snap
	}

	seq, err := w.appendRecord(ctx, op, input, encodeValue(w.codec, result, nil))
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

// replaySessionFromRecord decodes a snapshot-bearing record, restores the
// session state and returns the recorded outcome.
func replaySessionFromRecord[In, Out, Snap any](ctx context.Context, w *Worker, op oplog.OperationID, sess Session[In, Out], rec oplog.Record, start time.Time) (Out, error) {
	var zero Out

	var result sessionResult[Out, Snap]
	if err := w.codec.Decode(rec.Outcome.Value, &result); err != nil {
		return zero, w.fail(err)
	}

	if result.Snapshot != nil {
		if err := RestoreSessionSnapshot[Snap](ctx, sess, *result.Snapshot); err != nil {
			return zero, w.fail(err)
		}
	}

	var callErr error
	var out Out
	if result.OK {
		if result.Value != nil {
			out = *result.Value
		}
	} else {
		callErr = result.Failure
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
