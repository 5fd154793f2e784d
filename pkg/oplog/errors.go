package oplog

import (
	"errors"
	"fmt"
)

// CodecError indicates a record could not be encoded or decoded (schema
// drift, corruption, version mismatch). During replay this is fatal: the
// log can no longer be interpreted deterministically.
type CodecError struct {
	Op    string // "encode" or "decode"
	Cause error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("oplog: codec %s failed: %v", e.Op, e.Cause)
}

func (e *CodecError) Unwrap() error { return e.Cause }

// OrderingViolationError indicates that during replay the next record in
// the log belongs to a different operation than the one being called.
// The replayed call sequence has diverged from the original run; no
// correct recovery is possible and the worker must stop.
type OrderingViolationError struct {
	Seq      uint64
	Recorded OperationID
	Called   OperationID
}

func (e *OrderingViolationError) Error() string {
	return fmt.Sprintf("oplog: ordering violation at seq %d: log has %q, caller invoked %q",
		e.Seq, e.Recorded, e.Called)
}

// SessionContractError indicates snapshot take/restore was invoked on a
// session that does not support snapshots. This is a programming error
// and fails fast.
type SessionContractError struct {
	Op string // "take" or "restore"
}

func (e *SessionContractError) Error() string {
	return fmt.Sprintf("oplog: snapshot %s on a session without snapshot support", e.Op)
}

// Sentinel errors shared by log implementations.
var (
	// ErrAppendDuringReplay is returned by Append while unconsumed
	// records remain in front of the replay cursor. Appending is only
	// legal once the log has been read to the end.
	ErrAppendDuringReplay = errors.New("oplog: append while replay records remain")

	// ErrNothingToAdvance is returned by Advance when no record has been
	// peeked or the log is exhausted.
	ErrNothingToAdvance = errors.New("oplog: advance past end of log")
)

// IsFatal reports whether err belongs to the unrecoverable class: the
// worker that observed it must stop rather than produce a possibly wrong
// result.
func IsFatal(err error) bool {
	var (
		ce *CodecError
		oe *OrderingViolationError
		se *SessionContractError
	)
	return errors.As(err, &ce) || errors.As(err, &oe) || errors.As(err, &se)
}
