package oplog

import "context"

// Log is the invocation log for one worker instance. The log is
// append-only and FIFO: Append is the only mutator, PeekNext/Advance
// consume it front-to-back during replay. A Log is exclusively owned by
// one worker and is never shared between workers.
//
// Durability of the backing store is the host's concern; this interface
// specifies only the logical contract.
type Log interface {
	// Append stores a record, assigns it the next sequence number and
	// returns it. Appending while unconsumed records remain in front of
	// the replay cursor returns ErrAppendDuringReplay.
	Append(ctx context.Context, rec Record) (uint64, error)

	// PeekNext returns the record at the replay cursor without
	// consuming it. ok is false when the log is exhausted.
	PeekNext(ctx context.Context) (rec Record, ok bool, err error)

	// Advance consumes the record last returned by PeekNext.
	Advance(ctx context.Context) error

	// Replayable reports whether unconsumed records remain. A worker
	// constructed over a replayable log starts in replay mode.
	Replayable(ctx context.Context) (bool, error)
}
