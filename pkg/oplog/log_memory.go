package oplog

import (
	"context"
	"sync"
)

// MemoryLog is a mutex-guarded in-process log for testing and local
// development. It loses data on restart, so it only exercises replay when
// pre-seeded with records from a previous worker's run.
type MemoryLog struct {
	mu      sync.Mutex
	records []Record
	cursor  int
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// NewMemoryLogFrom creates a log pre-populated with recs and the replay
// cursor at the front, simulating a worker restart over an existing log.
func NewMemoryLogFrom(recs []Record) *MemoryLog {
	copied := make([]Record, len(recs))
	copy(copied, recs)
	return &MemoryLog{records: copied}
}

func (l *MemoryLog) Append(ctx context.Context, rec Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor < len(l.records) {
		return 0, ErrAppendDuringReplay
	}
	rec.Seq = uint64(len(l.records)) + 1
	l.records = append(l.records, rec)
	l.cursor = len(l.records)
	return rec.Seq, nil
}

func (l *MemoryLog) PeekNext(ctx context.Context) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor >= len(l.records) {
		return Record{}, false, nil
	}
	return l.records[l.cursor], true, nil
}

func (l *MemoryLog) Advance(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cursor >= len(l.records) {
		return ErrNothingToAdvance
	}
	l.cursor++
	return nil
}

func (l *MemoryLog) Replayable(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.records), nil
}

// Records returns a copy of all appended records, for inspection in tests.
func (l *MemoryLog) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}
