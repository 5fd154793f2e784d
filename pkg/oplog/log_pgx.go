package oplog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxLog implements Log using github.com/jackc/pgx/v5.
// It is designed to work with pgxpool, similar to River.
type PgxLog struct {
	pool      *pgxpool.Pool
	tableName string
	workerID  string

	mu        sync.Mutex
	cursorSeq uint64
}

// NewPgxLog creates a Postgres-backed log for one worker instance.
func NewPgxLog(pool *pgxpool.Pool, tableName, workerID string) *PgxLog {
	if tableName == "" {
		tableName = "oplog_records"
	}
	return &PgxLog{
		pool:      pool,
		tableName: tableName,
		workerID:  workerID,
	}
}

// InitSchema creates the necessary table if it doesn't exist.
func (l *PgxLog) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			worker_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			namespace TEXT NOT NULL,
			name TEXT NOT NULL,
			input BYTEA,
			ok BOOLEAN NOT NULL,
			value BYTEA,
			failure BYTEA,
			created_at TIMESTAMPTZ,
			PRIMARY KEY (worker_id, seq)
		);
	`, l.tableName)

	_, err := l.pool.Exec(ctx, query)
	return err
}

func (l *PgxLog) Append(ctx context.Context, rec Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lastSeq *int64
	query := fmt.Sprintf("SELECT MAX(seq) FROM %s WHERE worker_id = $1", l.tableName)
	if err := tx.QueryRow(ctx, query, l.workerID).Scan(&lastSeq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}

	last := uint64(0)
	if lastSeq != nil {
		last = uint64(*lastSeq)
	}
	if l.cursorSeq < last {
		return 0, ErrAppendDuringReplay
	}

	seq := last + 1
	insert := fmt.Sprintf(`
		INSERT INTO %s (worker_id, seq, namespace, name, input, ok, value, failure, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, l.tableName)

	if _, err := tx.Exec(ctx, insert,
		l.workerID, int64(seq), rec.Operation.Namespace, rec.Operation.Name,
		rec.Input, rec.Outcome.OK, rec.Outcome.Value, rec.Outcome.Failure, time.Now(),
	); err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}

	l.cursorSeq = seq
	return seq, nil
}

func (l *PgxLog) fetchAfter(ctx context.Context, afterSeq uint64) (Record, bool, error) {
	query := fmt.Sprintf(`
		SELECT seq, namespace, name, input, ok, value, failure
		FROM %s
		WHERE worker_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT 1
	`, l.tableName)

	var (
		seq            int64
		namespace, nm  string
		input          []byte
		ok             bool
		value, failure []byte
	)
	err := l.pool.QueryRow(ctx, query, l.workerID, int64(afterSeq)).Scan(
		&seq, &namespace, &nm, &input, &ok, &value, &failure,
	)
	if err == pgx.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("peek record: %w", err)
	}

	return Record{
		Seq:       uint64(seq),
		Operation: OperationID{Namespace: namespace, Name: nm},
		Input:     input,
		Outcome:   Outcome{OK: ok, Value: value, Failure: failure},
	}, true, nil
}

func (l *PgxLog) PeekNext(ctx context.Context) (Record, bool, error) {
	l.mu.Lock()
	cursor := l.cursorSeq
	l.mu.Unlock()
	return l.fetchAfter(ctx, cursor)
}

func (l *PgxLog) Advance(ctx context.Context) error {
	l.mu.Lock()
	cursor := l.cursorSeq
	l.mu.Unlock()

	rec, ok, err := l.fetchAfter(ctx, cursor)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNothingToAdvance
	}

	l.mu.Lock()
	if rec.Seq > l.cursorSeq {
		l.cursorSeq = rec.Seq
	}
	l.mu.Unlock()
	return nil
}

func (l *PgxLog) Replayable(ctx context.Context) (bool, error) {
	l.mu.Lock()
	cursor := l.cursorSeq
	l.mu.Unlock()

	_, ok, err := l.fetchAfter(ctx, cursor)
	return ok, err
}
