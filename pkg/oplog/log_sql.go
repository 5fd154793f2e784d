package oplog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// SQLDialect defines the SQL syntax variant.
type SQLDialect string

const (
	DialectSQLite   SQLDialect = "sqlite"
	DialectPostgres SQLDialect = "postgres"
	DialectMySQL    SQLDialect = "mysql"
)

// SQLLog implements Log using database/sql. It supports SQLite, Postgres
// and MySQL. Rows are keyed by worker instance ID plus sequence number;
// the replay cursor lives in memory, since it only has meaning for the
// lifetime of the worker that owns the log.
type SQLLog struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	workerID  string

	mu        sync.Mutex
	cursorSeq uint64 // highest consumed sequence number
}

// NewSQLLog creates a SQL-backed log for one worker instance. The caller
// is responsible for opening the *sql.DB with their preferred driver.
func NewSQLLog(db *sql.DB, tableName string, dialect SQLDialect, workerID string) *SQLLog {
	if tableName == "" {
		tableName = "oplog_records"
	}
	return &SQLLog{
		db:        db,
		tableName: tableName,
		dialect:   dialect,
		workerID:  workerID,
	}
}

// InitSchema creates the necessary table if it doesn't exist.
// This is a helper for "migration-free" usage.
func (l *SQLLog) InitSchema(ctx context.Context) error {
	blobType := "BLOB"
	intType := "BIGINT"
	timestampType := "TIMESTAMP"

	if l.dialect == DialectPostgres {
		blobType = "BYTEA"
	} else if l.dialect == DialectMySQL {
		timestampType = "DATETIME"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			worker_id TEXT NOT NULL,
			seq %s NOT NULL,
			namespace TEXT NOT NULL,
			name TEXT NOT NULL,
			input %s,
			ok %s NOT NULL,
			value %s,
			failure %s,
			created_at %s,
			PRIMARY KEY (worker_id, seq)
		);
	`, l.tableName, intType, blobType, intType, blobType, blobType, timestampType)

	if l.dialect == DialectMySQL {
		// MySQL cannot index an unsized TEXT primary key.
		query = fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				worker_id VARCHAR(128) NOT NULL,
				seq BIGINT NOT NULL,
				namespace TEXT NOT NULL,
				name TEXT NOT NULL,
				input BLOB,
				ok BIGINT NOT NULL,
				value BLOB,
				failure BLOB,
				created_at DATETIME,
				PRIMARY KEY (worker_id, seq)
			);
		`, l.tableName)
	}

	_, err := l.db.ExecContext(ctx, query)
	return err
}

func (l *SQLLog) placeholders(n int) []string {
	out := make([]string, n)
	for i := range out {
		if l.dialect == DialectPostgres {
			out[i] = fmt.Sprintf("$%d", i+1)
		} else {
			out[i] = "?"
		}
	}
	return out
}

func (l *SQLLog) Append(ctx context.Context, rec Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ph := l.placeholders(2)
	var lastSeq sql.NullInt64
	query := fmt.Sprintf("SELECT MAX(seq) FROM %s WHERE worker_id = %s", l.tableName, ph[0])
	if err := tx.QueryRowContext(ctx, query, l.workerID).Scan(&lastSeq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}

	last := uint64(0)
	if lastSeq.Valid {
		last = uint64(lastSeq.Int64)
	}
	if l.cursorSeq < last {
		return 0, ErrAppendDuringReplay
	}

	seq := last + 1
	ph = l.placeholders(9)
	insert := fmt.Sprintf(`
		INSERT INTO %s (worker_id, seq, namespace, name, input, ok, value, failure, created_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
	`, l.tableName, ph[0], ph[1], ph[2], ph[3], ph[4], ph[5], ph[6], ph[7], ph[8])

	okVal := 0
	if rec.Outcome.OK {
		okVal = 1
	}
	if _, err := tx.ExecContext(ctx, insert,
		l.workerID, int64(seq), rec.Operation.Namespace, rec.Operation.Name,
		rec.Input, okVal, rec.Outcome.Value, rec.Outcome.Failure, time.Now(),
	); err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}

	l.cursorSeq = seq
	return seq, nil
}

func (l *SQLLog) PeekNext(ctx context.Context) (Record, bool, error) {
	l.mu.Lock()
	cursor := l.cursorSeq
	l.mu.Unlock()
	return l.fetchAfter(ctx, cursor)
}

func (l *SQLLog) fetchAfter(ctx context.Context, afterSeq uint64) (Record, bool, error) {
	ph := l.placeholders(2)
	query := fmt.Sprintf(`
		SELECT seq, namespace, name, input, ok, value, failure
		FROM %s
		WHERE worker_id = %s AND seq > %s
		ORDER BY seq ASC
		LIMIT 1
	`, l.tableName, ph[0], ph[1])

	var (
		seq            int64
		namespace, nm  string
		input          []byte
		okVal          int64
		value, failure []byte
	)
	err := l.db.QueryRowContext(ctx, query, l.workerID, int64(afterSeq)).Scan(
		&seq, &namespace, &nm, &input, &okVal, &value, &failure,
	)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("peek record: %w", err)
	}

	return Record{
		Seq:       uint64(seq),
		Operation: OperationID{Namespace: namespace, Name: nm},
		Input:     input,
		Outcome:   Outcome{OK: okVal != 0, Value: value, Failure: failure},
	}, true, nil
}

func (l *SQLLog) Advance(ctx context.Context) error {
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

func (l *SQLLog) Replayable(ctx context.Context) (bool, error) {
	l.mu.Lock()
	cursor := l.cursorSeq
	l.mu.Unlock()

	_, ok, err := l.fetchAfter(ctx, cursor)
	return ok, err
}
