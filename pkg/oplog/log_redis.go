package oplog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisLog implements Log on a Redis list, one list per worker instance.
// It is designed to work with github.com/redis/go-redis/v9. Records are
// appended with RPUSH and read back by index, which preserves FIFO order;
// the replay cursor is the list index of the next unconsumed record.
type RedisLog struct {
	client   *redis.Client
	prefix   string // optional key prefix (e.g. "oplog:")
	workerID string

	mu     sync.Mutex
	cursor int64
}

// NewRedisLog creates a Redis-backed log for one worker instance.
// If prefix is empty, "oplog:" is used by default.
func NewRedisLog(client *redis.Client, prefix, workerID string) *RedisLog {
	if prefix == "" {
		prefix = "oplog:"
	}
	return &RedisLog{
		client:   client,
		prefix:   prefix,
		workerID: workerID,
	}
}

// NewRedisLogFromURL creates a Redis log from a connection URL.
// Example: "redis://localhost:6379/0" or "redis://:password@localhost:6379/1"
func NewRedisLogFromURL(url, prefix, workerID string) (*RedisLog, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return NewRedisLog(redis.NewClient(opts), prefix, workerID), nil
}

func (l *RedisLog) key() string {
	return l.prefix + l.workerID
}

func (l *RedisLog) Append(ctx context.Context, rec Record) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	length, err := l.client.LLen(ctx, l.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	if l.cursor < length {
		return 0, ErrAppendDuringReplay
	}

	rec.Seq = uint64(length) + 1
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, &CodecError{Op: "encode", Cause: err}
	}
	if err := l.client.RPush(ctx, l.key(), data).Err(); err != nil {
		return 0, fmt.Errorf("redis rpush: %w", err)
	}

	l.cursor = length + 1
	return rec.Seq, nil
}

func (l *RedisLog) PeekNext(ctx context.Context) (Record, bool, error) {
	l.mu.Lock()
	cursor := l.cursor
	l.mu.Unlock()

	data, err := l.client.LIndex(ctx, l.key(), cursor).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis lindex: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, &CodecError{Op: "decode", Cause: err}
	}
	return rec, true, nil
}

func (l *RedisLog) Advance(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	length, err := l.client.LLen(ctx, l.key()).Result()
	if err != nil {
		return fmt.Errorf("redis llen: %w", err)
	}
	if l.cursor >= length {
		return ErrNothingToAdvance
	}
	l.cursor++
	return nil
}

func (l *RedisLog) Replayable(ctx context.Context) (bool, error) {
	l.mu.Lock()
	cursor := l.cursor
	l.mu.Unlock()

	length, err := l.client.LLen(ctx, l.key()).Result()
	if err != nil {
		return false, fmt.Errorf("redis llen: %w", err)
	}
	return cursor < length, nil
}

// Ping checks if the Redis connection is alive.
func (l *RedisLog) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *RedisLog) Close() error {
	return l.client.Close()
}
