package oplog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

// redisLogForTest connects to the Redis named by OPLOG_REDIS_URL, or
// skips the test when no instance is available.
func redisLogForTest(t *testing.T, workerID string) *RedisLog {
	t.Helper()
	url := os.Getenv("OPLOG_REDIS_URL")
	if url == "" {
		t.Skip("OPLOG_REDIS_URL not set; skipping Redis log tests")
	}

	log, err := NewRedisLogFromURL(url, "oplog-test:", workerID)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := log.Ping(ctx); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}
	t.Cleanup(func() {
		_ = log.client.Del(context.Background(), log.key()).Err()
		_ = log.Close()
	})
	return log
}

func uniqueWorkerID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestRedisLog_Lifecycle(t *testing.T) {
	exerciseLogLifecycle(t, redisLogForTest(t, uniqueWorkerID("lifecycle")))
}

func TestRedisLog_ReplayAfterRestart(t *testing.T) {
	workerID := uniqueWorkerID("replay")
	first := redisLogForTest(t, workerID)
	ctx := context.Background()
	for _, in := range []string{"a", "b", "c"} {
		if _, err := first.Append(ctx, testRecord(Op("http", "fetch"), in)); err != nil {
			t.Fatal(err)
		}
	}

	// A second RedisLog over the same key simulates a restarted worker
	restarted := NewRedisLog(first.client, "oplog-test:", workerID)
	exerciseLogReplay(t, restarted)
}
