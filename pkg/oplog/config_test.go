package oplog

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("OPLOG_DATABASE_URL", "")
	t.Setenv("OPLOG_REDIS_URL", "")
	t.Setenv("OPLOG_TABLE", "")
	t.Setenv("OPLOG_KEY_PREFIX", "")
	t.Setenv("OPLOG_MAX_CONCURRENCY", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Table != "oplog_records" {
		t.Errorf("default table: %q", cfg.Table)
	}
	if cfg.KeyPrefix != "oplog:" {
		t.Errorf("default key prefix: %q", cfg.KeyPrefix)
	}
	if cfg.MaxConcurrency != 32 {
		t.Errorf("default max concurrency: %d", cfg.MaxConcurrency)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("OPLOG_DATABASE_URL", "sqlite:file:./test.sqlite")
	t.Setenv("OPLOG_TABLE", "custom_records")
	t.Setenv("OPLOG_MAX_CONCURRENCY", "8")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseURL != "sqlite:file:./test.sqlite" {
		t.Errorf("database URL: %q", cfg.DatabaseURL)
	}
	if cfg.Table != "custom_records" {
		t.Errorf("table: %q", cfg.Table)
	}
	if cfg.MaxConcurrency != 8 {
		t.Errorf("max concurrency: %d", cfg.MaxConcurrency)
	}
}

func TestSplitDatabaseURL(t *testing.T) {
	cases := []struct {
		url     string
		driver  string
		dialect SQLDialect
		wantErr bool
	}{
		{"sqlite:file:./oplog.sqlite", "sqlite3", DialectSQLite, false},
		{"postgres://u:p@localhost:5432/db", "pgx", DialectPostgres, false},
		{"postgresql://u:p@localhost:5432/db", "pgx", DialectPostgres, false},
		{"mysql://u:p@tcp(localhost:3306)/db", "mysql", DialectMySQL, false},
		{"mongodb://localhost", "", "", true},
	}
	for _, tc := range cases {
		driver, _, dialect, err := splitDatabaseURL(tc.url)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.url, err)
			continue
		}
		if driver != tc.driver || dialect != tc.dialect {
			t.Errorf("%s: got %s/%s, want %s/%s", tc.url, driver, dialect, tc.driver, tc.dialect)
		}
	}
}

func TestConfig_OpenMemoryFallback(t *testing.T) {
	log, closer, err := Config{}.Open(context.Background(), "w1")
	if err != nil {
		t.Fatal(err)
	}
	if closer != nil {
		t.Error("memory log needs no closer")
	}
	if _, ok := log.(*MemoryLog); !ok {
		t.Errorf("expected *MemoryLog, got %T", log)
	}
}

func TestConfig_OpenRejectsEmptyWorkerID(t *testing.T) {
	if _, _, err := (Config{}).Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty worker ID")
	}
}

func TestConfig_OpenSQLite(t *testing.T) {
	cfg := Config{
		DatabaseURL: "sqlite:" + filepath.Join(t.TempDir(), "oplog.sqlite"),
		Table:       "oplog_records",
	}
	log, closer, err := cfg.Open(context.Background(), "w1")
	if err != nil {
		t.Fatal(err)
	}
	defer closer()

	exerciseLogLifecycle(t, log)
}
