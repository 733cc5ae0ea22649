package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNew_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "reelsmith.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	for _, table := range []string{"runs", "_migrations"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	var kind string
	if _, err := database.Conn().Exec(
		`INSERT INTO runs (id, request_id, input_name, status, created_at, updated_at) VALUES ('r1', 'q1', 'a.mp4', 'running', 'x', 'x')`,
	); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := database.Conn().QueryRow("SELECT kind FROM runs WHERE id = 'r1'").Scan(&kind); err != nil || kind != "process" {
		t.Errorf("default kind = %q, %v; want process", kind, err)
	}
}

func TestNew_WALEnabled(t *testing.T) {
	database, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestNew_MarksInterruptedRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	now := time.Now().UTC().Format(TimeLayout)
	for _, q := range []struct{ id, status string }{{"a", "running"}, {"b", "completed"}} {
		if _, err := db1.Conn().Exec(
			`INSERT INTO runs (id, request_id, input_name, status, created_at, updated_at) VALUES (?, ?, 'x.mp4', ?, ?, ?)`,
			q.id, q.id, q.status, now, now,
		); err != nil {
			t.Fatal(err)
		}
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db2.Close()

	var status, errMsg string
	if err := db2.Conn().QueryRow("SELECT status, error FROM runs WHERE id = 'a'").Scan(&status, &errMsg); err != nil {
		t.Fatal(err)
	}
	if status != "failed" || errMsg != "interrupted by restart" {
		t.Errorf("run a = %s/%q, want failed/interrupted by restart", status, errMsg)
	}
	if err := db2.Conn().QueryRow("SELECT status FROM runs WHERE id = 'b'").Scan(&status); err != nil || status != "completed" {
		t.Errorf("run b = %s, want completed", status)
	}
}
