package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelsmith/reelsmith/internal/db"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewRepository(database.Conn())
}

func TestCreateAndGetRun(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	run := &Run{RequestID: "req-1", InputName: "beach.mp4"}
	if err := repo.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID == "" || run.Status != StatusRunning || run.Kind != KindProcess {
		t.Fatalf("defaults not applied: %+v", run)
	}

	got, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got == nil || got.RequestID != "req-1" || got.InputName != "beach.mp4" {
		t.Fatalf("GetRun() = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	repo := setupRepo(t)
	got, err := repo.GetRun(context.Background(), "missing")
	if err != nil || got != nil {
		t.Fatalf("GetRun(missing) = %v, %v; want nil, nil", got, err)
	}
}

func TestCompleteRun(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	run := &Run{RequestID: "req-2", InputName: "a.mp4"}
	repo.CreateRun(ctx, run)

	stats := map[string]any{"keepSegments": 2}
	if err := repo.CompleteRun(ctx, run.ID, "a-final.mp4", stats, "https://bucket/a-final.mp4"); err != nil {
		t.Fatalf("CompleteRun() error = %v", err)
	}

	got, _ := repo.GetRun(ctx, run.ID)
	if got.Status != StatusCompleted || got.OutputFile != "a-final.mp4" || got.RemoteURL == "" {
		t.Fatalf("run = %+v", got)
	}
	var decoded map[string]int
	if err := json.Unmarshal(got.Stats, &decoded); err != nil || decoded["keepSegments"] != 2 {
		t.Errorf("stats = %s, %v", got.Stats, err)
	}
}

func TestFailRun(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	run := &Run{RequestID: "req-3", InputName: "a.mp4", Kind: KindTransitions}
	repo.CreateRun(ctx, run)

	if err := repo.FailRun(ctx, run.ID, "stage silence failed"); err != nil {
		t.Fatalf("FailRun() error = %v", err)
	}
	got, _ := repo.GetRun(ctx, run.ID)
	if got.Status != StatusFailed || got.Error != "stage silence failed" || got.Kind != KindTransitions {
		t.Errorf("run = %+v", got)
	}

	if err := repo.FailRun(ctx, "nope", "x"); err == nil {
		t.Error("FailRun on a missing id should error")
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Second)
		repo.now = func() time.Time { return at }
		if err := repo.CreateRun(ctx, &Run{ID: id, RequestID: id, InputName: "x.mp4"}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "third" || runs[1].ID != "second" {
		var ids []string
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
		t.Fatalf("ListRuns() ids = %v, want [third second]", ids)
	}
}

func TestListRuns_EmptyIsNotNil(t *testing.T) {
	runs, err := setupRepo(t).ListRuns(context.Background(), 0)
	if err != nil || runs == nil || len(runs) != 0 {
		t.Fatalf("ListRuns() = %v, %v; want empty slice", runs, err)
	}
}
