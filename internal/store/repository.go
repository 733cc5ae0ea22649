package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reelsmith/reelsmith/internal/db"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	CompleteRun(ctx context.Context, id, outputFile string, stats any, remoteURL string) error
	FailRun(ctx context.Context, id, errMsg string) error
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: conn, now: time.Now}
}

const runColumns = `id, request_id, kind, input_name, output_file, status, error, stats, remote_url, created_at, updated_at`

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(db.TimeLayout)
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewID()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	if run.Kind == "" {
		run.Kind = KindProcess
	}
	now := r.stamp()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.RequestID, run.Kind, run.InputName, nullString(run.OutputFile), run.Status,
		nullString(run.Error), nullString(string(run.Stats)), nullString(run.RemoteURL), now, now)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	run.CreatedAt, _ = time.Parse(db.TimeLayout, now)
	run.UpdatedAt = run.CreatedAt
	return nil
}

// GetRun returns nil, nil when no run has that id.
func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the newest runs first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) CompleteRun(ctx context.Context, id, outputFile string, stats any, remoteURL string) error {
	var statsJSON string
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
		statsJSON = string(b)
	}
	return r.finish(ctx, `
		UPDATE runs SET status = ?, output_file = ?, stats = ?, remote_url = ?, error = NULL, updated_at = ?
		WHERE id = ?
	`, StatusCompleted, nullString(outputFile), nullString(statsJSON), nullString(remoteURL), r.stamp(), id)
}

func (r *SQLiteRepository) FailRun(ctx context.Context, id, errMsg string) error {
	return r.finish(ctx, `UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, errMsg, r.stamp(), id)
}

func (r *SQLiteRepository) finish(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %v not found", args[len(args)-1])
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run                           Run
		output, errMsg, stats, remote sql.NullString
		createdAt, updatedAt          string
	)
	err := s.Scan(&run.ID, &run.RequestID, &run.Kind, &run.InputName, &output, &run.Status,
		&errMsg, &stats, &remote, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	run.OutputFile = output.String
	run.Error = errMsg.String
	if stats.Valid && stats.String != "" {
		run.Stats = json.RawMessage(stats.String)
	}
	run.RemoteURL = remote.String
	run.CreatedAt, _ = time.Parse(db.TimeLayout, createdAt)
	run.UpdatedAt, _ = time.Parse(db.TimeLayout, updatedAt)
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
