package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ RunRepository = (*RunRepo)(nil)

// RunRepo records batch runs and their per-file outcomes
type RunRepo struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// SaveRun stores a run and all of its files in one transaction
func (r *RunRepo) SaveRun(ctx context.Context, run Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, input_dir, output_dir, status, article_rows, daily_rows, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.InputDir, run.OutputDir, run.Status, run.ArticleRows, run.DailyRows,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_files (run_id, file_name, checksum, size_bytes, valid_rows, invalid_rows,
			article_status, article_reason, daily_status, daily_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, file := range run.Files {
		_, err := stmt.ExecContext(ctx, run.ID, file.FileName, file.Checksum, file.SizeBytes,
			file.ValidRows, file.InvalidRows, file.ArticleStatus, file.ArticleReason,
			file.DailyStatus, file.DailyReason)
		if err != nil {
			return fmt.Errorf("failed to insert file %s: %w", file.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

// GetRun loads a run with its files, or nil when it does not exist
func (r *RunRepo) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var startedAt, finishedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, input_dir, output_dir, status, article_rows, daily_rows, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.InputDir, &run.OutputDir, &run.Status, &run.ArticleRows,
		&run.DailyRows, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}

	files, err := r.queryFiles(ctx, `
		SELECT file_name, checksum, size_bytes, valid_rows, invalid_rows,
			article_status, article_reason, daily_status, daily_reason
		FROM run_files
		WHERE run_id = ?
		ORDER BY file_name
	`, id)
	if err != nil {
		return nil, err
	}
	run.Files = files

	return &run, nil
}

func (r *RunRepo) GetRunCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// FindFilesByChecksum returns earlier outcomes of byte-identical exports
func (r *RunRepo) FindFilesByChecksum(ctx context.Context, checksum string) ([]RunFile, error) {
	return r.queryFiles(ctx, `
		SELECT f.file_name, f.checksum, f.size_bytes, f.valid_rows, f.invalid_rows,
			f.article_status, f.article_reason, f.daily_status, f.daily_reason
		FROM run_files f
		JOIN runs r ON r.id = f.run_id
		WHERE f.checksum = ?
		ORDER BY r.started_at DESC, f.file_name
	`, checksum)
}

func (r *RunRepo) queryFiles(ctx context.Context, query string, args ...any) ([]RunFile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query run files: %w", err)
	}
	defer rows.Close()

	var files []RunFile
	for rows.Next() {
		var file RunFile
		err := rows.Scan(&file.FileName, &file.Checksum, &file.SizeBytes, &file.ValidRows,
			&file.InvalidRows, &file.ArticleStatus, &file.ArticleReason, &file.DailyStatus,
			&file.DailyReason)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run file: %w", err)
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}
