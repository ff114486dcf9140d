package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"fastscribe/internal/models"
	"fastscribe/internal/progress"
)

// RunRepository は実行履歴のデータアクセス層
type RunRepository struct {
	db  *DB
	now func() time.Time
}

// NewRunRepository は新しいRunRepositoryを作成
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db, now: time.Now}
}

// RecordStart はジョブの開始を記録する（IDが空なら採番する）
func (r *RunRepository) RecordStart(ctx context.Context, job models.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, source_path, output_path, model, language, segments, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourcePath, job.OutputPath, job.Model, job.Language, job.Segments,
		models.RunStatusRunning, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// RecordOutcome はジョブの結果と区間ごとの最終状態を記録する
func (r *RunRepository) RecordOutcome(ctx context.Context, outcome models.RunOutcome, views []progress.View) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var errMsg string
	if outcome.Err != nil {
		errMsg = outcome.Err.Error()
	}
	var outputBytes int64
	if outcome.Succeeded() {
		if info, err := os.Stat(outcome.OutputPath); err == nil {
			outputBytes = info.Size()
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, failed_segment = ?, error = ?, output_bytes = ?, elapsed_ms = ?, completed_at = ?
		WHERE id = ?`,
		string(outcome.Kind), outcome.Segment, errMsg, outputBytes,
		outcome.Elapsed.Milliseconds(), r.now(), outcome.JobID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", outcome.JobID)
	}

	for _, v := range views {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_segments (run_id, segment, status, percent, error)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (run_id, segment) DO UPDATE
			SET status = excluded.status, percent = excluded.percent, error = excluded.error`,
			outcome.JobID, v.Segment, segmentStatus(v.Status), v.Percent, v.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to record segment %d: %w", v.Segment, err)
		}
	}

	return tx.Commit()
}

// GetByID はIDで実行履歴を区間の状態込みで取得（存在しなければnil）
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT segment, status, percent, error
		FROM run_segments WHERE run_id = ? ORDER BY segment`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.RunSegment
		if err := rows.Scan(&s.Segment, &s.Status, &s.Percent, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		run.SegmentStates = append(run.SegmentStates, s)
	}
	return run, rows.Err()
}

// ListRecent は新しい順に実行履歴を取得
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CountByStatus はステータスごとの件数を取得
func (r *RunRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

const selectRun = `
	SELECT id, source_path, output_path, model, language, segments, status,
	       failed_segment, error, output_bytes, elapsed_ms, created_at, completed_at
	FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var elapsedMS int64
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID, &run.SourcePath, &run.OutputPath, &run.Model, &run.Language, &run.Segments, &run.Status,
		&run.FailedSegment, &run.Error, &run.OutputBytes, &elapsedMS, &run.CreatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

// segmentStatus は一度も報告のなかった区間を waiting として記録する
func segmentStatus(s progress.Status) string {
	if s == "" {
		return "waiting"
	}
	return string(s)
}
