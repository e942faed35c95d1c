package history

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	FinishRun(ctx context.Context, id, status string, skipped, succeeded, failed, missingVideos int, errorMsg string) error

	CreateRunClip(ctx context.Context, clip *RunClip) error
	FinishRunClip(ctx context.Context, id, status, errorMsg string) error
	ListRunClips(ctx context.Context, runID string) ([]*RunClip, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, project_path, status, skipped, succeeded, failed, missing_videos, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.ProjectPath, run.Status, run.Skipped, run.Succeeded, run.Failed,
		run.MissingVideos, nullString(run.Error), run.StartedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_path, status, skipped, succeeded, failed, missing_videos, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_path, status, skipped, succeeded, failed, missing_videos, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var errMsg sql.NullString
		var startedAt string
		var finishedAt sql.NullString

		if err := rows.Scan(&run.ID, &run.ProjectPath, &run.Status, &run.Skipped, &run.Succeeded,
			&run.Failed, &run.MissingVideos, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		run.Error = errMsg.String
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.FinishedAt = parseNullTime(finishedAt)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var errMsg sql.NullString
	var startedAt string
	var finishedAt sql.NullString

	err := row.Scan(&run.ID, &run.ProjectPath, &run.Status, &run.Skipped, &run.Succeeded,
		&run.Failed, &run.MissingVideos, &errMsg, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.Error = errMsg.String
	run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	run.FinishedAt = parseNullTime(finishedAt)
	return &run, nil
}

func (r *SQLiteRepository) FinishRun(ctx context.Context, id, status string, skipped, succeeded, failed, missingVideos int, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, skipped = ?, succeeded = ?, failed = ?, missing_videos = ?,
			error = ?, finished_at = datetime('now') WHERE id = ?
	`, status, skipped, succeeded, failed, missingVideos, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) CreateRunClip(ctx context.Context, c *RunClip) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_clips (id, run_id, video_path, clip_index, clip_name, output_path, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.RunID, c.VideoPath, c.ClipIndex, c.ClipName, nullString(c.OutputPath),
		c.Status, nullString(c.Error), c.StartedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) FinishRunClip(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE run_clips SET status = ?, error = ?, finished_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) ListRunClips(ctx context.Context, runID string) ([]*RunClip, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, video_path, clip_index, clip_name, output_path, status, error, started_at, finished_at
		FROM run_clips WHERE run_id = ? ORDER BY started_at ASC, clip_index ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []*RunClip
	for rows.Next() {
		var c RunClip
		var outputPath, errMsg sql.NullString
		var startedAt string
		var finishedAt sql.NullString

		if err := rows.Scan(&c.ID, &c.RunID, &c.VideoPath, &c.ClipIndex, &c.ClipName,
			&outputPath, &c.Status, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		c.OutputPath = outputPath.String
		c.Error = errMsg.String
		c.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		c.FinishedAt = parseNullTime(finishedAt)
		clips = append(clips, &c)
	}
	return clips, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	// sqlite datetime('now') emits "2006-01-02 15:04:05"; CreateRun writes RFC3339.
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return &t
		}
	}
	return nil
}
