package store

import (
	"database/sql"
	"fmt"
	"time"

	"chanplan/internal/models"
)

// RecordJob persists a terminal job to history. Re-recording the same job id
// overwrites the previous row, so retries are idempotent.
func (s *Store) RecordJob(job *models.Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("job %s is not terminal", job.ID)
	}
	_, err := s.db.Exec(
		`INSERT INTO job_history (id, kind, status, title, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, error=excluded.error, completed_at=excluded.completed_at`,
		job.ID, job.Kind, job.Status, job.Title, job.Error,
		job.CreatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("recording job: %w", err)
	}
	return nil
}

// ListJobHistory returns finished jobs, newest first.
func (s *Store) ListJobHistory(limit int) ([]models.JobHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, kind, status, title, error, created_at, started_at, completed_at
		FROM job_history ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing job history: %w", err)
	}
	defer rows.Close()

	entries := []models.JobHistoryEntry{}
	for rows.Next() {
		var (
			e         models.JobHistoryEntry
			started   sql.NullTime
			completed sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Status, &e.Title, &e.Error,
			&e.CreatedAt, &started, &completed); err != nil {
			return nil, err
		}
		if started.Valid {
			e.StartedAt = &started.Time
		}
		if completed.Valid {
			e.CompletedAt = &completed.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneJobHistory removes history entries created before the cutoff.
func (s *Store) PruneJobHistory(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM job_history WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("pruning job history: %w", err)
	}
	return result.RowsAffected()
}
