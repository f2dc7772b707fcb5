package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chanplan/internal/models"
)

const scheduleColumns = `id, name, channel_id, time_of_day, days_of_week, request, enabled, last_run_at, created_at, updated_at`

func scanSchedule(scanner interface{ Scan(...any) error }) (models.RunSchedule, error) {
	var (
		sched    models.RunSchedule
		daysJSON string
		reqJSON  string
		lastRun  sql.NullTime
	)
	err := scanner.Scan(&sched.ID, &sched.Name, &sched.ChannelID, &sched.TimeOfDay,
		&daysJSON, &reqJSON, &sched.Enabled, &lastRun, &sched.CreatedAt, &sched.UpdatedAt)
	if err != nil {
		return sched, err
	}
	if err := json.Unmarshal([]byte(daysJSON), &sched.DaysOfWeek); err != nil {
		return sched, fmt.Errorf("decoding schedule %d days: %w", sched.ID, err)
	}
	if err := json.Unmarshal([]byte(reqJSON), &sched.Request); err != nil {
		return sched, fmt.Errorf("decoding schedule %d request: %w", sched.ID, err)
	}
	if lastRun.Valid {
		sched.LastRunAt = &lastRun.Time
	}
	return sched, nil
}

func scheduleDocuments(sched *models.RunSchedule) (days, request string, err error) {
	daysJSON, err := json.Marshal(sched.DaysOfWeek)
	if err != nil {
		return "", "", fmt.Errorf("encoding schedule days: %w", err)
	}
	reqJSON, err := json.Marshal(sched.Request)
	if err != nil {
		return "", "", fmt.Errorf("encoding schedule request: %w", err)
	}
	return string(daysJSON), string(reqJSON), nil
}

func (s *Store) CreateSchedule(sched *models.RunSchedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	if _, err := s.GetChannel(sched.ChannelID); err != nil {
		return err
	}
	days, request, err := scheduleDocuments(sched)
	if err != nil {
		return err
	}
	created, err := scanSchedule(s.db.QueryRow(
		`INSERT INTO schedules (name, channel_id, time_of_day, days_of_week, request, enabled)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING `+scheduleColumns,
		sched.Name, sched.ChannelID, sched.TimeOfDay, days, request, boolToInt(sched.Enabled),
	))
	if err != nil {
		return fmt.Errorf("creating schedule: %w", err)
	}
	*sched = created
	return nil
}

func (s *Store) GetSchedule(id int64) (*models.RunSchedule, error) {
	sched, err := scanSchedule(s.db.QueryRow(
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}
	return &sched, nil
}

func (s *Store) ListSchedules() ([]models.RunSchedule, error) {
	return s.listSchedules(`SELECT ` + scheduleColumns + ` FROM schedules ORDER BY name`)
}

// ListEnabledSchedules returns schedules eligible for automatic runs.
func (s *Store) ListEnabledSchedules() ([]models.RunSchedule, error) {
	return s.listSchedules(`SELECT ` + scheduleColumns + ` FROM schedules WHERE enabled = 1 ORDER BY name`)
}

func (s *Store) listSchedules(query string, args ...any) ([]models.RunSchedule, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	schedules := []models.RunSchedule{}
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

func (s *Store) UpdateSchedule(sched *models.RunSchedule) error {
	if err := sched.Validate(); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	if _, err := s.GetChannel(sched.ChannelID); err != nil {
		return err
	}
	days, request, err := scheduleDocuments(sched)
	if err != nil {
		return err
	}
	updated, err := scanSchedule(s.db.QueryRow(
		`UPDATE schedules SET name = ?, channel_id = ?, time_of_day = ?, days_of_week = ?, request = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? RETURNING `+scheduleColumns,
		sched.Name, sched.ChannelID, sched.TimeOfDay, days, request, boolToInt(sched.Enabled), sched.ID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("schedule %d: %w", sched.ID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}
	*sched = updated
	return nil
}

func (s *Store) DeleteSchedule(id int64) error {
	result, err := s.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("schedule %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// MarkScheduleRun records that a schedule fired. The scheduler uses the
// timestamp to avoid double-firing within the same minute.
func (s *Store) MarkScheduleRun(id int64) error {
	result, err := s.db.Exec(
		`UPDATE schedules SET last_run_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking schedule run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("schedule %d: %w", id, models.ErrNotFound)
	}
	return nil
}
