package store

import (
	"database/sql"
	"errors"
	"fmt"

	"chanplan/internal/models"
)

const channelColumns = `id, name, number, profile_id, timezone, sink_url, enabled, created_at, updated_at`

func scanChannel(scanner interface{ Scan(...any) error }) (models.Channel, error) {
	var ch models.Channel
	err := scanner.Scan(&ch.ID, &ch.Name, &ch.Number, &ch.ProfileID, &ch.Timezone, &ch.SinkURL, &ch.Enabled, &ch.CreatedAt, &ch.UpdatedAt)
	return ch, err
}

func (s *Store) CreateChannel(ch *models.Channel) error {
	if err := ch.Validate(); err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	if _, err := s.GetProfile(ch.ProfileID); err != nil {
		return err
	}
	created, err := scanChannel(s.db.QueryRow(
		`INSERT INTO channels (name, number, profile_id, timezone, sink_url, enabled) VALUES (?, ?, ?, ?, ?, ?) RETURNING `+channelColumns,
		ch.Name, ch.Number, ch.ProfileID, ch.Timezone, ch.SinkURL, ch.Enabled,
	))
	if err != nil {
		return fmt.Errorf("creating channel: %w", err)
	}
	*ch = created
	return nil
}

func (s *Store) GetChannel(id int64) (*models.Channel, error) {
	ch, err := scanChannel(s.db.QueryRow(
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("channel %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting channel: %w", err)
	}
	return &ch, nil
}

func (s *Store) ListChannels() ([]models.Channel, error) {
	rows, err := s.db.Query(`SELECT ` + channelColumns + ` FROM channels ORDER BY number, name`)
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (s *Store) UpdateChannel(ch *models.Channel) error {
	if err := ch.Validate(); err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	if _, err := s.GetProfile(ch.ProfileID); err != nil {
		return err
	}
	updated, err := scanChannel(s.db.QueryRow(
		`UPDATE channels SET name = ?, number = ?, profile_id = ?, timezone = ?, sink_url = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? RETURNING `+channelColumns,
		ch.Name, ch.Number, ch.ProfileID, ch.Timezone, ch.SinkURL, ch.Enabled, ch.ID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("channel %d: %w", ch.ID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("updating channel: %w", err)
	}
	*ch = updated
	return nil
}

func (s *Store) DeleteChannel(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM results WHERE channel_id = ?`, id); err != nil {
		return fmt.Errorf("deleting channel results: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM schedules WHERE channel_id = ?`, id); err != nil {
		return fmt.Errorf("deleting channel schedules: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("channel %d: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}
