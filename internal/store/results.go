package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chanplan/internal/models"
)

// SaveResult persists a generation result for a channel. The full result is
// stored as a JSON document; scores are denormalized for cheap listings.
func (s *Store) SaveResult(channelID, profileID int64, result *models.ProgrammingResult) (*models.StoredResult, error) {
	doc, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	stored := models.StoredResult{
		ChannelID:    channelID,
		ProfileID:    profileID,
		TotalScore:   result.TotalScore,
		AverageScore: result.AverageScore,
		Iteration:    result.Iteration,
		Result:       result,
	}
	err = s.db.QueryRow(
		`INSERT INTO results (channel_id, profile_id, total_score, average_score, iteration, document)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id, created_at`,
		channelID, profileID, result.TotalScore, result.AverageScore, result.Iteration, string(doc),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("saving result: %w", err)
	}
	return &stored, nil
}

func (s *Store) GetResult(id int64) (*models.StoredResult, error) {
	var (
		stored models.StoredResult
		doc    string
	)
	err := s.db.QueryRow(
		`SELECT id, channel_id, profile_id, total_score, average_score, iteration, document, created_at
		FROM results WHERE id = ?`, id,
	).Scan(&stored.ID, &stored.ChannelID, &stored.ProfileID, &stored.TotalScore,
		&stored.AverageScore, &stored.Iteration, &doc, &stored.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting result: %w", err)
	}

	var result models.ProgrammingResult
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("decoding result %d: %w", id, err)
	}
	stored.Result = &result
	return &stored, nil
}

// ListResults returns result summaries for a channel, newest first. The
// result documents are not decoded; fetch individual results for programs.
func (s *Store) ListResults(channelID int64, limit int) ([]models.StoredResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, channel_id, profile_id, total_score, average_score, iteration, created_at
		FROM results WHERE channel_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	results := []models.StoredResult{}
	for rows.Next() {
		var r models.StoredResult
		if err := rows.Scan(&r.ID, &r.ChannelID, &r.ProfileID, &r.TotalScore,
			&r.AverageScore, &r.Iteration, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) DeleteResult(id int64) error {
	result, err := s.db.Exec(`DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting result: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("result %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// PruneResults keeps the newest keep results per channel and deletes the
// rest. Returns the number of rows removed.
func (s *Store) PruneResults(channelID int64, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.Exec(
		`DELETE FROM results WHERE channel_id = ? AND id NOT IN (
			SELECT id FROM results WHERE channel_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		)`, channelID, channelID, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning results: %w", err)
	}
	return result.RowsAffected()
}
