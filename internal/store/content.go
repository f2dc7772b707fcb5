package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chanplan/internal/models"
)

const contentColumns = `id, library_id, external_key, title, type, duration_ms, year, tmdb_id, genres, content_rating`

func scanContent(scanner interface{ Scan(...any) error }) (models.Content, error) {
	var (
		c          models.Content
		genresJSON string
	)
	err := scanner.Scan(&c.ID, &c.LibraryID, &c.ExternalKey, &c.Title, &c.Type,
		&c.DurationMillis, &c.Year, &c.TMDBID, &genresJSON, &c.ContentRating)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(genresJSON), &c.Genres); err != nil {
		return c, fmt.Errorf("decoding genres for %s: %w", c.ID, err)
	}
	return c, nil
}

func genresDocument(c *models.Content) (string, error) {
	genres := c.Genres
	if genres == nil {
		genres = []string{}
	}
	data, err := json.Marshal(genres)
	if err != nil {
		return "", fmt.Errorf("encoding genres for %s: %w", c.ID, err)
	}
	return string(data), nil
}

// UpsertContent batch inserts/updates catalog items from a library sync.
// Re-synced items refresh their synced_at so stale rows can be pruned after.
func (s *Store) UpsertContent(ctx context.Context, serverID int64, items []models.Content) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content (id, server_id, library_id, external_key, title, type, duration_ms, year,
			tmdb_id, genres, content_rating, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_id = excluded.server_id,
			library_id = excluded.library_id,
			external_key = excluded.external_key,
			title = excluded.title,
			type = excluded.type,
			duration_ms = excluded.duration_ms,
			year = excluded.year,
			tmdb_id = excluded.tmdb_id,
			genres = excluded.genres,
			content_rating = excluded.content_rating,
			synced_at = excluded.synced_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	count := 0
	now := time.Now().UTC()
	for i := range items {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		item := &items[i]
		genres, err := genresDocument(item)
		if err != nil {
			return count, err
		}
		_, err = stmt.ExecContext(ctx, item.ID, serverID, item.LibraryID, item.ExternalKey,
			item.Title, item.Type, item.DurationMillis, item.Year,
			item.TMDBID, genres, item.ContentRating, now)
		if err != nil {
			return count, fmt.Errorf("upsert content %s: %w", item.ID, err)
		}
		count++
	}

	return count, tx.Commit()
}

func (s *Store) GetContent(id string) (*models.Content, error) {
	c, err := scanContent(s.db.QueryRow(
		`SELECT `+contentColumns+` FROM content WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return &c, nil
}

// ListContent returns catalog items, optionally restricted to the given
// library IDs. An empty filter returns the whole catalog.
func (s *Store) ListContent(libraryIDs []string) ([]models.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM content`
	args := []any{}
	if len(libraryIDs) > 0 {
		query += ` WHERE library_id IN (?` + strings.Repeat(", ?", len(libraryIDs)-1) + `)`
		for _, id := range libraryIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY title`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var items []models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// SearchContent finds catalog items whose title contains the search term.
func (s *Store) SearchContent(search string, limit int) ([]models.Content, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLikePattern(search) + "%"
	rows, err := s.db.Query(
		`SELECT `+contentColumns+` FROM content WHERE title LIKE ? ESCAPE '\' ORDER BY title LIMIT ?`,
		pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}
	defer rows.Close()

	var items []models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// GetLastContentSync returns the most recent sync time for a server, or nil
// when it has never synced. The aggregate loses the column's declared type,
// so the driver hands back a string.
func (s *Store) GetLastContentSync(serverID int64) (*time.Time, error) {
	var syncedAt sql.NullString
	err := s.db.QueryRow(
		`SELECT MAX(synced_at) FROM content WHERE server_id = ?`, serverID).Scan(&syncedAt)
	if err != nil {
		return nil, err
	}
	if !syncedAt.Valid {
		return nil, nil
	}
	t, err := parseSQLiteTime(syncedAt.String)
	if err != nil {
		return nil, fmt.Errorf("last sync time: %w", err)
	}
	return &t, nil
}

// DeleteStaleContent removes items not seen by a sync since the given time.
// Metadata rows cascade.
func (s *Store) DeleteStaleContent(serverID int64, before time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM content WHERE server_id = ? AND synced_at < ?`, serverID, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountContent returns the number of catalog items for a server.
func (s *Store) CountContent(serverID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM content WHERE server_id = ?`, serverID).Scan(&count)
	return count, err
}
