package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chanplan/internal/models"
)

// SetContentMeta stores enrichment metadata for a catalog item. The TMDB id
// is duplicated into its own column so reverse lookups stay indexable.
func (s *Store) SetContentMeta(contentID string, meta *models.ContentMeta) error {
	doc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding content meta: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO content_meta (content_id, tmdb_id, document, fetched_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(content_id) DO UPDATE SET
			tmdb_id=excluded.tmdb_id, document=excluded.document, fetched_at=excluded.fetched_at`,
		contentID, meta.TMDBID, string(doc),
	)
	if err != nil {
		return fmt.Errorf("set content meta: %w", err)
	}
	return nil
}

func (s *Store) GetContentMeta(contentID string) (*models.ContentMeta, error) {
	var doc string
	err := s.db.QueryRow(
		`SELECT document FROM content_meta WHERE content_id = ?`, contentID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content meta %s: %w", contentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get content meta: %w", err)
	}
	var meta models.ContentMeta
	if err := json.Unmarshal([]byte(doc), &meta); err != nil {
		return nil, models.DataError("decoding content meta %s: %v", contentID, err)
	}
	return &meta, nil
}

// contentColumnsQualified disambiguates from content_meta in join queries;
// both tables carry a tmdb_id.
const contentColumnsQualified = `content.id, content.library_id, content.external_key, ` +
	`content.title, content.type, content.duration_ms, content.year, ` +
	`content.tmdb_id, content.genres, content.content_rating`

// ListContentWithMeta returns catalog items joined with whatever metadata has
// been cached for them, optionally restricted to the given library IDs. Items
// without metadata come back with a nil Meta.
func (s *Store) ListContentWithMeta(libraryIDs []string) ([]models.PoolItem, error) {
	query := `SELECT ` + contentColumnsQualified + `, m.document
		FROM content LEFT JOIN content_meta m ON m.content_id = content.id`
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
		return nil, fmt.Errorf("list content with meta: %w", err)
	}
	defer rows.Close()

	var items []models.PoolItem
	for rows.Next() {
		var (
			c          models.Content
			genresJSON string
			doc        sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.LibraryID, &c.ExternalKey, &c.Title, &c.Type,
			&c.DurationMillis, &c.Year, &c.TMDBID, &genresJSON, &c.ContentRating, &doc); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(genresJSON), &c.Genres); err != nil {
			return nil, fmt.Errorf("decoding genres for %s: %w", c.ID, err)
		}
		item := models.PoolItem{Content: c}
		if doc.Valid {
			// A document that no longer decodes scores like one never
			// enriched; the next full run rewrites it.
			var meta models.ContentMeta
			if err := json.Unmarshal([]byte(doc.String), &meta); err == nil {
				item.Meta = &meta
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListContentMissingMeta returns catalog items that have no cached metadata
// yet, for incremental enrichment. A limit of 0 returns all of them.
func (s *Store) ListContentMissingMeta(limit int) ([]models.Content, error) {
	query := `SELECT ` + contentColumnsQualified + `
		FROM content LEFT JOIN content_meta m ON m.content_id = content.id
		WHERE m.content_id IS NULL ORDER BY title`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list content missing meta: %w", err)
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

// CountContentMeta returns how many catalog items carry cached metadata.
func (s *Store) CountContentMeta() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM content_meta`).Scan(&count)
	return count, err
}
