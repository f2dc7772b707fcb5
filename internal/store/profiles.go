package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chanplan/internal/models"
)

const profileColumns = `id, name, document, created_at, updated_at`

func scanProfile(scanner interface{ Scan(...any) error }) (*models.Profile, error) {
	var (
		id        int64
		name      string
		document  string
		createdAt time.Time
		updatedAt time.Time
	)
	if err := scanner.Scan(&id, &name, &document, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(document), &p); err != nil {
		return nil, fmt.Errorf("decoding profile %d: %w", id, err)
	}
	// Column values win over whatever the document carries.
	p.ID = id
	p.Name = name
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	return &p, nil
}

func profileDocument(p *models.Profile) (string, error) {
	doc, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding profile: %w", err)
	}
	return string(doc), nil
}

func (s *Store) CreateProfile(p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	doc, err := profileDocument(p)
	if err != nil {
		return err
	}
	created, err := scanProfile(s.db.QueryRow(
		`INSERT INTO profiles (name, document) VALUES (?, ?) RETURNING `+profileColumns,
		p.Name, doc,
	))
	if err != nil {
		return fmt.Errorf("creating profile: %w", err)
	}
	*p = *created
	return nil
}

func (s *Store) GetProfile(id int64) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

func (s *Store) GetProfileByName(name string) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRow(
		`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %q: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

func (s *Store) ListProfiles() ([]models.Profile, error) {
	rows, err := s.db.Query(`SELECT ` + profileColumns + ` FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func (s *Store) UpdateProfile(p *models.Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	doc, err := profileDocument(p)
	if err != nil {
		return err
	}
	updated, err := scanProfile(s.db.QueryRow(
		`UPDATE profiles SET name = ?, document = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? RETURNING `+profileColumns,
		p.Name, doc, p.ID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("profile %d: %w", p.ID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	*p = *updated
	return nil
}

func (s *Store) DeleteProfile(id int64) error {
	var inUse int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM channels WHERE profile_id = ?`, id).Scan(&inUse); err != nil {
		return fmt.Errorf("checking profile references: %w", err)
	}
	if inUse > 0 {
		return models.ConfigError("profile %d is used by %d channel(s)", id, inUse)
	}

	result, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("profile %d: %w", id, models.ErrNotFound)
	}
	return nil
}
