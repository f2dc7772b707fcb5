package store

import (
	"database/sql"
	"errors"
	"fmt"

	"chanplan/internal/models"
)

const serverColumns = `id, name, type, url, api_key, enabled, created_at, updated_at`

func scanServer(scanner interface{ Scan(...any) error }) (models.MediaServer, error) {
	var srv models.MediaServer
	err := scanner.Scan(&srv.ID, &srv.Name, &srv.Type, &srv.URL, &srv.APIKey, &srv.Enabled, &srv.CreatedAt, &srv.UpdatedAt)
	return srv, err
}

// encryptAPIKey seals the key when the store has an encryptor, otherwise
// stores it as-is.
func (s *Store) encryptAPIKey(key string) (string, error) {
	if s.encryptor == nil {
		return key, nil
	}
	sealed, err := s.encryptor.EncryptIfSet(key)
	if err != nil {
		return "", fmt.Errorf("encrypting api key: %w", err)
	}
	return sealed, nil
}

func (s *Store) decryptAPIKey(key string) (string, error) {
	if s.encryptor == nil {
		return key, nil
	}
	plain, err := s.encryptor.DecryptIfSet(key)
	if err != nil {
		return "", fmt.Errorf("decrypting api key: %w", err)
	}
	return plain, nil
}

func (s *Store) CreateServer(srv *models.MediaServer) error {
	if err := srv.Validate(); err != nil {
		return fmt.Errorf("invalid server: %w", err)
	}
	apiKey, err := s.encryptAPIKey(srv.APIKey)
	if err != nil {
		return err
	}
	created, err := scanServer(s.db.QueryRow(
		`INSERT INTO servers (name, type, url, api_key, enabled) VALUES (?, ?, ?, ?, ?) RETURNING `+serverColumns,
		srv.Name, srv.Type, srv.URL, apiKey, srv.Enabled,
	))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	created.APIKey = srv.APIKey
	*srv = created
	return nil
}

func (s *Store) GetServer(id int64) (*models.MediaServer, error) {
	srv, err := scanServer(s.db.QueryRow(
		`SELECT `+serverColumns+` FROM servers WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("server %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting server: %w", err)
	}
	if srv.APIKey, err = s.decryptAPIKey(srv.APIKey); err != nil {
		return nil, err
	}
	return &srv, nil
}

func (s *Store) ListServers() ([]models.MediaServer, error) {
	rows, err := s.db.Query(`SELECT ` + serverColumns + ` FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing servers: %w", err)
	}
	defer rows.Close()

	servers := []models.MediaServer{}
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		if srv.APIKey, err = s.decryptAPIKey(srv.APIKey); err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// ListEnabledServers returns only servers marked enabled, for sync and pool
// building.
func (s *Store) ListEnabledServers() ([]models.MediaServer, error) {
	servers, err := s.ListServers()
	if err != nil {
		return nil, err
	}
	enabled := servers[:0]
	for _, srv := range servers {
		if srv.Enabled {
			enabled = append(enabled, srv)
		}
	}
	return enabled, nil
}

func (s *Store) UpdateServer(srv *models.MediaServer) error {
	if err := srv.Validate(); err != nil {
		return fmt.Errorf("invalid server: %w", err)
	}
	apiKey, err := s.encryptAPIKey(srv.APIKey)
	if err != nil {
		return err
	}
	updated, err := scanServer(s.db.QueryRow(
		`UPDATE servers SET name = ?, type = ?, url = ?, api_key = ?, enabled = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? RETURNING `+serverColumns,
		srv.Name, srv.Type, srv.URL, apiKey, srv.Enabled, srv.ID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("server %d: %w", srv.ID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("updating server: %w", err)
	}
	updated.APIKey = srv.APIKey
	*srv = updated
	return nil
}

func (s *Store) DeleteServer(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("deleting server: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM content WHERE server_id = ?`, id); err != nil {
		return fmt.Errorf("deleting server content: %w", err)
	}
	result, err := tx.Exec(`DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting server: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("server %d: %w", id, models.ErrNotFound)
	}
	return tx.Commit()
}
