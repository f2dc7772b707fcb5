package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting setting: %w", err)
	}
	return value, nil
}

const settingUpsert = `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(settingUpsert, key, value)
	if err != nil {
		return fmt.Errorf("setting %q: %w", key, err)
	}
	return nil
}

// getSecretSetting reads a settings value sealed by the store encryptor.
func (s *Store) getSecretSetting(key string) (string, error) {
	value, err := s.GetSetting(key)
	if err != nil {
		return "", err
	}
	return s.decryptAPIKey(value)
}

type TMDBConfig struct {
	APIKey   string
	Language string
}

func (s *Store) GetTMDBConfig() (TMDBConfig, error) {
	var cfg TMDBConfig
	var err error
	if cfg.APIKey, err = s.getSecretSetting("tmdb.api_key"); err != nil {
		return cfg, err
	}
	if cfg.Language, err = s.GetSetting("tmdb.language"); err != nil {
		return cfg, err
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	return cfg, nil
}

func (s *Store) SetTMDBConfig(cfg TMDBConfig) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(settingUpsert, "tmdb.language", cfg.Language); err != nil {
		return fmt.Errorf("setting %q: %w", "tmdb.language", err)
	}
	if cfg.APIKey != "" {
		sealed, err := s.encryptAPIKey(cfg.APIKey)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(settingUpsert, "tmdb.api_key", sealed); err != nil {
			return fmt.Errorf("setting %q: %w", "tmdb.api_key", err)
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteTMDBConfig() error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key IN ('tmdb.api_key', 'tmdb.language')`)
	if err != nil {
		return fmt.Errorf("deleting TMDB config: %w", err)
	}
	return nil
}

// SinkConfig is the default downstream channel server. Channels may override
// the URL individually; the API key is shared.
type SinkConfig struct {
	URL    string
	APIKey string
}

func (s *Store) GetSinkConfig() (SinkConfig, error) {
	var cfg SinkConfig
	var err error
	if cfg.URL, err = s.GetSetting("sink.url"); err != nil {
		return cfg, err
	}
	if cfg.APIKey, err = s.getSecretSetting("sink.api_key"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *Store) SetSinkConfig(cfg SinkConfig) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(settingUpsert, "sink.url", cfg.URL); err != nil {
		return fmt.Errorf("setting %q: %w", "sink.url", err)
	}
	if cfg.APIKey != "" {
		sealed, err := s.encryptAPIKey(cfg.APIKey)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(settingUpsert, "sink.api_key", sealed); err != nil {
			return fmt.Errorf("setting %q: %w", "sink.api_key", err)
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteSinkConfig() error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key IN ('sink.url', 'sink.api_key')`)
	if err != nil {
		return fmt.Errorf("deleting sink config: %w", err)
	}
	return nil
}

// SuggestConfig points at an OpenAI-compatible completion endpoint used for
// schedule improvement suggestions.
type SuggestConfig struct {
	URL    string
	APIKey string
	Model  string
}

func (s *Store) GetSuggestConfig() (SuggestConfig, error) {
	var cfg SuggestConfig
	var err error
	if cfg.URL, err = s.GetSetting("suggest.url"); err != nil {
		return cfg, err
	}
	if cfg.APIKey, err = s.getSecretSetting("suggest.api_key"); err != nil {
		return cfg, err
	}
	if cfg.Model, err = s.GetSetting("suggest.model"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *Store) SetSuggestConfig(cfg SuggestConfig) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, kv := range []struct{ k, v string }{
		{"suggest.url", cfg.URL},
		{"suggest.model", cfg.Model},
	} {
		if _, err := tx.Exec(settingUpsert, kv.k, kv.v); err != nil {
			return fmt.Errorf("setting %q: %w", kv.k, err)
		}
	}
	if cfg.APIKey != "" {
		sealed, err := s.encryptAPIKey(cfg.APIKey)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(settingUpsert, "suggest.api_key", sealed); err != nil {
			return fmt.Errorf("setting %q: %w", "suggest.api_key", err)
		}
	}

	return tx.Commit()
}

func (s *Store) DeleteSuggestConfig() error {
	_, err := s.db.Exec(`DELETE FROM settings WHERE key IN ('suggest.url', 'suggest.api_key', 'suggest.model')`)
	if err != nil {
		return fmt.Errorf("deleting suggest config: %w", err)
	}
	return nil
}

const resultRetentionKey = "results.retention"
const defaultResultRetention = 20

// GetResultRetention returns how many results to keep per channel.
func (s *Store) GetResultRetention() (int, error) {
	val, err := s.GetSetting(resultRetentionKey)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return defaultResultRetention, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultResultRetention, nil
	}
	return n, nil
}

func (s *Store) SetResultRetention(keep int) error {
	if keep < 1 || keep > 500 {
		return fmt.Errorf("result retention must be between 1 and 500, got %d", keep)
	}
	return s.SetSetting(resultRetentionKey, strconv.Itoa(keep))
}

const jobHistoryDaysKey = "jobs.history_days"
const defaultJobHistoryDays = 14

// GetJobHistoryDays returns how long finished jobs stay in history.
func (s *Store) GetJobHistoryDays() (int, error) {
	val, err := s.GetSetting(jobHistoryDaysKey)
	if err != nil {
		return 0, err
	}
	if val == "" {
		return defaultJobHistoryDays, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultJobHistoryDays, nil
	}
	return n, nil
}

func (s *Store) SetJobHistoryDays(days int) error {
	if days < 1 || days > 365 {
		return fmt.Errorf("job history days must be between 1 and 365, got %d", days)
	}
	return s.SetSetting(jobHistoryDaysKey, strconv.Itoa(days))
}

const adminKeyHashKey = "auth.api_key_hash"

// GetAdminKeyHash returns the stored hash of the admin API key, or "" when
// authentication has not been configured.
func (s *Store) GetAdminKeyHash() (string, error) {
	return s.GetSetting(adminKeyHashKey)
}

func (s *Store) SetAdminKeyHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("empty api key hash")
	}
	return s.SetSetting(adminKeyHashKey, hash)
}
