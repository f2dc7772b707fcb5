// Package store persists profiles, channels, servers, the content catalog,
// generation results, run schedules, and settings in SQLite.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"chanplan/internal/crypto"
)

// dsnParams tunes the driver: WAL so readers never block the writer,
// enforced foreign keys, a 5s wait on the write lock, and text timestamps
// the driver can scan back into time.Time.
const dsnParams = "_pragma=journal_mode(wal)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

type Store struct {
	db        *sql.DB
	encryptor *crypto.Encryptor
}

type Option func(*Store)

// WithEncryptor enables encryption at rest for server API keys and secret
// settings values.
func WithEncryptor(e *crypto.Encryptor) Option {
	return func(s *Store) { s.encryptor = e }
}

// New opens the database at dbPath, creating it if needed. The ":memory:"
// path yields a private in-memory database; it is pinned to a single
// connection because each pooled connection would otherwise get its own
// empty schema.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?%s", dbPath, dsnParams))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", dbPath, err)
	}

	s := &Store{db: db}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// HasEncryptor reports whether secrets are encrypted at rest.
func (s *Store) HasEncryptor() bool { return s.encryptor != nil }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping() error { return s.db.Ping() }
