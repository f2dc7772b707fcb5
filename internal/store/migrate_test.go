package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrate(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	dir := t.TempDir()
	sql := `CREATE TABLE IF NOT EXISTS test_items (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	);`
	if err := os.WriteFile(filepath.Join(dir, "001_test.sql"), []byte(sql), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.Migrate(dir); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM test_items").Scan(&count); err != nil {
		t.Fatalf("querying test_items: %v", err)
	}

	if err := s.Migrate(dir); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}
}

func TestMigrateAppliesInOrder(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	dir := t.TempDir()
	// 002 depends on the table 001 creates.
	files := map[string]string{
		"001_base.sql":  `CREATE TABLE base (id INTEGER PRIMARY KEY);`,
		"002_child.sql": `CREATE TABLE child (id INTEGER PRIMARY KEY, base_id INTEGER REFERENCES base(id)); INSERT INTO base (id) VALUES (1);`,
	}
	for name, sql := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Migrate(dir); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	var versions []int
	rows, err := s.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			t.Fatal(err)
		}
		versions = append(versions, v)
	}
	if len(versions) != 2 || versions[0] != 1 || versions[1] != 2 {
		t.Fatalf("expected versions [1 2], got %v", versions)
	}
}

func TestMigrateInvalidFilename(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad_name.sql"), []byte("SELECT 1"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.Migrate(dir); err == nil {
		t.Fatal("expected error for invalid migration filename")
	}
}

func TestMigrateRollsBackFailedFile(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	dir := t.TempDir()
	sql := `CREATE TABLE half (id INTEGER PRIMARY KEY); THIS IS NOT SQL;`
	if err := os.WriteFile(filepath.Join(dir, "001_broken.sql"), []byte(sql), 0644); err != nil {
		t.Fatal(err)
	}

	if err := s.Migrate(dir); err == nil {
		t.Fatal("expected error for broken migration")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected no recorded migrations after rollback, got %d", count)
	}
}
