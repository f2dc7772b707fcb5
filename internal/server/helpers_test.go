package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"chanplan/internal/jobs"
	"chanplan/internal/models"
	"chanplan/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	_, f, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(f), "..", "..", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations dir: %v", err)
	}
	if err := s.Migrate(dir); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	s := newTestStore(t)
	srv := NewServer(s, jobs.New(), opts...)
	return srv, s
}

func seedProfile(t *testing.T, s *store.Store) *models.Profile {
	t.Helper()
	p := &models.Profile{
		Name: "Evenings",
		TimeBlocks: []models.TimeBlock{
			{Name: "prime", Start: "19:00", End: "23:00"},
		},
	}
	if err := s.CreateProfile(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func seedChannel(t *testing.T, s *store.Store, profileID int64) *models.Channel {
	t.Helper()
	c := &models.Channel{Name: "Channel 4", ProfileID: profileID, Enabled: true}
	if err := s.CreateChannel(c); err != nil {
		t.Fatal(err)
	}
	return c
}

// seedContent fills the catalog with n movies so pool builds have
// something to schedule.
func seedContent(t *testing.T, s *store.Store, n int) {
	t.Helper()
	srv := &models.MediaServer{Name: "Test Plex", Type: models.ServerTypePlex, URL: "http://plex.local", APIKey: "k", Enabled: true}
	if err := s.CreateServer(srv); err != nil {
		t.Fatal(err)
	}
	items := make([]models.Content, n)
	for i := range items {
		items[i] = models.Content{
			ID:             fmt.Sprintf("movie-%d", i),
			Title:          fmt.Sprintf("Movie %d", i),
			Type:           models.ContentTypeMovie,
			DurationMillis: int64(90+i) * 60 * 1000,
			LibraryID:      "lib1",
		}
	}
	if _, err := s.UpsertContent(context.Background(), srv.ID, items); err != nil {
		t.Fatal(err)
	}
}

// waitForJob polls until the job leaves the active set or the deadline
// passes.
func waitForJob(t *testing.T, coord *jobs.Coordinator, id string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := coord.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}
