package store

import (
	"testing"
	"time"

	"chanplan/internal/models"
)

func terminalJob(id string, status models.JobStatus, created time.Time) *models.Job {
	started := created.Add(time.Second)
	completed := created.Add(time.Minute)
	return &models.Job{
		ID:          id,
		Kind:        models.JobKindProgramming,
		Status:      status,
		Title:       "Generate: Retro Movies",
		CreatedAt:   created,
		StartedAt:   &started,
		CompletedAt: &completed,
	}
}

func TestRecordJobRejectsActive(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	job := &models.Job{ID: "live", Kind: models.JobKindSync, Status: models.JobRunning, CreatedAt: time.Now().UTC()}
	if err := s.RecordJob(job); err == nil {
		t.Fatal("expected error recording a running job")
	}
}

func TestRecordJobAndList(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []models.JobStatus{models.JobCompleted, models.JobFailed, models.JobCancelled} {
		job := terminalJob(string(rune('a'+i)), status, base.Add(time.Duration(i)*time.Hour))
		if status == models.JobFailed {
			job.Error = "pool is empty"
		}
		if err := s.RecordJob(job); err != nil {
			t.Fatalf("RecordJob: %v", err)
		}
	}

	entries, err := s.ListJobHistory(10)
	if err != nil {
		t.Fatalf("ListJobHistory: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].ID != "c" || entries[2].ID != "a" {
		t.Fatalf("expected newest first, got %s .. %s", entries[0].ID, entries[2].ID)
	}
	for _, e := range entries {
		if e.Status == models.JobFailed && e.Error != "pool is empty" {
			t.Fatalf("expected failure message, got %q", e.Error)
		}
		if e.StartedAt == nil || e.CompletedAt == nil {
			t.Fatalf("expected timestamps, got %+v", e)
		}
	}

	limited, err := s.ListJobHistory(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Fatalf("expected limit to keep newest, got %+v", limited)
	}
}

func TestRecordJobIdempotent(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	created := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	job := terminalJob("again", models.JobFailed, created)
	job.Error = "first attempt"
	if err := s.RecordJob(job); err != nil {
		t.Fatal(err)
	}
	job.Status = models.JobCompleted
	job.Error = ""
	if err := s.RecordJob(job); err != nil {
		t.Fatalf("second RecordJob: %v", err)
	}

	entries, err := s.ListJobHistory(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after overwrite, got %d", len(entries))
	}
	if entries[0].Status != models.JobCompleted || entries[0].Error != "" {
		t.Fatalf("expected overwritten entry, got %+v", entries[0])
	}
}

func TestPruneJobHistory(t *testing.T) {
	s := newTestStoreWithMigrations(t)

	old := time.Now().UTC().AddDate(0, 0, -30)
	recent := time.Now().UTC().Add(-time.Hour)
	if err := s.RecordJob(terminalJob("old", models.JobCompleted, old)); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordJob(terminalJob("recent", models.JobCompleted, recent)); err != nil {
		t.Fatal(err)
	}

	removed, err := s.PruneJobHistory(time.Now().UTC().AddDate(0, 0, -14))
	if err != nil {
		t.Fatalf("PruneJobHistory: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}

	entries, err := s.ListJobHistory(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != "recent" {
		t.Fatalf("expected only recent entry, got %+v", entries)
	}
}
