// Package jobs owns the lifecycle of background work: creation, progress,
// terminal transitions, and a broadcast stream for UI subscribers. Jobs are
// mutated only through Coordinator operations; callers always receive copies.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chanplan/internal/log"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
)

const (
	// eventBuffer is the per-subscriber queue depth. A subscriber that
	// falls this far behind is dropped rather than allowed to block
	// mutating operations.
	eventBuffer = 64

	// defaultRetention bounds how many terminal jobs are kept for
	// listing. Active jobs are never evicted.
	defaultRetention = 50
)

type Coordinator struct {
	logger zerolog.Logger
	retain int

	mu      sync.Mutex
	jobs    map[string]*models.Job
	cancels map[string]context.CancelFunc
	subs    map[chan models.Event]struct{}
}

type Option func(*Coordinator)

// WithRetention overrides the terminal-job retention bound.
func WithRetention(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.retain = n
		}
	}
}

func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:  log.WithComponent("jobs"),
		retain:  defaultRetention,
		jobs:    make(map[string]*models.Job),
		cancels: make(map[string]context.CancelFunc),
		subs:    make(map[chan models.Event]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create registers a new pending job and broadcasts job_created.
func (c *Coordinator) Create(kind models.JobKind, title string) *models.Job {
	job := &models.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    models.JobPending,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	out := job.Clone()
	c.broadcastLocked(models.Event{Type: models.EventJobCreated, Job: job.Clone()})
	c.mu.Unlock()

	metrics.JobStarted()
	c.logger.Info().Str("job", job.ID).Str("kind", string(kind)).Str("title", title).Msg("job created")
	return out
}

// Start transitions a pending job to running and returns a context derived
// from parent that Cancel will cancel. Starting a job in any other state,
// including one cancelled while still pending, is an error.
func (c *Coordinator) Start(parent context.Context, id string) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if job.Status != models.JobPending {
		return nil, fmt.Errorf("job %s is %s, cannot start", id, job.Status)
	}

	runCtx, cancel := context.WithCancel(parent)
	c.cancels[id] = cancel
	job.Status = models.JobRunning
	now := time.Now().UTC()
	job.StartedAt = &now

	c.broadcastLocked(models.Event{Type: models.EventJobStarted, Job: job.Clone()})
	return runCtx, nil
}

// SetSteps replaces the job's step list and broadcasts job_progress.
func (c *Coordinator) SetSteps(id string, steps []models.ProgressStep) error {
	return c.update(id, func(job *models.Job) {
		job.Steps = make([]models.ProgressStep, len(steps))
		copy(job.Steps, steps)
	})
}

// UpdateStep sets one step's status and detail and broadcasts job_progress.
// Unknown step ids are ignored so workers need not track step membership.
func (c *Coordinator) UpdateStep(id, stepID string, status models.StepStatus, detail string) error {
	return c.update(id, func(job *models.Job) {
		for i := range job.Steps {
			if job.Steps[i].ID == stepID {
				job.Steps[i].Status = status
				job.Steps[i].Detail = detail
				return
			}
		}
	})
}

// Extras carries optional run metrics attached to a progress update.
type Extras struct {
	BestScore        *float64
	CurrentIteration *int
	TotalIterations  *int
}

// UpdateProgress records percentage progress and broadcasts job_progress.
// pct is clamped to [0, 100].
func (c *Coordinator) UpdateProgress(id string, pct float64, currentStep string, extras Extras) error {
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	return c.update(id, func(job *models.Job) {
		job.Progress = pct
		job.CurrentStep = currentStep
		if extras.BestScore != nil {
			v := *extras.BestScore
			job.BestScore = &v
		}
		if extras.CurrentIteration != nil {
			v := *extras.CurrentIteration
			job.CurrentIteration = &v
		}
		if extras.TotalIterations != nil {
			v := *extras.TotalIterations
			job.TotalIterations = &v
		}
	})
}

// update applies fn to a live (non-terminal) job under the lock and
// broadcasts a single job_progress event.
func (c *Coordinator) update(id string, fn func(*models.Job)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is %s, cannot update", id, job.Status)
	}
	fn(job)
	c.broadcastLocked(models.Event{Type: models.EventJobProgress, Job: job.Clone()})
	return nil
}

// Complete transitions a live job to completed with an optional result and
// broadcasts job_completed.
func (c *Coordinator) Complete(id string, result any) error {
	err := c.finish(id, models.JobCompleted, func(job *models.Job) {
		job.Progress = 100
		job.Result = result
	})
	if err == nil {
		c.logger.Info().Str("job", id).Msg("job completed")
	}
	return err
}

// Fail transitions a live job to failed with a diagnostic message and
// broadcasts job_failed.
func (c *Coordinator) Fail(id, message string) error {
	err := c.finish(id, models.JobFailed, func(job *models.Job) {
		job.Error = message
	})
	if err == nil {
		c.logger.Warn().Str("job", id).Str("error", message).Msg("job failed")
	}
	return err
}

// Cancel transitions a pending or running job to cancelled, cancels its
// derived context, and broadcasts job_cancelled. It reports whether a
// transition happened; terminal and unknown jobs return false.
func (c *Coordinator) Cancel(id string) bool {
	err := c.finish(id, models.JobCancelled, nil)
	if err != nil {
		return false
	}
	c.logger.Info().Str("job", id).Msg("job cancelled")
	return true
}

func (c *Coordinator) finish(id string, status models.JobStatus, fn func(*models.Job)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s is already %s", id, job.Status)
	}

	if cancel, ok := c.cancels[id]; ok {
		cancel()
		delete(c.cancels, id)
	}

	job.Status = status
	now := time.Now().UTC()
	job.CompletedAt = &now
	if fn != nil {
		fn(job)
	}

	c.broadcastLocked(models.Event{Type: eventFor(status), Job: job.Clone()})
	c.evictLocked()
	metrics.JobFinished()
	return nil
}

func eventFor(status models.JobStatus) models.EventType {
	switch status {
	case models.JobCompleted:
		return models.EventJobCompleted
	case models.JobFailed:
		return models.EventJobFailed
	default:
		return models.EventJobCancelled
	}
}

// Get returns a copy of the job, if known.
func (c *Coordinator) Get(id string) (*models.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// ListActive returns pending and running jobs, oldest first.
func (c *Coordinator) ListActive() []*models.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*models.Job
	for _, job := range c.jobs {
		if !job.Status.Terminal() {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ListRecent returns up to limit jobs of any status, newest first.
// limit <= 0 returns everything retained.
func (c *Coordinator) ListRecent(limit int) []*models.Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.snapshotLocked()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ClearTerminal removes all completed, failed, and cancelled jobs and
// broadcasts a fresh jobs_state snapshot. Returns how many were removed.
func (c *Coordinator) ClearTerminal() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, job := range c.jobs {
		if job.Status.Terminal() {
			delete(c.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		c.broadcastLocked(models.Event{Type: models.EventJobsState, Jobs: c.snapshotLocked()})
	}
	return removed
}

// CleanupOlder removes terminal jobs that finished more than age ago and
// broadcasts a fresh jobs_state snapshot when anything was removed.
func (c *Coordinator) CleanupOlder(age time.Duration) int {
	cutoff := time.Now().UTC().Add(-age)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, job := range c.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(c.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		c.broadcastLocked(models.Event{Type: models.EventJobsState, Jobs: c.snapshotLocked()})
	}
	return removed
}

// Subscribe registers a new event stream. The first event on the channel
// is a jobs_state snapshot; because the snapshot is enqueued under the same
// lock every mutation takes, no later event can precede it.
func (c *Coordinator) Subscribe() chan models.Event {
	ch := make(chan models.Event, eventBuffer)

	c.mu.Lock()
	ch <- models.Event{Type: models.EventJobsState, Jobs: c.snapshotLocked()}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	metrics.SubscriberAdded()
	return ch
}

// Unsubscribe removes and closes the channel. Safe to call after the
// coordinator has already dropped the subscriber for falling behind.
func (c *Coordinator) Unsubscribe(ch chan models.Event) {
	c.mu.Lock()
	_, exists := c.subs[ch]
	delete(c.subs, ch)
	c.mu.Unlock()
	if exists {
		close(ch)
		metrics.SubscriberRemoved()
	}
}

// broadcastLocked enqueues ev on every subscriber without blocking. A
// subscriber with a full buffer is dropped and its channel closed.
func (c *Coordinator) broadcastLocked(ev models.Event) {
	for ch := range c.subs {
		select {
		case ch <- ev:
		default:
			delete(c.subs, ch)
			close(ch)
			metrics.SubscriberRemoved()
			c.logger.Warn().Str("event", string(ev.Type)).Msg("dropping slow job subscriber")
		}
	}
}

// snapshotLocked clones every retained job, newest first.
func (c *Coordinator) snapshotLocked() []*models.Job {
	out := make([]*models.Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// evictLocked drops the oldest terminal jobs once more than retain of them
// have accumulated.
func (c *Coordinator) evictLocked() {
	var terminal []*models.Job
	for _, job := range c.jobs {
		if job.Status.Terminal() {
			terminal = append(terminal, job)
		}
	}
	if len(terminal) <= c.retain {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		ti, tj := terminal[i].CompletedAt, terminal[j].CompletedAt
		if ti != nil && tj != nil && !ti.Equal(*tj) {
			return ti.Before(*tj)
		}
		return terminal[i].CreatedAt.Before(terminal[j].CreatedAt)
	})
	for _, job := range terminal[:len(terminal)-c.retain] {
		delete(c.jobs, job.ID)
	}
}
