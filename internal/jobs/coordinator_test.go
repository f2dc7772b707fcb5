package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"chanplan/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubscriberObservesLifecycleInOrder(t *testing.T) {
	c := New()
	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	job := c.Create(models.JobKindProgramming, "nightly schedule")
	_, err := c.Start(context.Background(), job.ID)
	require.NoError(t, err)
	require.NoError(t, c.UpdateProgress(job.ID, 25, "iterations", Extras{}))
	require.NoError(t, c.UpdateProgress(job.ID, 50, "iterations", Extras{}))
	require.NoError(t, c.Complete(job.ID, nil))

	want := []models.EventType{
		models.EventJobsState,
		models.EventJobCreated,
		models.EventJobStarted,
		models.EventJobProgress,
		models.EventJobProgress,
		models.EventJobCompleted,
	}
	events := make([]models.Event, 0, len(want))
	for range want {
		events = append(events, <-ch)
	}
	for i, typ := range want {
		assert.Equal(t, typ, events[i].Type, "event %d", i)
	}

	assert.Empty(t, events[0].Jobs, "snapshot taken before any job existed")
	assert.Equal(t, models.JobPending, events[1].Job.Status)
	assert.Equal(t, models.JobRunning, events[2].Job.Status)
	require.NotNil(t, events[2].Job.StartedAt)
	assert.Equal(t, 25.0, events[3].Job.Progress)
	assert.Equal(t, 50.0, events[4].Job.Progress, "per-job events arrive in broadcast order")
	assert.Equal(t, models.JobCompleted, events[5].Job.Status)
	assert.Equal(t, 100.0, events[5].Job.Progress)
}

func TestCancelPendingNeverRuns(t *testing.T) {
	c := New()
	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	job := c.Create(models.JobKindScoring, "score batch")
	require.True(t, c.Cancel(job.ID))

	_, err := c.Start(context.Background(), job.ID)
	require.Error(t, err, "a cancelled job must never start")

	got, ok := c.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, models.JobCancelled, got.Status)

	<-ch // jobs_state
	<-ch // job_created
	ev := <-ch
	assert.Equal(t, models.EventJobCancelled, ev.Type)
}

func TestCancelTerminalReturnsFalse(t *testing.T) {
	c := New()
	job := c.Create(models.JobKindSync, "library sync")
	_, err := c.Start(context.Background(), job.ID)
	require.NoError(t, err)
	require.NoError(t, c.Complete(job.ID, nil))

	assert.False(t, c.Cancel(job.ID))
	assert.False(t, c.Cancel("no-such-job"))
}

func TestCancelStopsDerivedContext(t *testing.T) {
	c := New()
	job := c.Create(models.JobKindProgramming, "long run")
	ctx, err := c.Start(context.Background(), job.ID)
	require.NoError(t, err)

	require.True(t, c.Cancel(job.ID))

	select {
	case <-ctx.Done():
	default:
		t.Fatal("derived context still live after cancel")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestLateSubscriberSeesSnapshotOnly(t *testing.T) {
	c := New()
	job := c.Create(models.JobKindProgramming, "finished before anyone watched")
	_, err := c.Start(context.Background(), job.ID)
	require.NoError(t, err)
	require.NoError(t, c.Complete(job.ID, "ok"))

	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	ev := <-ch
	require.Equal(t, models.EventJobsState, ev.Type)
	require.Len(t, ev.Jobs, 1)
	assert.Equal(t, models.JobCompleted, ev.Jobs[0].Status)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected replayed event %q", extra.Type)
	default:
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	c := New()
	slow := c.Subscribe()

	// Nobody drains; the snapshot plus these broadcasts overflow the buffer.
	for i := 0; i < eventBuffer+5; i++ {
		c.Create(models.JobKindSync, "burst")
	}

	received := 0
	for range slow {
		received++
	}
	assert.LessOrEqual(t, received, eventBuffer)

	// Unsubscribe after the drop must not double-close.
	c.Unsubscribe(slow)
}

func TestUpdateProgressExtrasAndClamping(t *testing.T) {
	c := New()
	job := c.Create(models.JobKindProgramming, "run")
	_, err := c.Start(context.Background(), job.ID)
	require.NoError(t, err)

	best := 87.5
	cur, tot := 3, 10
	require.NoError(t, c.UpdateProgress(job.ID, 30, "iterations", Extras{
		BestScore:        &best,
		CurrentIteration: &cur,
		TotalIterations:  &tot,
	}))

	got, ok := c.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, 30.0, got.Progress)
	assert.Equal(t, "iterations", got.CurrentStep)
	require.NotNil(t, got.BestScore)
	assert.Equal(t, 87.5, *got.BestScore)
	require.NotNil(t, got.CurrentIteration)
	assert.Equal(t, 3, *got.CurrentIteration)
	require.NotNil(t, got.TotalIterations)
	assert.Equal(t, 10, *got.TotalIterations)

	require.NoError(t, c.UpdateProgress(job.ID, 150, "late", Extras{}))
	got, _ = c.Get(job.ID)
	assert.Equal(t, 100.0, got.Progress)

	require.NoError(t, c.UpdateProgress(job.ID, -5, "early", Extras{}))
	got, _ = c.Get(job.ID)
	assert.Equal(t, 0.0, got.Progress)
}

func TestStepsLifecycle(t *testing.T) {
	c := New()
	job := c.Create(models.JobKindProgramming, "stepped run")

	require.NoError(t, c.SetSteps(job.ID, []models.ProgressStep{
		{ID: "fetch", Label: "Fetch content", Status: models.StepPending},
		{ID: "generate", Label: "Generate schedule", Status: models.StepPending},
	}))
	require.NoError(t, c.UpdateStep(job.ID, "fetch", models.StepCompleted, "120 items"))
	require.NoError(t, c.UpdateStep(job.ID, "ghost", models.StepFailed, "ignored"))

	got, ok := c.Get(job.ID)
	require.True(t, ok)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, models.StepCompleted, got.Steps[0].Status)
	assert.Equal(t, "120 items", got.Steps[0].Detail)
	assert.Equal(t, models.StepPending, got.Steps[1].Status)

	// Returned jobs are copies; mutating one must not leak back.
	got.Steps[0].Status = models.StepFailed
	again, _ := c.Get(job.ID)
	assert.Equal(t, models.StepCompleted, again.Steps[0].Status)
}

func TestFailRecordsMessage(t *testing.T) {
	c := New()
	job := c.Create(models.JobKindProgramming, "doomed")
	_, err := c.Start(context.Background(), job.ID)
	require.NoError(t, err)
	require.NoError(t, c.Fail(job.ID, "pool is empty"))

	got, _ := c.Get(job.ID)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, "pool is empty", got.Error)
	require.NotNil(t, got.CompletedAt)

	require.Error(t, c.Complete(job.ID, nil), "terminal jobs reject further transitions")
}

func TestOperationsOnUnknownJob(t *testing.T) {
	c := New()

	_, err := c.Start(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, c.UpdateProgress("nope", 10, "", Extras{}), models.ErrNotFound)
	assert.ErrorIs(t, c.Complete("nope", nil), models.ErrNotFound)
	assert.ErrorIs(t, c.Fail("nope", "x"), models.ErrNotFound)
	assert.False(t, c.Cancel("nope"))
}

func TestListActiveAndRecent(t *testing.T) {
	c := New()
	first := c.Create(models.JobKindProgramming, "first")
	second := c.Create(models.JobKindScoring, "second")
	_, err := c.Start(context.Background(), second.ID)
	require.NoError(t, err)
	third := c.Create(models.JobKindSync, "third")
	_, err = c.Start(context.Background(), third.ID)
	require.NoError(t, err)
	require.NoError(t, c.Complete(third.ID, nil))

	active := c.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID, "oldest active first")
	assert.Equal(t, second.ID, active[1].ID)

	recent := c.ListRecent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, third.ID, recent[0].ID, "newest first")
	assert.Equal(t, second.ID, recent[1].ID)

	assert.Len(t, c.ListRecent(0), 3)
}

func TestClearTerminal(t *testing.T) {
	c := New()
	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	live := c.Create(models.JobKindProgramming, "live")
	done := c.Create(models.JobKindSync, "done")
	_, err := c.Start(context.Background(), done.ID)
	require.NoError(t, err)
	require.NoError(t, c.Complete(done.ID, nil))

	assert.Equal(t, 1, c.ClearTerminal())

	_, ok := c.Get(done.ID)
	assert.False(t, ok)
	_, ok = c.Get(live.ID)
	assert.True(t, ok)

	// Initial snapshot, two creations, start, completion, then the
	// post-clear snapshot listing only the live job.
	var last models.Event
	for i := 0; i < 6; i++ {
		last = <-ch
	}
	require.Equal(t, models.EventJobsState, last.Type)
	require.Len(t, last.Jobs, 1)
	assert.Equal(t, live.ID, last.Jobs[0].ID)
}

func TestCleanupOlder(t *testing.T) {
	c := New()
	job := c.Create(models.JobKindSync, "old sync")
	_, err := c.Start(context.Background(), job.ID)
	require.NoError(t, err)
	require.NoError(t, c.Complete(job.ID, nil))

	assert.Equal(t, 0, c.CleanupOlder(time.Hour), "freshly finished jobs stay")
	_, ok := c.Get(job.ID)
	assert.True(t, ok)

	assert.Equal(t, 1, c.CleanupOlder(0))
	_, ok = c.Get(job.ID)
	assert.False(t, ok)
}

func TestRetentionEvictsOldestTerminal(t *testing.T) {
	c := New(WithRetention(3))
	var ids []string
	for i := 0; i < 5; i++ {
		job := c.Create(models.JobKindSync, fmt.Sprintf("job %d", i))
		_, err := c.Start(context.Background(), job.ID)
		require.NoError(t, err)
		require.NoError(t, c.Complete(job.ID, nil))
		ids = append(ids, job.ID)
	}

	assert.Len(t, c.ListRecent(0), 3)
	_, ok := c.Get(ids[0])
	assert.False(t, ok, "oldest terminal evicted")
	_, ok = c.Get(ids[4])
	assert.True(t, ok, "newest kept")
}

func TestConcurrentMutatorsAndSubscriber(t *testing.T) {
	c := New()
	ch := c.Subscribe()
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range ch {
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				job := c.Create(models.JobKindSync, "stress")
				if _, err := c.Start(context.Background(), job.ID); err != nil {
					continue
				}
				_ = c.UpdateProgress(job.ID, 50, "work", Extras{})
				_ = c.Complete(job.ID, nil)
			}
		}()
	}
	wg.Wait()

	c.Unsubscribe(ch)
	<-drained
	assert.Empty(t, c.ListActive())
}
