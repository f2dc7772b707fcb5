// Package scheduler drives recurring work: it fires generation runs at
// their configured times and performs nightly catalog maintenance.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chanplan/internal/catalog"
	"chanplan/internal/jobs"
	"chanplan/internal/log"
	"chanplan/internal/models"
	"chanplan/internal/store"
)

const (
	DefaultSyncTimeout = 5 * time.Minute

	// enrichLimit caps how many titles one nightly pass backfills so a
	// large catalog cannot pin the TMDB client all night.
	enrichLimit = 500
)

// RunFunc executes one due schedule. The server wires this to job
// submission so scheduled runs flow through the same path as manual ones.
type RunFunc func(ctx context.Context, sched *models.RunSchedule)

type Scheduler struct {
	store       *store.Store
	syncer      *catalog.Syncer
	run         RunFunc
	enricher    catalog.Enricher
	jobs        *jobs.Coordinator
	loc         *time.Location
	syncTimeout time.Duration
	log         zerolog.Logger

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Scheduler)

func WithSyncTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.syncTimeout = d
	}
}

// WithLocation sets the zone used for schedule clock times and the
// nightly maintenance hour. Defaults to local time.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

// WithEnricher enables the nightly metadata backfill.
func WithEnricher(e catalog.Enricher) Option {
	return func(s *Scheduler) {
		s.enricher = e
	}
}

// WithJobs lets the nightly pass age out finished jobs from the live
// coordinator alongside the durable history prune.
func WithJobs(coord *jobs.Coordinator) Option {
	return func(s *Scheduler) {
		s.jobs = coord
	}
}

func New(st *store.Store, syncer *catalog.Syncer, run RunFunc, opts ...Option) *Scheduler {
	sch := &Scheduler{
		store:       st,
		syncer:      syncer,
		run:         run,
		loc:         time.Local,
		syncTimeout: DefaultSyncTimeout,
		log:         log.WithComponent("scheduler"),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sch)
	}
	return sch
}

// Start runs the scheduler: immediate catalog sync on startup, schedule
// checks every minute, and maintenance daily at 3 AM.
func (sch *Scheduler) Start(ctx context.Context) {
	sch.startOnce.Do(func() {
		ctx, sch.cancel = context.WithCancel(ctx)
		go sch.loop(ctx)
	})
}

func (sch *Scheduler) Stop() {
	if sch.cancel != nil {
		sch.cancel()
		<-sch.done
	}
}

func (sch *Scheduler) loop(ctx context.Context) {
	defer close(sch.done)

	sch.nightly(ctx)

	minute := time.NewTicker(time.Minute)
	defer minute.Stop()

	night := time.NewTimer(durationUntil3AM(time.Now().In(sch.loc)))
	defer night.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-minute.C:
			sch.dispatchDue(ctx, now)
		case <-night.C:
			sch.nightly(ctx)
			// Recalculate to handle DST transitions
			night.Reset(durationUntil3AM(time.Now().In(sch.loc)))
		}
	}
}

// dispatchDue fires every enabled schedule matching the current minute.
// The LastRunAt guard keeps a schedule from double firing when two ticks
// land inside the same clock minute.
func (sch *Scheduler) dispatchDue(ctx context.Context, now time.Time) {
	scheds, err := sch.store.ListEnabledSchedules()
	if err != nil {
		sch.log.Error().Err(err).Msg("listing schedules")
		return
	}

	local := now.In(sch.loc)
	for i := range scheds {
		sched := &scheds[i]
		if !sched.DueAt(local) {
			continue
		}
		if sched.LastRunAt != nil && now.Sub(*sched.LastRunAt) < time.Minute {
			continue
		}
		if err := sch.store.MarkScheduleRun(sched.ID); err != nil {
			sch.log.Error().Err(err).Int64("schedule", sched.ID).Msg("marking schedule run")
			continue
		}
		sch.log.Info().
			Int64("schedule", sched.ID).
			Str("name", sched.Name).
			Int64("channel", sched.ChannelID).
			Msg("schedule due, starting run")
		sch.run(ctx, sched)
	}
}

// nightly refreshes the catalog from every enabled server, backfills
// missing metadata, and prunes old results and job history.
func (sch *Scheduler) nightly(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, sch.syncTimeout)
	defer cancel()

	start := time.Now().UTC()

	reports, err := sch.syncer.SyncAll(syncCtx)
	if err != nil {
		sch.log.Error().Err(err).Msg("nightly sync completed with errors")
	}
	var items int
	for _, rep := range reports {
		items += rep.Synced
	}

	var enriched int
	if sch.enricher != nil {
		enriched, err = sch.syncer.EnrichMissing(syncCtx, sch.enricher, enrichLimit)
		if err != nil {
			sch.log.Error().Err(err).Msg("metadata backfill failed")
		}
	}

	report, err := sch.store.Cleanup()
	if err != nil {
		sch.log.Error().Err(err).Msg("retention cleanup failed")
	}

	var expired int
	if sch.jobs != nil {
		if days, derr := sch.store.GetJobHistoryDays(); derr == nil {
			expired = sch.jobs.CleanupOlder(time.Duration(days) * 24 * time.Hour)
		}
	}

	sch.log.Info().
		Int("servers", len(reports)).
		Int("items", items).
		Int("enriched", enriched).
		Int64("resultsPruned", report.ResultsPruned).
		Int64("jobsPruned", report.JobHistoryPruned).
		Int("jobsExpired", expired).
		Dur("took", time.Since(start).Round(time.Second)).
		Msg("nightly maintenance complete")
}

// durationUntil3AM uses the scheduler's zone so the job runs at 3 AM in
// the server's configured timezone.
func durationUntil3AM(now time.Time) time.Duration {
	next3AM := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())

	if !now.Before(next3AM) {
		next3AM = next3AM.Add(24 * time.Hour)
	}

	return next3AM.Sub(now)
}
