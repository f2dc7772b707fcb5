package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chanplan/internal/catalog"
	"chanplan/internal/generator"
	"chanplan/internal/jobs"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
	"chanplan/internal/sink"
	"chanplan/internal/suggest"
	"chanplan/internal/tmdb"
	"chanplan/internal/units"
)

// Step IDs for programming jobs. The UI keys off these, so they are stable.
const (
	stepPool     = "build_pool"
	stepGenerate = "generate"
	stepSuggest  = "ai_suggestions"
	stepPersist  = "persist"
	stepPush     = "push"
)

// StartRun validates a programming request, resolves its channel and
// profile, and launches the run as a background job. The returned job is
// already visible to subscribers.
func (s *Server) StartRun(req models.ProgrammingRequest) (*models.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, models.ConfigError("%v", err)
	}

	profile, err := s.store.GetProfile(req.ProfileID)
	if err != nil {
		return nil, err
	}

	var channel *models.Channel
	if req.ChannelID > 0 {
		if channel, err = s.store.GetChannel(req.ChannelID); err != nil {
			return nil, err
		}
	} else if !req.PreviewOnly {
		return nil, models.ConfigError("channelId is required unless previewOnly is set")
	}

	title := "Generate " + profile.Name
	if channel != nil {
		title = fmt.Sprintf("Generate %s for %s", profile.Name, channel.Name)
	}

	job := s.jobs.Create(models.JobKindProgramming, title)
	go s.runProgramming(job.ID, req, profile, channel)
	return job, nil
}

func (s *Server) runProgramming(jobID string, req models.ProgrammingRequest, profile *models.Profile, channel *models.Channel) {
	began := time.Now()
	status := "completed"
	defer func() {
		metrics.ObserveGeneration(status, time.Since(began))
	}()

	ctx, err := s.jobs.Start(context.Background(), jobID)
	if err != nil {
		status = "failed"
		return
	}

	target := s.pushTarget(channel)
	s.setRunSteps(jobID, req, target != nil)

	fail := func(step string, err error) {
		if step != "" {
			_ = s.jobs.UpdateStep(jobID, step, models.StepFailed, err.Error())
		}
		if errors.Is(err, context.Canceled) {
			status = "cancelled"
		} else {
			status = "failed"
		}
		_ = s.jobs.Fail(jobID, err.Error())
		s.recordJob(jobID)
	}

	_ = s.jobs.UpdateStep(jobID, stepPool, models.StepRunning, "")
	pool, err := catalog.NewBuilder(s.store, s.runEnricher()).BuildPool(ctx, profile, req.CacheMode)
	if err != nil {
		fail(stepPool, err)
		return
	}
	_ = s.jobs.UpdateStep(jobID, stepPool, models.StepCompleted, fmt.Sprintf("%d items", len(pool)))

	loc := s.loc
	if channel != nil {
		loc = channel.Location()
	}
	start, err := req.StartTime(loc)
	if err != nil {
		fail(stepGenerate, err)
		return
	}

	_ = s.jobs.UpdateStep(jobID, stepGenerate, models.StepRunning, "")
	result, err := s.gen.Run(ctx, generator.Params{
		Profile:          profile,
		Pool:             pool,
		Start:            start,
		DurationHours:    req.DurationHours(),
		Iterations:       req.Iterations,
		Randomness:       *req.Randomness,
		Seed:             req.Seed,
		ReplaceForbidden: req.ReplaceForbidden,
		ImproveBest:      req.ImproveBest,
		Location:         loc,
		OnProgress: func(p generator.Progress) {
			extras := jobs.Extras{BestScore: &p.BestScore}
			if p.TotalIterations > 0 {
				extras.CurrentIteration = &p.Iteration
				extras.TotalIterations = &p.TotalIterations
			}
			_ = s.jobs.UpdateProgress(jobID, runPct(p), p.Stage, extras)
		},
	})
	if err != nil {
		fail(stepGenerate, err)
		return
	}
	_ = s.jobs.UpdateStep(jobID, stepGenerate, models.StepCompleted,
		fmt.Sprintf("%d programs (%s), score %.1f",
			len(result.Programs), units.FormatRuntime(result.TotalDurationMinutes()), result.TotalScore))

	// Suggestions are advisory. A failed call marks the step and moves on.
	if req.AIImprove {
		_ = s.jobs.UpdateStep(jobID, stepSuggest, models.StepRunning, "")
		if text, serr := s.runSuggest(ctx, req, profile, result); serr != nil {
			_ = s.jobs.UpdateStep(jobID, stepSuggest, models.StepFailed, serr.Error())
		} else {
			result.AIResponse = text
			_ = s.jobs.UpdateStep(jobID, stepSuggest, models.StepCompleted, "")
		}
	}

	if !req.PreviewOnly {
		_ = s.jobs.UpdateStep(jobID, stepPersist, models.StepRunning, "")
		stored, err := s.store.SaveResult(channel.ID, profile.ID, result)
		if err != nil {
			fail(stepPersist, err)
			return
		}
		_ = s.jobs.UpdateStep(jobID, stepPersist, models.StepCompleted, fmt.Sprintf("result %d", stored.ID))

		if keep, err := s.store.GetResultRetention(); err == nil {
			_, _ = s.store.PruneResults(channel.ID, keep)
		}

		// A failed push marks the step, never the run. The result is
		// already saved and the schedule can be re-pushed later.
		if target != nil {
			_ = s.jobs.UpdateStep(jobID, stepPush, models.StepRunning, "")
			if err := target.PushSchedule(ctx, channel.ID, result); err != nil {
				_ = s.jobs.UpdateStep(jobID, stepPush, models.StepFailed, err.Error())
			} else {
				_ = s.jobs.UpdateStep(jobID, stepPush, models.StepCompleted, "")
			}
		}
	}

	_ = s.jobs.Complete(jobID, result)
	s.recordJob(jobID)
}

func (s *Server) setRunSteps(jobID string, req models.ProgrammingRequest, willPush bool) {
	steps := []models.ProgressStep{
		{ID: stepPool, Label: "Building content pool", Status: models.StepPending},
		{ID: stepGenerate, Label: "Generating schedule", Status: models.StepPending},
	}
	if req.AIImprove {
		steps = append(steps, models.ProgressStep{ID: stepSuggest, Label: "Requesting suggestions", Status: models.StepPending})
	}
	if !req.PreviewOnly {
		steps = append(steps, models.ProgressStep{ID: stepPersist, Label: "Saving result", Status: models.StepPending})
		if willPush {
			steps = append(steps, models.ProgressStep{ID: stepPush, Label: "Pushing schedule", Status: models.StepPending})
		}
	}
	_ = s.jobs.SetSteps(jobID, steps)
}

// runPct maps generator progress onto the job's percentage range. Iterations
// cover 10 to 85; the refinement passes land between there and completion.
func runPct(p generator.Progress) float64 {
	switch p.Stage {
	case "improve":
		return 90
	case "replace_forbidden":
		return 95
	default:
		if p.TotalIterations <= 0 {
			return 10
		}
		return 10 + 75*float64(p.Iteration)/float64(p.TotalIterations)
	}
}

// runEnricher resolves the metadata client for pool builds. An explicit
// seam wins; otherwise the stored TMDB key is used. Nil means pool builds
// proceed on library and cache data alone.
func (s *Server) runEnricher() catalog.Enricher {
	if s.enricher != nil {
		return s.enricher
	}
	cfg, err := s.store.GetTMDBConfig()
	if err != nil || cfg.APIKey == "" {
		return nil
	}
	c := tmdb.New(cfg.APIKey, s.hot)
	if cfg.Language != "" {
		c.SetLanguage(cfg.Language)
	}
	return c
}

// pushTarget resolves where a finished schedule gets pushed. The channel's
// own URL overrides the stored default; nil when neither is configured.
func (s *Server) pushTarget(channel *models.Channel) sink.Sink {
	if channel == nil {
		return nil
	}
	cfg, err := s.store.GetSinkConfig()
	if err != nil {
		s.log.Warn().Err(err).Msg("reading sink config")
		return nil
	}
	url := cfg.URL
	if channel.SinkURL != "" {
		url = channel.SinkURL
	}
	if url == "" {
		return nil
	}
	return s.newSink(url, cfg.APIKey)
}

func (s *Server) runSuggest(ctx context.Context, req models.ProgrammingRequest, profile *models.Profile, result *models.ProgrammingResult) (string, error) {
	sg := s.suggester
	if sg == nil {
		cfg, err := s.store.GetSuggestConfig()
		if err != nil {
			return "", err
		}
		if cfg.URL == "" {
			return "", models.ConfigError("suggestion service not configured")
		}
		sg = suggest.New(cfg.URL, cfg.APIKey, cfg.Model)
	}
	return sg.Suggest(ctx, buildSuggestPrompt(req, profile, result), req.AIModel)
}

// buildSuggestPrompt renders the generated lineup as plain text for review.
// Long schedules are truncated; the head of the lineup is what matters.
const maxPromptPrograms = 48

func buildSuggestPrompt(req models.ProgrammingRequest, profile *models.Profile, result *models.ProgrammingResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile: %s\n", profile.Name)
	fmt.Fprintf(&b, "Total score: %.1f over %d programs (average %.1f)\n",
		result.TotalScore, len(result.Programs), result.AverageScore)
	fmt.Fprintf(&b, "Runtime: %s\n", units.FormatRuntime(result.TotalDurationMinutes()))
	if result.ForbiddenCount > 0 {
		fmt.Fprintf(&b, "Programs violating forbidden rules: %d\n", result.ForbiddenCount)
	}
	b.WriteString("\nSchedule:\n")
	for i := range result.Programs {
		if i == maxPromptPrograms {
			fmt.Fprintf(&b, "... and %d more programs\n", len(result.Programs)-i)
			break
		}
		p := &result.Programs[i]
		fmt.Fprintf(&b, "%s  %-8s %s (score %.1f)\n",
			p.StartTime.Format("Mon 15:04"), p.BlockName, p.Content.Title, p.TotalScore())
	}
	if req.AIPrompt != "" {
		b.WriteString("\n")
		b.WriteString(req.AIPrompt)
		b.WriteString("\n")
	}
	return b.String()
}
