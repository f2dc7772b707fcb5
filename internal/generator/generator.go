// Package generator assembles channel schedules. Each iteration greedily
// fills the planning range with scored picks, the best iteration wins, and
// optional improve and replace-forbidden passes mutate that winner.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"chanplan/internal/criteria"
	"chanplan/internal/log"
	"chanplan/internal/metrics"
	"chanplan/internal/models"
	"chanplan/internal/prefilter"
	"chanplan/internal/scoring"
	"chanplan/internal/timeblock"
)

// Progress stages reported through the callback.
const (
	StageIteration = "iteration"
	StageImprove   = "improve"
	StageReplace   = "replace_forbidden"
)

// Progress is one generation status update. Callbacks must not block.
type Progress struct {
	Stage           string  `json:"stage"`
	Iteration       int     `json:"iteration"`
	TotalIterations int     `json:"totalIterations"`
	BestScore       float64 `json:"bestScore"`
}

// Params configures one generation run. Pool and Profile are treated as
// immutable for the duration of the run.
type Params struct {
	Profile          *models.Profile
	Pool             []models.PoolItem
	Start            time.Time
	DurationHours    int
	Iterations       int
	Randomness       float64
	Seed             int64
	ReplaceForbidden bool
	ImproveBest      bool
	Location         *time.Location
	OnProgress       func(Progress)
}

func (p *Params) validate() error {
	if p.Profile == nil {
		return errors.New("profile is required")
	}
	if len(p.Profile.TimeBlocks) == 0 {
		return errors.New("profile has no time blocks")
	}
	if len(p.Pool) == 0 {
		return errors.New("content pool is empty")
	}
	if p.Iterations < 1 {
		return errors.New("iterations must be at least 1")
	}
	if p.Randomness < 0 || p.Randomness > 1 {
		return fmt.Errorf("randomness %.2f out of range [0,1]", p.Randomness)
	}
	if p.DurationHours <= 0 {
		return errors.New("duration must be positive")
	}
	return nil
}

type Generator struct {
	engine *scoring.Engine
	logger zerolog.Logger
}

func New() *Generator {
	return &Generator{
		engine: scoring.NewEngine(),
		logger: log.WithComponent("generator"),
	}
}

// iterationRun keeps one full candidate schedule for the mutation passes.
type iterationRun struct {
	iteration int
	programs  []models.ScheduledProgram
	total     float64
}

// Run executes the full generation pipeline. Cancellation is honored at
// iteration boundaries and between passes; a cancelled run returns the
// context error and no partial result.
func (g *Generator) Run(ctx context.Context, p Params) (*models.ProgrammingResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	resolver := timeblock.NewResolver(p.Profile.TimeBlocks, loc)
	if ok, gaps := resolver.ValidateCoverage(); !ok {
		// Gaps fill from the whole pool without block rules, which is
		// usually a profile mistake worth surfacing.
		g.logger.Warn().Int("gaps", len(gaps)).Msg("time blocks leave parts of the day uncovered")
	}
	start := p.Start.In(loc)
	end := start.Add(time.Duration(p.DurationHours) * time.Hour)

	pool := g.withoutProfileForbidden(p.Pool, p.Profile)
	if len(pool) == 0 {
		return nil, errors.New("no eligible content after forbidden filtering")
	}

	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	usedSeed := make(map[string]bool)
	for _, id := range p.Profile.MandatoryForbidden.Mandatory.ContentIDs {
		usedSeed[id] = true
	}

	g.logger.Info().
		Int64("seed", seed).
		Int("iterations", p.Iterations).
		Float64("randomness", p.Randomness).
		Int("pool", len(pool)).
		Time("start", start).
		Int("durationHours", p.DurationHours).
		Msg("generation started")

	runs := make([]iterationRun, 0, p.Iterations)
	best := -1
	for i := 1; i <= p.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterStart := time.Now()
		rng := rand.New(rand.NewSource(seed + int64(i)))
		programs := g.buildSchedule(rng, resolver, p.Profile, pool, usedSeed, start, end, p.Randomness)
		g.recalcBlockNames(programs, resolver)
		g.recalcTiming(programs, p.Profile, resolver)
		metrics.ObserveIteration(time.Since(iterStart))

		run := iterationRun{iteration: i, programs: programs, total: totalScore(programs)}
		runs = append(runs, run)
		if best == -1 || run.total > runs[best].total {
			best = len(runs) - 1
		}
		g.report(p.OnProgress, Progress{
			Stage: StageIteration, Iteration: i,
			TotalIterations: p.Iterations, BestScore: runs[best].total,
		})
		g.logger.Debug().
			Int("iteration", i).
			Int("programs", len(programs)).
			Float64("total", run.total).
			Msg("iteration finished")
	}

	bestRun := runs[best]
	result := &models.ProgrammingResult{
		Programs:              append([]models.ScheduledProgram(nil), bestRun.programs...),
		TotalScore:            bestRun.total,
		AverageScore:          averageScore(bestRun.programs),
		Iteration:             bestRun.iteration,
		Seed:                  seed,
		OriginalBestIteration: bestRun.iteration,
		OriginalBestScore:     bestRun.total,
	}

	all := make([]models.IterationSummary, 0, len(runs)+2)
	for _, run := range runs {
		all = append(all, models.IterationSummary{
			Iteration: run.iteration, TotalScore: run.total, Programs: run.programs,
		})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].TotalScore > all[j].TotalScore })

	nextIteration := p.Iterations + 1
	if p.ImproveBest && len(runs) >= 2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewSource(seed + int64(nextIteration)))
		improved := g.improvePass(rng, result, runs, best, p.Profile, resolver, usedSeed, p.Randomness)
		if improved > 0 {
			result.IsImproved = true
			result.ImprovedCount = improved
			result.Iteration = nextIteration
			result.TotalScore = totalScore(result.Programs)
			result.AverageScore = averageScore(result.Programs)
			all = append([]models.IterationSummary{{
				Iteration: nextIteration, TotalScore: result.TotalScore,
				Programs: result.Programs, Label: "improved",
			}}, all...)
			nextIteration++
		}
		g.report(p.OnProgress, Progress{
			Stage: StageImprove, Iteration: result.Iteration,
			TotalIterations: p.Iterations, BestScore: result.TotalScore,
		})
	}

	if p.ReplaceForbidden && forbiddenCount(result.Programs) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		replaced := g.replaceForbiddenPass(result, runs, best, pool, p.Profile, resolver, usedSeed)
		if replaced > 0 {
			result.IsOptimized = true
			result.ReplacedCount = replaced
			result.Iteration = nextIteration
			result.TotalScore = totalScore(result.Programs)
			result.AverageScore = averageScore(result.Programs)
			all = append([]models.IterationSummary{{
				Iteration: nextIteration, TotalScore: result.TotalScore,
				Programs: result.Programs, Label: "forbidden_replaced",
			}}, all...)
		}
		g.report(p.OnProgress, Progress{
			Stage: StageReplace, Iteration: result.Iteration,
			TotalIterations: p.Iterations, BestScore: result.TotalScore,
		})
	}

	result.ForbiddenCount = forbiddenCount(result.Programs)
	result.AllIterations = all

	g.logger.Info().
		Int("iteration", result.Iteration).
		Int("programs", len(result.Programs)).
		Float64("total", result.TotalScore).
		Int("forbidden", result.ForbiddenCount).
		Msg("generation finished")
	return result, nil
}

// buildSchedule runs one greedy fill of [start, end).
func (g *Generator) buildSchedule(rng *rand.Rand, resolver *timeblock.Resolver, profile *models.Profile, pool []models.PoolItem, usedSeed map[string]bool, start, end time.Time, randomness float64) []models.ScheduledProgram {
	used := make(map[string]bool, len(usedSeed))
	for id := range usedSeed {
		used[id] = true
	}
	remaining := 0
	for i := range pool {
		if !used[pool[i].Content.ID] {
			remaining++
		}
	}

	var programs []models.ScheduledProgram
	var currentBlock *models.TimeBlock
	var blockPool []models.PoolItem
	currentTime := start
	position := 0

	for currentTime.Before(end) && remaining > 0 {
		block := resolver.Locate(currentTime)
		if block == nil {
			next, ok := resolver.NextStart(currentTime)
			if !ok || !next.After(currentTime) || !next.Before(end) {
				break
			}
			currentTime = next
			continue
		}

		blockChanged := currentBlock == nil || currentBlock.Name != block.Name
		if blockChanged {
			currentBlock = block
			blockPool = prefilter.Select(available(pool, used), profile, block, currentTime)
		}

		cctx := &criteria.Context{
			Current:         currentTime,
			BlockStart:      resolver.BlockStart(currentTime, block),
			BlockEnd:        resolver.BlockEnd(currentTime, block),
			IsFirstInBlock:  blockChanged,
			IsScheduleStart: position == 0,
		}
		candidates := g.scoreCandidates(blockPool, used, profile, block, cctx)
		if len(candidates) == 0 {
			// Only excluded-tier items remain from the last snapshot;
			// rebuild so the full-pool fallback can apply.
			blockPool = prefilter.Select(available(pool, used), profile, block, currentTime)
			candidates = g.scoreCandidates(blockPool, used, profile, block, cctx)
			if len(candidates) == 0 {
				break
			}
		}

		pick := selectCandidate(rng, candidates, randomness)
		item := pick.item
		endTime := currentTime.Add(contentDuration(&item.Content))
		programs = append(programs, models.ScheduledProgram{
			Content:   item.Content,
			Meta:      item.Meta,
			StartTime: currentTime,
			EndTime:   endTime,
			BlockName: block.Name,
			Position:  position,
			Score:     pick.score,
		})
		used[item.Content.ID] = true
		remaining--
		position++
		currentTime = endTime
	}
	return programs
}

// withoutProfileForbidden drops content the profile forbids outright, so no
// iteration wastes picks on it.
func (g *Generator) withoutProfileForbidden(pool []models.PoolItem, profile *models.Profile) []models.PoolItem {
	kept := make([]models.PoolItem, 0, len(pool))
	for _, item := range pool {
		res := g.engine.Score(&item.Content, item.Meta, profile, nil, nil)
		if res.Forbidden() {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

type scoredCandidate struct {
	item  models.PoolItem
	score *models.ScoringResult
}

func (c *scoredCandidate) total() float64 {
	if c.score == nil {
		return 0
	}
	return c.score.TotalScore
}

func (g *Generator) scoreCandidates(blockPool []models.PoolItem, used map[string]bool, profile *models.Profile, block *models.TimeBlock, cctx *criteria.Context) []scoredCandidate {
	candidates := make([]scoredCandidate, 0, len(blockPool))
	for _, item := range blockPool {
		if used[item.Content.ID] {
			continue
		}
		candidates = append(candidates, scoredCandidate{
			item:  item,
			score: g.engine.Score(&item.Content, item.Meta, profile, block, cctx),
		})
	}
	return candidates
}

// selectCandidate implements randomness-weighted sampling over candidates
// sorted by score. Zero randomness or a single candidate picks the top;
// full randomness is uniform.
func selectCandidate(rng *rand.Rand, candidates []scoredCandidate, randomness float64) scoredCandidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].total() > candidates[j].total()
	})
	if randomness == 0 || len(candidates) == 1 {
		return candidates[0]
	}

	maxScore := candidates[0].total()
	weights := make([]float64, len(candidates))
	var sum float64
	for i := range candidates {
		w := 1.0
		if maxScore > 0 {
			w = (candidates[i].total()/maxScore)*(1-randomness) + randomness
		}
		weights[i] = w
		sum += w
	}
	draw := rng.Float64() * sum
	var cum float64
	for i := range candidates {
		cum += weights[i]
		if draw < cum {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

func available(pool []models.PoolItem, used map[string]bool) []models.PoolItem {
	out := make([]models.PoolItem, 0, len(pool))
	for _, item := range pool {
		if !used[item.Content.ID] {
			out = append(out, item)
		}
	}
	return out
}

func contentDuration(c *models.Content) time.Duration {
	return time.Duration(c.DurationMillis) * time.Millisecond
}

func totalScore(programs []models.ScheduledProgram) float64 {
	var total float64
	for i := range programs {
		total += programs[i].TotalScore()
	}
	return total
}

func averageScore(programs []models.ScheduledProgram) float64 {
	if len(programs) == 0 {
		return 0
	}
	return totalScore(programs) / float64(len(programs))
}

func forbiddenCount(programs []models.ScheduledProgram) int {
	count := 0
	for i := range programs {
		if programs[i].Score != nil && programs[i].Score.Forbidden() {
			count++
		}
	}
	return count
}

func (g *Generator) report(cb func(Progress), p Progress) {
	if cb != nil {
		cb(p)
	}
}
