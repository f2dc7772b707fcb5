package generator

import (
	"math/rand"

	"chanplan/internal/criteria"
	"chanplan/internal/models"
	"chanplan/internal/prefilter"
	"chanplan/internal/timeblock"
)

// improvePass swaps programs in the best schedule for strictly better
// same-block candidates found in the other iterations. Returns the number
// of replacements applied.
func (g *Generator) improvePass(rng *rand.Rand, result *models.ProgrammingResult, runs []iterationRun, bestIdx int, profile *models.Profile, resolver *timeblock.Resolver, usedSeed map[string]bool, randomness float64) int {
	used := usedIDs(result.Programs, usedSeed)
	changed := 0

	for idx := range result.Programs {
		p := &result.Programs[idx]
		candidates := betterCandidates(p, runs, bestIdx, used)
		if len(candidates) == 0 {
			continue
		}
		pick := selectCandidate(rng, candidates, randomness)

		oldID, oldTitle := p.Content.ID, p.Content.Title
		p.Content = pick.item.Content
		p.Meta = pick.item.Meta
		p.Score = pick.score
		p.IsReplacement = true
		p.ReplacementReason = models.ReplacementImproved
		p.ReplacedTitle = oldTitle

		delete(used, oldID)
		used[p.Content.ID] = true
		changed++
		g.logger.Debug().
			Str("replaced", oldTitle).
			Str("with", p.Content.Title).
			Str("block", p.BlockName).
			Msg("improve pass swap")
	}

	if changed > 0 {
		g.refreshAfterReplacements(result.Programs, profile, resolver)
	}
	return changed
}

// betterCandidates collects programs from the other iterations that share
// the block, beat the score, are not forbidden, and are unused.
func betterCandidates(p *models.ScheduledProgram, runs []iterationRun, bestIdx int, used map[string]bool) []scoredCandidate {
	var out []scoredCandidate
	for ri := range runs {
		if ri == bestIdx {
			continue
		}
		for qi := range runs[ri].programs {
			q := &runs[ri].programs[qi]
			if q.BlockName != p.BlockName {
				continue
			}
			if q.TotalScore() <= p.TotalScore() {
				continue
			}
			if q.Score != nil && q.Score.Forbidden() {
				continue
			}
			if used[q.Content.ID] {
				continue
			}
			out = append(out, scoredCandidate{
				item:  models.PoolItem{Content: q.Content, Meta: q.Meta},
				score: q.Score,
			})
		}
	}
	return out
}

// replaceForbiddenPass swaps out programs with forbidden violations. Other
// iterations are tried first, then the block's pre-filtered pool; a program
// with no eligible substitute stays in place.
func (g *Generator) replaceForbiddenPass(result *models.ProgrammingResult, runs []iterationRun, bestIdx int, pool []models.PoolItem, profile *models.Profile, resolver *timeblock.Resolver, usedSeed map[string]bool) int {
	used := usedIDs(result.Programs, usedSeed)
	replaced := 0

	for idx := range result.Programs {
		p := &result.Programs[idx]
		if p.Score == nil || !p.Score.Forbidden() {
			continue
		}
		block := profile.BlockByName(p.BlockName)
		cctx := &criteria.Context{Current: p.StartTime}
		if block != nil {
			cctx.BlockStart = resolver.BlockStart(p.StartTime, block)
			cctx.BlockEnd = resolver.BlockEnd(p.StartTime, block)
		}

		item, score, ok := g.substituteFromIterations(p, runs, bestIdx, used, profile, block, cctx)
		if !ok {
			item, score, ok = g.substituteFromPool(p, pool, used, profile, block, cctx)
		}
		if !ok {
			g.logger.Warn().
				Str("title", p.Content.Title).
				Str("block", p.BlockName).
				Msg("no substitute for forbidden program")
			continue
		}

		oldID, oldTitle := p.Content.ID, p.Content.Title
		p.Content = item.Content
		p.Meta = item.Meta
		p.Score = score
		p.IsReplacement = true
		p.ReplacementReason = models.ReplacementForbidden
		p.ReplacedTitle = oldTitle

		delete(used, oldID)
		used[p.Content.ID] = true
		replaced++
		g.logger.Info().
			Str("replaced", oldTitle).
			Str("with", p.Content.Title).
			Str("block", p.BlockName).
			Msg("forbidden program swapped")
	}

	if replaced > 0 {
		g.refreshAfterReplacements(result.Programs, profile, resolver)
	}
	return replaced
}

// substituteFromIterations picks the highest-scoring clean candidate for
// the slot from the other iterations and rescores it at the slot time.
func (g *Generator) substituteFromIterations(p *models.ScheduledProgram, runs []iterationRun, bestIdx int, used map[string]bool, profile *models.Profile, block *models.TimeBlock, cctx *criteria.Context) (models.PoolItem, *models.ScoringResult, bool) {
	var best *models.ScheduledProgram
	for ri := range runs {
		if ri == bestIdx {
			continue
		}
		for qi := range runs[ri].programs {
			q := &runs[ri].programs[qi]
			if q.BlockName != p.BlockName || used[q.Content.ID] {
				continue
			}
			if q.Score == nil || q.Score.Forbidden() {
				continue
			}
			if best == nil || q.TotalScore() > best.TotalScore() {
				best = q
			}
		}
	}
	if best == nil {
		return models.PoolItem{}, nil, false
	}
	item := models.PoolItem{Content: best.Content, Meta: best.Meta}
	return item, g.engine.Score(&item.Content, item.Meta, profile, block, cctx), true
}

// substituteFromPool scores the block's pre-filtered pool at the slot and
// picks the best non-forbidden unused item.
func (g *Generator) substituteFromPool(p *models.ScheduledProgram, pool []models.PoolItem, used map[string]bool, profile *models.Profile, block *models.TimeBlock, cctx *criteria.Context) (models.PoolItem, *models.ScoringResult, bool) {
	blockPool := prefilter.Select(available(pool, used), profile, block, p.StartTime)
	var bestItem models.PoolItem
	var bestScore *models.ScoringResult
	for _, item := range blockPool {
		if used[item.Content.ID] {
			continue
		}
		score := g.engine.Score(&item.Content, item.Meta, profile, block, cctx)
		if score.Forbidden() {
			continue
		}
		if bestScore == nil || score.TotalScore > bestScore.TotalScore {
			bestItem, bestScore = item, score
		}
	}
	if bestScore == nil {
		return models.PoolItem{}, nil, false
	}
	return bestItem, bestScore, true
}

func usedIDs(programs []models.ScheduledProgram, seed map[string]bool) map[string]bool {
	used := make(map[string]bool, len(programs)+len(seed))
	for id := range seed {
		used[id] = true
	}
	for i := range programs {
		used[programs[i].Content.ID] = true
	}
	return used
}
