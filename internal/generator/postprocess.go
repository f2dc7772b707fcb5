package generator

import (
	"time"

	"chanplan/internal/criteria"
	"chanplan/internal/models"
	"chanplan/internal/timeblock"
)

// recalcBlockNames re-locates each program's block from its realized start
// time. Variable durations shift slots, so the block a program was picked
// for may no longer be the one it plays in.
func (g *Generator) recalcBlockNames(programs []models.ScheduledProgram, resolver *timeblock.Resolver) {
	for i := range programs {
		p := &programs[i]
		block := resolver.Locate(p.StartTime)
		if block == nil || block.Name == p.BlockName {
			continue
		}
		g.logger.Debug().
			Str("title", p.Content.Title).
			Str("from", p.BlockName).
			Str("to", block.Name).
			Time("start", p.StartTime).
			Msg("program moved to another block")
		p.BlockName = block.Name
	}
}

// instanceSpan is a run of consecutive programs inside one block instance.
type instanceSpan struct {
	first, last int
}

// blockInstances splits the schedule into block instances. A new instance
// starts on a block-name change, on a gap, or when the start time jumps
// back more than an hour from the previous end (multi-day wraparound with
// recurring block names).
func blockInstances(programs []models.ScheduledProgram) []instanceSpan {
	var spans []instanceSpan
	for i := range programs {
		if i == 0 || startsNewInstance(&programs[i-1], &programs[i]) {
			spans = append(spans, instanceSpan{first: i, last: i})
			continue
		}
		spans[len(spans)-1].last = i
	}
	return spans
}

func startsNewInstance(prev, cur *models.ScheduledProgram) bool {
	if cur.BlockName != prev.BlockName {
		return true
	}
	if cur.StartTime.Before(prev.EndTime.Add(-time.Hour)) {
		return true
	}
	return cur.StartTime.After(prev.EndTime)
}

// recalcTiming re-evaluates the timing criterion per block instance: the
// first and last programs get real boundary scores, interior programs get a
// skipped result whose weight leaves the denominator. Totals are rebuilt
// for every program touched.
func (g *Generator) recalcTiming(programs []models.ScheduledProgram, profile *models.Profile, resolver *timeblock.Resolver) {
	for _, span := range blockInstances(programs) {
		for j := span.first; j <= span.last; j++ {
			p := &programs[j]
			if p.Score == nil {
				continue
			}
			block := profile.BlockByName(p.BlockName)
			if block == nil {
				continue
			}
			cctx := &criteria.Context{
				Current:         p.StartTime,
				BlockStart:      resolver.BlockStart(p.StartTime, block),
				BlockEnd:        resolver.BlockEnd(p.StartTime, block),
				IsFirstInBlock:  j == span.first,
				IsLastInBlock:   j == span.last,
				IsScheduleStart: j == 0,
			}
			p.Score.Criteria[criteria.NameTiming] = g.engine.ScoreTiming(&p.Content, profile, block, cctx)
			g.engine.RecalculateTotals(p.Score)
		}
	}
}

// recalcConsecutiveTimes restores contiguity after replacements changed
// program durations. The first program keeps its start.
func recalcConsecutiveTimes(programs []models.ScheduledProgram) {
	for i := range programs {
		if i > 0 {
			programs[i].StartTime = programs[i-1].EndTime
		}
		programs[i].EndTime = programs[i].StartTime.Add(contentDuration(&programs[i].Content))
		programs[i].Position = i
	}
}

// fullRescore rebuilds every program's score against its current block at
// its current slot. Timing flags are unknown here; recalcTiming follows.
func (g *Generator) fullRescore(programs []models.ScheduledProgram, profile *models.Profile, resolver *timeblock.Resolver) {
	for i := range programs {
		p := &programs[i]
		block := profile.BlockByName(p.BlockName)
		cctx := &criteria.Context{Current: p.StartTime}
		if block != nil {
			cctx.BlockStart = resolver.BlockStart(p.StartTime, block)
			cctx.BlockEnd = resolver.BlockEnd(p.StartTime, block)
		}
		p.Score = g.engine.Score(&p.Content, p.Meta, profile, block, cctx)
	}
}

// refreshAfterReplacements runs the mandatory post-replacement cycle:
// contiguity, block names, a full rescore against the possibly new blocks,
// then boundary timing.
func (g *Generator) refreshAfterReplacements(programs []models.ScheduledProgram, profile *models.Profile, resolver *timeblock.Resolver) {
	recalcConsecutiveTimes(programs)
	g.recalcBlockNames(programs, resolver)
	g.fullRescore(programs, profile, resolver)
	g.recalcTiming(programs, profile, resolver)
}
