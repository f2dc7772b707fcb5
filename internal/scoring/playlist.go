package scoring

import (
	"time"

	"chanplan/internal/criteria"
	"chanplan/internal/models"
	"chanplan/internal/timeblock"
)

// EvaluatePlaylist scores an externally supplied playlist for audit.
// Items keep their submitted order and start times; each program is
// evaluated in the block its start time falls into, or with neutral
// block-dependent criteria when no block covers it.
func (e *Engine) EvaluatePlaylist(profile *models.Profile, items []models.ScoreItem, loc *time.Location) *models.ProgrammingResult {
	if loc == nil {
		loc = time.Local
	}
	resolver := timeblock.NewResolver(profile.TimeBlocks, loc)

	blocks := make([]*models.TimeBlock, len(items))
	for i := range items {
		blocks[i] = resolver.Locate(items[i].StartTime.In(loc))
	}

	programs := make([]models.ScheduledProgram, 0, len(items))
	var total float64
	forbidden := 0

	for i := range items {
		item := &items[i]
		start := item.StartTime.In(loc)
		end := start.Add(time.Duration(item.Content.DurationMillis) * time.Millisecond)
		block := blocks[i]

		var cctx *criteria.Context
		blockName := ""
		if block != nil {
			blockName = block.Name
			cctx = &criteria.Context{
				Current:         start,
				BlockStart:      resolver.BlockStart(start, block),
				BlockEnd:        resolver.BlockEnd(start, block),
				IsFirstInBlock:  i == 0 || !sameBlock(blocks[i-1], block),
				IsLastInBlock:   i == len(items)-1 || !sameBlock(blocks[i+1], block),
				IsScheduleStart: i == 0,
			}
		}

		score := e.Score(&item.Content, item.Meta, profile, block, cctx)
		total += score.TotalScore
		if score.Forbidden() {
			forbidden++
		}

		programs = append(programs, models.ScheduledProgram{
			Content:   item.Content,
			Meta:      item.Meta,
			StartTime: start,
			EndTime:   end,
			BlockName: blockName,
			Position:  i,
			Score:     score,
		})
	}

	result := &models.ProgrammingResult{
		Programs:       programs,
		TotalScore:     total,
		ForbiddenCount: forbidden,
	}
	if len(programs) > 0 {
		result.AverageScore = total / float64(len(programs))
	}
	return result
}

func sameBlock(a, b *models.TimeBlock) bool {
	return a != nil && b != nil && a.Name == b.Name
}
