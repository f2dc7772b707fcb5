package criteria

import (
	"fmt"

	"chanplan/internal/mfp"
	"chanplan/internal/models"
)

// DurationCriterion scores runtime fit against the block's duration bounds.
// Inside the bounds the score peaks at the midpoint and decays linearly to
// 70 at the edges.
type DurationCriterion struct{}

func (DurationCriterion) Name() string           { return NameDuration }
func (DurationCriterion) DefaultWeight() float64 { return 10 }

func (DurationCriterion) Evaluate(in Input) *models.CriterionResult {
	actual := in.Content.DurationMinutes()
	var min, max float64
	if in.Block != nil {
		min = float64(in.Block.Criteria.MinDurationMin)
		max = float64(in.Block.Criteria.MaxDurationMin)
	}

	var score float64
	var details string
	switch {
	case min > 0 && max > 0:
		switch {
		case actual < min:
			score = actual / min * 50
			details = fmt.Sprintf("%.0fm below minimum %.0fm", min-actual, min)
		case actual > max:
			over := (actual - max) / max * 100
			if over > 50 {
				over = 50
			}
			score = 100 - over
			details = fmt.Sprintf("%.0fm above maximum %.0fm", actual-max, max)
		default:
			mid := (min + max) / 2
			half := (max - min) / 2
			if half <= 0 {
				score = 100
			} else {
				offset := actual - mid
				if offset < 0 {
					offset = -offset
				}
				score = 70 + 30*(1-offset/half)
			}
			details = "within block bounds"
		}
	case min > 0:
		if actual < min {
			score = actual / min * 50
			details = fmt.Sprintf("%.0fm below minimum %.0fm", min-actual, min)
		} else {
			score = 90
			details = "above minimum"
		}
	case max > 0:
		if actual > max {
			over := (actual - max) / max * 100
			if over > 50 {
				over = 50
			}
			score = 100 - over
			details = fmt.Sprintf("%.0fm above maximum %.0fm", actual-max, max)
		} else {
			score = 90
			details = "below maximum"
		}
	default:
		score = 75
		details = "no duration bounds"
	}

	adjust, outcome := mfp.EvaluateMembership(NameDuration, durationCategory(actual), in.rules(NameDuration), in.Policy)
	return result(score+adjust, details, outcome)
}

// durationCategory buckets a runtime for rule matching.
func durationCategory(minutes float64) string {
	switch {
	case minutes < 30:
		return "short"
	case minutes < 90:
		return "medium"
	case minutes < 150:
		return "long"
	default:
		return "epic"
	}
}
