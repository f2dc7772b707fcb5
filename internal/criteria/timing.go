package criteria

import (
	"fmt"
	"time"

	"chanplan/internal/mfp"
	"chanplan/internal/models"
)

// TimingCriterion scores slot fit for the first and last program of a block
// instance. Interior programs are skipped and excluded from the weighted
// total entirely.
type TimingCriterion struct{}

func (TimingCriterion) Name() string           { return NameTiming }
func (TimingCriterion) DefaultWeight() float64 { return 15 }

func (TimingCriterion) Evaluate(in Input) *models.CriterionResult {
	ctx := in.Ctx
	if ctx == nil {
		return skipped("no slot context")
	}
	if !ctx.IsFirstInBlock && !ctx.IsLastInBlock {
		return skipped("interior program")
	}

	tod := timeOfDayScore(in.Content.Type, ctx.Current)

	end := ctx.Current.Add(time.Duration(in.Content.DurationMillis) * time.Millisecond)
	overflowMin := end.Sub(ctx.BlockEnd).Minutes()
	if overflowMin < 0 {
		overflowMin = 0
	}
	overflow := overflowPenalty(overflowMin)

	var score float64
	var details string
	if ctx.IsFirstInBlock {
		late := 100.0
		if !ctx.IsScheduleStart {
			lateMin := ctx.Current.Sub(ctx.BlockStart).Minutes()
			if lateMin < 0 {
				lateMin = 0
			}
			late = overflowPenalty(lateMin)
		}
		score = 0.4*overflow + 0.3*late + 0.3*tod
		details = fmt.Sprintf("block opener, overflow %.0fm", overflowMin)
	} else {
		score = 0.7*overflow + 0.3*tod
		details = fmt.Sprintf("block closer, overflow %.0fm", overflowMin)
	}

	adjust, outcome := mfp.EvaluateMembership(NameTiming, dayPeriod(ctx.Current), in.rules(NameTiming), in.Policy)
	return result(score+adjust, details, outcome)
}

// overflowPenalty maps boundary-miss minutes to a score through the points
// (0,100) (30,75) (60,50) (120,25) (180,5), linear in between.
func overflowPenalty(minutes float64) float64 {
	switch {
	case minutes <= 0:
		return 100
	case minutes <= 30:
		return 100 - minutes/30*25
	case minutes <= 60:
		return 75 - (minutes-30)/30*25
	case minutes <= 120:
		return 50 - (minutes-60)/60*25
	case minutes <= 180:
		return 25 - (minutes-120)/60*20
	default:
		return 5
	}
}

// dayPeriod buckets an instant's hour into a named period.
func dayPeriod(t time.Time) string {
	h := t.Hour()
	switch {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 22:
		return "evening"
	default:
		return "night"
	}
}

func timeOfDayScore(ct models.ContentType, t time.Time) float64 {
	period := dayPeriod(t)
	switch ct {
	case models.ContentTypeMovie:
		switch period {
		case "evening":
			return 100
		case "night":
			return 90
		case "afternoon":
			return 70
		default:
			return 50
		}
	case models.ContentTypeEpisode:
		if period == "afternoon" || period == "evening" {
			return 90
		}
		return 75
	case models.ContentTypeTrailer, models.ContentTypeShort:
		return 80
	default:
		return 75
	}
}
