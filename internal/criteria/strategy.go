package criteria

import (
	"strings"

	"chanplan/internal/mfp"
	"chanplan/internal/models"
)

// StrategyCriterion applies small bonuses and penalties for the profile's
// scheduling strategy flags.
type StrategyCriterion struct{}

func (StrategyCriterion) Name() string           { return NameStrategy }
func (StrategyCriterion) DefaultWeight() float64 { return 5 }

func (StrategyCriterion) Evaluate(in Input) *models.CriterionResult {
	score := 75.0
	var notes []string
	tokens := []string{string(in.Content.Type)}

	var strategies models.Strategies
	if in.Profile != nil {
		strategies = in.Profile.Strategies
	}

	variety := in.Meta != nil && len(in.Meta.Genres) >= 2
	if variety {
		tokens = append(tokens, "variety")
	}
	if strategies.MaximizeVariety {
		if variety {
			score += 10
			notes = append(notes, "multi-genre")
		} else {
			score -= 5
		}
	}

	marathon := in.Meta != nil && len(in.Meta.Collections) > 0
	if marathon {
		tokens = append(tokens, "marathon")
	}
	if strategies.MarathonMode {
		if marathon {
			score += 10
			notes = append(notes, "in collection")
		} else {
			score -= 5
		}
	}

	filler := containsType(strategies.FillerInsertion.Types, in.Content.Type)
	if filler {
		tokens = append(tokens, "filler")
	}
	if strategies.FillerInsertion.Enabled && filler {
		score += 10
		notes = append(notes, "filler type")
	}

	if strategies.MaintainSequence && in.Content.Type == models.ContentTypeEpisode {
		score += 10
		notes = append(notes, "episodic")
	}

	adjust, outcome := mfp.Evaluate(NameStrategy, tokens, in.rules(NameStrategy), in.Policy)
	return result(score+adjust, strings.Join(notes, ", "), outcome)
}
