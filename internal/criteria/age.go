package criteria

import (
	"fmt"
	"strconv"
	"strings"

	"chanplan/internal/mfp"
	"chanplan/internal/models"
)

// AgeCriterion enforces the block's age-rating ceiling. Content above the
// ceiling scores 0 and carries a forbidden outcome the engine elevates to a
// schedule-level violation.
type AgeCriterion struct{}

func (AgeCriterion) Name() string           { return NameAge }
func (AgeCriterion) DefaultWeight() float64 { return 10 }

func (AgeCriterion) Evaluate(in Input) *models.CriterionResult {
	var ceiling string
	if in.Block != nil {
		ceiling = in.Block.Criteria.MaxAgeRating
	}
	if ceiling == "" {
		return result(75, "no age ceiling", nil)
	}
	if in.Meta == nil || in.Meta.AgeRating == "" {
		return result(50, "no age rating metadata", nil)
	}

	level := AgeLevel(in.Meta.AgeRating)
	max := AgeLevel(ceiling)

	var score float64
	var details string
	var outcome *models.RuleOutcome
	switch {
	case level > max:
		score = 0
		details = fmt.Sprintf("%s exceeds ceiling %s", in.Meta.AgeRating, ceiling)
		outcome = &models.RuleOutcome{
			Type:      models.RuleForbidden,
			Criterion: NameAge,
			Values:    []string{normalizeAgeRating(in.Meta.AgeRating)},
			Delta:     in.Policy.ForbiddenDetectedPenalty,
		}
	case level == max:
		score = 90
		details = "at ceiling"
	default:
		score = 100
		details = "below ceiling"
	}

	if outcome == nil {
		var adjust float64
		adjust, outcome = mfp.EvaluateMembership(NameAge, normalizeAgeRating(in.Meta.AgeRating), in.rules(NameAge), in.Policy)
		score += adjust
	}
	return result(score, details, outcome)
}

// ageLevels maps normalized certification labels to restriction levels 0-4.
// Labels not listed fall back to any embedded number, then to level 2.
var ageLevels = map[string]int{
	"g": 0, "u": 0, "tp": 0, "tv-g": 0, "tv-y": 0,
	"pg": 1, "tv-pg": 1, "fsk-6": 1,
	"pg-13": 2, "12a": 2, "fsk-12": 2,
	"r": 3, "tv-ma": 3, "fsk-16": 3,
	"nc-17": 4, "fsk-18": 4,
}

// normalizeAgeRating strips country prefixes like "fr/" or "mpaa:" and
// lowercases the remainder.
func normalizeAgeRating(rating string) string {
	r := strings.TrimSpace(strings.ToLower(rating))
	if i := strings.LastIndexAny(r, "/:"); i != -1 {
		r = r[i+1:]
	}
	return strings.TrimSpace(r)
}

// AgeLevel maps a certification string to a 0-4 restriction level.
// Unparseable ratings land at level 2.
func AgeLevel(rating string) int {
	r := normalizeAgeRating(rating)
	if lvl, ok := ageLevels[r]; ok {
		return lvl
	}
	if n, ok := embeddedNumber(r); ok {
		switch {
		case n >= 18:
			return 4
		case n >= 16:
			return 3
		case n >= 12:
			return 2
		case n >= 6:
			return 1
		default:
			return 0
		}
	}
	return 2
}

// embeddedNumber extracts the first integer found in a rating string.
func embeddedNumber(s string) (int, bool) {
	start := -1
	for i, c := range s {
		if c >= '0' && c <= '9' {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			n, err := strconv.Atoi(s[start:i])
			return n, err == nil
		}
	}
	if start != -1 {
		n, err := strconv.Atoi(s[start:])
		return n, err == nil
	}
	return 0, false
}
