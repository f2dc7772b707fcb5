// Package criteria implements the nine scoring criteria applied to every
// candidate program. Each criterion produces a raw 0-100 score plus an
// optional mandatory/forbidden/preferred rule outcome; weighting and
// aggregation happen in the scoring engine.
package criteria

import (
	"time"

	"chanplan/internal/models"
)

// Criterion names double as scoring-weight keys.
const (
	NameType     = "type"
	NameDuration = "duration"
	NameGenre    = "genre"
	NameTiming   = "timing"
	NameStrategy = "strategy"
	NameAge      = "age"
	NameRating   = "rating"
	NameFilter   = "filter"
	NameBonus    = "bonus"
)

// Context carries slot-position facts the timing and bonus criteria need.
type Context struct {
	Current         time.Time
	BlockStart      time.Time
	BlockEnd        time.Time
	IsFirstInBlock  bool
	IsLastInBlock   bool
	IsScheduleStart bool
}

// Input bundles everything a criterion may consult. Meta, Block and Ctx may
// be nil; criteria fall back to neutral scores.
type Input struct {
	Content *models.Content
	Meta    *models.ContentMeta
	Profile *models.Profile
	Block   *models.TimeBlock
	Policy  models.MFPPolicy
	Ctx     *Context
}

// rules returns the block rule set for a criterion, or nil.
func (in *Input) rules(name string) *models.CriterionRules {
	if in.Block == nil {
		return nil
	}
	return in.Block.Criteria.RulesFor(name)
}

// Criterion is one scoring rule. Evaluate fills Score, Skipped, Details and
// RuleViolation; the engine owns Weight, Multiplier and the derived fields.
type Criterion interface {
	Name() string
	DefaultWeight() float64
	Evaluate(in Input) *models.CriterionResult
}

// All returns the full criterion set in evaluation order.
func All() []Criterion {
	return []Criterion{
		TypeCriterion{},
		DurationCriterion{},
		GenreCriterion{},
		TimingCriterion{},
		StrategyCriterion{},
		AgeCriterion{},
		RatingCriterion{},
		FilterCriterion{},
		BonusCriterion{},
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// result builds a clamped CriterionResult.
func result(score float64, details string, violation *models.RuleOutcome) *models.CriterionResult {
	return &models.CriterionResult{
		Score:         clamp(score),
		Details:       details,
		RuleViolation: violation,
	}
}

// skipped builds a result excluded from the weighted total.
func skipped(details string) *models.CriterionResult {
	return &models.CriterionResult{Skipped: true, Details: details}
}
