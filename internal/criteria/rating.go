package criteria

import (
	"fmt"

	"chanplan/internal/mfp"
	"chanplan/internal/models"
)

// RatingCriterion scores audience rating against the block's minimum and
// preferred thresholds, discounted when the vote count is too small to
// trust the rating.
type RatingCriterion struct{}

func (RatingCriterion) Name() string           { return NameRating }
func (RatingCriterion) DefaultWeight() float64 { return 10 }

func (RatingCriterion) Evaluate(in Input) *models.CriterionResult {
	if in.Meta == nil || in.Meta.Rating <= 0 {
		return result(50, "no rating metadata", nil)
	}

	min, preferred := 5.0, 8.0
	minVotes := 0
	if in.Block != nil {
		if in.Block.Criteria.MinTMDBRating > 0 {
			min = in.Block.Criteria.MinTMDBRating
		}
		if in.Block.Criteria.PreferredTMDBRating > 0 {
			preferred = in.Block.Criteria.PreferredTMDBRating
		}
		minVotes = in.Block.Criteria.MinVoteCount
	}
	if preferred < min {
		preferred = min
	}

	var confidence float64
	if minVotes > 0 && in.Meta.VoteCount < minVotes {
		confidence = 30 * (1 - float64(in.Meta.VoteCount)/float64(minVotes))
	}

	rating := in.Meta.Rating
	var score float64
	var details string
	switch {
	case rating < min:
		score = rating/min*40 - confidence
		details = fmt.Sprintf("%.1f below minimum %.1f", rating, min)
	case rating >= preferred:
		headroom := 10 - preferred
		if headroom < 0.5 {
			headroom = 0.5
		}
		score = 70 + 30*(rating-preferred)/headroom - confidence
		details = fmt.Sprintf("%.1f at or above preferred %.1f", rating, preferred)
	default:
		score = 50 + 40*(rating-min)/(preferred-min) - confidence
		details = fmt.Sprintf("%.1f between %.1f and %.1f", rating, min, preferred)
	}
	if confidence > 0 {
		details += fmt.Sprintf(", confidence penalty %.0f", confidence)
	}

	adjust, outcome := mfp.EvaluateMembership(NameRating, ratingCategory(rating), in.rules(NameRating), in.Policy)
	return result(score+adjust, details, outcome)
}

// ratingCategory buckets a rating for rule matching.
func ratingCategory(rating float64) string {
	switch {
	case rating >= 8:
		return "excellent"
	case rating >= 7:
		return "good"
	case rating >= 5:
		return "average"
	default:
		return "poor"
	}
}
