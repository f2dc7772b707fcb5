package criteria

import (
	"fmt"
	"strings"

	"chanplan/internal/models"
)

// GenreCriterion applies the unified mandatory/forbidden/preferred genre
// match. The mandatory set uses any-of semantics: at least one mandatory
// genre must appear among the content's genres.
type GenreCriterion struct{}

func (GenreCriterion) Name() string           { return NameGenre }
func (GenreCriterion) DefaultWeight() float64 { return 20 }

func (GenreCriterion) Evaluate(in Input) *models.CriterionResult {
	if in.Meta == nil || len(in.Meta.Genres) == 0 {
		return result(50, "no genre metadata", nil)
	}
	genres := lowerSet(in.Meta.Genres)
	rules := in.rules(NameGenre)

	var blockForbidden, blockAllowed, blockPreferred []string
	if in.Block != nil {
		blockForbidden = in.Block.Criteria.ForbiddenGenres
		blockAllowed = in.Block.Criteria.AllowedGenres
		blockPreferred = in.Block.Criteria.PreferredGenres
	}

	if hits := intersect(genres, blockForbidden); len(hits) > 0 {
		return result(0, fmt.Sprintf("forbidden genre: %s", strings.Join(hits, ", ")), nil)
	}
	if rules != nil {
		if hits := intersect(genres, rules.ForbiddenValues); len(hits) > 0 {
			delta := in.Policy.ForbiddenDetectedPenalty
			if rules.ForbiddenPenalty != nil {
				delta = *rules.ForbiddenPenalty
			}
			return result(0, fmt.Sprintf("forbidden genre: %s", strings.Join(hits, ", ")), &models.RuleOutcome{
				Type:      models.RuleForbidden,
				Criterion: NameGenre,
				Values:    hits,
				Delta:     delta,
			})
		}
	}

	preferred := append(append([]string(nil), blockPreferred...), ruleValues(rules, models.RulePreferred)...)
	preferredHits := len(intersect(genres, preferred))

	mandatory := blockAllowed
	if rules != nil && len(rules.MandatoryValues) > 0 {
		mandatory = rules.MandatoryValues
	}

	if len(mandatory) > 0 {
		hits := intersect(genres, mandatory)
		if len(hits) == 0 {
			delta := in.Policy.MandatoryMissedPenalty
			if rules != nil && rules.MandatoryPenalty != nil {
				delta = *rules.MandatoryPenalty
			}
			return result(10, "no mandatory genre present", &models.RuleOutcome{
				Type:      models.RuleMandatory,
				Criterion: NameGenre,
				Values:    lowerSet(mandatory),
				Delta:     delta,
			})
		}
		score := 85.0
		if bonus := float64(preferredHits) * 5; bonus > 0 {
			if bonus > 15 {
				bonus = 15
			}
			score += bonus
		}
		if extra := float64(len(hits)-1) * 3; extra > 0 {
			if extra > 10 {
				extra = 10
			}
			score += extra
		}
		return result(score, fmt.Sprintf("mandatory genre match: %s", strings.Join(hits, ", ")), nil)
	}

	score := 75 + float64(preferredHits)*5
	details := "no genre constraints"
	if preferredHits > 0 {
		details = fmt.Sprintf("%d preferred genre hits", preferredHits)
	}
	return result(score, details, nil)
}

func ruleValues(rules *models.CriterionRules, class models.RuleOutcomeType) []string {
	if rules == nil {
		return nil
	}
	switch class {
	case models.RuleMandatory:
		return rules.MandatoryValues
	case models.RuleForbidden:
		return rules.ForbiddenValues
	case models.RulePreferred:
		return rules.PreferredValues
	}
	return nil
}

func lowerSet(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// intersect returns the lowered values present in both lists.
func intersect(lowered, other []string) []string {
	var hits []string
	for _, v := range other {
		lv := strings.ToLower(v)
		for _, g := range lowered {
			if g == lv {
				hits = append(hits, lv)
				break
			}
		}
	}
	return hits
}
