package criteria

import (
	"fmt"
	"strings"

	"chanplan/internal/models"
)

// FilterCriterion matches keywords and studios over the title, content
// keywords and studio list. Forbidden matches zero the score; preferred
// matches stack capped bonuses.
type FilterCriterion struct{}

func (FilterCriterion) Name() string           { return NameFilter }
func (FilterCriterion) DefaultWeight() float64 { return 10 }

func (FilterCriterion) Evaluate(in Input) *models.CriterionResult {
	title := strings.ToLower(in.Content.Title)
	var keywords, studios []string
	if in.Meta != nil {
		keywords = lowerSet(in.Meta.Keywords)
		studios = lowerSet(in.Meta.Studios)
	}
	rules := in.rules(NameFilter)

	var forbidden []string
	if in.Block != nil {
		forbidden = append(forbidden, in.Block.Criteria.ExcludeKeywords...)
	}
	forbidden = append(forbidden, ruleValues(rules, models.RuleForbidden)...)
	for _, v := range forbidden {
		lv := strings.ToLower(v)
		if lv == "" {
			continue
		}
		if strings.Contains(title, lv) || substringAny(keywords, lv) || substringAny(studios, lv) {
			delta := in.Policy.ForbiddenDetectedPenalty
			if rules != nil && rules.ForbiddenPenalty != nil && containsFoldValue(rules.ForbiddenValues, lv) {
				delta = *rules.ForbiddenPenalty
			}
			return result(0, fmt.Sprintf("forbidden keyword %q", lv), &models.RuleOutcome{
				Type:      models.RuleForbidden,
				Criterion: NameFilter,
				Values:    []string{lv},
				Delta:     delta,
			})
		}
	}

	var include []string
	if in.Block != nil {
		include = append(include, in.Block.Criteria.IncludeKeywords...)
	}
	include = append(include, ruleValues(rules, models.RulePreferred)...)

	var keywordHits, studioHits int
	for _, v := range include {
		lv := strings.ToLower(v)
		if lv == "" {
			continue
		}
		if substringAny(studios, lv) {
			studioHits++
		} else if strings.Contains(title, lv) || substringAny(keywords, lv) {
			keywordHits++
		}
	}

	keywordBonus := float64(keywordHits) * 5
	if keywordBonus > 50 {
		keywordBonus = 50
	}
	studioBonus := float64(studioHits) * 10
	if studioBonus > 20 {
		studioBonus = 20
	}

	details := "neutral"
	if keywordHits+studioHits > 0 {
		details = fmt.Sprintf("%d keyword hits, %d studio hits", keywordHits, studioHits)
	}
	return result(50+keywordBonus+studioBonus, details, nil)
}

// substringAny reports whether needle is a substring of any value.
func substringAny(values []string, needle string) bool {
	for _, v := range values {
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

func containsFoldValue(values []string, lowered string) bool {
	for _, v := range values {
		if strings.ToLower(v) == lowered {
			return true
		}
	}
	return false
}
