// Package mfp implements the uniform mandatory/forbidden/preferred rule
// check shared by all scoring criteria. Priority is first-match-wins:
// forbidden beats mandatory beats preferred.
package mfp

import (
	"strings"

	"chanplan/internal/models"
)

// Evaluate checks a list of content-side tokens against a rule set and
// returns a signed score adjustment plus a typed outcome, or (0, nil) when
// nothing matched. Mandatory semantics here are set-inclusion: every
// mandatory value must appear among the tokens.
func Evaluate(criterion string, tokens []string, rules *models.CriterionRules, policy models.MFPPolicy) (float64, *models.RuleOutcome) {
	if rules.Empty() {
		return 0, nil
	}
	lowered := lowerAll(tokens)

	if hit := firstMatch(lowered, rules.ForbiddenValues); hit != "" {
		delta := override(rules.ForbiddenPenalty, policy.ForbiddenDetectedPenalty)
		return delta, &models.RuleOutcome{
			Type:      models.RuleForbidden,
			Criterion: criterion,
			Values:    []string{hit},
			Delta:     delta,
		}
	}

	if len(rules.MandatoryValues) > 0 {
		missing := missingValues(lowered, rules.MandatoryValues)
		if len(missing) > 0 {
			delta := override(rules.MandatoryPenalty, policy.MandatoryMissedPenalty)
			return delta, &models.RuleOutcome{
				Type:      models.RuleMandatory,
				Criterion: criterion,
				Values:    missing,
				Delta:     delta,
			}
		}
		delta := policy.MandatoryMatchedBonus
		return delta, &models.RuleOutcome{
			Type:      models.RuleMandatory,
			Criterion: criterion,
			Values:    append([]string(nil), rules.MandatoryValues...),
			Delta:     delta,
		}
	}

	if hit := firstMatch(lowered, rules.PreferredValues); hit != "" {
		delta := override(rules.PreferredBonus, policy.PreferredMatchedBonus)
		return delta, &models.RuleOutcome{
			Type:      models.RulePreferred,
			Criterion: criterion,
			Values:    []string{hit},
			Delta:     delta,
		}
	}

	return 0, nil
}

// EvaluateMembership checks a single content token (a content type, a
// rating category, a duration category) against a rule set. Mandatory
// semantics flip to membership: the token must be in the mandatory list.
func EvaluateMembership(criterion, token string, rules *models.CriterionRules, policy models.MFPPolicy) (float64, *models.RuleOutcome) {
	if rules.Empty() {
		return 0, nil
	}
	t := strings.ToLower(token)

	if containsFold(rules.ForbiddenValues, t) {
		delta := override(rules.ForbiddenPenalty, policy.ForbiddenDetectedPenalty)
		return delta, &models.RuleOutcome{
			Type:      models.RuleForbidden,
			Criterion: criterion,
			Values:    []string{t},
			Delta:     delta,
		}
	}

	if len(rules.MandatoryValues) > 0 {
		if !containsFold(rules.MandatoryValues, t) {
			delta := override(rules.MandatoryPenalty, policy.MandatoryMissedPenalty)
			return delta, &models.RuleOutcome{
				Type:      models.RuleMandatory,
				Criterion: criterion,
				Values:    []string{t},
				Delta:     delta,
			}
		}
		delta := policy.MandatoryMatchedBonus
		return delta, &models.RuleOutcome{
			Type:      models.RuleMandatory,
			Criterion: criterion,
			Values:    []string{t},
			Delta:     delta,
		}
	}

	if containsFold(rules.PreferredValues, t) {
		delta := override(rules.PreferredBonus, policy.PreferredMatchedBonus)
		return delta, &models.RuleOutcome{
			Type:      models.RulePreferred,
			Criterion: criterion,
			Values:    []string{t},
			Delta:     delta,
		}
	}

	return 0, nil
}

func override(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// firstMatch returns the first rule value present among the tokens.
func firstMatch(tokens, values []string) string {
	for _, v := range values {
		lv := strings.ToLower(v)
		for _, t := range tokens {
			if t == lv {
				return lv
			}
		}
	}
	return ""
}

// missingValues returns the rule values absent from the tokens.
func missingValues(tokens, required []string) []string {
	var missing []string
	for _, v := range required {
		lv := strings.ToLower(v)
		found := false
		for _, t := range tokens {
			if t == lv {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, lv)
		}
	}
	return missing
}

func containsFold(values []string, lowered string) bool {
	for _, v := range values {
		if strings.ToLower(v) == lowered {
			return true
		}
	}
	return false
}
