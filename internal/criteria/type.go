package criteria

import (
	"chanplan/internal/mfp"
	"chanplan/internal/models"
)

// TypeCriterion scores how well the content type fits the block's type
// preferences and the profile's type restrictions.
type TypeCriterion struct{}

func (TypeCriterion) Name() string           { return NameType }
func (TypeCriterion) DefaultWeight() float64 { return 15 }

func (TypeCriterion) Evaluate(in Input) *models.CriterionResult {
	ct := in.Content.Type
	score := 75.0
	details := "allowed type"

	switch {
	case in.Profile != nil && containsType(in.Profile.MandatoryForbidden.Forbidden.Types, ct):
		score, details = 0, "type forbidden by profile"
	case in.Block != nil && containsType(in.Block.Criteria.ExcludedTypes, ct):
		score, details = 0, "type excluded by block"
	case in.Block != nil && containsType(in.Block.Criteria.PreferredTypes, ct):
		score, details = 100, "preferred type"
	case in.Block != nil && containsType(in.Block.Criteria.AllowedTypes, ct):
		score, details = 75, "allowed type"
	case in.Profile != nil && len(in.Profile.MandatoryForbidden.Mandatory.Types) > 0 &&
		!containsType(in.Profile.MandatoryForbidden.Mandatory.Types, ct):
		score, details = 25, "type outside profile allowed set"
	}

	adjust, outcome := mfp.EvaluateMembership(NameType, string(ct), in.rules(NameType), in.Policy)
	return result(score+adjust, details, outcome)
}

func containsType(list []models.ContentType, ct models.ContentType) bool {
	for _, t := range list {
		if t == ct {
			return true
		}
	}
	return false
}
