// Package scoring aggregates the nine criteria into a weighted total and
// applies schedule-level forbidden violations, global mandatory penalties
// and the title keyword multiplier.
package scoring

import (
	"strings"

	"chanplan/internal/criteria"
	"chanplan/internal/models"
)

// Engine evaluates content against a profile and block. It is stateless
// and safe for concurrent use.
type Engine struct {
	criteria []criteria.Criterion
}

func NewEngine() *Engine {
	return &Engine{criteria: criteria.All()}
}

// Score runs the full evaluation for one content item at one slot.
func (e *Engine) Score(content *models.Content, meta *models.ContentMeta, profile *models.Profile, block *models.TimeBlock, ctx *criteria.Context) *models.ScoringResult {
	policy := profile.PolicyFor(block)
	in := criteria.Input{
		Content: content,
		Meta:    meta,
		Profile: profile,
		Block:   block,
		Policy:  policy,
		Ctx:     ctx,
	}

	result := &models.ScoringResult{
		Criteria:          make(map[string]*models.CriterionResult, len(e.criteria)),
		KeywordMultiplier: 1.0,
	}

	for _, c := range e.criteria {
		cr := c.Evaluate(in)
		cr.Weight = profile.WeightFor(c.Name(), c.DefaultWeight())
		cr.Multiplier = profile.MultiplierFor(block, c.Name())
		if !cr.Skipped {
			cr.WeightedScore = cr.Score * cr.Weight / 100
			cr.MultipliedWeightedScore = cr.WeightedScore * cr.Multiplier
		}
		result.Criteria[c.Name()] = cr
		if cr.RuleViolation != nil {
			result.RuleViolations = append(result.RuleViolations, *cr.RuleViolation)
		}
	}

	result.WeightedTotal = weightedTotal(result.Criteria)
	result.ForbiddenDetails = e.forbiddenViolations(content, meta, profile, block, result)
	result.MandatoryDetails = e.mandatoryPenalties(content, meta, profile, policy)
	result.BonusDetails = e.preferredBonuses(content, meta, profile, policy)

	total := result.WeightedTotal
	if result.Forbidden() {
		total = 0
	} else {
		for _, p := range result.MandatoryDetails {
			total -= p.Amount
		}
	}

	mult, match := keywordMultiplier(content.Title, profile, block)
	result.KeywordMultiplier = mult
	result.KeywordMatch = match
	total *= mult

	result.TotalScore = clamp(total)
	return result
}

// ScoreTiming re-evaluates only the timing criterion at a new slot context
// and returns a fully weighted result entry.
func (e *Engine) ScoreTiming(content *models.Content, profile *models.Profile, block *models.TimeBlock, ctx *criteria.Context) *models.CriterionResult {
	tc := criteria.TimingCriterion{}
	cr := tc.Evaluate(criteria.Input{
		Content: content,
		Profile: profile,
		Block:   block,
		Policy:  profile.PolicyFor(block),
		Ctx:     ctx,
	})
	cr.Weight = profile.WeightFor(tc.Name(), tc.DefaultWeight())
	cr.Multiplier = profile.MultiplierFor(block, tc.Name())
	if !cr.Skipped {
		cr.WeightedScore = cr.Score * cr.Weight / 100
		cr.MultipliedWeightedScore = cr.WeightedScore * cr.Multiplier
	}
	return cr
}

// RecalculateTotals rebuilds the weighted total and final score from the
// (possibly mutated) per-criterion map, preserving the recorded violations,
// penalties and keyword multiplier.
func (e *Engine) RecalculateTotals(result *models.ScoringResult) {
	result.WeightedTotal = weightedTotal(result.Criteria)
	total := result.WeightedTotal
	if result.Forbidden() {
		total = 0
	} else {
		for _, p := range result.MandatoryDetails {
			total -= p.Amount
		}
	}
	if result.KeywordMultiplier > 0 {
		total *= result.KeywordMultiplier
	}
	result.TotalScore = clamp(total)
}

// criterionOrder fixes the aggregation and export order. Iterating the
// result map directly would make float summation order, and thus the last
// bits of the total, vary between runs.
var criterionOrder = []string{
	criteria.NameType, criteria.NameDuration, criteria.NameGenre,
	criteria.NameTiming, criteria.NameStrategy, criteria.NameAge,
	criteria.NameRating, criteria.NameFilter, criteria.NameBonus,
}

// weightedTotal computes sum(multipliedWeightedScore)/sum(weight*multiplier)
// over non-skipped criteria, scaled to 0-100. An empty denominator yields
// the neutral 50.
func weightedTotal(results map[string]*models.CriterionResult) float64 {
	var num, den float64
	for _, name := range criterionOrder {
		cr, ok := results[name]
		if !ok || cr == nil || cr.Skipped {
			continue
		}
		num += cr.MultipliedWeightedScore
		den += cr.Weight * cr.Multiplier
	}
	if den <= 0 {
		return 50
	}
	return num / den * 100
}

func (e *Engine) forbiddenViolations(content *models.Content, meta *models.ContentMeta, profile *models.Profile, block *models.TimeBlock, result *models.ScoringResult) []models.ViolationDetail {
	var out []models.ViolationDetail
	title := strings.ToLower(content.Title)

	if profile != nil {
		forbidden := profile.MandatoryForbidden.Forbidden
		for _, id := range forbidden.ContentIDs {
			if id == content.ID {
				out = append(out, models.ViolationDetail{Label: "forbidden_content", Values: []string{id}})
				break
			}
		}
		for _, t := range forbidden.Types {
			if t == content.Type {
				out = append(out, models.ViolationDetail{Label: "forbidden_type", Values: []string{string(t)}})
				break
			}
		}
		var kwHits []string
		for _, kw := range forbidden.TitleKeywords {
			if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
				kwHits = append(kwHits, strings.ToLower(kw))
			}
		}
		if len(kwHits) > 0 {
			out = append(out, models.ViolationDetail{Label: "forbidden_title_keyword", Values: kwHits})
		}
		if hits := metaGenreHits(meta, forbidden.Genres); len(hits) > 0 {
			out = append(out, models.ViolationDetail{Label: "forbidden_genre", Values: hits})
		}
	}

	if block != nil {
		if hits := metaGenreHits(meta, block.Criteria.ForbiddenGenres); len(hits) > 0 {
			out = append(out, models.ViolationDetail{Label: "block_forbidden_genre", Values: hits})
		}
	}

	// Criterion-level forbidden outcomes elevate to schedule level, except
	// bonus-category outcomes which stay local to the criterion score.
	for _, rv := range result.RuleViolations {
		if rv.Type != models.RuleForbidden || rv.Criterion == criteria.NameBonus {
			continue
		}
		out = append(out, models.ViolationDetail{
			Label:  "forbidden_" + rv.Criterion + "_rule",
			Values: rv.Values,
		})
	}
	return out
}

func (e *Engine) mandatoryPenalties(content *models.Content, meta *models.ContentMeta, profile *models.Profile, policy models.MFPPolicy) []models.PenaltyDetail {
	if profile == nil {
		return nil
	}
	mandatory := profile.MandatoryForbidden.Mandatory
	amount := policy.MandatoryMissedPenalty
	if amount < 0 {
		amount = -amount
	}

	var out []models.PenaltyDetail
	if mandatory.MinDurationMin > 0 && content.DurationMinutes() < float64(mandatory.MinDurationMin) {
		out = append(out, models.PenaltyDetail{Label: "min_duration", Amount: amount})
	}
	if mandatory.MinRating > 0 && (meta == nil || meta.Rating < mandatory.MinRating) {
		out = append(out, models.PenaltyDetail{Label: "min_rating", Amount: amount})
	}
	if len(mandatory.Genres) > 0 && len(metaGenreHits(meta, mandatory.Genres)) == 0 {
		out = append(out, models.PenaltyDetail{Label: "mandatory_genres", Amount: amount})
	}
	return out
}

// preferredBonuses records profile-wide preferred matches for auditing.
// The amounts are informational; criterion scores already reflect them.
func (e *Engine) preferredBonuses(content *models.Content, meta *models.ContentMeta, profile *models.Profile, policy models.MFPPolicy) []models.BonusDetail {
	if profile == nil {
		return nil
	}
	preferred := profile.MandatoryForbidden.Preferred
	title := strings.ToLower(content.Title)

	var out []models.BonusDetail
	if hits := metaGenreHits(meta, preferred.Genres); len(hits) > 0 {
		out = append(out, models.BonusDetail{Label: "preferred_genre", Amount: policy.PreferredMatchedBonus})
	}
	for _, t := range preferred.Types {
		if t == content.Type {
			out = append(out, models.BonusDetail{Label: "preferred_type", Amount: policy.PreferredMatchedBonus})
			break
		}
	}
	for _, kw := range preferred.TitleKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			out = append(out, models.BonusDetail{Label: "preferred_title_keyword", Amount: policy.PreferredMatchedBonus})
			break
		}
	}
	return out
}

// keywordMultiplier resolves the title multiplier. Exclude lists from the
// block, the profile and the dangerous-keywords safety net are merged;
// exclusion beats inclusion.
func keywordMultiplier(title string, profile *models.Profile, block *models.TimeBlock) (float64, string) {
	lowered := strings.ToLower(title)

	var exclude, include []string
	if block != nil && block.Criteria.KeywordMultipliers != nil {
		exclude = append(exclude, block.Criteria.KeywordMultipliers.Exclude...)
		include = append(include, block.Criteria.KeywordMultipliers.Include...)
	}
	if profile != nil {
		if profile.KeywordMultipliers != nil {
			exclude = append(exclude, profile.KeywordMultipliers.Exclude...)
			include = append(include, profile.KeywordMultipliers.Include...)
		}
		if profile.EnhancedCriteria != nil && profile.EnhancedCriteria.KeywordsSafety != nil {
			exclude = append(exclude, profile.EnhancedCriteria.KeywordsSafety.DangerousKeywords...)
		}
	}

	for _, kw := range exclude {
		lkw := strings.ToLower(kw)
		if lkw != "" && strings.Contains(lowered, lkw) {
			return 0.5, lkw
		}
	}
	for _, kw := range include {
		lkw := strings.ToLower(kw)
		if lkw != "" && strings.Contains(lowered, lkw) {
			return 1.1, lkw
		}
	}
	return 1.0, ""
}

func metaGenreHits(meta *models.ContentMeta, genres []string) []string {
	if meta == nil {
		return nil
	}
	var hits []string
	for _, g := range genres {
		if meta.HasGenre(g) {
			hits = append(hits, strings.ToLower(g))
		}
	}
	return hits
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
