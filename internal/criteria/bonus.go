package criteria

import (
	"strings"
	"time"

	"chanplan/internal/models"
)

// BonusCriterion awards points for derived content categories (recency,
// classics, blockbusters, franchises, popularity, seasonal fit) and applies
// the profile's enhanced criteria. Its forbidden outcomes stay local to the
// criterion score and are never elevated to schedule level.
type BonusCriterion struct{}

func (BonusCriterion) Name() string           { return NameBonus }
func (BonusCriterion) DefaultWeight() float64 { return 5 }

// bonusGroups maps each category token to its scoring group, so "recent"
// and "recency" together earn one group bonus, not two.
var bonusGroups = map[string]string{
	"recent":      "recency",
	"recency":     "recency",
	"old":         "classic",
	"classic":     "classic",
	"vintage":     "classic",
	"blockbuster": "blockbuster",
	"collection":  "franchise",
	"franchise":   "franchise",
	"popular":     "popularity",
	"trending":    "popularity",
	"holiday":     "seasonal",
	"seasonal":    "seasonal",
}

var holidayKeywords = []string{
	"christmas", "xmas", "santa", "holiday", "halloween", "thanksgiving", "winter",
}

func (BonusCriterion) Evaluate(in Input) *models.CriterionResult {
	now := time.Now()
	if in.Ctx != nil && !in.Ctx.Current.IsZero() {
		now = in.Ctx.Current
	}

	earned := earnedCategories(in.Content, in.Meta, now)
	score := 50.0

	groups := make(map[string]bool)
	for _, token := range earned {
		groups[bonusGroups[token]] = true
	}
	groupBonus := float64(len(groups)) * 10
	if groupBonus > 40 {
		groupBonus = 40
	}
	score += groupBonus

	var outcome *models.RuleOutcome
	rules := in.rules(NameBonus)
	if rules != nil {
		for _, v := range rules.PreferredValues {
			if containsFoldValue(earned, strings.ToLower(v)) {
				score += in.Policy.PreferredMatchedBonus
			}
		}
		for _, v := range rules.ForbiddenValues {
			lv := strings.ToLower(v)
			if containsFoldValue(earned, lv) {
				delta := in.Policy.ForbiddenDetectedPenalty
				if rules.ForbiddenPenalty != nil {
					delta = *rules.ForbiddenPenalty
				}
				score += delta
				outcome = &models.RuleOutcome{
					Type:      models.RuleForbidden,
					Criterion: NameBonus,
					Values:    []string{lv},
					Delta:     delta,
				}
				break
			}
		}
		if len(rules.MandatoryValues) > 0 {
			for _, v := range rules.MandatoryValues {
				if !containsFoldValue(earned, strings.ToLower(v)) {
					delta := in.Policy.MandatoryMissedPenalty
					if rules.MandatoryPenalty != nil {
						delta = *rules.MandatoryPenalty
					}
					score += delta
					if outcome == nil {
						outcome = &models.RuleOutcome{
							Type:      models.RuleMandatory,
							Criterion: NameBonus,
							Values:    []string{strings.ToLower(v)},
							Delta:     delta,
						}
					}
					break
				}
			}
		}
	}

	score += enhancedPoints(in)

	details := "no bonus categories"
	if len(earned) > 0 {
		details = strings.Join(earned, ", ")
	}
	return result(score, details, outcome)
}

// earnedCategories derives the bonus tokens for a content item.
func earnedCategories(c *models.Content, meta *models.ContentMeta, now time.Time) []string {
	var earned []string
	if c.Year > 0 {
		age := now.Year() - c.Year
		if age <= 2 {
			earned = append(earned, "recent", "recency")
		} else if age <= 5 {
			earned = append(earned, "recency")
		}
		if age > 20 {
			earned = append(earned, "old", "classic", "vintage")
		}
	}
	if meta != nil {
		if (meta.Budget > 0 && float64(meta.Revenue) >= 2.5*float64(meta.Budget)) ||
			meta.Revenue >= 500_000_000 {
			earned = append(earned, "blockbuster")
		}
		if len(meta.Collections) > 0 {
			earned = append(earned, "collection", "franchise")
		}
		if meta.VoteCount >= 1000 {
			earned = append(earned, "popular")
		}
		if meta.VoteCount >= 5000 {
			earned = append(earned, "trending")
		}
		if m := now.Month(); m >= time.October && m <= time.December {
			title := strings.ToLower(c.Title)
			keywords := lowerSet(meta.Keywords)
			for _, h := range holidayKeywords {
				if strings.Contains(title, h) || substringAny(keywords, h) {
					earned = append(earned, "holiday", "seasonal")
					break
				}
			}
		}
	}
	return earned
}

// enhancedPoints applies the profile's fine-grained bonus knobs.
func enhancedPoints(in Input) float64 {
	if in.Profile == nil || in.Profile.EnhancedCriteria == nil {
		return 0
	}
	ec := in.Profile.EnhancedCriteria
	title := strings.ToLower(in.Content.Title)
	var keywords, collections, actors []string
	if in.Meta != nil {
		keywords = lowerSet(in.Meta.Keywords)
		collections = lowerSet(in.Meta.Collections)
		actors = lowerSet(in.Meta.Actors)
	}

	var points float64
	if ks := ec.KeywordsSafety; ks != nil && ks.Penalty != 0 {
		for _, d := range ks.DangerousKeywords {
			ld := strings.ToLower(d)
			if ld != "" && (strings.Contains(title, ld) || substringAny(keywords, ld)) {
				points += ks.Penalty
				break
			}
		}
	}
	if pc := ec.PreferredCollections; pc != nil && pc.Points != 0 {
		if len(intersect(collections, pc.Values)) > 0 {
			points += pc.Points
		}
	}
	if pa := ec.PreferredActors; pa != nil && pa.Points != 0 {
		if len(intersect(actors, pa.Values)) > 0 {
			points += pa.Points
		}
	}
	if ek := ec.EducationalKeywords; ek != nil && ek.Points != 0 {
		for _, v := range ek.Values {
			lv := strings.ToLower(v)
			if lv != "" && (strings.Contains(title, lv) || substringAny(keywords, lv)) {
				points += ek.Points
				break
			}
		}
	}
	return points
}
