// Package prefilter orders the candidate pool for one time block so the
// generator sees strong matches first. Items are classed into four tiers
// from the block's rule sets; the forbidden tier never reaches selection
// unless nothing else survives.
package prefilter

import (
	"sort"
	"strings"
	"time"

	"chanplan/internal/criteria"
	"chanplan/internal/models"
)

type Tier int

const (
	TierPreferred Tier = iota + 1 // preferred match, nothing missing
	TierNeutral                   // no signals either way
	TierPenalized                 // mandatory misses, still eligible
	TierExcluded                  // forbidden hit or hard constraint
)

// Candidate is one pool item with its preselection outcome.
type Candidate struct {
	Item            models.PoolItem
	Tier            Tier
	Priority        float64
	PreferredHits   int
	MandatoryHits   int
	MandatoryMisses int
	ForbiddenHits   int
}

// tokenCriteria lists the rule sets matched by category token. Timing needs
// a slot time and filter needs substring matching, so both are separate.
var tokenCriteria = []string{
	criteria.NameType, criteria.NameDuration, criteria.NameGenre,
	criteria.NameStrategy, criteria.NameAge, criteria.NameRating,
	criteria.NameBonus,
}

// Classify computes the tier and preselection priority of one item for the
// given block.
func Classify(item models.PoolItem, profile *models.Profile, block *models.TimeBlock, now time.Time) Candidate {
	c := Candidate{Item: item}
	if block == nil {
		c.Tier = TierNeutral
		return c
	}

	tokens := criteria.Tokens(&item.Content, item.Meta, profile, now)
	for _, name := range tokenCriteria {
		rules := block.Criteria.RulesFor(name)
		if rules == nil || rules.Empty() {
			continue
		}
		c.tally(tokens[name], rules)
	}
	c.tallyFilter(item, block.Criteria.FilterRules)
	c.tallyHardConstraints(item, block)

	switch {
	case c.ForbiddenHits > 0:
		c.Tier = TierExcluded
	case c.MandatoryMisses > 0:
		c.Tier = TierPenalized
	case c.PreferredHits > 0:
		c.Tier = TierPreferred
	default:
		c.Tier = TierNeutral
	}
	c.Priority = float64(c.PreferredHits)*10 + float64(c.MandatoryHits)*5 - float64(c.MandatoryMisses)*3
	return c
}

// Select returns the block's candidate ordering: tiers one to three in tier
// order, each sorted by priority. If everything lands in the excluded tier
// the full pool is returned so generation can still proceed.
func Select(pool []models.PoolItem, profile *models.Profile, block *models.TimeBlock, now time.Time) []models.PoolItem {
	if len(pool) == 0 {
		return nil
	}

	candidates := make([]Candidate, 0, len(pool))
	for _, item := range pool {
		candidates = append(candidates, Classify(item, profile, block, now))
	}

	var ordered []models.PoolItem
	for tier := TierPreferred; tier <= TierPenalized; tier++ {
		ordered = append(ordered, tierItems(candidates, tier)...)
	}
	if len(ordered) == 0 {
		ordered = append(ordered, pool...)
	}
	return ordered
}

func tierItems(candidates []Candidate, tier Tier) []models.PoolItem {
	var tiered []Candidate
	for _, c := range candidates {
		if c.Tier == tier {
			tiered = append(tiered, c)
		}
	}
	sort.SliceStable(tiered, func(i, j int) bool {
		return tiered[i].Priority > tiered[j].Priority
	})
	items := make([]models.PoolItem, 0, len(tiered))
	for _, c := range tiered {
		items = append(items, c.Item)
	}
	return items
}

// tally counts token membership against one rule set. Mandatory values use
// any-of semantics: one present token satisfies the set.
func (c *Candidate) tally(tokens []string, rules *models.CriterionRules) {
	for _, t := range tokens {
		if containsFold(rules.ForbiddenValues, t) {
			c.ForbiddenHits++
		}
		if containsFold(rules.PreferredValues, t) {
			c.PreferredHits++
		}
	}
	if len(rules.MandatoryValues) > 0 {
		hits := 0
		for _, t := range tokens {
			if containsFold(rules.MandatoryValues, t) {
				hits++
			}
		}
		if hits > 0 {
			c.MandatoryHits += hits
		} else {
			c.MandatoryMisses++
		}
	}
}

// tallyFilter applies the filter rule set with its substring semantics over
// title, keywords and studios.
func (c *Candidate) tallyFilter(item models.PoolItem, rules *models.CriterionRules) {
	if rules == nil || rules.Empty() {
		return
	}
	haystacks := []string{strings.ToLower(item.Content.Title)}
	if item.Meta != nil {
		for _, kw := range item.Meta.Keywords {
			haystacks = append(haystacks, strings.ToLower(kw))
		}
		for _, s := range item.Meta.Studios {
			haystacks = append(haystacks, strings.ToLower(s))
		}
	}

	for _, v := range rules.ForbiddenValues {
		if substringHit(haystacks, v) {
			c.ForbiddenHits++
		}
	}
	for _, v := range rules.PreferredValues {
		if substringHit(haystacks, v) {
			c.PreferredHits++
		}
	}
	if len(rules.MandatoryValues) > 0 {
		hits := 0
		for _, v := range rules.MandatoryValues {
			if substringHit(haystacks, v) {
				hits++
			}
		}
		if hits > 0 {
			c.MandatoryHits += hits
		} else {
			c.MandatoryMisses++
		}
	}
}

// tallyHardConstraints marks the block's age ceiling and duration bounds as
// forbidden outcomes.
func (c *Candidate) tallyHardConstraints(item models.PoolItem, block *models.TimeBlock) {
	bc := block.Criteria
	if bc.MaxAgeRating != "" && item.Meta != nil && item.Meta.AgeRating != "" {
		if criteria.AgeLevel(item.Meta.AgeRating) > criteria.AgeLevel(bc.MaxAgeRating) {
			c.ForbiddenHits++
		}
	}
	minutes := item.Content.DurationMinutes()
	if bc.MinDurationMin > 0 && minutes < float64(bc.MinDurationMin) {
		c.ForbiddenHits++
	}
	if bc.MaxDurationMin > 0 && minutes > float64(bc.MaxDurationMin) {
		c.ForbiddenHits++
	}
}

func containsFold(values []string, token string) bool {
	for _, v := range values {
		if strings.EqualFold(v, token) {
			return true
		}
	}
	return false
}

func substringHit(haystacks []string, needle string) bool {
	n := strings.ToLower(strings.TrimSpace(needle))
	if n == "" {
		return false
	}
	for _, h := range haystacks {
		if strings.Contains(h, n) {
			return true
		}
	}
	return false
}
