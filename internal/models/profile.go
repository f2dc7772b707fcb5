package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MFPPolicy holds the point deltas applied by mandatory/forbidden/preferred
// rule evaluation. Deltas are signed: bonuses positive, penalties negative.
// A zero field inherits from the next level (block overrides profile,
// profile overrides built-in defaults).
type MFPPolicy struct {
	MandatoryMatchedBonus    float64 `json:"mandatoryMatchedBonus,omitempty"`
	MandatoryMissedPenalty   float64 `json:"mandatoryMissedPenalty,omitempty"`
	ForbiddenDetectedPenalty float64 `json:"forbiddenDetectedPenalty,omitempty"`
	PreferredMatchedBonus    float64 `json:"preferredMatchedBonus,omitempty"`
}

// DefaultMFPPolicy returns the built-in point deltas.
func DefaultMFPPolicy() MFPPolicy {
	return MFPPolicy{
		MandatoryMatchedBonus:    10,
		MandatoryMissedPenalty:   -40,
		ForbiddenDetectedPenalty: -400,
		PreferredMatchedBonus:    20,
	}
}

// overlay returns p with zero fields filled from base.
func (p MFPPolicy) overlay(base MFPPolicy) MFPPolicy {
	out := base
	if p.MandatoryMatchedBonus != 0 {
		out.MandatoryMatchedBonus = p.MandatoryMatchedBonus
	}
	if p.MandatoryMissedPenalty != 0 {
		out.MandatoryMissedPenalty = p.MandatoryMissedPenalty
	}
	if p.ForbiddenDetectedPenalty != 0 {
		out.ForbiddenDetectedPenalty = p.ForbiddenDetectedPenalty
	}
	if p.PreferredMatchedBonus != 0 {
		out.PreferredMatchedBonus = p.PreferredMatchedBonus
	}
	return out
}

// CriterionRules is one mandatory/forbidden/preferred rule set. Penalty and
// bonus overrides are signed deltas; nil inherits the policy amount.
type CriterionRules struct {
	MandatoryValues  []string `json:"mandatoryValues,omitempty"`
	MandatoryPenalty *float64 `json:"mandatoryPenalty,omitempty"`
	ForbiddenValues  []string `json:"forbiddenValues,omitempty"`
	ForbiddenPenalty *float64 `json:"forbiddenPenalty,omitempty"`
	PreferredValues  []string `json:"preferredValues,omitempty"`
	PreferredBonus   *float64 `json:"preferredBonus,omitempty"`
}

// Empty reports whether the rule set has no values in any class.
func (r *CriterionRules) Empty() bool {
	return r == nil ||
		(len(r.MandatoryValues) == 0 && len(r.ForbiddenValues) == 0 && len(r.PreferredValues) == 0)
}

// KeywordMultipliers drives the whole-score title multiplier. Exclude hits
// halve the score, include hits boost it by 10%; exclusion wins.
type KeywordMultipliers struct {
	Exclude []string `json:"exclude,omitempty"`
	Include []string `json:"include,omitempty"`
}

// TimeBlock is a named [start, end) window of the programming day. A block
// whose end is not after its start wraps past midnight.
type TimeBlock struct {
	Name     string        `json:"name"`
	Start    string        `json:"start"`
	End      string        `json:"end"`
	Criteria BlockCriteria `json:"criteria"`
}

// parseClock converts "HH:MM" to minutes after midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func (b *TimeBlock) Validate() error {
	if b.Name == "" {
		return errors.New("block name is required")
	}
	if _, err := parseClock(b.Start); err != nil {
		return fmt.Errorf("block %q start: %w", b.Name, err)
	}
	if _, err := parseClock(b.End); err != nil {
		return fmt.Errorf("block %q end: %w", b.Name, err)
	}
	return nil
}

// StartMinute returns the block start as minutes after midnight.
// Call Validate first; malformed clocks return 0.
func (b *TimeBlock) StartMinute() int {
	m, _ := parseClock(b.Start)
	return m
}

// EndMinute returns the block end as minutes after midnight.
func (b *TimeBlock) EndMinute() int {
	m, _ := parseClock(b.End)
	return m
}

// Overnight reports whether the block wraps past midnight.
func (b *TimeBlock) Overnight() bool {
	return b.EndMinute() <= b.StartMinute()
}

// DurationMinutes returns the block length in minutes.
func (b *TimeBlock) DurationMinutes() int {
	start, end := b.StartMinute(), b.EndMinute()
	if b.Overnight() {
		return (1440 - start) + end
	}
	return end - start
}

// ContainsMinute reports whether a minute-of-day falls inside the block,
// honoring the overnight wrap. The end minute is exclusive.
func (b *TimeBlock) ContainsMinute(m int) bool {
	start, end := b.StartMinute(), b.EndMinute()
	if b.Overnight() {
		return m >= start || m < end
	}
	return m >= start && m < end
}

// BlockCriteria holds everything a block constrains or prefers. All fields
// are optional; zero values mean "no constraint".
type BlockCriteria struct {
	PreferredTypes []ContentType `json:"preferredTypes,omitempty"`
	AllowedTypes   []ContentType `json:"allowedTypes,omitempty"`
	ExcludedTypes  []ContentType `json:"excludedTypes,omitempty"`

	PreferredGenres []string `json:"preferredGenres,omitempty"`
	AllowedGenres   []string `json:"allowedGenres,omitempty"`
	ForbiddenGenres []string `json:"forbiddenGenres,omitempty"`

	MinDurationMin int `json:"minDurationMin,omitempty"`
	MaxDurationMin int `json:"maxDurationMin,omitempty"`

	MaxAgeRating string `json:"maxAgeRating,omitempty"`

	MinTMDBRating       float64 `json:"minTmdbRating,omitempty"`
	PreferredTMDBRating float64 `json:"preferredTmdbRating,omitempty"`
	MinVoteCount        int     `json:"minVoteCount,omitempty"`

	ExcludeKeywords []string `json:"excludeKeywords,omitempty"`
	IncludeKeywords []string `json:"includeKeywords,omitempty"`

	TypeRules     *CriterionRules `json:"typeRules,omitempty"`
	DurationRules *CriterionRules `json:"durationRules,omitempty"`
	GenreRules    *CriterionRules `json:"genreRules,omitempty"`
	TimingRules   *CriterionRules `json:"timingRules,omitempty"`
	StrategyRules *CriterionRules `json:"strategyRules,omitempty"`
	AgeRules      *CriterionRules `json:"ageRules,omitempty"`
	RatingRules   *CriterionRules `json:"ratingRules,omitempty"`
	FilterRules   *CriterionRules `json:"filterRules,omitempty"`
	BonusRules    *CriterionRules `json:"bonusRules,omitempty"`

	MFPPolicy            *MFPPolicy          `json:"mfpPolicy,omitempty"`
	CriterionMultipliers map[string]float64  `json:"criterionMultipliers,omitempty"`
	KeywordMultipliers   *KeywordMultipliers `json:"keywordMultipliers,omitempty"`
}

// RulesFor returns the block's rule set for a criterion name, or nil.
func (c *BlockCriteria) RulesFor(name string) *CriterionRules {
	if c == nil {
		return nil
	}
	switch name {
	case "type":
		return c.TypeRules
	case "duration":
		return c.DurationRules
	case "genre":
		return c.GenreRules
	case "timing":
		return c.TimingRules
	case "strategy":
		return c.StrategyRules
	case "age":
		return c.AgeRules
	case "rating":
		return c.RatingRules
	case "filter":
		return c.FilterRules
	case "bonus":
		return c.BonusRules
	}
	return nil
}

// GlobalMandatory lists what every schedule item must satisfy.
type GlobalMandatory struct {
	ContentIDs     []string      `json:"contentIds,omitempty"`
	Genres         []string      `json:"genres,omitempty"`
	Types          []ContentType `json:"types,omitempty"`
	MinDurationMin int           `json:"minDurationMin,omitempty"`
	MinRating      float64       `json:"minRating,omitempty"`
}

// GlobalForbidden lists what no schedule item may carry.
type GlobalForbidden struct {
	ContentIDs    []string      `json:"contentIds,omitempty"`
	Genres        []string      `json:"genres,omitempty"`
	TitleKeywords []string      `json:"titleKeywords,omitempty"`
	Types         []ContentType `json:"types,omitempty"`
}

// GlobalPreferred lists soft profile-wide preferences.
type GlobalPreferred struct {
	Genres        []string      `json:"genres,omitempty"`
	TitleKeywords []string      `json:"titleKeywords,omitempty"`
	Types         []ContentType `json:"types,omitempty"`
}

// GlobalCriteria bundles profile-wide mandatory/forbidden/preferred rules.
type GlobalCriteria struct {
	Mandatory GlobalMandatory `json:"mandatory,omitempty"`
	Forbidden GlobalForbidden `json:"forbidden,omitempty"`
	Preferred GlobalPreferred `json:"preferred,omitempty"`
}

// FillerInsertion enables padding short gaps with designated content types.
type FillerInsertion struct {
	Enabled bool          `json:"enabled"`
	Types   []ContentType `json:"types,omitempty"`
}

// Strategies are profile-wide scheduling preferences consumed by the
// strategy criterion.
type Strategies struct {
	MaintainSequence bool            `json:"maintainSequence,omitempty"`
	MaximizeVariety  bool            `json:"maximizeVariety,omitempty"`
	MarathonMode     bool            `json:"marathonMode,omitempty"`
	FillerInsertion  FillerInsertion `json:"fillerInsertion,omitempty"`
}

// KeywordsSafety penalizes titles carrying dangerous keywords and merges
// them into the exclude-multiplier list.
type KeywordsSafety struct {
	DangerousKeywords []string `json:"dangerousKeywords,omitempty"`
	Penalty           float64  `json:"penalty,omitempty"`
}

// PointsRule awards fixed points when content matches any listed value.
type PointsRule struct {
	Values []string `json:"values,omitempty"`
	Points float64  `json:"points,omitempty"`
}

// EnhancedCriteria are optional fine-grained bonus knobs. The JSON keys are
// snake_case to stay compatible with existing profile documents.
type EnhancedCriteria struct {
	KeywordsSafety       *KeywordsSafety `json:"keywords_safety,omitempty"`
	PreferredCollections *PointsRule     `json:"preferred_collections,omitempty"`
	PreferredActors      *PointsRule     `json:"preferred_actors,omitempty"`
	EducationalKeywords  *PointsRule     `json:"educational_keywords,omitempty"`
}

// Profile is a user-authored schedule configuration.
type Profile struct {
	ID                   int64               `json:"id"`
	Name                 string              `json:"name"`
	Libraries            []string            `json:"libraries,omitempty"`
	TimeBlocks           []TimeBlock         `json:"timeBlocks"`
	MandatoryForbidden   GlobalCriteria      `json:"mandatoryForbiddenCriteria,omitempty"`
	ScoringWeights       map[string]float64  `json:"scoringWeights,omitempty"`
	CriterionMultipliers map[string]float64  `json:"criterionMultipliers,omitempty"`
	MFPPolicy            *MFPPolicy          `json:"mfpPolicy,omitempty"`
	Strategies           Strategies          `json:"strategies,omitempty"`
	EnhancedCriteria     *EnhancedCriteria   `json:"enhancedCriteria,omitempty"`
	KeywordMultipliers   *KeywordMultipliers `json:"keywordMultipliers,omitempty"`
	CreatedAt            time.Time           `json:"createdAt,omitempty"`
	UpdatedAt            time.Time           `json:"updatedAt,omitempty"`
}

func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if len(p.TimeBlocks) == 0 {
		return errors.New("at least one time block is required")
	}
	seen := make(map[string]bool, len(p.TimeBlocks))
	for i := range p.TimeBlocks {
		if err := p.TimeBlocks[i].Validate(); err != nil {
			return err
		}
		if seen[p.TimeBlocks[i].Name] {
			return fmt.Errorf("duplicate block name %q", p.TimeBlocks[i].Name)
		}
		seen[p.TimeBlocks[i].Name] = true
	}
	for key, w := range p.ScoringWeights {
		if w < 0 || w > 100 {
			return fmt.Errorf("scoring weight %q out of range [0,100]: %v", key, w)
		}
	}
	return nil
}

// PolicyFor resolves the effective point policy for a block: block-level
// fields override profile-level fields override built-in defaults.
func (p *Profile) PolicyFor(block *TimeBlock) MFPPolicy {
	policy := DefaultMFPPolicy()
	if p != nil && p.MFPPolicy != nil {
		policy = p.MFPPolicy.overlay(policy)
	}
	if block != nil && block.Criteria.MFPPolicy != nil {
		policy = block.Criteria.MFPPolicy.overlay(policy)
	}
	return policy
}

// MultiplierFor resolves the effective criterion multiplier: block-level
// first, then profile-level, default 1.
func (p *Profile) MultiplierFor(block *TimeBlock, name string) float64 {
	if block != nil {
		if m, ok := block.Criteria.CriterionMultipliers[name]; ok && m > 0 {
			return m
		}
	}
	if p != nil {
		if m, ok := p.CriterionMultipliers[name]; ok && m > 0 {
			return m
		}
	}
	return 1.0
}

// WeightFor resolves a criterion weight: an explicit entry wins even when
// zero, otherwise the criterion's default applies.
func (p *Profile) WeightFor(key string, def float64) float64 {
	if p != nil {
		if w, ok := p.ScoringWeights[key]; ok {
			return w
		}
	}
	return def
}

// BlockByName returns the profile block with the given name, or nil.
func (p *Profile) BlockByName(name string) *TimeBlock {
	for i := range p.TimeBlocks {
		if p.TimeBlocks[i].Name == name {
			return &p.TimeBlocks[i]
		}
	}
	return nil
}
