package models

import (
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

// ContentType classifies a playable asset.
type ContentType string

const (
	ContentTypeMovie   ContentType = "movie"
	ContentTypeEpisode ContentType = "episode"
	ContentTypeTrailer ContentType = "trailer"
	ContentTypeShort   ContentType = "short"
	ContentTypeClip    ContentType = "clip"
	ContentTypeFiller  ContentType = "filler"
	ContentTypeOther   ContentType = "other"
)

func (ct ContentType) Valid() bool {
	switch ct {
	case ContentTypeMovie, ContentTypeEpisode, ContentTypeTrailer,
		ContentTypeShort, ContentTypeClip, ContentTypeFiller, ContentTypeOther:
		return true
	}
	return false
}

// Content is one playable asset from a media library. Immutable for the
// duration of a generation run. TMDBID, Genres and ContentRating are the
// raw server-side listing fields; resolved enrichment lives in ContentMeta.
type Content struct {
	ID             string      `json:"id"`
	ExternalKey    string      `json:"externalKey,omitempty"`
	Title          string      `json:"title"`
	Type           ContentType `json:"type"`
	DurationMillis int64       `json:"durationMillis"`
	Year           int         `json:"year,omitempty"`
	LibraryID      string      `json:"libraryId,omitempty"`
	TMDBID         int64       `json:"tmdbId,omitempty"`
	Genres         []string    `json:"genres,omitempty"`
	ContentRating  string      `json:"contentRating,omitempty"`
}

// DurationMinutes returns the runtime in whole minutes.
func (c *Content) DurationMinutes() float64 {
	return float64(c.DurationMillis) / 60000.0
}

// LibraryType classifies a media-server library section.
type LibraryType string

const (
	LibraryTypeMovie LibraryType = "movie"
	LibraryTypeShow  LibraryType = "show"
	LibraryTypeOther LibraryType = "other"
)

// Library is one section of a media server. ItemCount counts playable
// items: movies for movie sections, episodes for show sections.
type Library struct {
	ID        string      `json:"id"`
	ServerID  int64       `json:"serverId"`
	Name      string      `json:"name"`
	Type      LibraryType `json:"type"`
	ItemCount int         `json:"itemCount"`
}

// ContentMeta carries enrichment data for a content item. Any field may be
// absent; criteria fall back to neutral scores rather than fail.
type ContentMeta struct {
	Genres      []string `json:"genres,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Studios     []string `json:"studios,omitempty"`
	Collections []string `json:"collections,omitempty"`
	Actors      []string `json:"actors,omitempty"`
	AgeRating   string   `json:"ageRating,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	VoteCount   int      `json:"voteCount,omitempty"`
	Budget      int64    `json:"budget,omitempty"`
	Revenue     int64    `json:"revenue,omitempty"`
	TMDBID      int64    `json:"tmdbId,omitempty"`
}

// PoolItem pairs a content item with whatever metadata enrichment produced
// for it. The candidate pool handed to generation is a slice of these.
type PoolItem struct {
	Content Content      `json:"content"`
	Meta    *ContentMeta `json:"meta,omitempty"`
}

// HasGenre reports whether the meta lists the genre, case-insensitively.
func (m *ContentMeta) HasGenre(genre string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// RuleOutcomeType identifies which rule class produced an outcome.
type RuleOutcomeType string

const (
	RuleMandatory RuleOutcomeType = "mandatory"
	RuleForbidden RuleOutcomeType = "forbidden"
	RulePreferred RuleOutcomeType = "preferred"
)

// RuleOutcome records one mandatory/forbidden/preferred evaluation result.
type RuleOutcome struct {
	Type      RuleOutcomeType `json:"type"`
	Criterion string          `json:"criterion,omitempty"`
	Values    []string        `json:"values,omitempty"`
	Delta     float64         `json:"delta"`
}

// CriterionResult is the outcome of a single scoring criterion.
type CriterionResult struct {
	Score                   float64      `json:"score"`
	Weight                  float64      `json:"weight"`
	WeightedScore           float64      `json:"weightedScore"`
	Multiplier              float64      `json:"multiplier"`
	MultipliedWeightedScore float64      `json:"multipliedWeightedScore"`
	Skipped                 bool         `json:"skipped"`
	Details                 string       `json:"details,omitempty"`
	RuleViolation           *RuleOutcome `json:"ruleViolation,omitempty"`
}

// ViolationDetail describes one schedule-level forbidden violation.
type ViolationDetail struct {
	Label  string   `json:"label"`
	Values []string `json:"values,omitempty"`
}

// PenaltyDetail describes one global mandatory penalty. Amount is positive
// and subtracted from the weighted total.
type PenaltyDetail struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// BonusDetail describes one applied bonus.
type BonusDetail struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// ScoringResult is the full evaluation of one content item at one slot.
type ScoringResult struct {
	TotalScore        float64                     `json:"totalScore"`
	WeightedTotal     float64                     `json:"weightedTotal"`
	Criteria          map[string]*CriterionResult `json:"criteria"`
	ForbiddenDetails  []ViolationDetail           `json:"forbiddenDetails,omitempty"`
	MandatoryDetails  []PenaltyDetail             `json:"mandatoryDetails,omitempty"`
	BonusDetails      []BonusDetail               `json:"bonusDetails,omitempty"`
	KeywordMultiplier float64                     `json:"keywordMultiplier"`
	KeywordMatch      string                      `json:"keywordMatch,omitempty"`
	RuleViolations    []RuleOutcome               `json:"ruleViolations,omitempty"`
}

// Forbidden reports whether any schedule-level forbidden violation applies.
func (r *ScoringResult) Forbidden() bool {
	return r != nil && len(r.ForbiddenDetails) > 0
}

// ReplacementReason says why a program was swapped during post-processing.
type ReplacementReason string

const (
	ReplacementForbidden  ReplacementReason = "forbidden"
	ReplacementImproved   ReplacementReason = "improved"
	ReplacementAIImproved ReplacementReason = "ai_improved"
)

// ScheduledProgram is one slot of a generated schedule. Times are wall-clock
// in the channel's zone; block boundaries are defined in that zone too.
type ScheduledProgram struct {
	Content           Content           `json:"content"`
	Meta              *ContentMeta      `json:"meta,omitempty"`
	StartTime         time.Time         `json:"startTime"`
	EndTime           time.Time         `json:"endTime"`
	BlockName         string            `json:"blockName"`
	Position          int               `json:"position"`
	Score             *ScoringResult    `json:"score,omitempty"`
	IsReplacement     bool              `json:"isReplacement,omitempty"`
	ReplacementReason ReplacementReason `json:"replacementReason,omitempty"`
	ReplacedTitle     string            `json:"replacedTitle,omitempty"`
	IsAIImproved      bool              `json:"isAiImproved,omitempty"`
}

// DurationMinutes returns the slot length in minutes.
func (p *ScheduledProgram) DurationMinutes() float64 {
	return p.EndTime.Sub(p.StartTime).Minutes()
}

// TotalScore returns the program's final score, or 0 when unscored.
func (p *ScheduledProgram) TotalScore() float64 {
	if p.Score == nil {
		return 0
	}
	return p.Score.TotalScore
}

// IterationSummary is one candidate schedule retained for result inspection.
type IterationSummary struct {
	Iteration  int                `json:"iteration"`
	TotalScore float64            `json:"totalScore"`
	Programs   []ScheduledProgram `json:"programs"`
	Label      string             `json:"label,omitempty"`
}

// ProgrammingResult is the outcome of one generation run.
type ProgrammingResult struct {
	Programs              []ScheduledProgram `json:"programs"`
	TotalScore            float64            `json:"totalScore"`
	AverageScore          float64            `json:"averageScore"`
	Iteration             int                `json:"iteration"`
	Seed                  int64              `json:"seed"`
	ForbiddenCount        int                `json:"forbiddenCount"`
	AllIterations         []IterationSummary `json:"allIterations,omitempty"`
	IsOptimized           bool               `json:"isOptimized,omitempty"`
	IsImproved            bool               `json:"isImproved,omitempty"`
	OriginalBestIteration int                `json:"originalBestIteration,omitempty"`
	OriginalBestScore     float64            `json:"originalBestScore,omitempty"`
	ReplacedCount         int                `json:"replacedCount,omitempty"`
	ImprovedCount         int                `json:"improvedCount,omitempty"`
	AIResponse            string             `json:"aiResponse,omitempty"`
}

// TotalDurationMinutes sums the runtime of all scheduled programs.
func (r *ProgrammingResult) TotalDurationMinutes() float64 {
	var total float64
	for i := range r.Programs {
		total += r.Programs[i].DurationMinutes()
	}
	return total
}

// StoredResult is a persisted generation result. Score fields are
// denormalized from the result document so listings can skip decoding it;
// Result is nil on listings and populated on single fetches.
type StoredResult struct {
	ID           int64              `json:"id"`
	ChannelID    int64              `json:"channelId"`
	ProfileID    int64              `json:"profileId"`
	TotalScore   float64            `json:"totalScore"`
	AverageScore float64            `json:"averageScore"`
	Iteration    int                `json:"iteration"`
	Result       *ProgrammingResult `json:"result,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}
