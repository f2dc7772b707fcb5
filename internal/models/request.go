package models

import (
	"errors"
	"fmt"
	"time"
)

// CacheMode controls where content metadata comes from during a run.
type CacheMode string

const (
	// CacheModeNone schedules with bare library data and no metadata.
	CacheModeNone CacheMode = "none"
	// CacheModePlexOnly uses only fields the media server itself returns.
	CacheModePlexOnly CacheMode = "plex_only"
	// CacheModeTMDBOnly fetches fresh metadata, ignoring the local cache.
	CacheModeTMDBOnly CacheMode = "tmdb_only"
	// CacheModeCacheOnly never touches the network.
	CacheModeCacheOnly CacheMode = "cache_only"
	// CacheModeFull reads the cache, then the server, then TMDB, writing back.
	CacheModeFull CacheMode = "full"
	// CacheModeEnrichCache is CacheModeFull but refreshes cached entries too.
	CacheModeEnrichCache CacheMode = "enrich_cache"
)

func (m CacheMode) Valid() bool {
	switch m {
	case CacheModeNone, CacheModePlexOnly, CacheModeTMDBOnly,
		CacheModeCacheOnly, CacheModeFull, CacheModeEnrichCache:
		return true
	}
	return false
}

// ProgrammingRequest describes one generation run.
type ProgrammingRequest struct {
	ChannelID        int64     `json:"channelId"`
	ProfileID        int64     `json:"profileId"`
	Iterations       int       `json:"iterations,omitempty"`
	Randomness       *float64  `json:"randomness,omitempty"`
	CacheMode        CacheMode `json:"cacheMode,omitempty"`
	PreviewOnly      bool      `json:"previewOnly,omitempty"`
	ReplaceForbidden bool      `json:"replaceForbidden,omitempty"`
	ImproveBest      bool      `json:"improveBest,omitempty"`
	DurationDays     int       `json:"durationDays,omitempty"`
	StartDatetime    string    `json:"startDatetime,omitempty"`
	Seed             int64     `json:"seed,omitempty"`
	AIImprove        bool      `json:"aiImprove,omitempty"`
	AIPrompt         string    `json:"aiPrompt,omitempty"`
	AIModel          string    `json:"aiModel,omitempty"`
}

const (
	DefaultIterations = 10
	DefaultRandomness = 0.3
)

// Validate applies defaults and checks bounds. An absent randomness field
// defaults to 0.3; an explicit 0 stays 0.
func (r *ProgrammingRequest) Validate() error {
	if r.ProfileID <= 0 {
		return errors.New("profileId is required")
	}
	if r.Iterations == 0 {
		r.Iterations = DefaultIterations
	}
	if r.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", r.Iterations)
	}
	if r.Randomness == nil {
		v := DefaultRandomness
		r.Randomness = &v
	}
	if *r.Randomness < 0 || *r.Randomness > 1 {
		return fmt.Errorf("randomness must be within [0,1], got %v", *r.Randomness)
	}
	if r.CacheMode == "" {
		r.CacheMode = CacheModeFull
	}
	if !r.CacheMode.Valid() {
		return fmt.Errorf("invalid cacheMode %q", r.CacheMode)
	}
	if r.DurationDays == 0 {
		r.DurationDays = 1
	}
	if r.DurationDays < 1 || r.DurationDays > 30 {
		return fmt.Errorf("durationDays must be within [1,30], got %d", r.DurationDays)
	}
	return nil
}

// startLayouts are accepted in order for startDatetime parsing.
var startLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
}

// StartTime parses startDatetime in the given zone, defaulting to now.
func (r *ProgrammingRequest) StartTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if r.StartDatetime == "" {
		return time.Now().In(loc), nil
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, r.StartDatetime, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid startDatetime %q", r.StartDatetime)
}

// DurationHours returns the requested schedule length in hours.
func (r *ProgrammingRequest) DurationHours() int {
	return r.DurationDays * 24
}

// ScoreItem is one playlist entry submitted for evaluation.
type ScoreItem struct {
	Content   Content      `json:"content"`
	Meta      *ContentMeta `json:"meta,omitempty"`
	StartTime time.Time    `json:"startTime"`
}

// ScoreRequest asks for an audit evaluation of an external playlist.
type ScoreRequest struct {
	ProfileID int64       `json:"profileId"`
	Items     []ScoreItem `json:"items"`
}

func (r *ScoreRequest) Validate() error {
	if r.ProfileID <= 0 {
		return errors.New("profileId is required")
	}
	if len(r.Items) == 0 {
		return errors.New("items must not be empty")
	}
	for i := range r.Items {
		if r.Items[i].Content.ID == "" {
			return fmt.Errorf("items[%d].content.id is required", i)
		}
		if r.Items[i].Content.DurationMillis <= 0 {
			return fmt.Errorf("items[%d].content.durationMillis must be positive", i)
		}
	}
	return nil
}
