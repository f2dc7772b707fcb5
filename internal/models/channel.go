package models

import (
	"errors"
	"fmt"
	"time"
)

type ServerType string

const (
	ServerTypePlex ServerType = "plex"
)

func (st ServerType) Valid() bool {
	return st == ServerTypePlex
}

// MediaServer is a configured content source. The API key is encrypted at
// rest and never serialized outward.
type MediaServer struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Type      ServerType `json:"type"`
	URL       string     `json:"url"`
	APIKey    string     `json:"-"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (s *MediaServer) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if !s.Type.Valid() {
		return errors.New("type must be plex")
	}
	if s.URL == "" {
		return errors.New("url is required")
	}
	if s.APIKey == "" {
		return errors.New("apiKey is required")
	}
	return nil
}

// MediaServerInput is the create/update payload for a media server.
type MediaServerInput struct {
	Name    string     `json:"name"`
	Type    ServerType `json:"type"`
	URL     string     `json:"url"`
	APIKey  string     `json:"apiKey"`
	Enabled bool       `json:"enabled"`
}

func (si *MediaServerInput) ToServer() *MediaServer {
	return &MediaServer{
		Name:    si.Name,
		Type:    si.Type,
		URL:     si.URL,
		APIKey:  si.APIKey,
		Enabled: si.Enabled,
	}
}

// Channel is one downstream virtual TV channel.
type Channel struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Number    int       `json:"number,omitempty"`
	ProfileID int64     `json:"profileId"`
	Timezone  string    `json:"timezone,omitempty"`
	SinkURL   string    `json:"sinkUrl,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Channel) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.ProfileID <= 0 {
		return errors.New("profileId is required")
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q", c.Timezone)
		}
	}
	return nil
}

// Location resolves the channel's zone, defaulting to local time.
func (c *Channel) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RunSchedule triggers a recurring generation run.
type RunSchedule struct {
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
	ChannelID  int64              `json:"channelId"`
	TimeOfDay  string             `json:"timeOfDay"`
	DaysOfWeek []time.Weekday     `json:"daysOfWeek,omitempty"`
	Request    ProgrammingRequest `json:"request"`
	Enabled    bool               `json:"enabled"`
	LastRunAt  *time.Time         `json:"lastRunAt,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

func (s *RunSchedule) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.ChannelID <= 0 {
		return errors.New("channelId is required")
	}
	if _, err := parseClock(s.TimeOfDay); err != nil {
		return fmt.Errorf("timeOfDay: %w", err)
	}
	for _, d := range s.DaysOfWeek {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid day of week %d", d)
		}
	}
	return s.Request.Validate()
}

// DueAt reports whether the schedule should fire at the given minute.
// An empty DaysOfWeek means every day.
func (s *RunSchedule) DueAt(t time.Time) bool {
	if !s.Enabled {
		return false
	}
	m, err := parseClock(s.TimeOfDay)
	if err != nil {
		return false
	}
	if t.Hour()*60+t.Minute() != m {
		return false
	}
	if len(s.DaysOfWeek) == 0 {
		return true
	}
	for _, d := range s.DaysOfWeek {
		if t.Weekday() == d {
			return true
		}
	}
	return false
}
