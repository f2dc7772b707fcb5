// Package timeblock resolves wall-clock instants to profile time blocks,
// including blocks that span midnight, and materializes absolute block
// instance boundaries for multi-day ranges.
package timeblock

import (
	"fmt"
	"time"

	"chanplan/internal/models"
)

// Resolver answers block queries for one profile's block list in one zone.
// All arithmetic converts to the configured zone once per lookup, which
// keeps results stable across DST transitions.
type Resolver struct {
	blocks []models.TimeBlock
	loc    *time.Location
}

// NewResolver builds a resolver over the given blocks. A nil location
// defaults to the local zone.
func NewResolver(blocks []models.TimeBlock, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{blocks: blocks, loc: loc}
}

// Location returns the zone the resolver operates in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Locate returns the block containing the instant, or nil when no block
// covers its time-of-day. The first matching block wins.
func (r *Resolver) Locate(t time.Time) *models.TimeBlock {
	m := minuteOfDay(t.In(r.loc))
	for i := range r.blocks {
		if r.blocks[i].ContainsMinute(m) {
			return &r.blocks[i]
		}
	}
	return nil
}

// BlockStart returns the absolute start of the block instance containing t.
// For an overnight block, an early-morning t belongs to the instance that
// started the previous day.
func (r *Resolver) BlockStart(t time.Time, b *models.TimeBlock) time.Time {
	tl := t.In(r.loc)
	day := tl
	if b.Overnight() && minuteOfDay(tl) < b.EndMinute() {
		day = tl.AddDate(0, 0, -1)
	}
	return atMinute(day, b.StartMinute(), r.loc)
}

// BlockEnd returns the absolute end of the block instance containing t.
// For an overnight block, an evening t has its end the next day.
func (r *Resolver) BlockEnd(t time.Time, b *models.TimeBlock) time.Time {
	tl := t.In(r.loc)
	day := tl
	if b.Overnight() && minuteOfDay(tl) >= b.StartMinute() {
		day = tl.AddDate(0, 0, 1)
	}
	return atMinute(day, b.EndMinute(), r.loc)
}

// NextStart returns the first covered instant at or after t, probing at
// minute granularity up to 24 hours out.
func (r *Resolver) NextStart(t time.Time) (time.Time, bool) {
	tl := t.In(r.loc).Truncate(time.Minute)
	for i := 0; i <= 1440; i++ {
		probe := tl.Add(time.Duration(i) * time.Minute)
		if r.Locate(probe) != nil {
			return probe, true
		}
	}
	return time.Time{}, false
}

// Gap is an uncovered range of the day, rendered as HH:MM clocks.
type Gap struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ValidateCoverage checks that the blocks collectively cover all 24 hours.
// Gaps are a warning surface, not an error.
func (r *Resolver) ValidateCoverage() (bool, []Gap) {
	covered := make([]bool, 1440)
	for i := range r.blocks {
		for m := 0; m < 1440; m++ {
			if r.blocks[i].ContainsMinute(m) {
				covered[m] = true
			}
		}
	}
	var gaps []Gap
	for m := 0; m < 1440; {
		if covered[m] {
			m++
			continue
		}
		start := m
		for m < 1440 && !covered[m] {
			m++
		}
		gaps = append(gaps, Gap{Start: clock(start), End: clock(m % 1440)})
	}
	return len(gaps) == 0, gaps
}

// Slot is one contiguous slice of a block instance inside a planning range.
type Slot struct {
	Block *models.TimeBlock
	Start time.Time
	End   time.Time
}

// EnumerateSlots partitions [start, start+durationHours) into consecutive
// block slices. Uncovered minutes are skipped.
func (r *Resolver) EnumerateSlots(start time.Time, durationHours int) []Slot {
	var slots []Slot
	t := start.In(r.loc)
	rangeEnd := t.Add(time.Duration(durationHours) * time.Hour)
	for t.Before(rangeEnd) {
		b := r.Locate(t)
		if b == nil {
			t = t.Add(time.Minute)
			continue
		}
		end := r.BlockEnd(t, b)
		if end.After(rangeEnd) {
			end = rangeEnd
		}
		slots = append(slots, Slot{Block: b, Start: t, End: end})
		t = end
	}
	return slots
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// atMinute returns the instant at the given minute-of-day on t's date.
func atMinute(t time.Time, m int, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), m/60, m%60, 0, 0, loc)
}

func clock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
