package store

import (
	"fmt"
	"time"
)

// sqliteTimeLayouts lists every timestamp shape the store reads back:
// RFC3339 from the driver, the driver's space-separated zoned form, and the
// bare forms CURRENT_TIMESTAMP and strftime produce. Zoned layouts come
// first so an explicit offset always wins.
var sqliteTimeLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02 15:04:05.999999999-07:00", true},
	{"2006-01-02 15:04:05Z", true},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04", false},
}

// parseSQLiteTime turns a timestamp string read from SQLite into a UTC
// time.Time. The driver converts declared DATETIME columns on its own, but
// expressions such as MAX(synced_at) lose the declared type and surface as
// text. Times without an explicit zone are assumed UTC; the empty string
// reads as the zero time.
func parseSQLiteTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, l := range sqliteTimeLayouts {
		if l.zoned {
			if t, err := time.Parse(l.layout, s); err == nil {
				return t.UTC(), nil
			}
			continue
		}
		if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized sqlite timestamp %q", s)
}
