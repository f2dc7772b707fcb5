package units

import "testing"

func TestFormatRuntime(t *testing.T) {
	tests := []struct {
		minutes float64
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{59.6, "1h 00m"},
		{90, "1h 30m"},
		{125, "2h 05m"},
		{1570, "26h 10m"},
		{-5, "0m"},
	}
	for _, tt := range tests {
		if got := FormatRuntime(tt.minutes); got != tt.want {
			t.Errorf("FormatRuntime(%v) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}
