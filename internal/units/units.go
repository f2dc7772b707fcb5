// Package units renders schedule quantities for human-facing output:
// job step details, CLI summaries, suggestion prompts.
package units

import (
	"fmt"
	"math"
)

// FormatRuntime renders a runtime given in minutes as clock text:
// "45m", "1h 30m", "26h 05m". Sub-minute remainders round to the
// nearest minute.
func FormatRuntime(minutes float64) string {
	total := int(math.Round(minutes))
	if total < 0 {
		total = 0
	}
	h, m := total/60, total%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}
