package scoring

import (
	"fmt"
	"io"
	"strings"

	"chanplan/internal/models"
)

// csvColumns is the fixed export layout. The criterion columns mirror the
// evaluation order.
var csvColumns = []string{
	"Position", "Title", "Start Time", "Duration (min)", "Total Score",
	"Type", "Duration", "Genre", "Timing", "Strategy",
	"Age", "Rating", "Filter", "Bonus",
	"Mandatory Met", "Forbidden Violated",
}

// WriteCSV renders a schedule as comma-separated text. Skipped criteria
// produce empty cells so spreadsheet averages stay honest.
func WriteCSV(w io.Writer, programs []models.ScheduledProgram) error {
	if _, err := io.WriteString(w, strings.Join(csvColumns, ", ")+"\n"); err != nil {
		return err
	}
	for i := range programs {
		if _, err := io.WriteString(w, csvRow(&programs[i])+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func csvRow(p *models.ScheduledProgram) string {
	fields := make([]string, 0, len(csvColumns))
	fields = append(fields,
		fmt.Sprintf("%d", p.Position),
		csvEscape(p.Content.Title),
		p.StartTime.Format("2006-01-02 15:04"),
		fmt.Sprintf("%.0f", p.DurationMinutes()),
		fmt.Sprintf("%.2f", p.TotalScore()),
	)
	for _, name := range criterionOrder {
		fields = append(fields, csvCriterionCell(p.Score, name))
	}
	fields = append(fields, csvYesNo(mandatoryMet(p.Score)), csvEscape(violatedLabels(p.Score)))
	return strings.Join(fields, ", ")
}

func csvCriterionCell(result *models.ScoringResult, name string) string {
	if result == nil {
		return ""
	}
	cr, ok := result.Criteria[name]
	if !ok || cr == nil || cr.Skipped {
		return ""
	}
	return fmt.Sprintf("%.2f", cr.Score)
}

func mandatoryMet(result *models.ScoringResult) bool {
	if result == nil {
		return true
	}
	if len(result.MandatoryDetails) > 0 {
		return false
	}
	for _, rv := range result.RuleViolations {
		if rv.Type == models.RuleMandatory && rv.Delta < 0 {
			return false
		}
	}
	return true
}

func violatedLabels(result *models.ScoringResult) string {
	if result == nil || len(result.ForbiddenDetails) == 0 {
		return ""
	}
	labels := make([]string, 0, len(result.ForbiddenDetails))
	for _, v := range result.ForbiddenDetails {
		labels = append(labels, v.Label)
	}
	return strings.Join(labels, "; ")
}

func csvYesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// csvEscape quotes a field when it contains separators or quotes.
func csvEscape(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
