package store

import (
	"fmt"
	"time"
)

// CleanupReport summarizes one retention pass.
type CleanupReport struct {
	ResultsPruned    int64
	JobHistoryPruned int64
}

// Cleanup prunes stored results down to the configured per-channel retention
// and drops job history past its age limit. Runs from the nightly maintenance
// schedule; safe to call concurrently with normal traffic.
func (s *Store) Cleanup() (CleanupReport, error) {
	var report CleanupReport

	keep, err := s.GetResultRetention()
	if err != nil {
		return report, fmt.Errorf("reading result retention: %w", err)
	}
	channels, err := s.ListChannels()
	if err != nil {
		return report, err
	}
	for _, ch := range channels {
		pruned, err := s.PruneResults(ch.ID, keep)
		if err != nil {
			return report, err
		}
		report.ResultsPruned += pruned
	}

	days, err := s.GetJobHistoryDays()
	if err != nil {
		return report, fmt.Errorf("reading job history retention: %w", err)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	if report.JobHistoryPruned, err = s.PruneJobHistory(cutoff); err != nil {
		return report, err
	}

	return report, nil
}
