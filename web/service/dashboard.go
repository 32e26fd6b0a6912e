package service

import (
	"solidity-armor/db"
	"solidity-armor/models"
)

// GetStats aggregates scan counts for the dashboard and stats endpoint.
func GetStats(database *db.Database) (map[string]interface{}, error) {
	counts, err := database.CountScansByStatus()
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	return map[string]interface{}{
		"total_scans":     total,
		"pending_scans":   counts[models.ScanStatusPending],
		"analyzing_scans": counts[models.ScanStatusAnalyzing],
		"completed_scans": counts[models.ScanStatusCompleted],
		"failed_scans":    counts[models.ScanStatusFailed],
	}, nil
}
