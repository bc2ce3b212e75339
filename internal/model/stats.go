package model

import "math"

// CompletionStats summarizes task completion for a project or a user.
type CompletionStats struct {
	TotalTasks           int64   `json:"totalTasks"`
	CompletedTasks       int64   `json:"completedTasks"`
	PendingTasks         int64   `json:"pendingTasks"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// NewCompletionStats derives pending count and percentage, rounded to two decimals.
func NewCompletionStats(total, completed int64) CompletionStats {
	stats := CompletionStats{
		TotalTasks:     total,
		CompletedTasks: completed,
		PendingTasks:   total - completed,
	}
	if total > 0 {
		pct := float64(completed) / float64(total) * 100
		stats.CompletionPercentage = math.Round(pct*100) / 100
	}
	return stats
}
