package domain

import "math"

// Stats summarises a working set for the dashboard header.
type Stats struct {
	Total           int     `json:"total"`
	Pending         int     `json:"pending"`
	InProgress      int     `json:"in_progress"`
	Completed       int     `json:"completed"`
	OverallProgress int     `json:"overall_progress"`
	TotalCost       float64 `json:"total_cost"`
}

// Summarize counts activities per status, averages progress (rounded half up)
// and totals cost.
func Summarize(activities []Activity) Stats {
	stats := Stats{Total: len(activities)}
	progressSum := 0
	for _, a := range activities {
		switch a.Status {
		case StatusInProgress:
			stats.InProgress++
		case StatusCompleted:
			stats.Completed++
		default:
			stats.Pending++
		}
		progressSum += a.Progress
		stats.TotalCost += a.Cost
	}
	if stats.Total > 0 {
		stats.OverallProgress = int(math.Floor(float64(progressSum)/float64(stats.Total) + 0.5))
	}
	return stats
}
