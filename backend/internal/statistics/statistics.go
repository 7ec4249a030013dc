// ============================================================================
// backend/internal/statistics/statistics.go
// Leaderboard statistics over the roster's total points.
// ============================================================================

package statistics

import (
	"github.com/montanaflynn/stats"

	"nafes-passport/backend/internal/shared"
)

// GradeSummary aggregates one grade's cohort.
type GradeSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Max   int     `json:"max"`
}

// Summary aggregates the whole roster.
type Summary struct {
	Count    int                  `json:"count"`
	Mean     float64              `json:"mean"`
	Median   float64              `json:"median"`
	StdDev   float64              `json:"stdDev"`
	Min      int                  `json:"min"`
	Max      int                  `json:"max"`
	PerGrade map[int]GradeSummary `json:"perGrade"`
}

// Summarize computes the leaderboard summary. An empty roster yields a
// zero summary, not an error.
func Summarize(students []shared.Student) Summary {
	summary := Summary{PerGrade: map[int]GradeSummary{}}
	if len(students) == 0 {
		return summary
	}

	totals := make([]float64, 0, len(students))
	gradeTotals := map[int][]float64{}
	for _, st := range students {
		totals = append(totals, float64(st.TotalPoints))
		gradeTotals[st.Grade] = append(gradeTotals[st.Grade], float64(st.TotalPoints))
	}

	summary.Count = len(students)
	summary.Mean, _ = stats.Mean(totals)
	summary.Median, _ = stats.Median(totals)
	summary.StdDev, _ = stats.StandardDeviation(totals)

	min, _ := stats.Min(totals)
	max, _ := stats.Max(totals)
	summary.Min = int(min)
	summary.Max = int(max)

	for grade, ts := range gradeTotals {
		mean, _ := stats.Mean(ts)
		gradeMax, _ := stats.Max(ts)
		summary.PerGrade[grade] = GradeSummary{
			Count: len(ts),
			Mean:  mean,
			Max:   int(gradeMax),
		}
	}
	return summary
}
