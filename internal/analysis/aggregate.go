// Package analysis folds raw spreadsheet rows into per-period and overall
// business metrics.
package analysis

import "salone/internal/core"

// Aggregate computes the analysis of every period in the batch plus the
// overall view. Overall ratios are derived from overall totals, never from
// per-period results.
//
// Aggregate is pure: it keeps no state between calls and never fails.
// Periods are scanned in chronological order, which fixes the first-seen
// order used to break ties in the overall rankings.
func Aggregate(periods core.PeriodDataset) core.AnalysisResult {
	result := core.AnalysisResult{Periods: make(map[string]core.PeriodAnalysis, len(periods))}
	overall := newAccumulator()

	for _, key := range periods.Keys() {
		acc := newAccumulator()
		scanPeriod(periods[key], acc, overall)
		result.Periods[key] = acc.derive()
	}
	result.Overall = overall.derive()
	return result
}

func scanPeriod(rows []core.RawRow, targets ...*accumulator) {
	if len(rows) == 0 {
		return
	}
	current := ""
	for _, row := range rows[1:] {
		if op := row.Cell(core.ColOperator); op != "" && op != core.HeaderOperator {
			current = op
		}
		service := row.Cell(core.ColService)
		if service == "" || service == core.GroupService {
			continue
		}
		tx := transaction{
			operator: current,
			service:  service,
			count:    core.ParseCount(row.Cell(core.ColCount)),
			hours:    core.ParseNumber(row.Cell(core.ColHours)),
			revenue:  core.ParseNumber(row.Cell(core.ColRevenue)),
		}
		for _, acc := range targets {
			acc.add(tx)
		}
	}
}

type transaction struct {
	operator string
	service  string
	count    int
	hours    float64
	revenue  float64
}
