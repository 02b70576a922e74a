package charts

import (
	"errors"

	"gonum.org/v1/plot"

	"salone/internal/core"
)

// ErrUnknownChart is returned for a chart name with no view.
var ErrUnknownChart = errors.New("unknown chart")

const currency = "CHF"

// OverallNames lists the charts built from the whole batch.
var OverallNames = []string{
	"fatturato", "operatori", "servizi",
	"valore-ora", "servizi-operatore",
	"trend-fatturato", "trend-valore-ora", "trend-valore-medio",
	"popolarita", "redditivita", "trend-servizi",
}

// PeriodNames lists the charts built from one month.
var PeriodNames = []string{"servizi", "operatori", "valore-ora", "servizi-operatore"}

// Overall builds a named chart from the batch analysis.
func Overall(name string, res core.AnalysisResult) (*plot.Plot, error) {
	months := res.Keys()
	labels := make([]string, len(months))
	for i, m := range months {
		labels[i] = core.PeriodLabel(m)
	}
	ov := res.Overall
	operators := ov.SortedOperators.Names()

	switch name {
	case "fatturato":
		totals := make([]float64, len(months))
		for i, m := range months {
			totals[i] = res.Periods[m].TotalRevenue
		}
		return Lines("Andamento Fatturato nel Tempo", currency, labels, []Series{{Name: "Fatturato", Values: totals}})
	case "operatori":
		return Bar("Performance Operatori", currency, ov.SortedOperators, Teal)
	case "servizi", "popolarita":
		return Bar("Popolarità Servizi", currency, ov.SortedServices, Teal)
	case "redditivita":
		return Bar("Redditività Servizi", currency, ov.SortedServices, Purple)
	case "valore-ora":
		return Bar("Valore Ora per Operatore", currency+"/h", alignTo(operators, ov.OperatorHourlyRates), Teal)
	case "servizi-operatore":
		return Bar("Numero Servizi per Operatore", "Servizi", alignTo(operators, countsRanking(ov.OperatorServiceCounts)), Purple)
	case "trend-fatturato":
		return Lines("Trend Fatturato Operatori", currency, labels,
			trend(res, months, operators, func(p core.PeriodAnalysis) core.Ranking { return p.SortedOperators }))
	case "trend-valore-ora":
		return Lines("Trend Valore Ora Operatori", currency+"/h", labels,
			trend(res, months, operators, func(p core.PeriodAnalysis) core.Ranking { return p.OperatorHourlyRates }))
	case "trend-valore-medio":
		return Lines("Trend Valore Medio Servizio Operatori", currency, labels,
			trend(res, months, operators, func(p core.PeriodAnalysis) core.Ranking { return p.OperatorAverageServiceValues }))
	case "trend-servizi":
		return Lines("Trend Popolarità Servizi", currency, labels,
			trend(res, months, ov.SortedServices.Names(), func(p core.PeriodAnalysis) core.Ranking { return p.SortedServices }))
	}
	return nil, ErrUnknownChart
}

// Period builds a named chart for one month.
func Period(name string, p core.PeriodAnalysis) (*plot.Plot, error) {
	switch name {
	case "servizi":
		return Bar("Top Servizi", currency, p.SortedServices, Teal)
	case "operatori":
		return Bar("Performance Operatori", currency, p.SortedOperators, Purple)
	case "valore-ora":
		return Bar("Valore Ora per Operatore", currency+"/h", p.OperatorHourlyRates, Orange)
	case "servizi-operatore":
		return Bar("Numero Servizi per Operatore", "Servizi", countsRanking(p.OperatorServiceCounts), Pink)
	}
	return nil, ErrUnknownChart
}

// trend builds one series per name; a month without the name counts as 0.
func trend(res core.AnalysisResult, months, names []string, pick func(core.PeriodAnalysis) core.Ranking) []Series {
	out := make([]Series, len(names))
	for i, n := range names {
		values := make([]float64, len(months))
		for j, m := range months {
			values[j] = pick(res.Periods[m]).ValueOr(n, 0)
		}
		out[i] = Series{Name: n, Values: values}
	}
	return out
}

// alignTo reorders r to follow names; missing names get 0.
func alignTo(names []string, r core.Ranking) core.Ranking {
	out := make(core.Ranking, len(names))
	for i, n := range names {
		out[i] = core.Amount{Name: n, Value: r.ValueOr(n, 0)}
	}
	return out
}

func countsRanking(c core.Counts) core.Ranking {
	out := make(core.Ranking, len(c))
	for i, n := range c {
		out[i] = core.Amount{Name: n.Name, Value: float64(n.Value)}
	}
	return out
}
