package http

import (
	"net/url"

	"salone/internal/core"
	"salone/internal/session"
)

type navItem struct {
	Path  string
	Label string
}

var navItems = []navItem{
	{"/", "Panoramica"},
	{"/analisi/globale", "Analisi Globale"},
	{"/analisi/mensile", "Analisi Mensile"},
	{"/operatori", "Dettagli Operatori"},
	{"/servizi", "Dettagli Servizi"},
	{"/suggerimenti", "Suggerimenti"},
}

// pageData is the root value of every full page template.
type pageData struct {
	Title     string
	Active    string
	Nav       []navItem
	HasData   bool
	CanImport bool
	Source    string
	Periods   []periodOption
	Error     string
	Body      any
}

type periodOption struct {
	Key      string
	Label    string
	Selected bool
}

type chartRef struct {
	Title string
	URL   string
}

type overviewView struct {
	TotalRevenue   string
	TopService     string
	BottomService  string
	TopOperator    string
	BottomOperator string
}

type operatorRow struct {
	Name    string
	Revenue string
	Hours   string
	Rate    string
	Average string
	Count   int
}

type serviceRow struct {
	Name    string
	Revenue string
}

type monthView struct {
	Key          string
	Label        string
	TotalRevenue string
	Charts       []chartRef
	Operators    []operatorRow
	Services     []serviceRow
}

type detailView struct {
	Charts    []chartRef
	Operators []operatorRow
	Services  []serviceRow
}

type suggestionsView struct {
	Text  string
	Error string
}

func newOverview(p core.PeriodAnalysis) overviewView {
	topS, okS := p.SortedServices.First()
	lowS, _ := p.SortedServices.Last()
	topO, okO := p.SortedOperators.First()
	lowO, _ := p.SortedOperators.Last()
	return overviewView{
		TotalRevenue:   formatCHF(p.TotalRevenue),
		TopService:     describeAmount(topS, okS),
		BottomService:  describeAmount(lowS, okS),
		TopOperator:    describeAmount(topO, okO),
		BottomOperator: describeAmount(lowO, okO),
	}
}

// operatorRows lists operators in revenue order with their derived metrics.
func operatorRows(p core.PeriodAnalysis) []operatorRow {
	rows := make([]operatorRow, 0, len(p.SortedOperators))
	for _, op := range p.SortedOperators {
		count, _ := p.OperatorServiceCounts.Lookup(op.Name)
		hours, _ := p.OperatorHours.Lookup(op.Name)
		rate, _ := p.OperatorHourlyRates.Lookup(op.Name)
		avg, _ := p.OperatorAverageServiceValues.Lookup(op.Name)
		rows = append(rows, operatorRow{
			Name:    op.Name,
			Revenue: formatCHF(op.Value),
			Hours:   formatFixed(hours),
			Rate:    formatRate(rate),
			Average: formatCHF(avg),
			Count:   count,
		})
	}
	return rows
}

func serviceRows(p core.PeriodAnalysis) []serviceRow {
	rows := make([]serviceRow, len(p.SortedServices))
	for i, s := range p.SortedServices {
		rows[i] = serviceRow{Name: s.Name, Revenue: formatCHF(s.Value)}
	}
	return rows
}

func periodOptions(keys []string, selected string) []periodOption {
	out := make([]periodOption, len(keys))
	for i, k := range keys {
		out[i] = periodOption{Key: k, Label: core.PeriodLabel(k), Selected: k == selected}
	}
	return out
}

// chartURL points at a rendered chart. The version query changes with the
// session so browsers never show a previous batch.
func chartURL(sess *session.Session, period, name string) string {
	v := url.Values{"v": {shortID(sess.ID)}}.Encode()
	if period == "" {
		return "/charts/" + url.PathEscape(name) + ".png?" + v
	}
	return "/charts/mese/" + url.PathEscape(period) + "/" + url.PathEscape(name) + ".png?" + v
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
