package analysis

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salone/internal/core"
)

var header = core.RawRow{"PARRUCCHIERE", "SERVIZIO", "NUMERO", "ORE", "FATTURATO"}

func rows(rs ...core.RawRow) []core.RawRow {
	return append([]core.RawRow{header}, rs...)
}

func TestAggregate_WorkedExample(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Gennaio_2024": rows(
			core.RawRow{"OperatorA", "Taglio", "2", "1.0", "50"},
			core.RawRow{"", "Piega", "1", "0.5", "20"},
			core.RawRow{"OperatorB", "Taglio", "1", "1.0", "40"},
		),
	})

	p, ok := res.Period("Gennaio_2024")
	require.True(t, ok)
	assert.InDelta(t, 110, p.TotalRevenue, 1e-9)
	assert.Equal(t, core.Ranking{{Name: "OperatorA", Value: 70}, {Name: "OperatorB", Value: 40}}, p.SortedOperators)
	assert.Equal(t, core.Ranking{{Name: "Taglio", Value: 90}, {Name: "Piega", Value: 20}}, p.SortedServices)

	rate, ok := p.OperatorHourlyRates.Lookup("OperatorA")
	require.True(t, ok)
	assert.InDelta(t, 46.67, rate, 0.01)

	assert.Equal(t, core.Counts{{Name: "OperatorA", Value: 3}, {Name: "OperatorB", Value: 1}}, p.OperatorServiceCounts)
	avg, _ := p.OperatorAverageServiceValues.Lookup("OperatorA")
	assert.InDelta(t, 70.0/3, avg, 1e-9)

	// single period: overall equals the period view
	assert.Equal(t, p, res.Overall)
}

func TestAggregate_OverallUsesGlobalTotals(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Gennaio_2024": rows(core.RawRow{"Anna", "Taglio", "1", "1", "100"}),
		"Febbraio_2024": rows(
			core.RawRow{"Anna", "Taglio", "1", "3", "60"},
			core.RawRow{"Luca", "Colore", "2", "2", "80"},
		),
	})

	jan, _ := res.Period("Gennaio_2024")
	feb, _ := res.Period("Febbraio_2024")
	assert.InDelta(t, 100, jan.OperatorHourlyRates.ValueOr("Anna", 0), 1e-9)
	assert.InDelta(t, 20, feb.OperatorHourlyRates.ValueOr("Anna", 0), 1e-9)

	// 160 / 4, not the mean of 100 and 20
	assert.InDelta(t, 40, res.Overall.OperatorHourlyRates.ValueOr("Anna", 0), 1e-9)
	assert.InDelta(t, 4, res.Overall.OperatorHours.ValueOr("Anna", 0), 1e-9)
	assert.InDelta(t, jan.TotalRevenue+feb.TotalRevenue, res.Overall.TotalRevenue, 1e-9)
}

func TestAggregate_OverallTotalsAreSums(t *testing.T) {
	ds := core.PeriodDataset{
		"Marzo_2024":    rows(core.RawRow{"A", "Taglio", "1", "1.5", "45"}, core.RawRow{"B", "Piega", "1", "0.5", "25"}),
		"Aprile_2024":   rows(core.RawRow{"A", "Piega", "1", "0.5", "30"}),
		"Dicembre_2023": rows(core.RawRow{"B", "Colore", "1", "2", "120"}),
	}
	res := Aggregate(ds)

	var total float64
	hours := map[string]float64{}
	for _, key := range ds.Keys() {
		p := res.Periods[key]
		total += p.TotalRevenue
		for _, h := range p.OperatorHours {
			hours[h.Name] += h.Value
		}
	}
	assert.InDelta(t, total, res.Overall.TotalRevenue, 1e-9)
	for name, h := range hours {
		assert.InDelta(t, h, res.Overall.OperatorHours.ValueOr(name, -1), 1e-9, name)
	}
	assert.Len(t, res.Periods, 3)
}

func TestAggregate_CarryForwardAndSentinels(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Maggio_2024": rows(
			core.RawRow{"", "Taglio", "1", "1", "10"},
			core.RawRow{"Giulia", "Taglio", "1", "1", "30"},
			core.RawRow{"  ", "Piega", "1", "1", "20"},
			core.RawRow{"PARRUCCHIERE", "Colore", "1", "1", "5"},
			core.RawRow{"", "GRUPPO", "3", "3", "55"},
			core.RawRow{"Marco", ""},
			core.RawRow{"", "Piega"},
		),
	})
	p := res.Periods["Maggio_2024"]

	assert.InDelta(t, 65, p.TotalRevenue, 1e-9)
	assert.Equal(t, core.Ranking{{Name: "Giulia", Value: 55}, {Name: "", Value: 10}, {Name: "Marco", Value: 0}}, p.SortedOperators)
	_, hasGroup := p.SortedServices.Lookup("GRUPPO")
	assert.False(t, hasGroup)

	// the serviceless row moves the current operator to Marco for the next one
	assert.Equal(t, []string{"", "Giulia", "Marco"}, p.OperatorHours.Names())
	c, _ := p.OperatorServiceCounts.Lookup("Marco")
	assert.Equal(t, 0, c)
}

func TestAggregate_SentinelsAreCaseSensitive(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Giugno_2024": rows(
			core.RawRow{"Parrucchiere", "Taglio", "1", "1", "30"},
			core.RawRow{"", "Gruppo", "2", "1", "40"},
			core.RawRow{"", "GRUPPO", "3", "2", "70"},
		),
	})
	p := res.Periods["Giugno_2024"]

	assert.InDelta(t, 70, p.TotalRevenue, 1e-9)
	assert.Equal(t, core.Ranking{{Name: "Gruppo", Value: 40}, {Name: "Taglio", Value: 30}}, p.SortedServices)
	assert.Equal(t, []string{"Parrucchiere"}, p.SortedOperators.Names())
}

func TestAggregate_RevenueOverflowEncodesAsNull(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Luglio_2024": rows(
			core.RawRow{"Anna", "Taglio", "1", "1", "1e308"},
			core.RawRow{"Anna", "Taglio", "1", "1", "1e308"},
		),
	})
	assert.True(t, math.IsInf(res.Overall.TotalRevenue, 1))

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"overall":{"totalRevenue":null,`)
	assert.Contains(t, string(b), `"Taglio":{"revenue":null,"hours":2}`)
}

func TestAggregate_HeaderRowIsSkipped(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Giugno_2024": {
			{"Anna", "Taglio", "1", "1", "999"},
			{"Anna", "Taglio", "1", "1", "10"},
		},
	})
	assert.InDelta(t, 10, res.Periods["Giugno_2024"].TotalRevenue, 1e-9)
}

func TestAggregate_StableTies(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Luglio_2024": rows(
			core.RawRow{"Anna", "Piega", "1", "1", "20"},
			core.RawRow{"Anna", "Taglio", "1", "1", "20"},
			core.RawRow{"Anna", "Colore", "1", "1", "50"},
			core.RawRow{"Anna", "Barba", "1", "1", "20"},
		),
	})
	assert.Equal(t, []string{"Colore", "Piega", "Taglio", "Barba"}, res.Periods["Luglio_2024"].SortedServices.Names())
}

func TestAggregate_ZeroDivisors(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Agosto_2024": rows(
			core.RawRow{"Anna", "Taglio", "0", "0", "50"},
			core.RawRow{"Luca", "Taglio", "1", "2", "40"},
			core.RawRow{"Sara", "Consulenza", "0", "0", "0"},
		),
	})
	p := res.Periods["Agosto_2024"]

	rate, _ := p.OperatorHourlyRates.Lookup("Anna")
	assert.True(t, math.IsInf(rate, 1))
	avg, _ := p.OperatorAverageServiceValues.Lookup("Anna")
	assert.True(t, math.IsInf(avg, 1))

	rate, _ = p.OperatorHourlyRates.Lookup("Sara")
	assert.True(t, math.IsNaN(rate))

	assert.Equal(t, []string{"Anna", "Luca", "Sara"}, p.OperatorHourlyRates.Names())
}

func TestAggregate_UnparsableNumbersCountAsZero(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Settembre_2024": rows(
			core.RawRow{"Anna", "Taglio", "due", "n/a", "abc"},
			core.RawRow{"Anna", "Taglio", "1", "1", "35,50"},
		),
	})
	p := res.Periods["Settembre_2024"]
	assert.InDelta(t, 35.5, p.TotalRevenue, 1e-9)
	assert.Equal(t, core.Counts{{Name: "Anna", Value: 1}}, p.OperatorServiceCounts)
}

func TestAggregate_ServiceBreakdown(t *testing.T) {
	res := Aggregate(core.PeriodDataset{
		"Ottobre_2024": rows(
			core.RawRow{"Anna", "Taglio", "1", "1", "30"},
			core.RawRow{"", "Piega", "1", "0.5", "15"},
			core.RawRow{"", "Taglio", "1", "1", "30"},
		),
	})
	want := core.ServiceBreakdown{{
		Operator: "Anna",
		Services: []core.ServiceValue{
			{Service: "Taglio", Revenue: 60, Hours: 2},
			{Service: "Piega", Revenue: 15, Hours: 0.5},
		},
	}}
	assert.Equal(t, want, res.Periods["Ottobre_2024"].OperatorServiceValues)
}

func TestAggregate_IsDeterministic(t *testing.T) {
	ds := core.PeriodDataset{
		"Gennaio_2024":  rows(core.RawRow{"A", "Taglio", "1", "1", "10"}, core.RawRow{"B", "Taglio", "1", "1", "10"}),
		"Febbraio_2024": rows(core.RawRow{"B", "Piega", "1", "1", "10"}, core.RawRow{"A", "Piega", "1", "1", "10"}),
	}
	first := Aggregate(ds)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Aggregate(ds))
	}
	assert.Equal(t, []string{"A", "B"}, first.Overall.SortedOperators.Names())
}

func TestAggregate_EmptyInput(t *testing.T) {
	res := Aggregate(core.PeriodDataset{})
	assert.Empty(t, res.Periods)
	assert.Zero(t, res.Overall.TotalRevenue)
	assert.Empty(t, res.Overall.SortedOperators)

	res = Aggregate(core.PeriodDataset{"Novembre_2024": nil})
	assert.Contains(t, res.Periods, "Novembre_2024")
}
