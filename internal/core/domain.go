package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Column positions inside a RawRow.
const (
	ColOperator = iota
	ColService
	ColCount
	ColHours
	ColRevenue
)

const (
	// HeaderOperator is the operator column literal of a (repeated) header line.
	HeaderOperator = "PARRUCCHIERE"
	// GroupService marks a subtotal line; it is never a transaction.
	GroupService = "GRUPPO"
	// OverallKey is the reserved key holding the cross-period analysis.
	OverallKey = "overall"
)

var (
	// ErrDuplicatePeriod is returned when two inputs resolve to the same period key.
	ErrDuplicatePeriod = errors.New("duplicate period")
	// ErrReservedPeriod is returned for a period named like OverallKey.
	ErrReservedPeriod = errors.New("reserved period key")
)

type (
	// RawRow is one spreadsheet line. Position is semantic, see the Col* constants.
	RawRow []string

	// PeriodDataset maps a period identifier ("Marzo_2024") to its rows,
	// header row included.
	PeriodDataset map[string][]RawRow

	// ServiceValue is the revenue and hours an operator made on one service.
	ServiceValue struct {
		Service string
		Revenue float64
		Hours   float64
	}

	// OperatorServices is the per-service breakdown for one operator.
	OperatorServices struct {
		Operator string
		Services []ServiceValue
	}

	// ServiceBreakdown keeps operators and their services in first-seen order.
	ServiceBreakdown []OperatorServices

	// PeriodAnalysis is the derived view of one period (or of the whole batch).
	PeriodAnalysis struct {
		TotalRevenue                 float64          `json:"totalRevenue"`
		SortedServices               Ranking          `json:"sortedServices"`
		SortedOperators              Ranking          `json:"sortedOperators"`
		OperatorHours                Ranking          `json:"operatorHours"`
		OperatorHourlyRates          Ranking          `json:"operatorHourlyRates"`
		OperatorAverageServiceValues Ranking          `json:"operatorAverageServiceValues"`
		OperatorServiceCounts        Counts           `json:"operatorServiceCounts"`
		OperatorServiceValues        ServiceBreakdown `json:"operatorServiceValues"`
	}

	// AnalysisResult holds one PeriodAnalysis per period plus the overall view.
	AnalysisResult struct {
		Periods map[string]PeriodAnalysis
		Overall PeriodAnalysis
	}
)

// Cell returns the trimmed cell at index i, or "" when the row is shorter.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[i])
}

// UnmarshalJSON accepts arrays of strings, numbers, booleans and nulls, the
// shape a spreadsheet-to-JSON conversion produces.
func (r *RawRow) UnmarshalJSON(data []byte) error {
	var cells []any
	if err := json.Unmarshal(data, &cells); err != nil {
		return fmt.Errorf("raw row: %w", err)
	}
	row := make(RawRow, len(cells))
	for i, c := range cells {
		row[i] = cellString(c)
	}
	*r = row
	return nil
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// Validate rejects datasets whose keys collide with OverallKey.
func (d PeriodDataset) Validate() error {
	if _, ok := d[OverallKey]; ok {
		return fmt.Errorf("%w: %s", ErrReservedPeriod, OverallKey)
	}
	return nil
}

// Keys returns the period identifiers in chronological order.
func (d PeriodDataset) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	return SortPeriods(keys)
}

// Keys returns the period identifiers in chronological order.
func (a AnalysisResult) Keys() []string {
	keys := make([]string, 0, len(a.Periods))
	for k := range a.Periods {
		keys = append(keys, k)
	}
	return SortPeriods(keys)
}

// Period returns the analysis for key; OverallKey yields the overall view.
func (a AnalysisResult) Period(key string) (PeriodAnalysis, bool) {
	if key == OverallKey {
		return a.Overall, true
	}
	p, ok := a.Periods[key]
	return p, ok
}

// MarshalJSON encodes the result as a single object: periods in
// chronological order followed by the reserved "overall" key.
func (a AnalysisResult) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for _, k := range a.Keys() {
		if k == OverallKey {
			return nil, fmt.Errorf("%w: %s", ErrReservedPeriod, k)
		}
		if err := writeMember(&b, k, a.Periods[k]); err != nil {
			return nil, err
		}
		b.WriteByte(',')
	}
	if err := writeMember(&b, OverallKey, a.Overall); err != nil {
		return nil, err
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// MarshalJSON encodes the analysis with a null total when it overflowed.
func (p PeriodAnalysis) MarshalJSON() ([]byte, error) {
	type plain PeriodAnalysis
	return json.Marshal(struct {
		TotalRevenue Float `json:"totalRevenue"`
		plain
	}{Float(p.TotalRevenue), plain(p)})
}

// MarshalJSON encodes the breakdown as {operator: {service: {revenue, hours}}}.
func (s ServiceBreakdown) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, op := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(op.Operator)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteString(":{")
		for j, sv := range op.Services {
			if j > 0 {
				b.WriteByte(',')
			}
			if err := writeMember(&b, sv.Service, struct {
				Revenue Float `json:"revenue"`
				Hours   Float `json:"hours"`
			}{Float(sv.Revenue), Float(sv.Hours)}); err != nil {
				return nil, err
			}
		}
		b.WriteByte('}')
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func writeMember(b *strings.Builder, key string, v any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	b.Write(k)
	b.WriteByte(':')
	b.Write(val)
	return nil
}
