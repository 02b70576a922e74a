package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber converts a spreadsheet cell to a float64 on a best-effort basis.
//
// Decimal comma (12,50) and dot (12.50) are both accepted; apostrophes and
// spaces used as thousands separators are stripped. When both separators
// appear, the last one is the decimal separator. Trailing garbage after a
// leading number is ignored ("12.5 CHF" -> 12.5). Anything unparsable, and
// any non-finite result, yields 0.
func ParseNumber(s string) float64 {
	s = normalizeNumber(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		m := numericPrefix.FindString(s)
		if m == "" {
			return 0
		}
		if f, err = strconv.ParseFloat(m, 64); err != nil {
			return 0
		}
	}
	if !IsDefined(f) {
		return 0
	}
	return f
}

// ParseCount converts a cell to an integer count. Decimal input truncates
// toward zero; unparsable input yields 0 and values beyond the int range
// saturate.
func ParseCount(s string) int {
	f := math.Trunc(ParseNumber(s))
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("'", "", " ", "", "\u00a0", "", "\u2019", "").Replace(s)
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		// 1.234,50
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		// 1,234.50
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}
	// Only literal digits are numbers here; ParseFloat would also take "Inf",
	// "NaN" and hex floats.
	if strings.ContainsAny(strings.ToLower(s), "inx") {
		return numericPrefix.FindString(s)
	}
	return s
}
