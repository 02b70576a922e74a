package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MonthNames is the fixed month lexicon used in period identifiers.
var MonthNames = [12]string{
	"Gennaio", "Febbraio", "Marzo", "Aprile", "Maggio", "Giugno",
	"Luglio", "Agosto", "Settembre", "Ottobre", "Novembre", "Dicembre",
}

var periodPattern = regexp.MustCompile(`(\w+)_(\d{4})`)

// Period is a parsed "<MonthName>_<Year>" identifier.
type Period struct {
	Month int // 1-12
	Year  int
}

func (p Period) String() string {
	if p.Month < 1 || p.Month > 12 {
		return strconv.Itoa(p.Year)
	}
	return fmt.Sprintf("%s_%d", MonthNames[p.Month-1], p.Year)
}

// Label is the human form, e.g. "Marzo 2024".
func (p Period) Label() string {
	return strings.Replace(p.String(), "_", " ", 1)
}

// PeriodKey derives the period identifier from a file or sheet name: the
// first "<word>_<4-digit year>" match, or the name verbatim when none.
func PeriodKey(name string) string {
	m := periodPattern.FindStringSubmatch(name)
	if m == nil {
		return name
	}
	return m[1] + "_" + m[2]
}

// MonthIndex returns 1-12 for a month name of the lexicon, 0 otherwise.
func MonthIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, m := range MonthNames {
		if strings.EqualFold(m, name) {
			return i + 1
		}
	}
	return 0
}

// ParsePeriod parses "<MonthName>_<Year>". The month must belong to the
// lexicon and the year must be four digits.
func ParsePeriod(key string) (Period, bool) {
	i := strings.LastIndex(key, "_")
	if i <= 0 || i == len(key)-1 {
		return Period{}, false
	}
	month := MonthIndex(key[:i])
	yearStr := key[i+1:]
	if month == 0 || len(yearStr) != 4 {
		return Period{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Period{}, false
	}
	return Period{Month: month, Year: year}, true
}

// SortPeriods orders period identifiers chronologically (numeric year, then
// month lexicon, then name). Identifiers that do not parse sort last, by
// name. The input slice is sorted in place and returned.
func SortPeriods(keys []string) []string {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aok := ParsePeriod(keys[i])
		b, bok := ParsePeriod(keys[j])
		switch {
		case aok && bok:
			if a.Year != b.Year {
				return a.Year < b.Year
			}
			if a.Month != b.Month {
				return a.Month < b.Month
			}
			return keys[i] < keys[j]
		case aok != bok:
			return aok
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// PeriodLabel returns the human label for key, or key itself.
func PeriodLabel(key string) string {
	if p, ok := ParsePeriod(key); ok {
		return p.Label()
	}
	return key
}
