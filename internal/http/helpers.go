package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"salone/internal/core"
)

const notAvailable = "N/A"

// formatCHF formats an amount as "CHF 1234.50". Non-finite values, which the
// engine keeps for zero divisors, print as "N/A".
func formatCHF(v float64) string {
	if !core.IsDefined(v) {
		return notAvailable
	}
	return "CHF " + decimal.NewFromFloat(v).StringFixed(2)
}

// formatFixed formats v with two decimals and no unit.
func formatFixed(v float64) string {
	if !core.IsDefined(v) {
		return notAvailable
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// formatRate formats an hourly rate as "CHF 46.67/h".
func formatRate(v float64) string {
	if !core.IsDefined(v) {
		return notAvailable
	}
	return formatCHF(v) + "/h"
}

// describeAmount renders "Taglio (CHF 90.00)", the card format of the
// overview page.
func describeAmount(a core.Amount, ok bool) string {
	if !ok {
		return notAvailable
	}
	return a.Name + " (" + formatCHF(a.Value) + ")"
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
