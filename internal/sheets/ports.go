package sheets

import (
	"context"
	"io"

	"salone/internal/core"
)

// Ports for inbound spreadsheet adapters.
type (
	// Decoder turns one spreadsheet file into the rows of its first sheet.
	// Empty rows are dropped; the header row is kept.
	Decoder interface {
		Decode(ctx context.Context, name string, r io.Reader) ([]core.RawRow, error)
	}

	// PeriodSource loads a whole batch of periods at once (a Google
	// spreadsheet with one tab per month, a seed directory...).
	PeriodSource interface {
		ReadPeriods(ctx context.Context) (core.PeriodDataset, error)
	}
)

// DropEmpty removes rows without any non-blank cell.
func DropEmpty(rows []core.RawRow) []core.RawRow {
	out := rows[:0]
	for _, r := range rows {
		for i := range r {
			if r.Cell(i) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
