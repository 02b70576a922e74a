package google

import (
	"fmt"
	"strconv"

	"salone/internal/core"
	ports "salone/internal/sheets"
)

// parseTab converts a values matrix as returned by the Sheets API into rows.
// Unformatted numbers arrive as float64 and keep their shortest form.
func parseTab(values [][]interface{}) []core.RawRow {
	rows := make([]core.RawRow, 0, len(values))
	for _, v := range values {
		rows = append(rows, toStrings(v))
	}
	return ports.DropEmpty(rows)
}

func toStrings(in []interface{}) core.RawRow {
	out := make(core.RawRow, len(in))
	for i, v := range in {
		switch val := v.(type) {
		case nil:
		case string:
			out[i] = val
		case float64:
			out[i] = strconv.FormatFloat(val, 'f', -1, 64)
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}
