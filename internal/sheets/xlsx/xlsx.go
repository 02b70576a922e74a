// Package xlsx decodes uploaded spreadsheet exports. Workbooks are read with
// excelize; files with a .csv extension go through encoding/csv.
package xlsx

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"salone/internal/core"
	ports "salone/internal/sheets"
)

var (
	// ErrUnsupportedFormat is returned for legacy binary workbooks (.xls).
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrNoSheets is returned for a workbook without worksheets.
	ErrNoSheets = errors.New("workbook has no sheets")
)

// Decoder implements ports.Decoder.
type Decoder struct{}

var _ ports.Decoder = (*Decoder)(nil)

func New() *Decoder { return &Decoder{} }

// Decode reads the first worksheet of the file as stored cell values,
// ignoring number formats. name is only used to pick the format by extension.
func (d *Decoder) Decode(ctx context.Context, name string, r io.Reader) ([]core.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return decodeCSV(r)
	case ".xls":
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
	return decodeWorkbook(r)
}

func decodeWorkbook(r io.Reader) ([]core.RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	// Stored values, not formatted text: "CHF" #,##0.00 must still read as 50.
	values, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	rows := make([]core.RawRow, len(values))
	for i, v := range values {
		rows[i] = core.RawRow(v)
	}
	return ports.DropEmpty(rows), nil
}

func decodeCSV(r io.Reader) ([]core.RawRow, error) {
	br := bufio.NewReader(r)
	cr := csv.NewReader(br)
	cr.Comma = sniffComma(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var rows []core.RawRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, core.RawRow(rec))
	}
	return ports.DropEmpty(rows), nil
}

// sniffComma picks ';' when the first line has more semicolons than commas,
// the usual layout of exports with decimal commas.
func sniffComma(br *bufio.Reader) rune {
	head, _ := br.Peek(4096)
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}
