package xlsx

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salone/internal/core"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestDecode_Workbook(t *testing.T) {
	buf := workbook(t, [][]any{
		{"PARRUCCHIERE", "SERVIZIO", "NUMERO", "ORE", "FATTURATO"},
		{"Anna", "Taglio", 2, 1.5, 50},
		{},
		{"", "Piega", 1, 0.5, 20},
	})

	rows, err := New().Decode(context.Background(), "Marzo_2024.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "PARRUCCHIERE", rows[0].Cell(core.ColOperator))
	assert.Equal(t, core.RawRow{"Anna", "Taglio", "2", "1.5", "50"}, rows[1])
	assert.Equal(t, "", rows[2].Cell(core.ColOperator))
	assert.Equal(t, "Piega", rows[2].Cell(core.ColService))
	assert.Equal(t, "20", rows[2].Cell(core.ColRevenue))
}

func TestDecode_IgnoresNumberFormats(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"PARRUCCHIERE", "SERVIZIO", "NUMERO", "ORE", "FATTURATO"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Anna", "Taglio", 2, 1.5, 50.0}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"", "Piega", 1200, 0.5, 12.5}))

	currency := `"CHF" #,##0.00`
	chf, err := f.NewStyle(&excelize.Style{CustomNumFmt: &currency})
	require.NoError(t, err)
	integer, err := f.NewStyle(&excelize.Style{NumFmt: 1})
	require.NoError(t, err)
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "C2", "C3", thousands))
	require.NoError(t, f.SetCellStyle("Sheet1", "D2", "D3", integer))
	require.NoError(t, f.SetCellStyle("Sheet1", "E2", "E2", chf))
	require.NoError(t, f.SetCellStyle("Sheet1", "E3", "E3", integer))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := New().Decode(context.Background(), "Marzo_2024.xlsx", buf)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, core.RawRow{"Anna", "Taglio", "2", "1.5", "50"}, rows[1])
	assert.Equal(t, core.RawRow{"", "Piega", "1200", "0.5", "12.5"}, rows[2])

	var total float64
	for _, r := range rows[1:] {
		total += core.ParseNumber(r.Cell(core.ColRevenue))
	}
	assert.InDelta(t, 62.5, total, 1e-9)
}

func TestDecode_FirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "PARRUCCHIERE"))
	_, err := f.NewSheet("Altro")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Altro", "A1", "ignored"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rows, err := New().Decode(context.Background(), "Aprile_2024.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, []core.RawRow{{"PARRUCCHIERE"}}, rows)
}

func TestDecode_CSV(t *testing.T) {
	in := "PARRUCCHIERE;SERVIZIO;NUMERO;ORE;FATTURATO\nAnna;Taglio;2;1,5;50,00\n\n;Piega;1;0,5;20\n"
	rows, err := New().Decode(context.Background(), "Maggio_2024.CSV", strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, core.RawRow{"Anna", "Taglio", "2", "1,5", "50,00"}, rows[1])
	assert.InDelta(t, 1.5, core.ParseNumber(rows[1].Cell(core.ColHours)), 1e-9)

	rows, err = New().Decode(context.Background(), "x.csv", strings.NewReader("a,b,c\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []core.RawRow{{"a", "b", "c"}, {"1", "2"}}, rows)
}

func TestDecode_Errors(t *testing.T) {
	_, err := New().Decode(context.Background(), "Giugno_2024.xls", strings.NewReader("whatever"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New().Decode(context.Background(), "Giugno_2024.xlsx", strings.NewReader("not a zip"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Decode(ctx, "Giugno_2024.xlsx", workbook(t, [][]any{{"a"}}))
	assert.ErrorIs(t, err, context.Canceled)
}
