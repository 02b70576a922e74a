package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salone/internal/amqp"
	"salone/internal/log"
)

func readLedger(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(LedgerSheet)
	require.NoError(t, err)
	return rows
}

func TestHandleAnalysisCompleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", "analisi.xlsx")
	w := NewReportWorker(path, log.Discard())
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, w.HandleAnalysisCompleted(ctx, &amqp.AnalysisCompletedMessage{
		SessionID: "s1", Source: "upload", Periods: []string{"Gennaio_2024", "Febbraio_2024"},
		TotalRevenue: 110, Operators: 2, Services: 2, Timestamp: ts,
	}))
	require.NoError(t, w.HandleAnalysisCompleted(ctx, &amqp.AnalysisCompletedMessage{
		SessionID: "s2", Source: "import", Periods: []string{"Marzo_2024"}, TotalRevenue: 40.5, Timestamp: ts,
	}))

	rows := readLedger(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "Sessione", rows[0][1])
	assert.Equal(t, []string{"2024-03-01T09:30:00Z", "s1", "upload"}, rows[1][:3])
	assert.Equal(t, "110", rows[1][6])
	assert.Equal(t, "s2", rows[2][1])
	assert.Equal(t, "40.5", rows[2][6])
}

func TestHandleAnalysisCompleted_SkipsRedelivery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analisi.xlsx")
	w := NewReportWorker(path, log.Discard())
	msg := &amqp.AnalysisCompletedMessage{SessionID: "s1", Periods: []string{"Aprile_2024"}}

	require.NoError(t, w.HandleAnalysisCompleted(context.Background(), msg))
	require.NoError(t, w.HandleAnalysisCompleted(context.Background(), msg))
	assert.Len(t, readLedger(t, path), 2)
}

func TestHandleAnalysisCompleted_Rejects(t *testing.T) {
	w := NewReportWorker(filepath.Join(t.TempDir(), "analisi.xlsx"), log.Discard())
	assert.Error(t, w.HandleAnalysisCompleted(context.Background(), &amqp.AnalysisCompletedMessage{}))

	// a workbook without the ledger sheet is left alone
	foreign := filepath.Join(t.TempDir(), "altro.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(foreign))
	require.NoError(t, f.Close())
	err := NewReportWorker(foreign, log.Discard()).HandleAnalysisCompleted(context.Background(),
		&amqp.AnalysisCompletedMessage{SessionID: "s1"})
	assert.ErrorContains(t, err, "has no")
}

func TestLedgerRow(t *testing.T) {
	row := ledgerRow(&amqp.AnalysisCompletedMessage{SessionID: "x", Periods: []string{"Gennaio_2024", "Marzo_2024"}})
	assert.Equal(t, "Gennaio 2024, Marzo 2024", row[3])
	assert.Equal(t, "Gennaio 2024", row[4])
	assert.Equal(t, "Marzo 2024", row[5])
}
