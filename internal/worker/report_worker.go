// Package worker archives analysis events published by the web server.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"salone/internal/amqp"
	"salone/internal/core"
	"salone/internal/log"
)

// LedgerSheet is the worksheet holding one row per analysed batch.
const LedgerSheet = "Analisi"

var ledgerHeader = []any{
	"Data", "Sessione", "Origine", "Mesi", "Dal", "Al", "Fatturato Totale", "Operatori", "Servizi",
}

// ReportWorker appends every analysis completed event to an Excel ledger.
// A session already present in the ledger is skipped, so redelivered
// messages are harmless.
type ReportWorker struct {
	path   string
	logger *log.Logger

	mu sync.Mutex
}

func NewReportWorker(path string, logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &ReportWorker{path: path, logger: logger}
}

// HandleAnalysisCompleted records msg in the ledger.
func (w *ReportWorker) HandleAnalysisCompleted(ctx context.Context, msg *amqp.AnalysisCompletedMessage) error {
	if msg.SessionID == "" {
		return errors.New("message without session id")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(LedgerSheet)
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	for i, r := range rows {
		if i > 0 && len(r) > 1 && r[1] == msg.SessionID {
			w.logger.InfoContext(ctx, "Analysis already archived", log.FieldSession, msg.SessionID)
			return nil
		}
	}

	cell, err := excelize.CoordinatesToCellName(1, len(rows)+1)
	if err != nil {
		return err
	}
	row := ledgerRow(msg)
	if err := f.SetSheetRow(LedgerSheet, cell, &row); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	w.logger.InfoContext(ctx, "Analysis archived",
		log.FieldSession, msg.SessionID,
		log.FieldPeriods, len(msg.Periods),
		log.FieldRevenue, msg.TotalRevenue,
		log.FieldFile, w.path)
	return nil
}

// open loads the ledger, creating it with a header row on first use.
func (w *ReportWorker) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(w.path)
	if err == nil {
		if idx, _ := f.GetSheetIndex(LedgerSheet); idx < 0 {
			f.Close()
			return nil, fmt.Errorf("ledger %s has no %q sheet", w.path, LedgerSheet)
		}
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	f = excelize.NewFile()
	if err := f.SetSheetName("Sheet1", LedgerSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(LedgerSheet, "A1", &ledgerHeader); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func ledgerRow(msg *amqp.AnalysisCompletedMessage) []any {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	labels := make([]string, len(msg.Periods))
	for i, p := range msg.Periods {
		labels[i] = core.PeriodLabel(p)
	}
	first, last := "", ""
	if n := len(labels); n > 0 {
		first, last = labels[0], labels[n-1]
	}
	return []any{
		ts.Format(time.RFC3339),
		msg.SessionID,
		msg.Source,
		strings.Join(labels, ", "),
		first,
		last,
		msg.TotalRevenue,
		msg.Operators,
		msg.Services,
	}
}
