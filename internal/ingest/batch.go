// Package ingest decodes a batch of uploaded spreadsheets and holds the
// aggregation back until every accepted file has been decoded.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"salone/internal/core"
)

// ErrBatchFull is returned when more datasets are added than were accepted.
var ErrBatchFull = errors.New("batch already complete")

// Batch is a count-based readiness gate: it opens once the number of added
// datasets equals the number of accepted files.
type Batch struct {
	mu       sync.Mutex
	expected int
	data     core.PeriodDataset
	ready    chan struct{}
}

func NewBatch(expected int) *Batch {
	b := &Batch{
		expected: expected,
		data:     make(core.PeriodDataset, max(expected, 0)),
		ready:    make(chan struct{}),
	}
	if expected <= 0 {
		close(b.ready)
	}
	return b
}

// Add records the rows of one period. Keys must be unique within a batch
// and differ from core.OverallKey.
func (b *Batch) Add(key string, rows []core.RawRow) error {
	if key == core.OverallKey {
		return fmt.Errorf("%w: %s", core.ErrReservedPeriod, key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; ok {
		return fmt.Errorf("%w: %s", core.ErrDuplicatePeriod, key)
	}
	if len(b.data) >= b.expected {
		return ErrBatchFull
	}
	b.data[key] = rows
	if len(b.data) == b.expected {
		close(b.ready)
	}
	return nil
}

// Ready is closed when the batch is complete.
func (b *Batch) Ready() <-chan struct{} { return b.ready }

// Received returns how many datasets have been added so far.
func (b *Batch) Received() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Wait blocks until the batch is complete or ctx is done.
func (b *Batch) Wait(ctx context.Context) (core.PeriodDataset, error) {
	select {
	case <-b.ready:
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for %d of %d files: %w", b.expected-b.Received(), b.expected, ctx.Err())
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(core.PeriodDataset, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out, nil
}
