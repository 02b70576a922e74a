package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"salone/internal/core"
	ports "salone/internal/sheets"
)

// Store is an in-memory PeriodSource, seeded from a directory of exports or
// filled with Put.
type Store struct {
	mu      sync.Mutex
	periods core.PeriodDataset
}

var _ ports.PeriodSource = (*Store)(nil)

func New(periods core.PeriodDataset) *Store {
	s := &Store{periods: core.PeriodDataset{}}
	for k, rows := range periods {
		s.periods[k] = cloneRows(rows)
	}
	return s
}

// NewFromDir decodes every .xlsx and .csv file in base. The period key comes
// from the file name. Files are read in name order.
func NewFromDir(ctx context.Context, base string, dec ports.Decoder) (*Store, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("read seed dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".xlsx", ".csv":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	s := New(nil)
	for _, name := range names {
		rows, err := decodeFile(ctx, dec, filepath.Join(base, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := s.Put(core.PeriodKey(name), rows); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return s, nil
}

func decodeFile(ctx context.Context, dec ports.Decoder, path string) ([]core.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dec.Decode(ctx, filepath.Base(path), f)
}

// Put stores the rows of one period. Keys are unique.
func (s *Store) Put(key string, rows []core.RawRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[key]; ok {
		return fmt.Errorf("%w: %s", core.ErrDuplicatePeriod, key)
	}
	s.periods[key] = cloneRows(rows)
	return nil
}

// ReadPeriods returns a copy of every stored period.
func (s *Store) ReadPeriods(_ context.Context) (core.PeriodDataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(core.PeriodDataset, len(s.periods))
	for k, rows := range s.periods {
		out[k] = cloneRows(rows)
	}
	return out, nil
}

func cloneRows(in []core.RawRow) []core.RawRow {
	out := make([]core.RawRow, len(in))
	for i, r := range in {
		out[i] = append(core.RawRow(nil), r...)
	}
	return out
}
