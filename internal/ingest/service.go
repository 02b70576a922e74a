package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"salone/internal/core"
	"salone/internal/log"
	"salone/internal/sheets"
)

// File is one accepted upload. Open is called from a decoding goroutine.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileError reports which file could not be decoded.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// Recorder observes decode outcomes. Implemented by metrics.Metrics.
type Recorder interface {
	FileDecoded(ok bool, d time.Duration)
}

// Service decodes uploads concurrently.
type Service struct {
	dec    sheets.Decoder
	limit  int
	rec    Recorder
	logger *log.Logger
}

// NewService returns a Service running at most limit decoders at once.
// rec may be nil.
func NewService(dec sheets.Decoder, limit int, rec Recorder, logger *log.Logger) *Service {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = log.Default(log.ComponentIngest)
	}
	return &Service{dec: dec, limit: limit, rec: rec, logger: logger}
}

// DecodeAll decodes every file and returns the complete dataset, keyed by
// the period derived from each file name. The first failure cancels the
// remaining decoders and is returned as a *FileError.
func (s *Service) DecodeAll(ctx context.Context, files []File) (core.PeriodDataset, error) {
	batch := NewBatch(len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, f := range files {
		g.Go(func() error {
			start := time.Now()
			rows, err := s.decode(gctx, f)
			if s.rec != nil {
				s.rec.FileDecoded(err == nil, time.Since(start))
			}
			if err != nil {
				return &FileError{Name: f.Name, Err: err}
			}
			if err := batch.Add(core.PeriodKey(f.Name), rows); err != nil {
				return &FileError{Name: f.Name, Err: err}
			}
			s.logger.DebugContext(gctx, "File decoded", log.FieldFile, f.Name, "rows", len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "Batch decode failed", log.FieldError, err, log.FieldFiles, len(files))
		return nil, err
	}

	ds, err := batch.Wait(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Batch decoded", log.FieldFiles, len(files), log.FieldPeriods, len(ds))
	return ds, nil
}

func (s *Service) decode(ctx context.Context, f File) ([]core.RawRow, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()
	return s.dec.Decode(ctx, f.Name, rc)
}
