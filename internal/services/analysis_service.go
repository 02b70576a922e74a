// Package services orchestrates ingestion, aggregation, sessions, event
// publishing and suggestions.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salone/internal/amqp"
	"salone/internal/analysis"
	"salone/internal/core"
	"salone/internal/ingest"
	"salone/internal/log"
	"salone/internal/session"
	"salone/internal/sheets"
	"salone/internal/suggest"
)

// Batch sources.
const (
	SourceUpload = "upload"
	SourceImport = "import"
	SourceAPI    = "api"
)

var (
	ErrNoFiles   = errors.New("no files uploaded")
	ErrNoSource  = errors.New("no import source configured")
	ErrNoPeriods = errors.New("no periods found")
)

// Publisher sends analysis events. Implemented by *amqp.Client.
type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, msg *amqp.AnalysisCompletedMessage) error
}

// Suggester produces narrative suggestions. Implemented by *suggest.Client.
type Suggester interface {
	Suggest(ctx context.Context, req suggest.Request) (string, error)
}

// Observer records pipeline outcomes. Implemented by *metrics.Metrics.
type Observer interface {
	Batch(source string, ok bool)
	Aggregated(d time.Duration)
	Suggested(ok bool, d time.Duration)
	Published(ok bool)
	SessionsActive(n int)
}

type nopObserver struct{}

func (nopObserver) Batch(string, bool) {}
func (nopObserver) Aggregated(time.Duration) {}
func (nopObserver) Suggested(bool, time.Duration) {}
func (nopObserver) Published(bool) {}
func (nopObserver) SessionsActive(int) {}

// Options wires an AnalysisService. Ingest and Sessions are required; the
// rest may be nil.
type Options struct {
	Ingest    *ingest.Service
	Sessions  *session.Store
	Source    sheets.PeriodSource
	Suggester Suggester
	Publisher Publisher
	Observer  Observer
	Logger    *log.Logger
}

// AnalysisService runs a batch from input to session.
type AnalysisService struct {
	ingest    *ingest.Service
	sessions  *session.Store
	source    sheets.PeriodSource
	suggester Suggester
	publisher Publisher
	observer  Observer
	logger    *log.Logger
}

func NewAnalysisService(opts Options) *AnalysisService {
	s := &AnalysisService{
		ingest:    opts.Ingest,
		sessions:  opts.Sessions,
		source:    opts.Source,
		suggester: opts.Suggester,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		logger:    opts.Logger,
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentAnalysis)
	}
	return s
}

// Sessions returns the session store.
func (s *AnalysisService) Sessions() *session.Store { return s.sessions }

// CanImport reports whether Import has a source to read.
func (s *AnalysisService) CanImport() bool { return s.source != nil }

// Upload decodes every file, waits for the whole batch and analyses it.
func (s *AnalysisService) Upload(ctx context.Context, files []ingest.File) (*session.Session, error) {
	if len(files) == 0 {
		s.observer.Batch(SourceUpload, false)
		return nil, ErrNoFiles
	}
	ds, err := s.ingest.DecodeAll(ctx, files)
	if err != nil {
		s.observer.Batch(SourceUpload, false)
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	return s.Analyze(ctx, SourceUpload, ds), nil
}

// Import reads every period from the configured source and analyses it.
func (s *AnalysisService) Import(ctx context.Context) (*session.Session, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}
	ds, err := s.source.ReadPeriods(ctx)
	if err != nil {
		s.observer.Batch(SourceImport, false)
		return nil, fmt.Errorf("read periods: %w", err)
	}
	if len(ds) == 0 {
		s.observer.Batch(SourceImport, false)
		return nil, ErrNoPeriods
	}
	if err := ds.Validate(); err != nil {
		s.observer.Batch(SourceImport, false)
		return nil, err
	}
	return s.Analyze(ctx, SourceImport, ds), nil
}

// Analyze aggregates a complete dataset, stores it as a new session and
// announces it. Publishing never fails the batch.
func (s *AnalysisService) Analyze(ctx context.Context, source string, ds core.PeriodDataset) *session.Session {
	start := time.Now()
	result := analysis.Aggregate(ds)
	elapsed := time.Since(start)
	s.observer.Aggregated(elapsed)

	sess := s.sessions.Create(source, ds, result)
	s.observer.Batch(source, true)
	s.observer.SessionsActive(s.sessions.Len())

	s.logger.InfoContext(ctx, "Batch analysed",
		log.FieldOperation, log.OpAggregate,
		log.FieldSession, sess.ID,
		log.FieldPeriods, len(result.Periods),
		log.FieldRevenue, result.Overall.TotalRevenue,
		log.FieldDuration, elapsed.Milliseconds())

	s.publish(ctx, sess)
	return sess
}

func (s *AnalysisService) publish(ctx context.Context, sess *session.Session) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewAnalysisCompletedMessage(sess.ID, sess.Source, sess.Result)
	if err := s.publisher.PublishAnalysisCompleted(ctx, msg); err != nil {
		s.observer.Published(false)
		s.logger.LogError(ctx, "Failed to publish analysis event", err, log.OpPublish,
			log.NewFields().WithSession(sess.ID))
		return
	}
	s.observer.Published(true)
}

// Suggest asks for suggestions on a session and stores the text on it.
func (s *AnalysisService) Suggest(ctx context.Context, sess *session.Session) (string, error) {
	req, err := suggest.NewRequest(sess.Data, sess.Result)
	if err != nil {
		return "", err
	}
	text, err := s.SuggestRaw(ctx, req)
	if err != nil {
		return "", err
	}
	sess.SetSuggestions(text)
	return text, nil
}

// SuggestRaw forwards a caller-built payload unchanged.
func (s *AnalysisService) SuggestRaw(ctx context.Context, req suggest.Request) (string, error) {
	if s.suggester == nil {
		return "", suggest.ErrMissingAPIKey
	}
	start := time.Now()
	text, err := s.suggester.Suggest(ctx, req)
	s.observer.Suggested(err == nil, time.Since(start))
	if err != nil {
		s.logger.LogError(ctx, "Suggestion request failed", err, log.OpSuggest, nil)
		return "", err
	}
	return text, nil
}

// Close releases the publisher when it holds a connection.
func (s *AnalysisService) Close() error {
	if c, ok := s.publisher.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
