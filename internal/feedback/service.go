package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultClassifyTimeout = 20 * time.Second

// Store is an append-only sequence of records. The whole sequence is the
// unit of read; there is no indexed access.
type Store interface {
	Load() ([]Record, error)
	Append(r Record) error
}

// Classifier maps feedback text to an emotion and a short justification.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// Recorder receives observations about submissions. Implemented by the
// metrics collector; nil is allowed.
type Recorder interface {
	ObserveClassification(d time.Duration, err error)
	RecordSubmission(e Emotion)
}

// Service wires a Store and a Classifier into the submit and read paths.
type Service struct {
	store      Store
	classifier Classifier
	recorder   Recorder
	timeout    time.Duration
	loc        *time.Location
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds each classifier call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLocation sets the time zone used to bucket records into days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(store Store, classifier Classifier, opts ...Option) *Service {
	s := &Service{
		store:      store,
		classifier: classifier,
		timeout:    defaultClassifyTimeout,
		loc:        time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit classifies text and appends the resulting record. Nothing is
// appended unless the classifier returned an emotion from the closed set.
func (s *Service) Submit(ctx context.Context, text string) (Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Record{}, ErrEmptyFeedback
	}

	c, err := s.classify(ctx, text)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Timestamp: s.now().Unix(),
		Feedback:  text,
		Emotion:   c.Emotion,
		Reasoning: c.Reasoning,
	}
	if err := s.store.Append(rec); err != nil {
		return Record{}, fmt.Errorf("storing feedback: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSubmission(rec.Emotion)
	}
	slog.Info("feedback recorded", "emotion", rec.Emotion, "timestamp", rec.Timestamp)
	return rec, nil
}

func (s *Service) classify(ctx context.Context, text string) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	c, err := s.classifier.Classify(ctx, text)
	if err == nil && !c.Emotion.Valid() {
		err = fmt.Errorf("%w: %q", ErrInvalidEmotion, c.Emotion)
	}
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrClassifierTimeout) {
		err = fmt.Errorf("%w: %w", ErrClassifierTimeout, err)
	}
	if s.recorder != nil {
		s.recorder.ObserveClassification(time.Since(start), err)
	}
	if err != nil {
		slog.Error("classification failed", "error", err)
		return Classification{}, err
	}
	return c, nil
}

// Records returns every stored record in insertion order.
func (s *Service) Records() ([]Record, error) {
	records, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading feedback: %w", err)
	}
	return records, nil
}

// Trend returns the daily Confusion Index series.
func (s *Service) Trend() ([]TrendPoint, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	return DailyTrend(records, s.loc), nil
}

// Snapshot is one consistent read of the store with the views derived
// from it.
type Snapshot struct {
	Records []Record
	Trend   []TrendPoint
	Summary Summary
}

// Snapshot loads the store once and derives the trend and summary from
// that single read.
func (s *Service) Snapshot() (Snapshot, error) {
	records, err := s.Records()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Records: records,
		Trend:   DailyTrend(records, s.loc),
		Summary: Summarize(records),
	}, nil
}

// Summary returns the emotion distribution over all records.
func (s *Service) Summary() (Summary, error) {
	records, err := s.Records()
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records), nil
}
