package api

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/edumood/internal/feedback"
	"github.com/kalambet/edumood/internal/storage"
)

// mockClassifier returns a fixed classification or error.
type mockClassifier struct {
	mu     sync.Mutex
	result feedback.Classification
	err    error
	calls  int
}

func (m *mockClassifier) Classify(_ context.Context, _ string) (feedback.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// failingStore fails every operation.
type failingStore struct{ err error }

func (f failingStore) Load() ([]feedback.Record, error) { return nil, f.err }
func (f failingStore) Append(feedback.Record) error     { return f.err }

func newTestService(t *testing.T, clf feedback.Classifier) (*feedback.Service, *storage.FileStore) {
	t.Helper()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	svc := feedback.NewService(store, clf,
		feedback.WithLocation(time.UTC),
		feedback.WithClock(func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }),
	)
	return svc, store
}

func seed(t *testing.T, store feedback.Store, records ...feedback.Record) {
	t.Helper()
	for _, r := range records {
		if err := store.Append(r); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
}

func day(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Unix()
}

// growingStore gains one record on every Load, alternating Confused and
// Happy/Engaged, so two loads in one request disagree.
type growingStore struct {
	mu      sync.Mutex
	records []feedback.Record
}

func (g *growingStore) Load() ([]feedback.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e := feedback.Confused
	if len(g.records)%2 == 1 {
		e = feedback.HappyEngaged
	}
	g.records = append(g.records, feedback.Record{Timestamp: day(2024, 3, 1), Feedback: "note", Emotion: e})
	out := make([]feedback.Record, len(g.records))
	copy(out, g.records)
	return out, nil
}

func (g *growingStore) Append(r feedback.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append(g.records, r)
	return nil
}

func (g *growingStore) loads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}
