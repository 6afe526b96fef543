package storage

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/kalambet/edumood/internal/feedback"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs OpenSQLite twice on the same database and
// verifies migrations are not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edumood.db")

	s1, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("first OpenSQLite failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("second OpenSQLite failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if !reflect.DeepEqual(v1, v2) {
		t.Errorf("migrations changed: %v -> %v", v1, v2)
	}
	if len(v2) != 2 || v2[0] != 1 || v2[1] != 2 {
		t.Errorf("AppliedMigrations() = %v, want [1 2]", v2)
	}
}

func TestSQLiteStore_LoadEmpty(t *testing.T) {
	s := openTestSQLite(t)

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Load() = %v, want empty slice", records)
	}
}

func TestSQLiteStore_LoadAfterFailureIsEmpty(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Append(feedback.Record{Timestamp: 1, Feedback: "x", Emotion: feedback.Confused}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load on closed database: %v, want nil error", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Load() = %v, want empty slice", records)
	}
}

func TestSQLiteStore_AppendPreservesOrder(t *testing.T) {
	s := openTestSQLite(t)

	// Timestamps deliberately out of order: insertion order wins.
	want := []feedback.Record{
		{Timestamp: 300, Feedback: "third by time", Emotion: feedback.Confused, Reasoning: "a"},
		{Timestamp: 100, Feedback: "first by time", Emotion: feedback.BoredDrowsy, Reasoning: "b"},
		{Timestamp: 200, Feedback: "second by time", Emotion: feedback.HappyEngaged, Reasoning: "c"},
	}
	for _, r := range want {
		if err := s.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestSQLiteStore_ConcurrentAppends(t *testing.T) {
	s := openTestSQLite(t)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Append(feedback.Record{Timestamp: int64(i), Feedback: fmt.Sprint(i), Emotion: feedback.NeutralCalm}); err != nil {
				t.Errorf("Append(%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	records, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != n {
		t.Errorf("stored %d records, want %d", len(records), n)
	}
}
