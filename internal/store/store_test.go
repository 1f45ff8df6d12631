package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/plagiscan/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testReport(id string, started time.Time) *model.Report {
	return &model.Report{
		RunID:      id,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Threshold:  0.5,
		InputChars: 120,
		Matches: []model.MatchRecord{
			{Sentence: "one", Similarity: 0.8, Source: model.MatchSource{URL: "https://a.example", Title: "A", Text: "one"}},
			{Sentence: "two", Similarity: 0.6, Source: model.MatchSource{URL: "https://a.example", Title: "A", Text: "two"}},
		},
		Stats: model.RunStats{Queries: 2, SentencesChecked: 2},
		Summary: model.Summary{
			OverallPercentage: 70,
			TotalMatches:      2,
		},
		SourceLabel: "essay.txt",
	}
}

func TestBeginThenGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Begin(ctx, "run-1", "essay.txt"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	rep, status, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status != model.RunStatusProcessing {
		t.Errorf("status = %s, want processing", status)
	}
	if rep.RunID != "run-1" || rep.SourceLabel != "essay.txt" {
		t.Errorf("report = %+v", rep)
	}
	if len(rep.Matches) != 0 {
		t.Errorf("unfinished run has %d matches", len(rep.Matches))
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := s.Begin(ctx, "run-1", "essay.txt"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Save(ctx, testReport("run-1", started)); err != nil {
		t.Fatalf("save: %v", err)
	}

	rep, status, err := s.Get(ctx, "run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status != model.RunStatusComplete {
		t.Errorf("status = %s, want complete", status)
	}
	if len(rep.Matches) != 2 || rep.Matches[0].Similarity != 0.8 {
		t.Errorf("matches = %+v", rep.Matches)
	}
	if !rep.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", rep.StartedAt, started)
	}
}

func TestSaveTwiceReplacesMatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rep := testReport("run-1", time.Now().UTC())

	if err := s.Save(ctx, rep); err != nil {
		t.Fatalf("save: %v", err)
	}
	rep.Matches = rep.Matches[:1]
	if err := s.Save(ctx, rep); err != nil {
		t.Fatalf("save again: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM matches WHERE run_id = ?`, "run-1").Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 match row, got %d", n)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveRequiresRunID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(context.Background(), &model.Report{}); err == nil {
		t.Error("expected error for report without run id")
	}
	if err := s.Begin(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := s.Save(ctx, testReport(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	runs, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("order = %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].TotalMatches != 2 || runs[0].OverallPercentage != 70 {
		t.Errorf("info = %+v", runs[0])
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d runs, want 3", len(all))
	}
}

func TestRunsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testReport("a", time.Now().UTC())
	second := testReport("b", time.Now().UTC())
	second.Matches = second.Matches[:1]

	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save a: %v", err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save b: %v", err)
	}

	got, _, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if len(got.Matches) != 2 {
		t.Errorf("run a was overwritten: %d matches", len(got.Matches))
	}
}

func TestSourceCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, testReport("a", time.Now().UTC())); err != nil {
		t.Fatalf("save: %v", err)
	}

	counts, err := s.SourceCounts(ctx, 10)
	if err != nil {
		t.Fatalf("source counts: %v", err)
	}
	if counts["https://a.example"] != 2 {
		t.Errorf("counts = %v", counts)
	}
}
