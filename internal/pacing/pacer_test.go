package pacing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/model"
)

func testConfig() model.PacingConfig {
	return model.PacingConfig{
		QueryDelayMin:     3 * time.Second,
		QueryDelayMax:     6 * time.Second,
		CandidateDelay:    time.Second,
		RateLimitCooldown: time.Minute,
	}
}

func TestPacer_QueryDelayWithinBounds(t *testing.T) {
	p := NewPacer(testConfig(), &RecordingClock{}, nil)
	for i := 0; i < 200; i++ {
		d := p.QueryDelay()
		if d < 3*time.Second || d > 6*time.Second {
			t.Fatalf("delay %v outside [3s, 6s]", d)
		}
	}
}

func TestPacer_QueryDelayJitterEdges(t *testing.T) {
	p := NewPacer(testConfig(), &RecordingClock{}, nil)

	p.jitter = func(n int64) int64 { return 0 }
	if d := p.QueryDelay(); d != 3*time.Second {
		t.Errorf("expected min delay, got %v", d)
	}

	p.jitter = func(n int64) int64 { return n - 1 }
	if d := p.QueryDelay(); d != 6*time.Second {
		t.Errorf("expected max delay, got %v", d)
	}
}

func TestPacer_FixedDelayWhenMaxBelowMin(t *testing.T) {
	cfg := testConfig()
	cfg.QueryDelayMax = time.Second
	p := NewPacer(cfg, &RecordingClock{}, nil)
	if d := p.QueryDelay(); d != 3*time.Second {
		t.Errorf("expected 3s, got %v", d)
	}
}

func TestPacer_RecordsSleeps(t *testing.T) {
	clock := &RecordingClock{}
	rec := events.NewRecorder()
	p := NewPacer(testConfig(), clock, rec)
	p.jitter = func(n int64) int64 { return 0 }
	ctx := context.Background()

	if err := p.AfterQuery(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.AfterCandidate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Cooldown(ctx); err != nil {
		t.Fatal(err)
	}

	want := []time.Duration{3 * time.Second, time.Second, time.Minute}
	got := clock.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if rec.Count(events.KindPaceWait) != 3 {
		t.Errorf("expected 3 pace events, got %d", rec.Count(events.KindPaceWait))
	}
}

func TestPacer_ZeroDelaySkipsSleep(t *testing.T) {
	clock := &RecordingClock{}
	p := NewPacer(model.PacingConfig{}, clock, nil)
	if err := p.AfterCandidate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(clock.Sleeps()) != 0 {
		t.Error("expected no sleep for zero delay")
	}
}

func TestRealClock_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep did not return promptly on cancellation")
	}
}

func TestRealClock_Sleeps(t *testing.T) {
	start := time.Now()
	if err := (RealClock{}).Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected to sleep at least 20ms")
	}
}
