// Package pacing spaces out outbound calls so a detection run does not
// hammer the search engine or source sites.
package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ppiankov/plagiscan/internal/events"
	"github.com/ppiankov/plagiscan/internal/model"
)

// Clock sleeps. Tests substitute a recording clock so runs complete instantly.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock sleeps on the wall clock and wakes early on cancellation
type RealClock struct{}

// Sleep blocks for d or until ctx is done
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordingClock records requested sleeps without blocking
type RecordingClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

// Sleep records d and returns immediately
func (c *RecordingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns a copy of every recorded sleep
func (c *RecordingClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// Total returns the sum of every recorded sleep
func (c *RecordingClock) Total() time.Duration {
	var total time.Duration
	for _, d := range c.Sleeps() {
		total += d
	}
	return total
}

// Pacer applies the configured delays after queries and candidate fetches
type Pacer struct {
	cfg    model.PacingConfig
	clock  Clock
	sink   events.Sink
	jitter func(n int64) int64
}

// NewPacer creates a pacer. A nil clock means the wall clock.
func NewPacer(cfg model.PacingConfig, clock Clock, sink events.Sink) *Pacer {
	if clock == nil {
		clock = RealClock{}
	}
	if cfg.QueryDelayMax < cfg.QueryDelayMin {
		cfg.QueryDelayMax = cfg.QueryDelayMin
	}
	return &Pacer{
		cfg:    cfg,
		clock:  clock,
		sink:   events.OrNop(sink),
		jitter: rand.Int63n,
	}
}

// QueryDelay returns a uniformly jittered delay in [QueryDelayMin, QueryDelayMax]
func (p *Pacer) QueryDelay() time.Duration {
	span := int64(p.cfg.QueryDelayMax - p.cfg.QueryDelayMin)
	if span <= 0 {
		return p.cfg.QueryDelayMin
	}
	return p.cfg.QueryDelayMin + time.Duration(p.jitter(span+1))
}

// AfterQuery waits the jittered inter-query delay
func (p *Pacer) AfterQuery(ctx context.Context) error {
	return p.wait(ctx, p.QueryDelay(), "query")
}

// AfterCandidate waits the fixed per-candidate delay
func (p *Pacer) AfterCandidate(ctx context.Context) error {
	return p.wait(ctx, p.cfg.CandidateDelay, "candidate")
}

// Cooldown backs off after the search engine signals rate limiting
func (p *Pacer) Cooldown(ctx context.Context) error {
	return p.wait(ctx, p.cfg.RateLimitCooldown, "cooldown")
}

func (p *Pacer) wait(ctx context.Context, d time.Duration, reason string) error {
	if d <= 0 {
		return ctx.Err()
	}
	p.sink.Emit(events.Event{
		Time:  time.Now(),
		Level: events.LevelDebug,
		Kind:  events.KindPaceWait,
		Comp:  "pace",
		Dur:   d,
		Msg:   reason,
	})
	return p.clock.Sleep(ctx, d)
}
