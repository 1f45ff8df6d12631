// Package events carries structured, leveled observations out of a
// detection run. Components emit typed events to an injected Sink
// instead of printing, so tests can assert on what happened and
// operators can tell an empty result from a run where everything failed.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Level defines event severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Kind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type Kind string

const (
	// Orchestrator events
	KindRunStart      Kind = "detect.start"
	KindPhase         Kind = "detect.phase"
	KindSentenceStart Kind = "detect.sentence"
	KindCompare       Kind = "detect.compare"
	KindMatch         Kind = "detect.match"
	KindNoMatch       Kind = "detect.no_match"
	KindRecovered     Kind = "detect.recovered"
	KindCancelled     Kind = "detect.cancelled"
	KindRunComplete   Kind = "detect.complete"

	// Search events
	KindSearchStart     Kind = "search.start"
	KindSearchComplete  Kind = "search.complete"
	KindSearchStrategy  Kind = "search.strategy"
	KindSearchEmpty     Kind = "search.empty"
	KindSearchError     Kind = "search.error"
	KindSearchRateLimit Kind = "search.ratelimit"

	// Fetch events
	KindFetchStart    Kind = "fetch.start"
	KindFetchComplete Kind = "fetch.complete"
	KindFetchCacheHit Kind = "fetch.cache_hit"
	KindFetchSkipped  Kind = "fetch.skipped"
	KindFetchError    Kind = "fetch.error"

	// Pacing events
	KindPaceWait Kind = "pace.wait"

	// Pipeline events
	KindNarrative      Kind = "llm.complete"
	KindNarrativeError Kind = "llm.error"
	KindStoreError     Kind = "store.error"
	KindReportWritten  Kind = "report.written"
)

// Phase names the orchestrator state machine phases
type Phase string

const (
	PhaseSegment   Phase = "segment"
	PhaseSelect    Phase = "select"
	PhaseCheck     Phase = "check"
	PhaseAggregate Phase = "aggregate"
)

// Event is a single observation. Every field except Kind and Time is optional.
type Event struct {
	Time  time.Time      `json:"t"`
	Level Level          `json:"level,omitempty"`
	Kind  Kind           `json:"kind"`
	Comp  string         `json:"comp,omitempty"` // component: "detect", "search", "fetch", "pace"
	RunID string         `json:"run_id,omitempty"`
	Phase Phase          `json:"phase,omitempty"`
	Query string         `json:"query,omitempty"`
	URL   string         `json:"url,omitempty"`
	Count int            `json:"count,omitempty"`
	Score float64        `json:"score,omitempty"`
	Dur   time.Duration  `json:"-"`
	DurMs float64        `json:"dur_ms,omitempty"`
	Err   string         `json:"err,omitempty"`
	Msg   string         `json:"msg,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(e Event)
}

// Nop discards every event
type Nop struct{}

// Emit discards the event
func (Nop) Emit(Event) {}

// OrNop returns s, or a Nop sink when s is nil
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// WithRunID returns a sink that stamps every event with runID
func WithRunID(s Sink, runID string) Sink {
	return &runSink{next: OrNop(s), runID: runID}
}

type runSink struct {
	next  Sink
	runID string
}

func (r *runSink) Emit(e Event) {
	if e.RunID == "" {
		e.RunID = r.runID
	}
	r.next.Emit(e)
}

// Multi fans events out to several sinks
type Multi []Sink

// Emit forwards e to every non-nil sink
func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Recorder keeps every event in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit records the event
func (r *Recorder) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfKind returns the recorded events of kind k
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of kind k were recorded
func (r *Recorder) Count(k Kind) int {
	return len(r.OfKind(k))
}
