package events

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LogSink writes events as leveled records through charmbracelet/log
type LogSink struct {
	logger *log.Logger
}

// NewLogSink creates a sink writing to w. Debug events are only shown when verbose is set.
func NewLogSink(w io.Writer, verbose bool) *LogSink {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return &LogSink{
		logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Level:           level,
			Prefix:          "plagiscan",
		}),
	}
}

// Emit logs the event at its level
func (s *LogSink) Emit(e Event) {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}

	keyvals := []interface{}{"kind", string(e.Kind)}
	if e.Phase != "" {
		keyvals = append(keyvals, "phase", string(e.Phase))
	}
	if e.Query != "" {
		keyvals = append(keyvals, "query", truncate(e.Query, 60))
	}
	if e.URL != "" {
		keyvals = append(keyvals, "url", e.URL)
	}
	if e.Count != 0 {
		keyvals = append(keyvals, "count", e.Count)
	}
	if e.Score != 0 {
		keyvals = append(keyvals, "score", e.Score)
	}
	if e.Dur > 0 {
		keyvals = append(keyvals, "dur", e.Dur.Round(time.Millisecond))
	}
	if e.Err != "" {
		keyvals = append(keyvals, "err", e.Err)
	}

	switch e.Level {
	case LevelError:
		s.logger.Error(msg, keyvals...)
	case LevelWarn:
		s.logger.Warn(msg, keyvals...)
	case LevelInfo:
		s.logger.Info(msg, keyvals...)
	default:
		s.logger.Debug(msg, keyvals...)
	}
}

// JSONLSink writes one JSON object per event
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLSink creates a sink writing JSON lines to w
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// Emit encodes the event. Encoding or write failures drop the event.
func (s *JSONLSink) Emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(data)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
