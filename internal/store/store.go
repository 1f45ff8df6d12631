package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/plagiscan/internal/model"
)

// ErrNotFound is returned when no run has the requested ID
var ErrNotFound = errors.New("run not found")

// RunInfo is the listing view of a stored run
type RunInfo struct {
	ID                string          `json:"id" yaml:"id"`
	Status            model.RunStatus `json:"status" yaml:"status"`
	SourceLabel       string          `json:"source_label,omitempty" yaml:"source_label,omitempty"`
	StartedAt         time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt        time.Time       `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	OverallPercentage float64         `json:"overall_percentage" yaml:"overall_percentage"`
	TotalMatches      int             `json:"total_matches" yaml:"total_matches"`
}

// Store keeps one row per run plus its matches
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the store at path
func New(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin records a run as processing before detection starts
func (s *Store) Begin(ctx context.Context, runID, sourceLabel string) error {
	if runID == "" {
		return fmt.Errorf("begin run: empty run id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(id, status, source_label, started_at) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, started_at = excluded.started_at`,
		runID, string(model.RunStatusProcessing), sourceLabel, formatTime(s.now().UTC()))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// Save stores a finished report, replacing any earlier state for its run
func (s *Store) Save(ctx context.Context, rep *model.Report) error {
	if rep == nil || rep.RunID == "" {
		return fmt.Errorf("save run: report has no run id")
	}

	raw, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(id, status, source_label, started_at, finished_at, threshold, input_chars,
		                  overall_percentage, total_matches, report_json)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   source_label = excluded.source_label,
		   started_at = excluded.started_at,
		   finished_at = excluded.finished_at,
		   threshold = excluded.threshold,
		   input_chars = excluded.input_chars,
		   overall_percentage = excluded.overall_percentage,
		   total_matches = excluded.total_matches,
		   report_json = excluded.report_json`,
		rep.RunID,
		string(rep.Stats.Status()),
		rep.SourceLabel,
		formatTime(rep.StartedAt),
		formatTime(rep.FinishedAt),
		rep.Threshold,
		rep.InputChars,
		rep.Summary.OverallPercentage,
		rep.Summary.TotalMatches,
		string(raw),
	); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE run_id = ?`, rep.RunID); err != nil {
		return fmt.Errorf("clear matches: %w", err)
	}

	for i, m := range rep.Matches {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO matches(run_id, position, sentence, similarity, source_url, source_title, source_text)
			 VALUES(?,?,?,?,?,?,?)`,
			rep.RunID, i, m.Sentence, m.Similarity, m.Source.URL, m.Source.Title, m.Source.Text,
		); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get loads the full report of a run. A run that never finished yields
// a report carrying only its ID and start time.
func (s *Store) Get(ctx context.Context, runID string) (*model.Report, model.RunStatus, error) {
	var (
		status     string
		label      sql.NullString
		startedAt  sql.NullString
		reportJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT status, source_label, started_at, report_json FROM runs WHERE id = ?`, runID,
	).Scan(&status, &label, &startedAt, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("query run: %w", err)
	}

	if !reportJSON.Valid || reportJSON.String == "" {
		return &model.Report{
			RunID:       runID,
			StartedAt:   parseTime(startedAt.String),
			SourceLabel: label.String,
			Matches:     []model.MatchRecord{},
		}, model.RunStatus(status), nil
	}

	var rep model.Report
	if err := json.Unmarshal([]byte(reportJSON.String), &rep); err != nil {
		return nil, "", fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &rep, model.RunStatus(status), nil
}

// List returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]RunInfo, error) {
	query := `SELECT id, status, source_label, started_at, finished_at, overall_percentage, total_matches
	          FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var (
			info       RunInfo
			status     string
			label      sql.NullString
			startedAt  sql.NullString
			finishedAt sql.NullString
			overall    sql.NullFloat64
			total      sql.NullInt64
		)
		if err := rows.Scan(&info.ID, &status, &label, &startedAt, &finishedAt, &overall, &total); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		info.Status = model.RunStatus(status)
		info.SourceLabel = label.String
		info.StartedAt = parseTime(startedAt.String)
		info.FinishedAt = parseTime(finishedAt.String)
		info.OverallPercentage = overall.Float64
		info.TotalMatches = int(total.Int64)
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// SourceCounts reports how many stored matches cite each source URL
func (s *Store) SourceCounts(ctx context.Context, limit int) (map[string]int, error) {
	query := `SELECT source_url, COUNT(*) FROM matches GROUP BY source_url ORDER BY COUNT(*) DESC, source_url`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count sources: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var url string
		var n int
		if err := rows.Scan(&url, &n); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		counts[url] = n
	}
	return counts, rows.Err()
}

// timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
