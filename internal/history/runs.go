package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"moviesync/internal/enrichment"
)

// Run is one ledger row.
type Run struct {
	ID           int64
	RunID        string
	State        enrichment.State
	StartedAt    time.Time
	FinishedAt   time.Time
	Total        int
	Patches      int
	Skipped      int
	Enriched     int
	NotFound     int
	Failed       int
	Unresolved   int
	Writes       int
	Checkpoints  int
	ErrorMessage string
}

// Duration returns the wall time of the run, or zero if it never finished.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromSummary converts a reconciler summary and its fatal error, if any, into a row.
func FromSummary(summary enrichment.Summary, runErr error) Run {
	run := Run{
		RunID:       summary.RunID,
		State:       summary.State,
		StartedAt:   summary.StartedAt,
		FinishedAt:  summary.FinishedAt,
		Total:       summary.Total,
		Patches:     summary.Patches,
		Skipped:     summary.Skipped,
		Enriched:    summary.Enriched,
		NotFound:    summary.NotFound,
		Failed:      summary.Failed,
		Unresolved:  summary.Unresolved,
		Writes:      summary.Writes,
		Checkpoints: summary.Checkpoints,
	}
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	return run
}

const runColumns = "id, run_id, state, started_at, finished_at, total, patches, skipped, enriched, not_found, failed, unresolved, writes, checkpoints, error_message"

// Append stores a finished run and returns its row id.
func (s *Store) Append(ctx context.Context, run Run) (int64, error) {
	if run.RunID == "" {
		return 0, fmt.Errorf("run id required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO runs (run_id, state, started_at, finished_at, total, patches, skipped, enriched, not_found, failed, unresolved, writes, checkpoints, error_message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID,
			string(run.State),
			formatTime(run.StartedAt),
			nullableTime(run.FinishedAt),
			run.Total,
			run.Patches,
			run.Skipped,
			run.Enriched,
			run.NotFound,
			run.Failed,
			run.Unresolved,
			run.Writes,
			run.Checkpoints,
			nullableString(run.ErrorMessage),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first. A non-positive limit returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
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

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Last returns the most recent run, or nil when the ledger is empty.
func (s *Store) Last(ctx context.Context) (*Run, error) {
	runs, err := s.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// Prune keeps the newest keep runs and deletes the rest.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?)`, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		state       string
		startedRaw  string
		finishedRaw sql.NullString
		errorMsg    sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&state,
		&startedRaw,
		&finishedRaw,
		&run.Total,
		&run.Patches,
		&run.Skipped,
		&run.Enriched,
		&run.NotFound,
		&run.Failed,
		&run.Unresolved,
		&run.Writes,
		&run.Checkpoints,
		&errorMsg,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.State = enrichment.State(state)
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid {
		run.FinishedAt = parseTime(finishedRaw.String)
	}
	run.ErrorMessage = errorMsg.String
	return run, nil
}

// timeLayout is fixed-width so text ordering in SQLite matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
