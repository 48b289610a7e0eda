package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ac3mux/internal/convert"
	"ac3mux/internal/services"
)

var _ convert.Recorder = (*Store)(nil)

// Run is one recorded batch.
type Run struct {
	ID         string
	Root       string
	Files      int
	DryRun     bool
	StartedAt  time.Time
	FinishedAt *time.Time
	Converted  int
	Skipped    int
	Failed     int
}

// Entry is one recorded file result.
type Entry struct {
	ID         int64
	RunID      string
	Path       string
	Status     services.Status
	Strategy   string
	Reason     string
	Kind       string
	Backup     string
	Duration   time.Duration
	RecordedAt time.Time
}

// StartRun inserts a run row.
func (s *Store) StartRun(ctx context.Context, run convert.RunInfo) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, root, file_count, dry_run, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.Files, boolToInt(run.DryRun), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordResult appends a file result to a run.
func (s *Store) RecordResult(ctx context.Context, runID string, res convert.Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, path, status, strategy, reason, error_kind, backup_path, duration_ms, recorded_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		res.Path,
		string(res.Status),
		nullableString(string(res.Strategy)),
		nullableString(res.Reason),
		nullableString(res.Kind),
		nullableString(res.Backup),
		res.Duration.Milliseconds(),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// FinishRun stores the summary counts of a run.
func (s *Store) FinishRun(ctx context.Context, summary convert.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, converted = ?, skipped = ?, failed = ? WHERE id = ?`,
		formatTime(time.Now()), summary.Converted, summary.Skipped, summary.Failed, summary.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", summary.RunID, services.ErrNotFound)
	}
	return nil
}

const runColumns = "id, root, file_count, dry_run, started_at, finished_at, converted, skipped, failed"

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
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
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run by id or unique id prefix.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? || '%' LIMIT 2`, id, id)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("run %q: %w", id, services.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		for _, run := range found {
			if run.ID == id {
				return run, nil
			}
		}
		return Run{}, fmt.Errorf("run prefix %q is ambiguous: %w", id, services.ErrValidation)
	}
}

const entryColumns = "id, run_id, path, status, strategy, reason, error_kind, backup_path, duration_ms, recorded_at"

// Results lists the results of a run in recording order.
func (s *Store) Results(ctx context.Context, runID string) ([]Entry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM results WHERE run_id = ? ORDER BY id`, runID)
}

// FileResults lists every recorded result for path, newest first.
func (s *Store) FileResults(ctx context.Context, path string) ([]Entry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM results WHERE path = ? ORDER BY recorded_at DESC, id DESC`, path)
}

// Prune deletes all but the newest keep runs together with their results
// and reports how many runs were removed. Runs still in progress are kept.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune keep %d: %w", keep, services.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs
         WHERE finished_at IS NOT NULL
           AND id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return int(n), nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		e          Entry
		status     string
		strategy   sql.NullString
		reason     sql.NullString
		kind       sql.NullString
		backup     sql.NullString
		durationMS int64
		recorded   string
	)
	if err := scanner.Scan(&e.ID, &e.RunID, &e.Path, &status, &strategy, &reason, &kind, &backup, &durationMS, &recorded); err != nil {
		return Entry{}, err
	}
	e.Status = services.Status(status)
	e.Strategy = strategy.String
	e.Reason = reason.String
	e.Kind = kind.String
	e.Backup = backup.String
	e.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := parseTimeString(recorded); err == nil {
		e.RecordedAt = t
	}
	return e, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run        Run
		dryRun     int
		startedRaw string
		finished   sql.NullString
	)
	if err := scanner.Scan(&run.ID, &run.Root, &run.Files, &dryRun, &startedRaw, &finished, &run.Converted, &run.Skipped, &run.Failed); err != nil {
		return Run{}, err
	}
	run.DryRun = dryRun != 0
	if t, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = t
	}
	if finished.Valid {
		if t, err := parseTimeString(finished.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
