package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/dandori/internal/sim"
)

// RunSummary is one archived simulation run.
type RunSummary struct {
	ID          uuid.UUID
	Scenario    string
	StartDay    time.Time
	FinishedAt  time.Time
	HorizonDays int
	Completed   int
	StallCount  int
	LateCount   int
	Utilization float64
	CreatedAt   time.Time
}

// SaveReport archives a finished run, its stage events, and its stalls in one
// transaction.
func (d *DB) SaveReport(ctx context.Context, scenario string, startDay time.Time, horizonDays int, rep *sim.Report) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, start_day, finished_at, horizon_days, completed, stall_count, late_count, utilization, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID.String(), scenario, startDay, rep.FinishedAt, horizonDays,
		rep.Completed, len(rep.Stalls), len(rep.Late), rep.Utilization, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}

	for start := 0; start < len(rep.Events); start += d.batchMax {
		end := start + d.batchMax
		if end > len(rep.Events) {
			end = len(rep.Events)
		}
		if err := insertEvents(ctx, tx, rep.RunID, rep.Events[start:end]); err != nil {
			return err
		}
	}

	for _, s := range rep.Stalls {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO stalls (run_id, item_id, stage, resource_type, at) VALUES (?, ?, ?, ?, ?)`,
			rep.RunID.String(), s.ItemID, s.Stage, string(s.ResourceType), s.At,
		)
		if err != nil {
			return fmt.Errorf("storage: insert stall: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, runID uuid.UUID, events []sim.Event) error {
	if len(events) == 0 {
		return nil
	}
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`INSERT INTO production_events (id, run_id, item_id, stage, start_at, end_at, resource_id, resource_name, bid_hours) VALUES `)
	for i, ev := range events {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, ev.ID.String(), runID.String(), ev.ItemID, ev.Stage,
			ev.Start, ev.End, ev.ResourceID, ev.Resource, ev.BidHours)
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("storage: insert events: %w", err)
	}
	return nil
}

// GetRun retrieves one archived run by id.
func (d *DB) GetRun(ctx context.Context, id uuid.UUID) (RunSummary, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, scenario, start_day, finished_at, horizon_days, completed, stall_count, late_count, utilization, created_at
		 FROM runs WHERE id = ?`, id.String())
	sum, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunSummary{}, fmt.Errorf("storage: run %s: %w", id, ErrNotFound)
		}
		return RunSummary{}, fmt.Errorf("storage: get run: %w", err)
	}
	return sum, nil
}

// ListRuns returns archived runs, newest first.
func (d *DB) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, scenario, start_day, finished_at, horizon_days, completed, stall_count, late_count, utilization, created_at
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		sum, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: list runs: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunSummary, error) {
	var (
		sum RunSummary
		id  string
	)
	err := row.Scan(&id, &sum.Scenario, &sum.StartDay, &sum.FinishedAt, &sum.HorizonDays,
		&sum.Completed, &sum.StallCount, &sum.LateCount, &sum.Utilization, &sum.CreatedAt)
	if err != nil {
		return RunSummary{}, err
	}
	sum.ID, err = uuid.Parse(id)
	if err != nil {
		return RunSummary{}, err
	}
	return sum, nil
}

// EventsByRun returns a run's stage events in simulated-time order. It fails
// with ErrNotFound when the run was never archived.
func (d *DB) EventsByRun(ctx context.Context, runID uuid.UUID) ([]sim.Event, error) {
	if _, err := d.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, item_id, stage, start_at, end_at, resource_id, resource_name, bid_hours
		 FROM production_events WHERE run_id = ? ORDER BY start_at, id`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("storage: events by run: %w", err)
	}
	defer rows.Close()

	var out []sim.Event
	for rows.Next() {
		var (
			ev sim.Event
			id string
		)
		if err := rows.Scan(&id, &ev.ItemID, &ev.Stage, &ev.Start, &ev.End,
			&ev.ResourceID, &ev.Resource, &ev.BidHours); err != nil {
			return nil, fmt.Errorf("storage: events by run: %w", err)
		}
		ev.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("storage: events by run: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
