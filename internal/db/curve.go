package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lateness-sim/internal/sim"
)

const schema = `
CREATE TABLE IF NOT EXISTS lateness_runs (
  id               BIGSERIAL PRIMARY KEY,
  started_at       TIMESTAMPTZ NOT NULL,
  line             TEXT NOT NULL,
  origin_stop      TEXT NOT NULL,
  destination_stop TEXT NOT NULL,
  deadline         TIMESTAMPTZ NOT NULL,
  iterations       INTEGER NOT NULL,
  seed             BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS lateness_points (
  run_id      BIGINT NOT NULL REFERENCES lateness_runs(id) ON DELETE CASCADE,
  departure   TIMESTAMPTZ NOT NULL,
  probability DOUBLE PRECISION NOT NULL,
  PRIMARY KEY (run_id, departure)
);`

// Run describes one sweep stored next to its curve.
type Run struct {
	StartedAt       time.Time
	Line            string
	OriginStop      string
	DestinationStop string
	Deadline        time.Time
	Iterations      int
	Seed            int64
}

// Migrate creates the curve tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate curve tables: %w", err)
	}
	return nil
}

// SaveCurve stores run and every point of curve in one transaction and
// returns the new run id.
func SaveCurve(ctx context.Context, db *sql.DB, run Run, curve sim.Curve) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO lateness_runs (started_at, line, origin_stop, destination_stop, deadline, iterations, seed)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		run.StartedAt, run.Line, run.OriginStop, run.DestinationStop, run.Deadline, run.Iterations, run.Seed,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO lateness_points (run_id, departure, probability) VALUES ($1, $2, $3)`)
	if err != nil {
		return 0, fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()
	for _, p := range curve {
		if _, err := stmt.ExecContext(ctx, id, p.Departure, p.Probability); err != nil {
			return 0, fmt.Errorf("insert point %s: %w", p.Departure.Format(time.TimeOnly), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// LoadCurve returns the stored points of a run in departure order.
func LoadCurve(ctx context.Context, db *sql.DB, runID int64) (sim.Curve, error) {
	rows, err := db.QueryContext(ctx, `SELECT departure, probability FROM lateness_points WHERE run_id = $1 ORDER BY departure`, runID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()
	var c sim.Curve
	for rows.Next() {
		var p sim.Point
		if err := rows.Scan(&p.Departure, &p.Probability); err != nil {
			return nil, err
		}
		c = append(c, p)
	}
	return c, rows.Err()
}
