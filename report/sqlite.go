package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weiihann/lapbench/harness"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	started_at    TEXT NOT NULL,
	finished_at   TEXT NOT NULL,
	base          INTEGER NOT NULL,
	cycles        INTEGER NOT NULL,
	cost_checked  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS timings (
	run_id     TEXT NOT NULL,
	solver     TEXT NOT NULL,
	size       INTEGER NOT NULL,
	cycles     INTEGER NOT NULL,
	mean_ns    INTEGER NOT NULL,
	median_ns  INTEGER NOT NULL,
	lo_ns      INTEGER NOT NULL,
	hi_ns      INTEGER NOT NULL,
	stddev_ns  INTEGER NOT NULL,
	samples    TEXT NOT NULL,
	PRIMARY KEY (run_id, solver, size),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS mismatches (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	size            INTEGER NOT NULL,
	cycle           INTEGER NOT NULL,
	reference       TEXT NOT NULL,
	reference_cost  REAL NOT NULL,
	solver          TEXT NOT NULL,
	cost            REAL NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS failures (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id  TEXT NOT NULL,
	solver  TEXT NOT NULL,
	size    INTEGER NOT NULL,
	cycle   INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	error   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// Store appends result sets to a SQLite database. Runs accumulate across
// invocations and are keyed by run ID.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) a SQLite database and runs migrations.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()

		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes one result set in a single transaction.
func (s *Store) Save(ctx context.Context, rs *harness.ResultSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, base, cycles, cost_checked)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rs.RunID,
		rs.StartedAt.Format(time.RFC3339Nano),
		rs.FinishedAt.Format(time.RFC3339Nano),
		rs.Base,
		rs.Cycles,
		rs.CostChecked,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, name := range rs.Solvers {
		for _, e := range rs.Entries(name) {
			samples, err := json.Marshal(e.Samples)
			if err != nil {
				return fmt.Errorf("marshal samples: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO timings (run_id, solver, size, cycles, mean_ns, median_ns, lo_ns, hi_ns, stddev_ns, samples)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				rs.RunID, name, e.Size, e.Cycles,
				int64(e.Mean), int64(e.Median), int64(e.Lo), int64(e.Hi), int64(e.StdDev),
				string(samples),
			)
			if err != nil {
				return fmt.Errorf("insert timing %s/%d: %w", name, e.Size, err)
			}
		}
	}

	for _, m := range rs.Mismatches {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO mismatches (run_id, size, cycle, reference, reference_cost, solver, cost)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rs.RunID, m.Size, m.Cycle, m.Reference, m.ReferenceCost, m.Solver, m.Cost,
		)
		if err != nil {
			return fmt.Errorf("insert mismatch: %w", err)
		}
	}

	for _, f := range rs.Failures {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, solver, size, cycle, kind, error)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rs.RunID, f.Solver, f.Size, f.Cycle, string(f.Kind), f.Message,
		)
		if err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// TimingRow is one stored (run, solver, size) timing.
type TimingRow struct {
	RunID  string
	Solver string
	Size   int
	Cycles int
	Mean   time.Duration
}

// Timings returns the stored timings of a run ordered by solver and size.
func (s *Store) Timings(ctx context.Context, runID string) ([]TimingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, solver, size, cycles, mean_ns FROM timings
		 WHERE run_id = ? ORDER BY solver, size`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query timings: %w", err)
	}
	defer rows.Close()

	var out []TimingRow
	for rows.Next() {
		var (
			r    TimingRow
			mean int64
		)
		if err := rows.Scan(&r.RunID, &r.Solver, &r.Size, &r.Cycles, &mean); err != nil {
			return nil, fmt.Errorf("scan timing: %w", err)
		}
		r.Mean = time.Duration(mean)
		out = append(out, r)
	}

	return out, rows.Err()
}
