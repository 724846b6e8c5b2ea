// Package store keeps a history of evaluation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ezoic/tabml/metrics"
	"github.com/ezoic/tabml/pkg/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    backend TEXT NOT NULL,
    task TEXT NOT NULL,
    dataset TEXT NOT NULL,
    seed INTEGER NOT NULL,
    samples INTEGER NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS run_metrics (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
`

// Run kinds.
const (
	KindEvaluate      = "evaluate"
	KindCrossValidate = "crossvalidate"
)

// Run is one recorded evaluation.
type Run struct {
	ID        uuid.UUID
	Kind      string
	Backend   string
	Task      string
	Dataset   string
	Seed      uint64
	Samples   int
	Metrics   []metrics.Metric
	CreatedAt time.Time
}

// NewRun describes an evaluation of report produced by backend on dataset.
func NewRun(kind, backend, dataset string, seed uint64, report metrics.Report) Run {
	return Run{
		Kind:    kind,
		Backend: backend,
		Task:    report.Task().String(),
		Dataset: dataset,
		Seed:    seed,
		Samples: report.Samples(),
		Metrics: report.Metrics(),
	}
}

// Runs is a SQLite-backed run history.
type Runs struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Runs, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.NewPersistenceError("open", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.NewPersistenceError("open", path, errors.Wrap(err, "create tables"))
	}
	return &Runs{db: db}, nil
}

// Close closes the database.
func (r *Runs) Close() error { return r.db.Close() }

// Record stores run and returns its ID. A zero ID or timestamp is filled
// in.
func (r *Runs) Record(ctx context.Context, run Run) (_ uuid.UUID, err error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, backend, task, dataset, seed, samples, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Kind, run.Backend, run.Task, run.Dataset,
		int64(run.Seed), run.Samples, run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "insert run")
	}
	for i, m := range run.Metrics {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO run_metrics (run_id, position, name, value) VALUES (?, ?, ?, ?)`,
			run.ID.String(), i, m.Name, m.Value,
		); err != nil {
			return uuid.Nil, errors.Wrapf(err, "insert metric %s", m.Name)
		}
	}
	if err = tx.Commit(); err != nil {
		return uuid.Nil, errors.Wrap(err, "commit")
	}
	return run.ID, nil
}

// Get returns the run with id, or an error wrapping sql.ErrNoRows.
func (r *Runs) Get(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, kind, backend, task, dataset, seed, samples, created_at FROM runs WHERE id = ?`, id.String())
	run, err := scanRun(row)
	if err != nil {
		return nil, errors.Wrapf(err, "run %s", id)
	}
	if err := r.loadMetrics(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. A limit below 1 returns all.
func (r *Runs) List(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, backend, task, dataset, seed, samples, created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	for i := range out {
		if err := r.loadMetrics(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run     Run
		id      string
		seed    int64
		created string
	)
	if err := s.Scan(&id, &run.Kind, &run.Backend, &run.Task, &run.Dataset, &seed, &run.Samples, &created); err != nil {
		return nil, err
	}
	var err error
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, errors.Wrap(err, "parse run id")
	}
	if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, errors.Wrap(err, "parse created_at")
	}
	run.Seed = uint64(seed)
	return &run, nil
}

func (r *Runs) loadMetrics(ctx context.Context, run *Run) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, value FROM run_metrics WHERE run_id = ? ORDER BY position`, run.ID.String())
	if err != nil {
		return errors.Wrap(err, "load metrics")
	}
	defer rows.Close()
	for rows.Next() {
		var m metrics.Metric
		if err := rows.Scan(&m.Name, &m.Value); err != nil {
			return errors.Wrap(err, "scan metric")
		}
		run.Metrics = append(run.Metrics, m)
	}
	return errors.Wrap(rows.Err(), "load metrics")
}
