//go:build sqlite

package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteArchive persists run records in a single SQLite database file.
type SQLiteArchive struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteArchive(path string) *SQLiteArchive {
	return &SQLiteArchive{path: path}
}

func newSQLiteArchive(path string) (Archive, error) {
	return NewSQLiteArchive(path), nil
}

func (a *SQLiteArchive) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.path == "" {
		return errors.New("sqlite path is required")
	}
	if a.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", a.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	a.db = db
	return nil
}

func (a *SQLiteArchive) SaveRun(ctx context.Context, record RunRecord) error {
	if record.ID == "" {
		return errors.New("run id is required")
	}

	db, err := a.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeParams(record.BestParams)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, problem, dim, optimizer, status, best_cost, initial_cost,
			iterations, evaluations, seed, started_at, finished_at, params)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			problem = excluded.problem,
			dim = excluded.dim,
			optimizer = excluded.optimizer,
			status = excluded.status,
			best_cost = excluded.best_cost,
			initial_cost = excluded.initial_cost,
			iterations = excluded.iterations,
			evaluations = excluded.evaluations,
			seed = excluded.seed,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			params = excluded.params
	`, record.ID, record.Problem, record.Dim, record.Optimizer, record.Status,
		record.BestCost, record.InitialCost, record.Iterations, record.Evaluations,
		record.Seed, record.StartedAt.UnixNano(), record.FinishedAt.UnixNano(), payload)
	return err
}

func (a *SQLiteArchive) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	db, err := a.getDB()
	if err != nil {
		return RunRecord{}, false, err
	}

	row := db.QueryRowContext(ctx, selectColumns+` FROM runs WHERE id = ?`, id)
	record, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return record, true, nil
}

func (a *SQLiteArchive) ListRuns(ctx context.Context) ([]RunRecord, error) {
	db, err := a.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectColumns+` FROM runs ORDER BY finished_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (a *SQLiteArchive) BestRun(ctx context.Context, problem string, dim int) (RunRecord, bool, error) {
	db, err := a.getDB()
	if err != nil {
		return RunRecord{}, false, err
	}

	row := db.QueryRowContext(ctx, selectColumns+`
		FROM runs WHERE problem = ? AND dim = ? AND status = ?
		ORDER BY best_cost ASC LIMIT 1
	`, problem, dim, StatusCompleted)
	record, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return record, true, nil
}

func (a *SQLiteArchive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *SQLiteArchive) getDB() (*sql.DB, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.db == nil {
		return nil, errors.New("archive is not initialized")
	}
	return a.db, nil
}

const selectColumns = `SELECT id, problem, dim, optimizer, status, best_cost, initial_cost,
	iterations, evaluations, seed, started_at, finished_at, params`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var record RunRecord
	var startedAt, finishedAt int64
	var payload []byte

	err := row.Scan(&record.ID, &record.Problem, &record.Dim, &record.Optimizer,
		&record.Status, &record.BestCost, &record.InitialCost, &record.Iterations,
		&record.Evaluations, &record.Seed, &startedAt, &finishedAt, &payload)
	if err != nil {
		return RunRecord{}, err
	}

	record.StartedAt = time.Unix(0, startedAt)
	record.FinishedAt = time.Unix(0, finishedAt)
	record.BestParams, err = DecodeParams(payload)
	if err != nil {
		return RunRecord{}, fmt.Errorf("decode params for run %s: %w", record.ID, err)
	}
	return record, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			problem TEXT NOT NULL,
			dim INTEGER NOT NULL,
			optimizer TEXT NOT NULL,
			status TEXT NOT NULL,
			best_cost REAL NOT NULL,
			initial_cost REAL NOT NULL,
			iterations INTEGER NOT NULL,
			evaluations INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			params BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS runs_problem_idx ON runs (problem, dim, status, best_cost);
	`)
	return err
}
