// Package archive keeps records of finished optimization runs so results
// can be compared across problems, optimizers and parameter choices.
package archive

import (
	"context"
	"fmt"
	"time"
)

// Run statuses as stored in the archive.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunRecord is the archived outcome of a single optimization run.
type RunRecord struct {
	ID          string    `json:"id"`
	Problem     string    `json:"problem"`
	Dim         int       `json:"dim"`
	Optimizer   string    `json:"optimizer"`
	Status      string    `json:"status"`
	BestCost    float64   `json:"bestCost"`
	InitialCost float64   `json:"initialCost"`
	BestParams  []float64 `json:"bestParams,omitempty"`
	Iterations  int       `json:"iterations"`
	Evaluations int       `json:"evaluations,omitempty"`
	Seed        int64     `json:"seed"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Archive defines persistence operations for run records.
type Archive interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, record RunRecord) error
	GetRun(ctx context.Context, id string) (RunRecord, bool, error)

	// ListRuns returns all archived runs, newest first.
	ListRuns(ctx context.Context) ([]RunRecord, error)

	// BestRun returns the completed run with the lowest cost for the
	// given problem and dimension.
	BestRun(ctx context.Context, problem string, dim int) (RunRecord, bool, error)
}

// NewArchive builds an archive for the given backend kind.
// The sqlite backend is only available in builds with the sqlite tag.
func NewArchive(kind, sqlitePath string) (Archive, error) {
	switch kind {
	case "", "memory":
		return NewMemoryArchive(), nil
	case "sqlite":
		return newSQLiteArchive(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", kind)
	}
}

// CloseIfSupported closes archives that hold external resources.
func CloseIfSupported(a Archive) error {
	closer, ok := a.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
