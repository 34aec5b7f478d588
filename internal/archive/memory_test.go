package archive

import (
	"context"
	"testing"
	"time"
)

func sampleRun(id string, finished time.Time) RunRecord {
	return RunRecord{
		ID:          id,
		Problem:     "sphere",
		Dim:         3,
		Optimizer:   "es",
		Status:      StatusCompleted,
		BestCost:    0.01,
		InitialCost: 42.5,
		BestParams:  []float64{0.05, -0.02, 0.08},
		Iterations:  300,
		Evaluations: 12020,
		Seed:        7,
		StartedAt:   finished.Add(-time.Minute),
		FinishedAt:  finished,
	}
}

func TestMemoryArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()
	if err := a.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := sampleRun("run-1", time.Now())
	if err := a.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}

	output, ok, err := a.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if output.Problem != input.Problem || output.BestCost != input.BestCost {
		t.Fatalf("unexpected run: %+v", output)
	}
	if len(output.BestParams) != len(input.BestParams) {
		t.Fatalf("unexpected params: %+v", output.BestParams)
	}
}

func TestMemoryArchiveGetMissing(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()
	if err := a.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	_, ok, err := a.GetRun(ctx, "no-such-run")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if ok {
		t.Fatal("expected missing run")
	}
}

func TestMemoryArchiveSaveRequiresID(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()
	if err := a.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	record := sampleRun("", time.Now())
	if err := a.SaveRun(ctx, record); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestMemoryArchiveSaveBeforeInit(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()

	record := sampleRun("run-1", time.Now())
	if err := a.SaveRun(ctx, record); err == nil {
		t.Fatal("expected error for uninitialized archive")
	}
}

func TestMemoryArchiveListNewestFirst(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()
	if err := a.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	now := time.Now()
	for _, run := range []RunRecord{
		sampleRun("run-old", now.Add(-2*time.Hour)),
		sampleRun("run-new", now),
		sampleRun("run-mid", now.Add(-time.Hour)),
	} {
		if err := a.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	records, err := a.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("unexpected run count: %d", len(records))
	}
	want := []string{"run-new", "run-mid", "run-old"}
	for i, id := range want {
		if records[i].ID != id {
			t.Fatalf("position %d: got=%s want=%s", i, records[i].ID, id)
		}
	}
}

func TestMemoryArchiveBestRun(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()
	if err := a.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	now := time.Now()

	good := sampleRun("run-good", now)
	good.BestCost = 0.5

	better := sampleRun("run-better", now)
	better.BestCost = 0.1

	failedCheap := sampleRun("run-failed", now)
	failedCheap.BestCost = 0.001
	failedCheap.Status = StatusFailed

	otherProblem := sampleRun("run-rastrigin", now)
	otherProblem.Problem = "rastrigin"
	otherProblem.BestCost = 0.0001

	for _, run := range []RunRecord{good, better, failedCheap, otherProblem} {
		if err := a.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	best, ok, err := a.BestRun(ctx, "sphere", 3)
	if err != nil {
		t.Fatalf("best run: %v", err)
	}
	if !ok {
		t.Fatal("expected best run")
	}
	if best.ID != "run-better" {
		t.Fatalf("unexpected best run: %s (cost %f)", best.ID, best.BestCost)
	}

	_, ok, err = a.BestRun(ctx, "ackley", 3)
	if err != nil {
		t.Fatalf("best run: %v", err)
	}
	if ok {
		t.Fatal("expected no best run for unarchived problem")
	}
}

func TestMemoryArchiveCopiesParams(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryArchive()
	if err := a.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := sampleRun("run-1", time.Now())
	if err := a.SaveRun(ctx, input); err != nil {
		t.Fatalf("save run: %v", err)
	}

	// Mutating the caller's slice must not reach the archive.
	input.BestParams[0] = 999

	first, _, err := a.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if first.BestParams[0] == 999 {
		t.Fatal("archive aliases the saved params slice")
	}

	// Mutating a returned slice must not reach the archive either.
	first.BestParams[0] = -999

	second, _, err := a.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if second.BestParams[0] == -999 {
		t.Fatal("archive returns an aliased params slice")
	}
}
