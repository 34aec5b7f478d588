package server

import (
	"context"
	"testing"
	"time"

	"github.com/cwbudde/evostrat/internal/archive"
	"github.com/cwbudde/evostrat/internal/bench"
	"github.com/cwbudde/evostrat/internal/store"
)

// slowProblem is a sphere variant whose evaluations sleep, giving the
// cancellation tests enough time to interrupt a run.
type slowProblem struct {
	dim int
}

func (p *slowProblem) Name() string { return "slow-sphere" }
func (p *slowProblem) Dim() int     { return p.dim }

func (p *slowProblem) Eval(x []float64) float64 {
	time.Sleep(500 * time.Microsecond)
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func (p *slowProblem) Bounds() (lower, upper []float64) {
	lower = make([]float64, p.dim)
	upper = make([]float64, p.dim)
	for i := range lower {
		lower[i] = -5
		upper[i] = 5
	}
	return lower, upper
}

func (p *slowProblem) Optimum() float64 { return 0 }

func init() {
	bench.Register("slow-sphere", func(dim int) (bench.Problem, error) {
		if dim <= 0 {
			dim = 2
		}
		return &slowProblem{dim: dim}, nil
	})
}

func TestRunJob_Success(t *testing.T) {
	jm := NewJobManager()
	config := JobConfig{
		Problem:   "sphere",
		Dim:       2,
		Optimizer: "es",
		Iters:     30,
		Mu:        10,
		Lambda:    40,
		Seed:      42,
	}

	job := jm.CreateJob(config)

	err := runJob(context.Background(), jm, jobDeps{}, job.ID)
	if err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}

	// The baseline cost is the seeded initial guess, which the evolution
	// strategy can only improve on under plus selection.
	if updated.BestCost > updated.InitialCost {
		t.Errorf("BestCost %v should not exceed InitialCost %v", updated.BestCost, updated.InitialCost)
	}

	if updated.BestCost > 1.0 {
		t.Errorf("30 generations on a 2-D sphere should reach below 1.0, got %v", updated.BestCost)
	}

	if len(updated.BestParams) != 2 {
		t.Errorf("Expected 2 params, got %d", len(updated.BestParams))
	}

	if updated.Iterations != 30 {
		t.Errorf("Expected 30 iterations, got %d", updated.Iterations)
	}

	if updated.Evaluations == 0 {
		t.Error("Evaluations should be tracked")
	}

	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}
}

func TestRunJob_MayflySuccess(t *testing.T) {
	jm := NewJobManager()
	config := JobConfig{
		Problem:   "sphere",
		Dim:       2,
		Optimizer: "mayfly",
		Iters:     20,
		PopSize:   10,
		Seed:      42,
	}

	job := jm.CreateJob(config)

	err := runJob(context.Background(), jm, jobDeps{}, job.ID)
	if err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}

	if len(updated.BestParams) != 2 {
		t.Errorf("Expected 2 params, got %d", len(updated.BestParams))
	}

	// The mayfly library reports no evaluation counts itself; the worker's
	// tracker has to fill them in.
	if updated.Evaluations == 0 {
		t.Error("Evaluations should be tracked for mayfly runs")
	}
}

func TestRunJob_UnknownProblem(t *testing.T) {
	jm := NewJobManager()
	config := JobConfig{
		Problem:   "nonexistent",
		Optimizer: "es",
		Iters:     10,
		Seed:      42,
	}

	job := jm.CreateJob(config)

	err := runJob(context.Background(), jm, jobDeps{}, job.ID)
	if err == nil {
		t.Error("runJob should fail with unknown problem")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}

	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_Cancellation(t *testing.T) {
	runs := archive.NewMemoryArchive()
	if err := runs.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init archive: %v", err)
	}

	jm := NewJobManager()
	config := JobConfig{
		Problem:   "slow-sphere",
		Dim:       2,
		Optimizer: "es",
		Iters:     100000, // Far longer than the test allows
		Mu:        5,
		Lambda:    20,
		Seed:      42,
	}

	job := jm.CreateJob(config)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- runJob(ctx, jm, jobDeps{runs: runs}, job.ID)
	}()

	// Give it time to start
	time.Sleep(100 * time.Millisecond)

	// Cancel the job
	cancel()

	// Wait for completion
	err := <-done

	if err == nil {
		t.Error("runJob should return error when cancelled")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}

	// Best-so-far progress is still archived
	record, ok, err := runs.GetRun(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	if !ok {
		t.Fatal("Cancelled run should be archived")
	}
	if record.Status != archive.StatusCancelled {
		t.Errorf("Expected status %s, got %s", archive.StatusCancelled, record.Status)
	}
}

func TestRunJob_WritesTraceAndCheckpoint(t *testing.T) {
	tmpDir := t.TempDir()

	checkpoints, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	jm := NewJobManager()
	config := JobConfig{
		Problem:            "sphere",
		Dim:                2,
		Optimizer:          "es",
		Iters:              20,
		Mu:                 5,
		Lambda:             20,
		Seed:               42,
		CheckpointInterval: 60, // Only the final checkpoint fires in this test
	}

	job := jm.CreateJob(config)

	deps := jobDeps{checkpoints: checkpoints, dataDir: tmpDir}
	if err := runJob(context.Background(), jm, deps, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	// One trace entry per generation
	reader, err := store.NewTraceReader(tmpDir, job.ID)
	if err != nil {
		t.Fatalf("Failed to open trace: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}

	if len(entries) != 20 {
		t.Fatalf("Expected 20 trace entries, got %d", len(entries))
	}
	if entries[0].Iteration != 1 {
		t.Errorf("First trace entry should be generation 1, got %d", entries[0].Iteration)
	}
	last := entries[len(entries)-1]
	if last.Iteration != 20 {
		t.Errorf("Last trace entry should be generation 20, got %d", last.Iteration)
	}
	if last.Cost > entries[0].Cost {
		t.Errorf("Plus selection should never regress: first %v, last %v", entries[0].Cost, last.Cost)
	}

	// The final checkpoint holds the completed run
	checkpoint, err := checkpoints.LoadCheckpoint(job.ID)
	if err != nil {
		t.Fatalf("Failed to load checkpoint: %v", err)
	}

	if checkpoint.Iteration != 20 {
		t.Errorf("Checkpoint should record 20 iterations, got %d", checkpoint.Iteration)
	}
	if len(checkpoint.BestParams) != 2 {
		t.Errorf("Checkpoint should hold 2 params, got %d", len(checkpoint.BestParams))
	}
	if checkpoint.Config.Problem != "sphere" {
		t.Errorf("Checkpoint config should record the problem, got %q", checkpoint.Config.Problem)
	}
}

func TestRunJob_ArchivesCompletedRun(t *testing.T) {
	runs := archive.NewMemoryArchive()
	if err := runs.Init(context.Background()); err != nil {
		t.Fatalf("Failed to init archive: %v", err)
	}

	jm := NewJobManager()
	config := JobConfig{
		Problem:   "sphere",
		Dim:       2,
		Optimizer: "es",
		Iters:     15,
		Mu:        5,
		Lambda:    20,
		Seed:      7,
	}

	job := jm.CreateJob(config)

	if err := runJob(context.Background(), jm, jobDeps{runs: runs}, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	record, ok, err := runs.GetRun(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Failed to read archive: %v", err)
	}
	if !ok {
		t.Fatal("Completed run should be archived")
	}

	if record.Status != archive.StatusCompleted {
		t.Errorf("Expected status %s, got %s", archive.StatusCompleted, record.Status)
	}
	if record.Problem != "sphere" || record.Dim != 2 {
		t.Errorf("Archive should record the problem, got %s/%d", record.Problem, record.Dim)
	}
	if record.Iterations != 15 {
		t.Errorf("Expected 15 iterations, got %d", record.Iterations)
	}
	if record.Evaluations == 0 {
		t.Error("Evaluations should be recorded")
	}
	if record.FinishedAt.IsZero() {
		t.Error("FinishedAt should be set")
	}
}
