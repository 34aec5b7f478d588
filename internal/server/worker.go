package server

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cwbudde/evostrat/internal/archive"
	"github.com/cwbudde/evostrat/internal/bench"
	"github.com/cwbudde/evostrat/internal/opt"
	"github.com/cwbudde/evostrat/internal/store"
)

// jobDeps carries the optional persistence hooks a job run can use. Any
// field may be zero; the worker skips the corresponding side effects.
type jobDeps struct {
	checkpoints store.Store     // periodic checkpoints when CheckpointInterval > 0
	runs        archive.Archive // finished-run records
	dataDir     string          // base directory for trace files; empty disables tracing
}

// bestTracker records the best parameter vector seen by any objective
// evaluation, so progress events and mid-run checkpoints can report state
// the optimizers themselves never expose. Safe for concurrent evaluation.
type bestTracker struct {
	mu     sync.Mutex
	cost   float64
	params []float64
	evals  int
}

func newBestTracker() *bestTracker {
	return &bestTracker{cost: math.Inf(1)}
}

// wrap returns an objective that forwards to eval and records every call.
func (bt *bestTracker) wrap(eval func([]float64) float64) func([]float64) float64 {
	return func(x []float64) float64 {
		cost := eval(x)
		bt.mu.Lock()
		bt.evals++
		if cost < bt.cost {
			bt.cost = cost
			bt.params = append(bt.params[:0], x...)
		}
		bt.mu.Unlock()
		return cost
	}
}

// snapshot returns a copy of the best parameters seen so far along with the
// best cost and the cumulative evaluation count.
func (bt *bestTracker) snapshot() (params []float64, cost float64, evals int) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	if bt.params != nil {
		params = append([]float64(nil), bt.params...)
	}
	return params, bt.cost, bt.evals
}

// runJob executes an optimization job in the background. Cancellation is
// observed through ctx: the evolution strategy polls it every generation,
// so cancelled jobs end with their best-so-far result recorded.
func runJob(ctx context.Context, jm *JobManager, deps jobDeps, jobID string) error {
	// Get the job
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	defer jm.clearCancel(jobID)

	// Update state to running
	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "problem", job.Config.Problem, "optimizer", job.Config.Optimizer)

	// Resolve the benchmark problem
	problem, err := bench.New(job.Config.Problem, job.Config.Dim)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to resolve problem: %w", err))
		return err
	}
	lower, upper := problem.Bounds()
	dim := problem.Dim()

	slog.Info("Resolved problem", "job_id", jobID, "problem", problem.Name(), "dim", dim, "optimum", problem.Optimum())

	// A uniform sample drawn with the job's seed gives a reproducible
	// baseline cost for improvement reporting. It matches the first
	// individual the evolution strategy will generate from the same seed.
	initialCost := problem.Eval(initialGuess(job.Config.Seed, lower, upper))

	jm.UpdateJob(jobID, func(j *Job) {
		j.InitialCost = initialCost
	})

	// Every objective call flows through the tracker so progress events
	// and checkpoints see mid-run state.
	tracker := newBestTracker()
	eval := tracker.wrap(problem.Eval)

	// Open the per-generation trace when a data directory is configured
	var trace *store.TraceWriter
	if deps.dataDir != "" {
		trace, err = store.NewTraceWriter(deps.dataDir, jobID, false)
		if err != nil {
			markJobFailed(jm, jobID, fmt.Errorf("failed to open trace: %w", err))
			return err
		}
		defer trace.Close()
	}

	optimizer, err := buildOptimizer(ctx, jm, tracker, trace, jobID, job.Config)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	// Check for cancellation before starting expensive operation
	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()

	// Start progress monitoring goroutine
	progressDone := make(chan struct{})
	go monitorProgress(ctx, jm, tracker, jobID, start, progressDone)

	// Start checkpoint monitoring goroutine if enabled
	checkpointDone := make(chan struct{})
	if deps.checkpoints != nil && job.Config.CheckpointInterval > 0 {
		go monitorCheckpoints(ctx, jm, deps.checkpoints, jobID, checkpointDone)
	}

	result, runErr := optimizer.Run(eval, lower, upper, dim)

	close(progressDone)
	close(checkpointDone)
	elapsed := time.Since(start)

	if trace != nil {
		if err := trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
		}
	}

	if runErr != nil {
		markJobFailed(jm, jobID, runErr)
		archiveRun(deps.runs, jm, jobID, archive.StatusFailed)
		return runErr
	}

	// The tracker counts every objective call, including those of
	// optimizers that do not report evaluation counts themselves.
	_, _, evaluations := tracker.snapshot()

	// A cancelled context ends the evolution strategy gracefully, so the
	// best-so-far result is still worth recording.
	if ctx.Err() != nil {
		jm.UpdateJob(jobID, func(j *Job) {
			j.BestParams = result.BestParams
			j.BestCost = result.BestCost
			j.Iterations = result.Iterations
			j.Evaluations = evaluations
		})
		markJobCancelled(jm, jobID)
		archiveRun(deps.runs, jm, jobID, archive.StatusCancelled)
		return ctx.Err()
	}

	// Update job with results
	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestParams = result.BestParams
		j.BestCost = result.BestCost
		j.Iterations = result.Iterations
		j.Evaluations = evaluations
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	// Final checkpoint so finished runs can seed future ones
	if deps.checkpoints != nil && job.Config.CheckpointInterval > 0 {
		if err := saveCheckpoint(jm, deps.checkpoints, jobID); err != nil {
			slog.Warn("Failed to save final checkpoint", "job_id", jobID, "error", err)
		}
	}

	eps := evalsPerSecond(evaluations, elapsed)

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"initial_cost", initialCost,
		"best_cost", result.BestCost,
		"iterations", result.Iterations,
		"evals_per_second", eps,
	)

	// Broadcast final completion event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:       jobID,
		State:       StateCompleted,
		Iterations:  result.Iterations,
		Evaluations: evaluations,
		BestCost:    result.BestCost,
		EPS:         eps,
		Timestamp:   time.Now(),
	})

	archiveRun(deps.runs, jm, jobID, archive.StatusCompleted)
	return nil
}

// buildOptimizer wires the configured optimizer. The evolution strategy
// reports per-generation progress into the job record and the trace, and
// polls the job context for cancellation; the mayfly library exposes no
// mid-run hooks, so its jobs report only through the evaluation tracker.
func buildOptimizer(ctx context.Context, jm *JobManager, tracker *bestTracker, trace *store.TraceWriter, jobID string, config JobConfig) (opt.Optimizer, error) {
	switch config.Optimizer {
	case optimizerES:
		return opt.NewES(opt.ESConfig{
			MaxIters:  config.Iters,
			Mu:        config.Mu,
			Rho:       config.Rho,
			Lambda:    config.Lambda,
			Selection: config.Selection,
			Workers:   config.Workers,
			Seed:      config.Seed,
			Progress: func(iter int, best float64) {
				params, cost, evals := tracker.snapshot()
				jm.UpdateJob(jobID, func(j *Job) {
					j.Iterations = iter
					j.BestCost = cost
					j.BestParams = params
					j.Evaluations = evals
				})
				if trace != nil {
					entry := store.TraceEntry{
						Iteration:   iter,
						Cost:        best,
						Evaluations: evals,
						Timestamp:   time.Now(),
					}
					if err := trace.Write(entry); err != nil {
						slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
					}
				}
			},
			Stop: func() bool {
				select {
				case <-ctx.Done():
					return true
				default:
					return false
				}
			},
		}), nil

	case optimizerMayfly:
		return opt.NewMayfly(config.Iters, config.PopSize, config.Seed), nil

	default:
		return nil, fmt.Errorf("unknown optimizer: %s", config.Optimizer)
	}
}

// monitorProgress periodically broadcasts progress events during optimization
func monitorProgress(ctx context.Context, jm *JobManager, tracker *bestTracker, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Get current job state
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			params, cost, evals := tracker.snapshot()

			// The mayfly path has no per-generation hook; refresh the job
			// from the evaluation tracker instead.
			if evals > 0 && job.Config.Optimizer == optimizerMayfly {
				jm.UpdateJob(jobID, func(j *Job) {
					j.BestCost = cost
					j.BestParams = params
					j.Evaluations = evals
				})
			}

			bestCost := job.BestCost
			if evals > 0 {
				bestCost = cost
			}

			// Broadcast progress event
			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:       jobID,
				State:       job.State,
				Iterations:  job.Iterations,
				Evaluations: evals,
				BestCost:    bestCost,
				EPS:         evalsPerSecond(evals, time.Since(startTime)),
				Timestamp:   time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}

// monitorCheckpoints periodically saves checkpoints during optimization
func monitorCheckpoints(ctx context.Context, jm *JobManager, checkpoints store.Store, jobID string, done chan struct{}) {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	interval := time.Duration(job.Config.CheckpointInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := saveCheckpoint(jm, checkpoints, jobID); err != nil {
				slog.Error("Failed to save checkpoint", "job_id", jobID, "error", err)
			}
		}
	}
}

// saveCheckpoint saves a checkpoint for the given job
func saveCheckpoint(jm *JobManager, checkpoints store.Store, jobID string) error {
	// Get current job state
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	// Skip if no best params yet
	if len(job.BestParams) == 0 {
		slog.Debug("Skipping checkpoint, no best params yet", "job_id", jobID)
		return nil
	}

	checkpoint := store.NewCheckpoint(
		jobID,
		job.BestParams,
		job.BestCost,
		job.InitialCost,
		job.Iterations,
		job.Evaluations,
		job.Config,
	)

	if err := checkpoints.SaveCheckpoint(jobID, checkpoint); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Checkpoint saved",
		"job_id", jobID,
		"iteration", job.Iterations,
		"best_cost", job.BestCost,
	)

	return nil
}

// archiveRun records a finished job in the run archive. The job's own
// context may already be cancelled, so the write gets a fresh one.
func archiveRun(runs archive.Archive, jm *JobManager, jobID string, status string) {
	if runs == nil {
		return
	}

	job, exists := jm.GetJob(jobID)
	if !exists {
		return
	}

	finishedAt := time.Now()
	if job.EndTime != nil {
		finishedAt = *job.EndTime
	}

	record := archive.RunRecord{
		ID:          job.ID,
		Problem:     job.Config.Problem,
		Dim:         job.Config.Dim,
		Optimizer:   job.Config.Optimizer,
		Status:      status,
		BestCost:    job.BestCost,
		InitialCost: job.InitialCost,
		BestParams:  job.BestParams,
		Iterations:  job.Iterations,
		Evaluations: job.Evaluations,
		Seed:        job.Config.Seed,
		StartedAt:   job.StartTime,
		FinishedAt:  finishedAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runs.SaveRun(ctx, record); err != nil {
		slog.Warn("Failed to archive run", "job_id", jobID, "error", err)
		return
	}

	slog.Debug("Run archived", "job_id", jobID, "status", status)
}

// initialGuess draws a uniform point from the search domain with the job's
// seed.
func initialGuess(seed int64, lower, upper []float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
	}
	return x
}
