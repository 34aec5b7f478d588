package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/evostrat/internal/bench"
	"github.com/cwbudde/evostrat/internal/opt"
	"github.com/cwbudde/evostrat/internal/store"
)

var (
	resumeDataDir string
	resumeIters   int
	resumeSeed    int64
	resumeTrace   bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume an optimization from a checkpoint",
	Long: `Continues an optimization from a saved checkpoint. The population is
reseeded around the checkpointed best parameters, so the best cost can
only improve; adaptive step sizes restart from their initial values.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	resumeCmd.Flags().StringVar(&resumeDataDir, "data-dir", "./data", "Base directory for checkpoint storage")
	resumeCmd.Flags().IntVar(&resumeIters, "iters", 0, "Additional iterations (0 = checkpoint's configured count)")
	resumeCmd.Flags().Int64Var(&resumeSeed, "seed", 0, "Random seed for the resumed run (0 = from clock)")
	resumeCmd.Flags().BoolVar(&resumeTrace, "trace", false, "Append to the job's trace.jsonl")

	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	jobID := args[0]

	checkpoints, err := store.NewFSStore(resumeDataDir)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	checkpoint, err := checkpoints.LoadCheckpoint(jobID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := checkpoint.Validate(); err != nil {
		return fmt.Errorf("checkpoint is not resumable: %w", err)
	}
	if checkpoint.Config.Optimizer != "es" {
		return fmt.Errorf("resume supports the es optimizer, checkpoint used %s", checkpoint.Config.Optimizer)
	}

	jobConfig := checkpoint.Config
	problem, err := bench.New(jobConfig.Problem, jobConfig.Dim)
	if err != nil {
		return fmt.Errorf("failed to resolve problem: %w", err)
	}
	lower, upper := problem.Bounds()
	dim := problem.Dim()

	// Guards against the problem registry having changed shape since the
	// checkpoint was written.
	current := jobConfig
	current.Dim = dim
	if err := checkpoint.IsCompatible(current); err != nil {
		return fmt.Errorf("checkpoint incompatible: %w", err)
	}

	addIters := resumeIters
	if addIters <= 0 {
		addIters = jobConfig.Iters
	}
	runSeed := resumeSeed
	if runSeed == 0 {
		runSeed = time.Now().UnixNano()
	}

	slog.Info("Resuming optimization",
		"job_id", jobID,
		"problem", problem.Name(),
		"dim", dim,
		"from_iteration", checkpoint.Iteration,
		"from_cost", checkpoint.BestCost,
		"iters", addIters,
		"seed", runSeed,
	)

	var trace *store.TraceWriter
	if resumeTrace {
		trace, err = store.NewTraceWriter(resumeDataDir, jobID, true)
		if err != nil {
			return fmt.Errorf("failed to open trace: %w", err)
		}
		defer trace.Close()
	}

	progress := func(iter int, best float64) {
		if trace == nil {
			return
		}
		entry := store.TraceEntry{
			Iteration: checkpoint.Iteration + iter,
			Cost:      best,
			Timestamp: time.Now(),
		}
		if err := trace.Write(entry); err != nil {
			slog.Warn("Failed to write trace entry", "job_id", jobID, "error", err)
		}
	}

	optimizer := opt.NewES(opt.ESConfig{
		MaxIters:      addIters,
		Mu:            jobConfig.Mu,
		Rho:           jobConfig.Rho,
		Lambda:        jobConfig.Lambda,
		Selection:     jobConfig.Selection,
		Workers:       jobConfig.Workers,
		Seed:          runSeed,
		InitialParams: checkpoint.BestParams,
		Progress:      progress,
	})

	start := time.Now()
	result, err := optimizer.Run(problem.Eval, lower, upper, dim)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	if trace != nil {
		if err := trace.Flush(); err != nil {
			slog.Warn("Failed to flush trace", "job_id", jobID, "error", err)
		}
	}

	// Iteration and evaluation counts accumulate across resumes.
	updated := store.NewCheckpoint(jobID, result.BestParams, result.BestCost,
		checkpoint.InitialCost,
		checkpoint.Iteration+result.Iterations,
		checkpoint.Evaluations+result.Evaluations,
		jobConfig)
	if err := checkpoints.SaveCheckpoint(jobID, updated); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Info("Resume complete",
		"job_id", jobID,
		"elapsed", elapsed,
		"best_cost", result.BestCost,
		"previous_cost", checkpoint.BestCost,
		"total_iterations", updated.Iteration,
	)

	fmt.Printf("Resumed %s: cost %.6f -> %.6f after %d more iterations (%d total)\n",
		jobID, checkpoint.BestCost, result.BestCost, result.Iterations, updated.Iteration)

	return nil
}
