package store

import (
	"fmt"
	"math"
	"time"
)

// JobConfig holds configuration for an optimization job (checkpoint copy).
// This avoids import cycles with server package.
type JobConfig struct {
	Problem            string `json:"problem"`
	Dim                int    `json:"dim"`
	Optimizer          string `json:"optimizer"` // es, mayfly
	Iters              int    `json:"iters"`
	Mu                 int    `json:"mu,omitempty"`
	Rho                int    `json:"rho,omitempty"`
	Lambda             int    `json:"lambda,omitempty"`
	Selection          string `json:"selection,omitempty"` // plus, comma
	PopSize            int    `json:"popSize,omitempty"`   // mayfly population size
	Seed               int64  `json:"seed"`
	Workers            int    `json:"workers,omitempty"`
	CheckpointInterval int    `json:"checkpointInterval,omitempty"` // Checkpoint every N seconds (0 = disabled)
}

// Checkpoint represents a saved optimization state that can be resumed later.
// All fields are serialized to JSON for persistence.
//
// Optimizer State Handling:
//
// The checkpoint saves the BEST PARAMETERS found so far, but does NOT save
// the internal optimizer state (population, step sizes, etc.). This design
// choice has important implications for resumption:
//
// SAVED STATE:
//   - BestParams: The parameter vector that achieved the lowest cost
//   - BestCost: The cost value achieved by BestParams
//   - InitialCost: Starting cost for improvement tracking
//   - Iteration: How many generations have been completed
//   - Evaluations: How many objective calls have been spent
//   - Config: Job configuration (problem, dimension, optimizer, etc.)
//
// REINITIALIZED ON RESUME:
//   - Population: Reseeded from BestParams plus random scaled variations
//   - Step sizes and other adaptive state: Reset to their initial values
//   - Random seed: Can be set to same value for reproducibility
//
// RESUME STRATEGY:
// When resuming, the optimizer is restarted with a fresh population, but we can:
//  1. Seed the population with the best parameters + random variations
//  2. Continue iteration count from checkpoint (or reset to 0)
//  3. Use the same random seed if deterministic behavior is desired
//
// IMPLICATIONS:
//   - Resume is not a perfect continuation - there will be some divergence
//   - The best cost should never get worse (we keep best params)
//   - Step-size adaptation restarts, so convergence speed may differ
//   - For most use cases, this is acceptable and keeps implementation simple
//
// ALTERNATIVES NOT IMPLEMENTED:
//   - Saving full population would require optimizer-specific serialization
//   - Different optimizers have different internal state structures
//   - Would significantly increase checkpoint size
//   - Would tie checkpoint format to specific optimizer implementations
type Checkpoint struct {
	// JobID is the unique identifier for this optimization job
	JobID string `json:"jobId"`

	// BestParams contains the parameter vector (one value per problem
	// dimension) that produced the best (lowest) cost so far
	BestParams []float64 `json:"bestParams"`

	// BestCost is the cost value achieved by BestParams.
	// May be negative for problems like eggholder.
	BestCost float64 `json:"bestCost"`

	// InitialCost is the starting cost (first generation) for tracking improvement
	InitialCost float64 `json:"initialCost"`

	// Iteration is the current generation count when this checkpoint was created
	Iteration int `json:"iteration"`

	// Evaluations is the cumulative objective call count at checkpoint time
	Evaluations int `json:"evaluations,omitempty"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation during resume.
	// We ensure that resumed jobs use compatible settings (same problem, etc.)
	Config JobConfig `json:"config"`
}

// CheckpointInfo contains metadata about a checkpoint without the full parameter data.
// Used for listing checkpoints efficiently without loading large parameter arrays.
type CheckpointInfo struct {
	// JobID is the unique identifier for this checkpoint
	JobID string `json:"jobId"`

	// BestCost is the cost achieved at the time of checkpointing
	BestCost float64 `json:"bestCost"`

	// Iteration is the generation count at checkpoint time
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created
	Timestamp time.Time `json:"timestamp"`

	// Problem is the benchmark problem name
	Problem string `json:"problem"`

	// Dim is the problem dimension being optimized
	Dim int `json:"dim"`

	// Optimizer is the algorithm used (es, mayfly)
	Optimizer string `json:"optimizer"`
}

// NewCheckpoint creates a checkpoint from job state.
// This is a helper for converting runtime job state to a persistable checkpoint.
func NewCheckpoint(jobID string, bestParams []float64, bestCost, initialCost float64, iteration, evaluations int, config JobConfig) *Checkpoint {
	return &Checkpoint{
		JobID:       jobID,
		BestParams:  bestParams,
		BestCost:    bestCost,
		InitialCost: initialCost,
		Iteration:   iteration,
		Evaluations: evaluations,
		Timestamp:   time.Now(),
		Config:      config,
	}
}

// ToInfo converts a full Checkpoint to CheckpointInfo (metadata only).
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		BestCost:  c.BestCost,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Problem:   c.Config.Problem,
		Dim:       c.Config.Dim,
		Optimizer: c.Config.Optimizer,
	}
}

// Validate checks if the checkpoint has valid data.
// Returns an error if any required field is missing or invalid.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if c.BestParams == nil {
		return &ValidationError{Field: "BestParams", Reason: "cannot be nil"}
	}
	if len(c.BestParams) == 0 {
		return &ValidationError{Field: "BestParams", Reason: "cannot be empty"}
	}
	// Costs may legitimately be negative (eggholder), but NaN means the
	// objective broke somewhere and the checkpoint is useless for resume.
	if math.IsNaN(c.BestCost) {
		return &ValidationError{Field: "BestCost", Reason: "cannot be NaN"}
	}
	if math.IsNaN(c.InitialCost) {
		return &ValidationError{Field: "InitialCost", Reason: "cannot be NaN"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Evaluations < 0 {
		return &ValidationError{Field: "Evaluations", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if c.Config.Dim <= 0 {
		return &ValidationError{Field: "Config.Dim", Reason: "must be positive"}
	}
	if c.Config.Optimizer == "" {
		return &ValidationError{Field: "Config.Optimizer", Reason: "cannot be empty"}
	}
	if c.Config.Iters <= 0 {
		return &ValidationError{Field: "Config.Iters", Reason: "must be positive"}
	}
	// Verify BestParams length matches the problem dimension
	if len(c.BestParams) != c.Config.Dim {
		return &ValidationError{
			Field:  "BestParams",
			Reason: fmt.Sprintf("length mismatch: got %d params for dimension %d", len(c.BestParams), c.Config.Dim),
		}
	}
	return nil
}

// ValidationError represents a checkpoint validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this checkpoint can be resumed with the given config.
// Returns an error if the configs are incompatible. Population shape (mu,
// lambda, selection) may change between runs; the problem itself may not.
func (c *Checkpoint) IsCompatible(config JobConfig) error {
	if c.Config.Problem != config.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: c.Config.Problem,
			Actual:   config.Problem,
		}
	}
	if c.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", c.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
		}
	}
	if c.Config.Optimizer != config.Optimizer {
		return &CompatibilityError{
			Field:    "Optimizer",
			Expected: c.Config.Optimizer,
			Actual:   config.Optimizer,
		}
	}
	return nil
}

// CompatibilityError represents a checkpoint compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
