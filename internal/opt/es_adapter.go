package opt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/evostrat"
)

// ESConfig parameterizes the evolution-strategy optimizer.
type ESConfig struct {
	// MaxIters caps the number of generations.
	MaxIters int

	// Mu is the parent population size.
	Mu int

	// Rho is the recombination pool size; 0 selects Mu.
	Rho int

	// Lambda is the offspring count per generation; 0 selects 7*Mu.
	Lambda int

	// Selection is "plus" (default) or "comma".
	Selection string

	// Workers bounds parallel objective evaluation; values below 2 run
	// serially.
	Workers int

	// Seed makes runs reproducible.
	Seed int64

	// SigmaFrac sets the initial mutation step size per dimension as a
	// fraction of the bound range; 0 selects 0.1.
	SigmaFrac float64

	// SigmaTol stops the run once every step size falls below it
	// (0 disables the check).
	SigmaTol float64

	// Convergence configures stagnation-based early stopping.
	Convergence ConvergenceConfig

	// InitialParams seeds the population around a known-good parameter
	// vector instead of sampling uniformly; used when resuming.
	InitialParams []float64

	// Progress, when set, is called after every generation with the
	// generation count and best cost so far.
	Progress func(iter int, best float64)

	// Stop is polled once per generation; returning true ends the run
	// gracefully with the best result so far. Used for job cancellation.
	Stop func() bool
}

// ESAdapter runs the in-house evolution strategy behind the Optimizer
// interface.
type ESAdapter struct {
	cfg ESConfig
}

// NewES creates an evolution-strategy optimizer adapter
func NewES(cfg ESConfig) Optimizer {
	if cfg.MaxIters <= 0 {
		cfg.MaxIters = 500
	}
	if cfg.Mu <= 0 {
		cfg.Mu = 20
	}
	if cfg.Lambda <= 0 {
		cfg.Lambda = 7 * cfg.Mu
	}
	if cfg.SigmaFrac <= 0 {
		cfg.SigmaFrac = 0.1
	}
	return &ESAdapter{cfg: cfg}
}

// Run executes the evolution strategy on the bounded problem.
func (a *ESAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) (*Result, error) {
	selection := evostrat.Plus
	if a.cfg.Selection != "" {
		var err error
		selection, err = evostrat.ParseSelection(a.cfg.Selection)
		if err != nil {
			return nil, fmt.Errorf("es optimizer: %w", err)
		}
	}

	rng := rand.New(rand.NewSource(a.cfg.Seed))
	initial, err := a.initialPopulation(rng, lower, upper, dim)
	if err != nil {
		return nil, fmt.Errorf("es optimizer: %w", err)
	}

	sigmas := make([]float64, dim)
	for i := range sigmas {
		sigmas[i] = (upper[i] - lower[i]) * a.cfg.SigmaFrac
	}

	gaussian := evostrat.GaussianMutation[float64](rng)
	mutate := func(x []float64, step []float64) []float64 {
		y := gaussian(x, step)
		clampVector(y, lower, upper)
		return y
	}

	tracker := NewConvergenceTracker(a.cfg.Convergence)
	converged := false
	progress := func(iter int, best float64) {
		if tracker.Update(best) {
			converged = true
		}
		if a.cfg.Progress != nil {
			a.cfg.Progress(iter, best)
		}
	}

	terminate := func(step []float64) bool {
		if converged {
			return true
		}
		if a.cfg.Stop != nil && a.cfg.Stop() {
			return true
		}
		if a.cfg.SigmaTol > 0 && maxAbs(step) < a.cfg.SigmaTol {
			return true
		}
		return false
	}

	result, err := evostrat.Optimize(eval, initial, evostrat.Config[[]float64, []float64]{
		InitStrategy:          sigmas,
		Recombination:         evostrat.IntermediateRecombination[float64](),
		StrategyRecombination: evostrat.IntermediateRecombination[float64](),
		Mutation:              mutate,
		StrategyMutation:      evostrat.LogNormalAdaptation(dim, 1e-12, rng),
		Termination:           terminate,
		Clone:                 evostrat.CloneVector[float64],
		Mu:                    a.cfg.Mu,
		Rho:                   a.cfg.Rho,
		Lambda:                a.cfg.Lambda,
		Selection:             selection,
		MaxIterations:         a.cfg.MaxIters,
		Workers:               a.cfg.Workers,
		Rand:                  rng,
		Progress:              progress,
	})
	if err != nil {
		return nil, fmt.Errorf("es optimizer: %w", err)
	}

	return &Result{
		BestParams:  result.Best,
		BestCost:    result.BestFitness,
		Iterations:  result.Generations,
		Evaluations: result.Evaluations,
	}, nil
}

// initialPopulation samples Mu individuals uniformly within the bounds, or
// scatters them around InitialParams when resuming from a checkpoint.
func (a *ESAdapter) initialPopulation(rng *rand.Rand, lower, upper []float64, dim int) ([][]float64, error) {
	if a.cfg.InitialParams != nil {
		if len(a.cfg.InitialParams) != dim {
			return nil, fmt.Errorf("initial params have %d values, problem has %d dimensions", len(a.cfg.InitialParams), dim)
		}
		population, err := evostrat.SeedPopulation(a.cfg.InitialParams, a.cfg.Mu, rng)
		if err != nil {
			return nil, err
		}
		// Keep one exact copy so the resumed best is never lost.
		population[0] = evostrat.CloneVector(a.cfg.InitialParams)
		for _, individual := range population {
			clampVector(individual, lower, upper)
		}
		return population, nil
	}

	return evostrat.GeneratePopulation(dim, a.cfg.Mu, func(n int) []float64 {
		x := make([]float64, n)
		for i := range x {
			x[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
		}
		return x
	})
}

// clampVector clips every coordinate into [lower, upper] in place.
func clampVector(x, lower, upper []float64) {
	for i := range x {
		if x[i] < lower[i] {
			x[i] = lower[i]
		} else if x[i] > upper[i] {
			x[i] = upper[i]
		}
	}
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
