package opt

// Result carries the outcome of one optimizer run.
type Result struct {
	// BestParams is the best parameter vector found.
	BestParams []float64

	// BestCost is the objective value of BestParams.
	BestCost float64

	// Iterations is the number of iterations (generations) executed.
	Iterations int

	// Evaluations is the number of objective calls, when the algorithm
	// reports it (0 otherwise).
	Evaluations int
}

// Optimizer defines an optimization algorithm interface
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns the best parameters found together with run statistics.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) (*Result, error)
}
