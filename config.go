package evostrat

import (
	"fmt"
	"math/rand"
	"time"
)

// DefaultMaxIterations is the generation cap applied when Config.MaxIterations
// is left at zero.
const DefaultMaxIterations = 1000

// Selection determines how survivors are chosen at the end of a generation.
type Selection int

const (
	// Plus ranks parents and offspring together and keeps the best Mu.
	// Parents win exact fitness ties, so the best individual is never lost.
	Plus Selection = iota

	// Comma ranks offspring only and keeps the best Mu of them. No parent
	// survives regardless of fitness. Requires Mu < Lambda.
	Comma
)

func (s Selection) String() string {
	switch s {
	case Plus:
		return "plus"
	case Comma:
		return "comma"
	default:
		return fmt.Sprintf("selection(%d)", int(s))
	}
}

// ParseSelection converts a selection name ("plus" or "comma") to a Selection.
func ParseSelection(name string) (Selection, error) {
	switch name {
	case "plus":
		return Plus, nil
	case "comma":
		return Comma, nil
	default:
		return 0, &ConfigError{Field: "Selection", Reason: fmt.Sprintf("unknown scheme %q (want plus or comma)", name)}
	}
}

// Extremum selects the optimization direction.
type Extremum int

const (
	// Minimize treats lower fitness as better.
	Minimize Extremum = iota

	// Maximize treats higher fitness as better.
	Maximize
)

func (e Extremum) String() string {
	switch e {
	case Minimize:
		return "min"
	case Maximize:
		return "max"
	default:
		return fmt.Sprintf("extremum(%d)", int(e))
	}
}

// ParseExtremum converts a direction name ("min" or "max") to an Extremum.
func ParseExtremum(name string) (Extremum, error) {
	switch name {
	case "min":
		return Minimize, nil
	case "max":
		return Maximize, nil
	default:
		return 0, &ConfigError{Field: "Extremum", Reason: fmt.Sprintf("unknown direction %q (want min or max)", name)}
	}
}

// Config parameterizes one optimization run. T is the individual type and S
// the strategy type; the engine never inspects either, it only threads them
// through the configured operators.
//
// The zero value is usable for simple runs: all operators default to the
// identity-style behavior documented per field, Mu defaults to the size of
// the initial population, Rho to Mu, Lambda to 1, selection to Plus and the
// direction to Minimize.
type Config[T, S any] struct {
	// InitStrategy is assigned to every population slot before the first
	// generation. The value is shared by assignment; strategy-mutation
	// operators that modify state in place must be paired with a
	// StrategyRecombination that copies.
	InitStrategy S

	// Recombination builds one offspring individual from the selected
	// parents. Default: an independent copy of the first parent, obtained
	// through Clone. The result must not alias parent storage.
	Recombination func(parents []T) T

	// StrategyRecombination builds the offspring strategy from the selected
	// parents' strategies. Default: the first parent's strategy unchanged.
	StrategyRecombination func(parents []S) S

	// Mutation derives the final offspring individual from the recombinant,
	// parameterized by the already-mutated strategy. Default: identity.
	Mutation func(individual T, strategy S) T

	// StrategyMutation derives the offspring strategy from the recombinant
	// strategy, before the individual is mutated. Default: identity.
	StrategyMutation func(strategy S) S

	// Termination is evaluated once per generation on the best surviving
	// strategy; returning true stops the run. Default: never.
	Termination func(best S) bool

	// Clone produces an independent copy of an individual. It backs the
	// default Recombination. Default: value assignment, which is sufficient
	// for plain value types; slice-backed individuals should supply
	// CloneVector or a custom Recombination.
	Clone func(T) T

	// Mu is the parent population size. Default: size of the initial
	// population. A larger initial population is truncated to the first Mu
	// individuals; a smaller one is a configuration error.
	Mu int

	// Rho is the number of parents recombined per offspring. Default: Mu.
	Rho int

	// Lambda is the number of offspring generated per generation. Default: 1.
	Lambda int

	// Selection is the survivor scheme. Default: Plus.
	Selection Selection

	// Extremum is the optimization direction. Default: Minimize.
	Extremum Extremum

	// MaxIterations caps the number of generations. Default:
	// DefaultMaxIterations.
	MaxIterations int

	// Interim enables per-generation History capture under the KeyFitness
	// and KeyOffspringFitness metrics.
	Interim bool

	// Workers bounds the number of goroutines used to evaluate fitness
	// within one generation. Values below 2 keep evaluation on the calling
	// goroutine. Offspring construction is never parallelized, so a seeded
	// Rand yields identical runs for any Workers value.
	Workers int

	// Rand is the randomness source for parent sampling; operators built by
	// this package take their own source. Default: time-seeded.
	Rand *rand.Rand

	// InitialFitness opts out of the initial population evaluation. When
	// set it must provide at least Mu values, matching the initial
	// individuals by index.
	InitialFitness []float64

	// Progress, when set, is called after every completed generation with
	// the generation count and the best fitness so far.
	Progress func(generation int, best float64)
}

// Result carries the outcome of an optimization run.
type Result[T, S any] struct {
	// Best is the best individual found (index 0 of the final population).
	Best T

	// BestFitness is the objective value of Best.
	BestFitness float64

	// BestStrategy is the strategy associated with Best.
	BestStrategy S

	// Generations is the number of completed generations.
	Generations int

	// Evaluations is the total number of objective-function calls.
	Evaluations int

	// History holds per-generation snapshots when Interim was enabled,
	// otherwise it is empty. Never nil.
	History *History
}

// withDefaults resolves zero-valued options against the supplied initial
// population size.
func (c Config[T, S]) withDefaults(populationSize int) Config[T, S] {
	if c.Mu == 0 {
		c.Mu = populationSize
	}
	if c.Rho == 0 {
		c.Rho = c.Mu
	}
	if c.Lambda == 0 {
		c.Lambda = 1
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Clone == nil {
		c.Clone = func(individual T) T { return individual }
	}
	if c.Recombination == nil {
		clone := c.Clone
		c.Recombination = func(parents []T) T { return clone(parents[0]) }
	}
	if c.StrategyRecombination == nil {
		c.StrategyRecombination = func(parents []S) S { return parents[0] }
	}
	if c.Mutation == nil {
		c.Mutation = func(individual T, _ S) T { return individual }
	}
	if c.StrategyMutation == nil {
		c.StrategyMutation = func(strategy S) S { return strategy }
	}
	if c.Termination == nil {
		c.Termination = func(S) bool { return false }
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// validate checks every precondition. It runs after withDefaults and before
// any objective-function call.
func (c Config[T, S]) validate(populationSize int) error {
	if c.Mu < 1 {
		return &ConfigError{Field: "Mu", Reason: "must be at least 1"}
	}
	if populationSize < c.Mu {
		return &ConfigError{Field: "Mu", Reason: fmt.Sprintf("initial population has %d individuals, need at least %d", populationSize, c.Mu)}
	}
	if c.Rho < 1 {
		return &ConfigError{Field: "Rho", Reason: "must be at least 1"}
	}
	if c.Rho > c.Mu {
		return &ConfigError{Field: "Rho", Reason: fmt.Sprintf("recombination pool %d cannot exceed parent count %d", c.Rho, c.Mu)}
	}
	if c.Lambda < 1 {
		return &ConfigError{Field: "Lambda", Reason: "must be at least 1"}
	}
	switch c.Selection {
	case Plus, Comma:
	default:
		return &ConfigError{Field: "Selection", Reason: fmt.Sprintf("unknown scheme %d", int(c.Selection))}
	}
	if c.Selection == Comma && c.Mu >= c.Lambda {
		return &ConfigError{Field: "Selection", Reason: fmt.Sprintf("comma selection requires Mu < Lambda, got Mu=%d Lambda=%d", c.Mu, c.Lambda)}
	}
	switch c.Extremum {
	case Minimize, Maximize:
	default:
		return &ConfigError{Field: "Extremum", Reason: fmt.Sprintf("unknown direction %d", int(c.Extremum))}
	}
	if c.MaxIterations < 0 {
		return &ConfigError{Field: "MaxIterations", Reason: "must not be negative"}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "Workers", Reason: "must not be negative"}
	}
	if c.InitialFitness != nil && len(c.InitialFitness) < c.Mu {
		return &ConfigError{Field: "InitialFitness", Reason: fmt.Sprintf("has %d values, need at least Mu=%d", len(c.InitialFitness), c.Mu)}
	}
	return nil
}
