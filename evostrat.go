// Package evostrat implements the (mu/rho +, lambda) and (mu/rho, lambda)
// evolution strategies: population-based stochastic optimizers that pair
// every candidate solution with self-adapting mutation-control parameters.
//
// The engine is generic over the individual type T and the strategy type S
// and never inspects either; recombination, mutation, strategy adaptation
// and termination are plain function values supplied through Config. Each
// generation draws rho parents per offspring, recombines strategy and
// individual, mutates the strategy first and the individual under the
// mutated strategy, evaluates the objective, and keeps the best Mu survivors
// under plus (elitist) or comma (offspring-only) selection.
//
// A minimal run over real vectors:
//
//	rng := rand.New(rand.NewSource(1))
//	initial, _ := evostrat.SeedPopulation([]float64{1, 1, 1}, 20, rng)
//	result, err := evostrat.Optimize(sphere, initial, evostrat.Config[[]float64, []float64]{
//		InitStrategy:     []float64{0.1, 0.1, 0.1},
//		Recombination:    evostrat.IntermediateRecombination[float64](),
//		Mutation:         evostrat.GaussianMutation[float64](rng),
//		StrategyMutation: evostrat.LogNormalAdaptation(3, 1e-12, rng),
//		Lambda:           40,
//		Rand:             rng,
//	})
package evostrat

import (
	"sort"

	"github.com/sourcegraph/conc/pool"
)

// Optimize runs the evolution strategy defined by cfg against the objective,
// starting from the supplied initial population, and returns the best
// individual found together with its fitness, the number of completed
// generations and the interim history.
//
// All configuration preconditions are checked before the first objective
// call; violations return a *ConfigError and nothing is evaluated. Failures
// inside caller-supplied callables are not caught or retried.
func Optimize[T, S any](objective func(T) float64, initial []T, cfg Config[T, S]) (*Result[T, S], error) {
	if objective == nil {
		return nil, &ConfigError{Field: "objective", Reason: "must not be nil"}
	}
	if len(initial) == 0 {
		return nil, &ConfigError{Field: "initial", Reason: "population must not be empty"}
	}
	cfg = cfg.withDefaults(len(initial))
	if err := cfg.validate(len(initial)); err != nil {
		return nil, err
	}

	e := newEngine(objective, initial, cfg)
	e.init()

	history := NewHistory()
	generations := 0
	for generations < cfg.MaxIterations {
		e.generation()
		generations++
		if cfg.Interim {
			history.Append(KeyFitness, e.fitness)
			history.Append(KeyOffspringFitness, e.offFitness)
		}
		if cfg.Progress != nil {
			cfg.Progress(generations, e.fitness[0])
		}
		if cfg.Termination(e.strategies[0]) {
			break
		}
	}

	return &Result[T, S]{
		Best:         e.individuals[0],
		BestFitness:  e.fitness[0],
		BestStrategy: e.strategies[0],
		Generations:  generations,
		Evaluations:  e.evaluations,
		History:      history,
	}, nil
}

// engine holds the per-run state. The parent population is kept
// fitness-ordered (index 0 best) from initialization onward; selection
// maintains the order by construction. All buffers are allocated once in
// newEngine and reused across generations.
type engine[T, S any] struct {
	cfg       Config[T, S]
	objective func(T) float64
	better    func(a, b float64) bool // strict comparison in the configured direction

	// parent population, three parallel slices of length Mu
	individuals []T
	strategies  []S
	fitness     []float64

	// scratch population written by selection, then swapped in
	nextIndividuals []T
	nextStrategies  []S
	nextFitness     []float64

	// offspring buffers, length Lambda, rebuilt every generation
	offIndividuals []T
	offStrategies  []S
	offFitness     []float64
	offOrder       []int // offspring indices in fitness order

	idx      []int // scratch for parent sampling and the initial sort
	parentsT []T   // gathered parent individuals, length Rho
	parentsS []S   // gathered parent strategies, length Rho

	evaluations int
}

func newEngine[T, S any](objective func(T) float64, initial []T, cfg Config[T, S]) *engine[T, S] {
	e := &engine[T, S]{
		cfg:       cfg,
		objective: objective,
	}
	if cfg.Extremum == Maximize {
		e.better = func(a, b float64) bool { return a > b }
	} else {
		e.better = func(a, b float64) bool { return a < b }
	}

	e.individuals = make([]T, cfg.Mu)
	copy(e.individuals, initial) // truncates a larger initial population
	e.strategies = make([]S, cfg.Mu)
	for i := range e.strategies {
		e.strategies[i] = cfg.InitStrategy
	}
	e.fitness = make([]float64, cfg.Mu)

	e.nextIndividuals = make([]T, cfg.Mu)
	e.nextStrategies = make([]S, cfg.Mu)
	e.nextFitness = make([]float64, cfg.Mu)

	e.offIndividuals = make([]T, cfg.Lambda)
	e.offStrategies = make([]S, cfg.Lambda)
	e.offFitness = make([]float64, cfg.Lambda)
	e.offOrder = make([]int, cfg.Lambda)

	e.idx = make([]int, cfg.Mu)
	e.parentsT = make([]T, cfg.Rho)
	e.parentsS = make([]S, cfg.Rho)
	return e
}

// init populates the initial fitness values and establishes the
// fitness-ordered population invariant.
func (e *engine[T, S]) init() {
	if e.cfg.InitialFitness != nil {
		copy(e.fitness, e.cfg.InitialFitness)
	} else {
		e.evaluate(e.fitness, e.individuals)
	}
	e.sortPopulation()
}

// generation runs one complete cycle: offspring construction, evaluation and
// survivor selection.
func (e *engine[T, S]) generation() {
	for i := range e.offIndividuals {
		parents := e.sampleParents()
		for j, p := range parents {
			e.parentsT[j] = e.individuals[p]
			e.parentsS[j] = e.strategies[p]
		}
		// Strategy first: the mutated strategy controls the individual
		// mutation. That ordering is what makes step sizes self-adapt.
		strategy := e.cfg.StrategyRecombination(e.parentsS[:len(parents)])
		recombinant := e.cfg.Recombination(e.parentsT[:len(parents)])
		strategy = e.cfg.StrategyMutation(strategy)
		e.offStrategies[i] = strategy
		e.offIndividuals[i] = e.cfg.Mutation(recombinant, strategy)
	}

	e.evaluate(e.offFitness, e.offIndividuals)
	e.sortOffspring()

	if e.cfg.Selection == Comma {
		e.selectComma()
	} else {
		e.selectPlus()
	}
}

// sampleParents picks Rho distinct parent indices uniformly at random and
// returns them in selection order. The returned slice is valid until the
// next call.
func (e *engine[T, S]) sampleParents() []int {
	mu, rho := e.cfg.Mu, e.cfg.Rho
	if rho == 1 {
		e.idx[0] = e.cfg.Rand.Intn(mu)
		return e.idx[:1]
	}
	for i := range e.idx {
		e.idx[i] = i
	}
	// Partial Fisher-Yates: only the first rho positions are needed.
	for i := 0; i < rho; i++ {
		j := i + e.cfg.Rand.Intn(mu-i)
		e.idx[i], e.idx[j] = e.idx[j], e.idx[i]
	}
	return e.idx[:rho]
}

// evaluate fills fitness[i] with objective(individuals[i]). With Workers > 1
// the calls run on a bounded goroutine pool; each goroutine writes only its
// own index, so results are deterministic regardless of scheduling.
func (e *engine[T, S]) evaluate(fitness []float64, individuals []T) {
	if e.cfg.Workers > 1 {
		p := pool.New().WithMaxGoroutines(e.cfg.Workers)
		for i := range individuals {
			p.Go(func() {
				fitness[i] = e.objective(individuals[i])
			})
		}
		p.Wait()
	} else {
		for i := range individuals {
			fitness[i] = e.objective(individuals[i])
		}
	}
	e.evaluations += len(individuals)
}

// sortOffspring orders offOrder so that offspring are ranked best first.
// The sort is stable, so equal-fitness offspring keep construction order.
func (e *engine[T, S]) sortOffspring() {
	for i := range e.offOrder {
		e.offOrder[i] = i
	}
	sort.SliceStable(e.offOrder, func(a, b int) bool {
		return e.better(e.offFitness[e.offOrder[a]], e.offFitness[e.offOrder[b]])
	})
}

// selectPlus merges the fitness-ordered parents with the ranked offspring
// and keeps the best Mu. Offspring displace a parent only when strictly
// better, so parents win exact fitness ties and the best individual is never
// lost. Surviving triples are copied as-is; nothing is re-evaluated.
func (e *engine[T, S]) selectPlus() {
	pi, oi := 0, 0
	for k := range e.nextFitness {
		o := -1
		if oi < len(e.offOrder) {
			o = e.offOrder[oi]
		}
		if o >= 0 && e.better(e.offFitness[o], e.fitness[pi]) {
			e.nextIndividuals[k] = e.offIndividuals[o]
			e.nextStrategies[k] = e.offStrategies[o]
			e.nextFitness[k] = e.offFitness[o]
			oi++
		} else {
			e.nextIndividuals[k] = e.individuals[pi]
			e.nextStrategies[k] = e.strategies[pi]
			e.nextFitness[k] = e.fitness[pi]
			pi++
		}
	}
	e.swap()
}

// selectComma replaces the whole parent population with the best Mu
// offspring. Validation guarantees Mu < Lambda.
func (e *engine[T, S]) selectComma() {
	for k := range e.nextFitness {
		o := e.offOrder[k]
		e.nextIndividuals[k] = e.offIndividuals[o]
		e.nextStrategies[k] = e.offStrategies[o]
		e.nextFitness[k] = e.offFitness[o]
	}
	e.swap()
}

// sortPopulation establishes the fitness order of the parent population.
// Only used at initialization; selection keeps the order afterwards.
func (e *engine[T, S]) sortPopulation() {
	for i := range e.idx {
		e.idx[i] = i
	}
	sort.SliceStable(e.idx, func(a, b int) bool {
		return e.better(e.fitness[e.idx[a]], e.fitness[e.idx[b]])
	})
	for k, p := range e.idx {
		e.nextIndividuals[k] = e.individuals[p]
		e.nextStrategies[k] = e.strategies[p]
		e.nextFitness[k] = e.fitness[p]
	}
	e.swap()
}

// swap promotes the scratch population buffers; the displaced slices become
// the next generation's scratch.
func (e *engine[T, S]) swap() {
	e.individuals, e.nextIndividuals = e.nextIndividuals, e.individuals
	e.strategies, e.nextStrategies = e.nextStrategies, e.strategies
	e.fitness, e.nextFitness = e.nextFitness, e.fitness
}
