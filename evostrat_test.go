package evostrat

import (
	"errors"
	"math/rand"
	"testing"
)

// Sphere function: f(x) = sum(x_i^2), minimum at origin
func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

func TestInvalidConfigRunsNoEvaluation(t *testing.T) {
	tests := []struct {
		name    string
		initial []float64
		cfg     Config[float64, int]
	}{
		{
			name:    "rho exceeds mu",
			initial: []float64{1, 2, 3},
			cfg:     Config[float64, int]{Rho: 4},
		},
		{
			name:    "comma requires mu below lambda",
			initial: []float64{1, 2, 3},
			cfg:     Config[float64, int]{Selection: Comma, Lambda: 2},
		},
		{
			name:    "initial population smaller than mu",
			initial: []float64{1, 2},
			cfg:     Config[float64, int]{Mu: 5},
		},
		{
			name:    "negative workers",
			initial: []float64{1, 2},
			cfg:     Config[float64, int]{Workers: -1},
		},
		{
			name:    "short initial fitness",
			initial: []float64{1, 2, 3},
			cfg:     Config[float64, int]{InitialFitness: []float64{1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			objective := func(x float64) float64 {
				calls++
				return x
			}

			_, err := Optimize(objective, tt.initial, tt.cfg)
			if err == nil {
				t.Fatal("Expected configuration error, got nil")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if calls != 0 {
				t.Errorf("Objective was called %d times on invalid config", calls)
			}
		})
	}
}

func TestNilObjectiveRejected(t *testing.T) {
	_, err := Optimize[float64, int](nil, []float64{1}, Config[float64, int]{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestEmptyInitialPopulationRejected(t *testing.T) {
	objective := func(x float64) float64 { return x }
	_, err := Optimize(objective, nil, Config[float64, int]{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestDefaultsResolveFromInitialPopulation(t *testing.T) {
	objective := func(x float64) float64 { return x }
	rng := rand.New(rand.NewSource(1))

	result, err := Optimize(objective, []float64{3, 1, 2}, Config[float64, int]{
		MaxIterations: 1,
		Rand:          rng,
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	// Mu defaults to 3, Lambda to 1. With identity operators every
	// offspring duplicates an existing parent, so the initial best wins.
	if result.Best != 1 {
		t.Errorf("Expected best individual 1, got %v", result.Best)
	}
	if result.BestFitness != 1 {
		t.Errorf("Expected best fitness 1, got %v", result.BestFitness)
	}
	if result.Generations != 1 {
		t.Errorf("Expected 1 generation, got %d", result.Generations)
	}
	if result.Evaluations != 3+1 {
		t.Errorf("Expected 4 evaluations, got %d", result.Evaluations)
	}
}

func TestPlusSelectionMonotonicImprovement(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	initial, err := SeedPopulation([]float64{5, 5, 5}, 6, rng)
	if err != nil {
		t.Fatalf("SeedPopulation failed: %v", err)
	}

	result, err := Optimize(sphere, initial, Config[[]float64, []float64]{
		InitStrategy:     []float64{0.5, 0.5, 0.5},
		Recombination:    IntermediateRecombination[float64](),
		Mutation:         GaussianMutation[float64](rng),
		StrategyMutation: LogNormalAdaptation(3, 1e-12, rng),
		Rho:              2,
		Lambda:           12,
		MaxIterations:    40,
		Interim:          true,
		Rand:             rng,
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	series := result.History.Series(KeyFitness)
	if len(series) != 40 {
		t.Fatalf("Expected 40 fitness snapshots, got %d", len(series))
	}
	for g := 1; g < len(series); g++ {
		if series[g][0] > series[g-1][0] {
			t.Errorf("Best fitness regressed at generation %d: %f -> %f", g+1, series[g-1][0], series[g][0])
		}
	}
	if result.BestFitness != series[len(series)-1][0] {
		t.Errorf("Result best %f does not match final snapshot %f", result.BestFitness, series[len(series)-1][0])
	}
	if result.Evaluations != 6+40*12 {
		t.Errorf("Expected %d evaluations, got %d", 6+40*12, result.Evaluations)
	}
}

func TestPopulationSizeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	objective := func(x float64) float64 { return x }

	for _, tt := range []struct {
		name string
		cfg  Config[float64, int]
	}{
		{"plus", Config[float64, int]{Mu: 3, Lambda: 8, MaxIterations: 5, Interim: true, Rand: rng}},
		{"comma", Config[float64, int]{Mu: 3, Lambda: 8, Selection: Comma, MaxIterations: 5, Interim: true, Rand: rng}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Optimize(objective, []float64{5, 2, 9}, tt.cfg)
			if err != nil {
				t.Fatalf("Optimize failed: %v", err)
			}
			for g, snapshot := range result.History.Series(KeyFitness) {
				if len(snapshot) != 3 {
					t.Errorf("Generation %d population size = %d, want 3", g+1, len(snapshot))
				}
			}
			for g, snapshot := range result.History.Series(KeyOffspringFitness) {
				if len(snapshot) != 8 {
					t.Errorf("Generation %d offspring count = %d, want 8", g+1, len(snapshot))
				}
			}
		})
	}
}

func TestCommaSelectionMayRegress(t *testing.T) {
	objective := func(x float64) float64 { return x }
	worsen := func(x float64, _ int) float64 { return x + 1 }

	comma, err := Optimize(objective, []float64{0}, Config[float64, int]{
		Mutation:      worsen,
		Selection:     Comma,
		Lambda:        2,
		MaxIterations: 3,
		Rand:          rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	// Every offspring is strictly worse than its parent, and comma
	// selection must still replace the whole population each generation.
	if comma.BestFitness != 3 {
		t.Errorf("Expected comma best fitness 3 after three worsening generations, got %f", comma.BestFitness)
	}

	plus, err := Optimize(objective, []float64{0}, Config[float64, int]{
		Mutation:      worsen,
		Lambda:        2,
		MaxIterations: 3,
		Rand:          rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if plus.BestFitness != 0 {
		t.Errorf("Expected plus selection to retain best fitness 0, got %f", plus.BestFitness)
	}
}

func TestMaxIterationsBoundsGenerations(t *testing.T) {
	objective := func(x float64) float64 { return x }

	result, err := Optimize(objective, []float64{1, 2}, Config[float64, int]{
		MaxIterations: 7,
		Interim:       true,
		Rand:          rand.New(rand.NewSource(3)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if result.Generations != 7 {
		t.Errorf("Expected exactly 7 generations, got %d", result.Generations)
	}
	if n := result.History.Len(KeyFitness); n != 7 {
		t.Errorf("Expected 7 history snapshots, got %d", n)
	}

	quiet, err := Optimize(objective, []float64{1, 2}, Config[float64, int]{
		MaxIterations: 7,
		Rand:          rand.New(rand.NewSource(3)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if n := quiet.History.Len(KeyFitness); n != 0 {
		t.Errorf("Expected empty history without Interim, got %d snapshots", n)
	}
}

func TestTerminationPredicateStopsEarly(t *testing.T) {
	objective := func(x float64) float64 { return x }

	result, err := Optimize(objective, []float64{10}, Config[float64, int]{
		Mutation:         func(x float64, _ int) float64 { return x - 1 },
		StrategyMutation: func(s int) int { return s + 1 },
		Termination:      func(s int) bool { return s >= 3 },
		MaxIterations:    100,
		Rand:             rand.New(rand.NewSource(5)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if result.Generations != 3 {
		t.Errorf("Expected termination after 3 generations, got %d", result.Generations)
	}
	if result.BestStrategy != 3 {
		t.Errorf("Expected best strategy 3, got %d", result.BestStrategy)
	}
	if result.BestFitness != 7 {
		t.Errorf("Expected best fitness 7, got %f", result.BestFitness)
	}
}

func TestDeterministicUnderSeededRand(t *testing.T) {
	run := func(workers int) *Result[[]float64, []float64] {
		t.Helper()
		rng := rand.New(rand.NewSource(99))
		result, err := Optimize(sphere, [][]float64{{3, -2}}, Config[[]float64, []float64]{
			InitStrategy:  []float64{0.3, 0.3},
			Recombination: func(parents [][]float64) []float64 { return CloneVector(parents[0]) },
			Mutation:      GaussianMutation[float64](rng),
			Mu:            1,
			Rho:           1,
			Lambda:        1,
			MaxIterations: 25,
			Interim:       true,
			Workers:       workers,
			Rand:          rng,
		})
		if err != nil {
			t.Fatalf("Optimize failed: %v", err)
		}
		return result
	}

	first := run(0)
	second := run(0)
	parallel := run(4)

	a := first.History.Series(KeyOffspringFitness)
	b := second.History.Series(KeyOffspringFitness)
	c := parallel.History.Series(KeyOffspringFitness)
	if len(a) != len(b) || len(a) != len(c) {
		t.Fatalf("Snapshot counts differ: %d, %d, %d", len(a), len(b), len(c))
	}
	for g := range a {
		if a[g][0] != b[g][0] {
			t.Errorf("Offspring fitness diverged at generation %d: %f vs %f", g+1, a[g][0], b[g][0])
		}
		if a[g][0] != c[g][0] {
			t.Errorf("Workers changed offspring fitness at generation %d: %f vs %f", g+1, a[g][0], c[g][0])
		}
	}
	if first.BestFitness != second.BestFitness || first.BestFitness != parallel.BestFitness {
		t.Errorf("Best fitness diverged: %f, %f, %f", first.BestFitness, second.BestFitness, parallel.BestFitness)
	}
}

func TestParentsWinExactFitnessTies(t *testing.T) {
	type item struct {
		Value  float64
		Marker int
	}
	objective := func(x item) float64 { return x.Value }

	// Offspring carry a marker but identical fitness; plus selection must
	// keep the unmarked parents.
	result, err := Optimize(objective, []item{{Value: 1}, {Value: 2}}, Config[item, struct{}]{
		Mutation:      func(x item, _ struct{}) item { x.Marker = 1; return x },
		Lambda:        4,
		MaxIterations: 5,
		Rand:          rand.New(rand.NewSource(11)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if result.Best.Marker != 0 {
		t.Errorf("Offspring displaced a parent on an exact fitness tie")
	}
	if result.BestFitness != 1 {
		t.Errorf("Expected best fitness 1, got %f", result.BestFitness)
	}
}

func TestLargerInitialPopulationTruncated(t *testing.T) {
	objective := func(x float64) float64 { return x }

	result, err := Optimize(objective, []float64{5, 4, 3, 2, 1}, Config[float64, int]{
		Mu:            3,
		MaxIterations: 1,
		Rand:          rand.New(rand.NewSource(2)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	// Only the first Mu individuals take part, so the best is 3, not 1.
	if result.Best != 3 {
		t.Errorf("Expected best individual 3 from the truncated population, got %v", result.Best)
	}
	if result.Evaluations != 3+1 {
		t.Errorf("Expected 4 evaluations, got %d", result.Evaluations)
	}
}

func TestInitialFitnessSkipsEvaluation(t *testing.T) {
	calls := 0
	objective := func(x float64) float64 {
		calls++
		return x
	}

	result, err := Optimize(objective, []float64{9, 1}, Config[float64, int]{
		InitialFitness: []float64{0.5, 0.9},
		MaxIterations:  1,
		Rand:           rand.New(rand.NewSource(4)),
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected only the offspring evaluation, got %d calls", calls)
	}
	// The supplied fitness ranks individual 9 best; no offspring beats it.
	if result.Best != 9 {
		t.Errorf("Expected best individual 9 under supplied fitness, got %v", result.Best)
	}
	if result.BestFitness != 0.5 {
		t.Errorf("Expected best fitness 0.5, got %f", result.BestFitness)
	}
}

func TestMaximizeDirection(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	objective := func(x float64) float64 { return x }

	result, err := Optimize(objective, []float64{1, 2, 3}, Config[float64, int]{
		Mutation:      func(x float64, _ int) float64 { return x + rng.Float64() },
		Extremum:      Maximize,
		Lambda:        5,
		MaxIterations: 10,
		Interim:       true,
		Rand:          rng,
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if result.BestFitness < 3 {
		t.Errorf("Expected best fitness of at least 3 when maximizing, got %f", result.BestFitness)
	}
	series := result.History.Series(KeyFitness)
	for g := 1; g < len(series); g++ {
		if series[g][0] < series[g-1][0] {
			t.Errorf("Best fitness regressed at generation %d while maximizing", g+1)
		}
	}
}

func TestParseSelection(t *testing.T) {
	if s, err := ParseSelection("plus"); err != nil || s != Plus {
		t.Errorf("ParseSelection(plus) = %v, %v", s, err)
	}
	if s, err := ParseSelection("comma"); err != nil || s != Comma {
		t.Errorf("ParseSelection(comma) = %v, %v", s, err)
	}
	if _, err := ParseSelection("tournament"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for unknown scheme, got %v", err)
	}
}

func TestParseExtremum(t *testing.T) {
	if e, err := ParseExtremum("min"); err != nil || e != Minimize {
		t.Errorf("ParseExtremum(min) = %v, %v", e, err)
	}
	if e, err := ParseExtremum("max"); err != nil || e != Maximize {
		t.Errorf("ParseExtremum(max) = %v, %v", e, err)
	}
	if _, err := ParseExtremum("saddle"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for unknown direction, got %v", err)
	}
}
