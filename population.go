package evostrat

import (
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/exp/constraints"
)

// SeedPopulation builds mu variants of a single seed individual by scaling
// every element with an independently drawn uniform multiplier from [0, 1).
// Each variant gets fresh storage; neither the seed nor the variants alias
// each other. A nil rng falls back to a time-seeded source.
func SeedPopulation[E constraints.Float](seed []E, mu int, rng *rand.Rand) ([][]E, error) {
	if mu < 1 {
		return nil, &ConfigError{Field: "Mu", Reason: "must be at least 1"}
	}
	if len(seed) == 0 {
		return nil, &ConfigError{Field: "seed", Reason: "individual must not be empty"}
	}
	rng = ensureRand(rng)
	population := make([][]E, mu)
	for i := range population {
		variant := make([]E, len(seed))
		for j, v := range seed {
			variant[j] = v * E(rng.Float64())
		}
		population[i] = variant
	}
	return population, nil
}

// MatrixPopulation slices a matrix into individuals, one per column, in
// column order. Rows are dimensions, so a DxN matrix yields N individuals of
// length D. Every individual is copied into fresh storage.
func MatrixPopulation[E constraints.Float](matrix [][]E) ([][]E, error) {
	if len(matrix) == 0 || len(matrix[0]) == 0 {
		return nil, &ConfigError{Field: "matrix", Reason: "must have at least one row and one column"}
	}
	dims, mu := len(matrix), len(matrix[0])
	for r, row := range matrix {
		if len(row) != mu {
			return nil, &ConfigError{Field: "matrix", Reason: fmt.Sprintf("row %d has %d columns, want %d", r, len(row), mu)}
		}
	}
	population := make([][]E, mu)
	for c := 0; c < mu; c++ {
		individual := make([]E, dims)
		for r := 0; r < dims; r++ {
			individual[r] = matrix[r][c]
		}
		population[c] = individual
	}
	return population, nil
}

// GeneratePopulation invokes create(n) exactly mu times, one fresh
// individual per call. The creator may draw its own randomness; no state is
// shared across calls. RandomVector is the usual creator for real-vector
// populations.
func GeneratePopulation[T any](n, mu int, create func(n int) T) ([]T, error) {
	if mu < 1 {
		return nil, &ConfigError{Field: "Mu", Reason: "must be at least 1"}
	}
	if create == nil {
		return nil, &ConfigError{Field: "create", Reason: "must not be nil"}
	}
	population := make([]T, mu)
	for i := range population {
		population[i] = create(n)
	}
	return population, nil
}

// RandomVector returns a fresh length-n vector with uniform entries from
// [0, 1). Bind it to an rng for use with GeneratePopulation:
//
//	create := func(n int) []float64 { return evostrat.RandomVector(n, rng) }
func RandomVector(n int, rng *rand.Rand) []float64 {
	rng = ensureRand(rng)
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()
	}
	return v
}

func ensureRand(rng *rand.Rand) *rand.Rand {
	if rng == nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rng
}
