package main

import "math/rand"

// seededGuess draws one uniform sample inside the bounds with a fresh
// generator, matching the first individual an optimizer seeded the same
// way would produce. Used as the baseline cost for improvement reporting.
func seededGuess(seed int64, lower, upper []float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = lower[i] + rng.Float64()*(upper[i]-lower[i])
	}
	return x
}
