package evostrat

import (
	"math"
	"math/rand"

	"golang.org/x/exp/constraints"
)

// Standard operators for vector individuals. Every operator returns fresh
// storage and leaves its inputs untouched, as the engine contract requires.
// Constructors take the randomness source once and return a closure matching
// the corresponding Config field.

// CloneVector returns an independent copy of v. Use it as Config.Clone for
// slice-backed individuals.
func CloneVector[E any](v []E) []E {
	out := make([]E, len(v))
	copy(out, v)
	return out
}

// IntermediateRecombination blends the selected parents into their
// element-wise mean. All parents must share one length.
func IntermediateRecombination[E constraints.Float]() func(parents [][]E) []E {
	return func(parents [][]E) []E {
		out := make([]E, len(parents[0]))
		for _, p := range parents {
			for i, v := range p {
				out[i] += v
			}
		}
		n := E(len(parents))
		for i := range out {
			out[i] /= n
		}
		return out
	}
}

// DiscreteRecombination picks every coordinate from a uniformly chosen
// parent. Works for any element type, bit-strings included.
func DiscreteRecombination[E any](rng *rand.Rand) func(parents [][]E) []E {
	rng = ensureRand(rng)
	return func(parents [][]E) []E {
		out := make([]E, len(parents[0]))
		for i := range out {
			out[i] = parents[rng.Intn(len(parents))][i]
		}
		return out
	}
}

// GaussianMutation perturbs every coordinate with zero-mean gaussian noise
// scaled by the matching per-dimension step size of the strategy.
func GaussianMutation[E constraints.Float](rng *rand.Rand) func(individual []E, sigmas []float64) []E {
	rng = ensureRand(rng)
	return func(individual []E, sigmas []float64) []E {
		out := make([]E, len(individual))
		for i, v := range individual {
			out[i] = v + E(sigmas[i]*rng.NormFloat64())
		}
		return out
	}
}

// IsotropicGaussianMutation perturbs every coordinate with zero-mean
// gaussian noise under a single shared step size.
func IsotropicGaussianMutation[E constraints.Float](rng *rand.Rand) func(individual []E, sigma float64) []E {
	rng = ensureRand(rng)
	return func(individual []E, sigma float64) []E {
		out := make([]E, len(individual))
		for i, v := range individual {
			out[i] = v + E(sigma*rng.NormFloat64())
		}
		return out
	}
}

// LogNormalAdaptation returns the standard log-normal self-adaptation of
// per-dimension step sizes for an n-dimensional search: one global factor
// shared by all dimensions plus one local factor per dimension, with learning
// rates 1/sqrt(2n) and 1/sqrt(2*sqrt(n)). Step sizes never drop below floor.
func LogNormalAdaptation(n int, floor float64, rng *rand.Rand) func(sigmas []float64) []float64 {
	rng = ensureRand(rng)
	tauGlobal := 1 / math.Sqrt(2*float64(n))
	tauLocal := 1 / math.Sqrt(2*math.Sqrt(float64(n)))
	return func(sigmas []float64) []float64 {
		global := math.Exp(tauGlobal * rng.NormFloat64())
		out := make([]float64, len(sigmas))
		for i, s := range sigmas {
			v := s * global * math.Exp(tauLocal*rng.NormFloat64())
			if v < floor {
				v = floor
			}
			out[i] = v
		}
		return out
	}
}

// ScalarLogNormalAdaptation is the single-step-size variant of
// LogNormalAdaptation with learning rate 1/sqrt(n).
func ScalarLogNormalAdaptation(n int, floor float64, rng *rand.Rand) func(sigma float64) float64 {
	rng = ensureRand(rng)
	tau := 1 / math.Sqrt(float64(n))
	return func(sigma float64) float64 {
		v := sigma * math.Exp(tau*rng.NormFloat64())
		if v < floor {
			v = floor
		}
		return v
	}
}

// InversionMutation reverses a uniformly chosen segment of the individual.
// The strategy parameter is ignored, which lets the operator slot directly
// into Config.Mutation for permutation and bit-string individuals.
func InversionMutation[E, S any](rng *rand.Rand) func(individual []E, strategy S) []E {
	rng = ensureRand(rng)
	return func(individual []E, _ S) []E {
		out := CloneVector(individual)
		if len(out) < 2 {
			return out
		}
		i, j := rng.Intn(len(out)), rng.Intn(len(out))
		if i > j {
			i, j = j, i
		}
		for i < j {
			out[i], out[j] = out[j], out[i]
			i++
			j--
		}
		return out
	}
}
