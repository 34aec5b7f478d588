package bench

import (
	"math/rand"
	"testing"

	"github.com/cwbudde/evostrat"
)

func sampleKnapsack(t *testing.T) *Knapsack {
	t.Helper()
	k, err := NewKnapsack(
		[]float64{1, 5, 3, 7, 2, 10, 5},
		[]float64{1, 3, 5, 2, 5, 8, 3},
		20,
	)
	if err != nil {
		t.Fatalf("NewKnapsack failed: %v", err)
	}
	return k
}

func TestKnapsackValidation(t *testing.T) {
	if _, err := NewKnapsack(nil, nil, 10); err == nil {
		t.Error("Expected error for empty item list")
	}
	if _, err := NewKnapsack([]float64{1, 2}, []float64{1}, 10); err == nil {
		t.Error("Expected error for mismatched masses and utilities")
	}
	if _, err := NewKnapsack([]float64{1}, []float64{1}, 0); err == nil {
		t.Error("Expected error for non-positive capacity")
	}
}

func TestKnapsackUtilityAndMass(t *testing.T) {
	k := sampleKnapsack(t)

	optimal := []bool{false, false, true, false, true, true, true}
	if m := k.Mass(optimal); m != 20 {
		t.Errorf("Mass = %f, want 20", m)
	}
	if u := k.Utility(optimal); u != 21 {
		t.Errorf("Utility = %f, want 21", u)
	}

	overloaded := []bool{true, true, true, true, true, true, true}
	if u := k.Utility(overloaded); u != 0 {
		t.Errorf("Utility over capacity = %f, want 0", u)
	}

	empty := make([]bool, k.Len())
	if u := k.Utility(empty); u != 0 {
		t.Errorf("Utility of empty selection = %f, want 0", u)
	}
}

// TestKnapsackOptimization runs the full evolution strategy against the
// discrete knapsack landscape: bit-string individuals, inversion mutation,
// maximization. The initial population covers every possible item count so
// segment reversals can reach any arrangement.
func TestKnapsackOptimization(t *testing.T) {
	k := sampleKnapsack(t)
	rng := rand.New(rand.NewSource(42))

	initial := make([][]bool, 0, 15)
	for count := 0; count <= k.Len(); count++ {
		g := make([]bool, k.Len())
		for i := 0; i < count; i++ {
			g[i] = true
		}
		initial = append(initial, g)
	}
	for len(initial) < 15 {
		g := make([]bool, k.Len())
		for i := range g {
			g[i] = rng.Float64() < 0.5
		}
		initial = append(initial, g)
	}

	result, err := evostrat.Optimize(k.Objective(), initial, evostrat.Config[[]bool, struct{}]{
		Clone:         evostrat.CloneVector[bool],
		Mutation:      evostrat.InversionMutation[bool, struct{}](rng),
		Mu:            15,
		Lambda:        100,
		Extremum:      evostrat.Maximize,
		MaxIterations: 150,
		Rand:          rng,
	})
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	if result.BestFitness != 21 {
		t.Errorf("Best utility = %f, want 21", result.BestFitness)
	}
	if mass := k.Mass(result.Best); mass > 20 {
		t.Errorf("Best selection mass = %f, exceeds capacity 20", mass)
	}
	if u := k.Utility(result.Best); u != result.BestFitness {
		t.Errorf("Reported fitness %f does not match recomputed utility %f", result.BestFitness, u)
	}
}
