package bench

import "fmt"

// Knapsack models a 0/1 knapsack objective over bit-string individuals: a
// selection is worth the sum of its utilities while its total mass stays
// within capacity, and nothing otherwise. Utility is maximized.
type Knapsack struct {
	Masses    []float64
	Utilities []float64
	Capacity  float64
}

// NewKnapsack builds a knapsack instance, validating that masses and
// utilities pair up.
func NewKnapsack(masses, utilities []float64, capacity float64) (*Knapsack, error) {
	if len(masses) == 0 {
		return nil, fmt.Errorf("knapsack needs at least one item")
	}
	if len(masses) != len(utilities) {
		return nil, fmt.Errorf("knapsack has %d masses but %d utilities", len(masses), len(utilities))
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("knapsack capacity must be positive, got %g", capacity)
	}
	return &Knapsack{Masses: masses, Utilities: utilities, Capacity: capacity}, nil
}

// Len returns the number of items.
func (k *Knapsack) Len() int { return len(k.Masses) }

// Mass returns the total mass of the selected items.
func (k *Knapsack) Mass(selection []bool) float64 {
	var mass float64
	for i, picked := range selection {
		if picked {
			mass += k.Masses[i]
		}
	}
	return mass
}

// Utility returns the total utility of the selection, or 0 when its mass
// exceeds the capacity.
func (k *Knapsack) Utility(selection []bool) float64 {
	var mass, utility float64
	for i, picked := range selection {
		if picked {
			mass += k.Masses[i]
			utility += k.Utilities[i]
		}
	}
	if mass > k.Capacity {
		return 0
	}
	return utility
}

// Objective returns the utility function in the shape the optimizer
// consumes. Pair it with a maximizing configuration.
func (k *Knapsack) Objective() func([]bool) float64 {
	return k.Utility
}
