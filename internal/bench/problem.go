// Package bench provides the benchmark objectives the CLI and job server
// optimize: classic real-vector test functions addressable by name, plus a
// discrete knapsack model for bit-string runs.
package bench

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProblem is returned by New for names that were never registered.
var ErrUnknownProblem = errors.New("unknown problem")

// Problem describes a bounded real-vector benchmark objective.
type Problem interface {
	// Name returns the registry name of the problem.
	Name() string

	// Dim returns the dimensionality of the search space.
	Dim() int

	// Eval computes the objective value for x; len(x) must equal Dim().
	// Lower is better for every registered problem.
	Eval(x []float64) float64

	// Bounds returns per-dimension lower and upper limits, each of length
	// Dim().
	Bounds() (lower, upper []float64)

	// Optimum returns the known global minimum value, used for reporting
	// how close a run got.
	Optimum() float64
}

var (
	registryMu sync.RWMutex
	registry   = map[string]func(dim int) (Problem, error){}
)

// Register makes a problem constructor available under name. The
// constructor receives the requested dimensionality; dim <= 0 asks for the
// problem's default. Register panics on duplicate names, mirroring the
// stdlib database/sql driver convention.
func Register(name string, build func(dim int) (Problem, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("bench: Register called twice for problem " + name)
	}
	registry[name] = build
}

// New constructs the named problem with the requested dimensionality.
// dim <= 0 selects the problem's default dimensionality.
func New(name string, dim int) (Problem, error) {
	registryMu.RLock()
	build, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProblem, name)
	}
	return build(dim)
}

// Names returns all registered problem names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
