package evostrat

import "sort"

// History metric keys written by Optimize when Interim is enabled.
const (
	// KeyFitness is the parent fitness vector after selection, one snapshot
	// per generation.
	KeyFitness = "fitness"

	// KeyOffspringFitness is the full offspring fitness vector of each
	// generation, before selection.
	KeyOffspringFitness = "offspring-fitness"
)

// History is an append-only collection of per-generation metric snapshots,
// keyed by metric name. The engine writes to it once per generation when
// interim tracking is enabled and never reads it back; it exists purely for
// the caller.
//
// History is not safe for concurrent use. It is owned by the generational
// loop during a run and by the caller afterwards.
type History struct {
	series map[string][][]float64
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{series: make(map[string][][]float64)}
}

// Append records a snapshot under the given key. The snapshot is copied, so
// callers may reuse the backing slice.
func (h *History) Append(key string, snapshot []float64) {
	c := make([]float64, len(snapshot))
	copy(c, snapshot)
	h.series[key] = append(h.series[key], c)
}

// Series returns all snapshots recorded under key, in append order. The
// returned slice is the live backing store; callers must not modify it.
func (h *History) Series(key string) [][]float64 {
	return h.series[key]
}

// Len returns the number of snapshots recorded under key.
func (h *History) Len(key string) int {
	return len(h.series[key])
}

// Keys returns the recorded metric names in sorted order.
func (h *History) Keys() []string {
	keys := make([]string, 0, len(h.series))
	for k := range h.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
