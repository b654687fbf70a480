// Package operators hosts the weighted operator-selection machinery shared
// by the mutator and recombinator families (see operators/mutate and
// operators/recombine for the operators themselves). It does not know the
// operators' signatures — only their names and weights — so both families
// can reuse the same bookkeeping.
package operators

import "github.com/choronzon/choronzon/rng"

// MinWeight is the floor every operator's weight is clamped to, preserving
// exploration even after repeated penalties.
const MinWeight = 0.01

// Table tracks the current weight of every operator in one family and
// performs weighted selection plus the multiplicative reward/penalty
// update described in the variation-operator design.
type Table struct {
	names   []string
	weights map[string]float64
}

// NewTable creates a Table with uniform weights across names.
func NewTable(names []string) *Table {
	t := &Table{
		names:   append([]string(nil), names...),
		weights: make(map[string]float64, len(names)),
	}
	uniform := 1.0 / float64(len(names))
	for _, n := range names {
		t.weights[n] = uniform
	}
	return t
}

// Weight returns the current weight of name.
func (t *Table) Weight(name string) float64 {
	return t.weights[name]
}

// Select picks an operator name with probability proportional to its
// current weight.
func (t *Table) Select(r *rng.Source) string {
	var total float64
	for _, n := range t.names {
		total += t.weights[n]
	}
	target := r.Float64() * total
	var cumulative float64
	for _, n := range t.names {
		cumulative += t.weights[n]
		if target < cumulative {
			return n
		}
	}
	return t.names[len(t.names)-1]
}

// Reward multiplies name's weight by (1+alpha) and renormalizes the family
// so weights keep summing to 1, after flooring every weight at MinWeight.
func (t *Table) Reward(name string, alpha float64) {
	t.weights[name] *= 1 + alpha
	t.renormalize()
}

// Penalize multiplies name's weight by (1-alpha) and renormalizes.
func (t *Table) Penalize(name string, alpha float64) {
	t.weights[name] *= 1 - alpha
	t.renormalize()
}

func (t *Table) renormalize() {
	var total float64
	for _, n := range t.names {
		if t.weights[n] < MinWeight {
			t.weights[n] = MinWeight
		}
		total += t.weights[n]
	}
	for _, n := range t.names {
		t.weights[n] /= total
	}
}

// Snapshot returns a copy of the current weights, keyed by operator name,
// for persistence in a checkpoint.
func (t *Table) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(t.weights))
	for k, v := range t.weights {
		out[k] = v
	}
	return out
}

// Restore replaces the table's weights with a previously saved snapshot.
// Names absent from snapshot keep their current weight.
func (t *Table) Restore(snapshot map[string]float64) {
	for k, v := range snapshot {
		if _, ok := t.weights[k]; ok {
			t.weights[k] = v
		}
	}
}
