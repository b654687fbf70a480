// Package fitness scores a trial's coverage against the campaign-wide
// global coverage map and maintains that map across trials.
package fitness

import "github.com/choronzon/choronzon/coverage"

// Map is the global coverage map G: for every basic-block hit ever seen,
// how many distinct admitted chromosomes have hit it. Rarer edges weigh
// more heavily in Score.
type Map struct {
	counts map[coverage.Hit]int
}

// NewMap returns an empty global coverage map.
func NewMap() *Map {
	return &Map{counts: make(map[coverage.Hit]int)}
}

// Count returns how many admitted chromosomes have ever hit e.
func (m *Map) Count(e coverage.Hit) int {
	return m.counts[e]
}

// HasNovelEdge reports whether c contains at least one edge never before
// recorded in m — the trigger for admission rule 2.
func (m *Map) HasNovelEdge(c coverage.Set) bool {
	for e := range c {
		if m.counts[e] == 0 {
			return true
		}
	}
	return false
}

// Score computes fitness(C) = sum over e in C of 1/(1+G[e]). A coverage
// set composed entirely of edges never seen before scores len(C); edges
// hit by many prior corpus members contribute close to zero each.
func (m *Map) Score(c coverage.Set) float64 {
	var total float64
	for e := range c {
		total += 1.0 / float64(1+m.counts[e])
	}
	return total
}

// Record increments the count for every edge in c that is not already
// present in lineage — the coverage already attributed to the admitted
// chromosome's ancestry — preventing double-counting when a lineage is
// re-evaluated (e.g. during replay).
func (m *Map) Record(c coverage.Set, lineage coverage.Set) {
	for e := range c {
		if lineage != nil && lineage.Contains(e) {
			continue
		}
		m.counts[e]++
	}
}

// Snapshot returns the map's contents as a slice of records, suitable for
// the coverage.map checkpoint format.
type Record struct {
	Hit   coverage.Hit
	Count int
}

// Snapshot returns every (hit, count) pair currently recorded, in no
// particular order; callers that need a stable on-disk order should sort
// the result themselves.
func (m *Map) Snapshot() []Record {
	out := make([]Record, 0, len(m.counts))
	for h, c := range m.counts {
		out = append(out, Record{Hit: h, Count: c})
	}
	return out
}

// Restore replaces m's contents with a previously saved snapshot.
func (m *Map) Restore(records []Record) {
	m.counts = make(map[coverage.Hit]int, len(records))
	for _, rec := range records {
		m.counts[rec.Hit] = rec.Count
	}
}
