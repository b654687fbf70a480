package fitness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/choronzon/choronzon/coverage"
)

func set(hits ...coverage.Hit) coverage.Set {
	s := make(coverage.Set, len(hits))
	for _, h := range hits {
		s[h] = struct{}{}
	}
	return s
}

func TestScoreOfAllNovelEdgesEqualsEdgeCount(t *testing.T) {
	m := NewMap()
	c := set(coverage.Hit{ImageIndex: 0, BBL: 16}, coverage.Hit{ImageIndex: 0, BBL: 32})
	assert.InDelta(t, 2.0, m.Score(c), 1e-9)
}

func TestScoreDecaysAsEdgesAreSeenMore(t *testing.T) {
	m := NewMap()
	e := coverage.Hit{ImageIndex: 0, BBL: 16}
	c := set(e)
	assert.InDelta(t, 1.0, m.Score(c), 1e-9)

	m.Record(c, nil)
	assert.InDelta(t, 0.5, m.Score(c), 1e-9)

	m.Record(c, nil)
	assert.InDelta(t, 1.0/3.0, m.Score(c), 1e-9)
}

func TestHasNovelEdge(t *testing.T) {
	m := NewMap()
	seen := coverage.Hit{ImageIndex: 0, BBL: 1}
	m.Record(set(seen), nil)

	assert.False(t, m.HasNovelEdge(set(seen)))
	assert.True(t, m.HasNovelEdge(set(seen, coverage.Hit{ImageIndex: 0, BBL: 2})))
}

func TestRecordSkipsLineageEdges(t *testing.T) {
	m := NewMap()
	e := coverage.Hit{ImageIndex: 0, BBL: 1}
	lineage := set(e)
	m.Record(set(e), lineage)
	assert.Equal(t, 0, m.Count(e), "an edge already attributed to the chromosome's lineage must not be double-counted")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := NewMap()
	e1 := coverage.Hit{ImageIndex: 0, BBL: 1}
	e2 := coverage.Hit{ImageIndex: 1, BBL: 2}
	m.Record(set(e1), nil)
	m.Record(set(e1, e2), nil)

	restored := NewMap()
	restored.Restore(m.Snapshot())
	assert.Equal(t, m.Count(e1), restored.Count(e1))
	assert.Equal(t, m.Count(e2), restored.Count(e2))
}
