package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choronzon/choronzon/rng"
)

func TestNewTableIsUniform(t *testing.T) {
	table := NewTable([]string{"a", "b", "c", "d"})
	for _, n := range []string{"a", "b", "c", "d"} {
		assert.InDelta(t, 0.25, table.Weight(n), 1e-9)
	}
}

func TestRewardIncreasesWeightRelativeToPeers(t *testing.T) {
	table := NewTable([]string{"a", "b"})
	before := table.Weight("a")
	table.Reward("a", 0.1)
	assert.Greater(t, table.Weight("a"), before)
	assert.Less(t, table.Weight("b"), 0.5)
}

func TestPenalizeDecreasesWeightRelativeToPeers(t *testing.T) {
	table := NewTable([]string{"a", "b"})
	before := table.Weight("a")
	table.Penalize("a", 0.1)
	assert.Less(t, table.Weight("a"), before)
	assert.Greater(t, table.Weight("b"), 0.5)
}

func TestWeightsStaySumToOne(t *testing.T) {
	table := NewTable([]string{"a", "b", "c"})
	table.Reward("a", 0.1)
	table.Penalize("b", 0.2)
	var total float64
	for _, n := range []string{"a", "b", "c"} {
		total += table.Weight(n)
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestRepeatedPenaltyFloorsAtMinWeight(t *testing.T) {
	table := NewTable([]string{"a", "b"})
	for i := 0; i < 200; i++ {
		table.Penalize("a", 0.5)
	}
	assert.GreaterOrEqual(t, table.Weight("a"), MinWeight)
}

func TestSelectOnlyReturnsKnownNames(t *testing.T) {
	names := []string{"a", "b", "c"}
	table := NewTable(names)
	r := rng.New(99)
	for i := 0; i < 50; i++ {
		got := table.Select(r)
		assert.Contains(t, names, got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	table := NewTable([]string{"a", "b"})
	table.Reward("a", 0.1)
	snapshot := table.Snapshot()

	restored := NewTable([]string{"a", "b"})
	restored.Restore(snapshot)
	assert.InDelta(t, table.Weight("a"), restored.Weight("a"), 1e-9)
	assert.InDelta(t, table.Weight("b"), restored.Weight("b"), 1e-9)
}

func TestRestoreIgnoresUnknownNames(t *testing.T) {
	table := NewTable([]string{"a", "b"})
	before := table.Weight("a")
	table.Restore(map[string]float64{"unknown": 0.9})
	require.InDelta(t, before, table.Weight("a"), 1e-9)
}
