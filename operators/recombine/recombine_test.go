package recombine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choronzon/choronzon/chromo"
	"github.com/choronzon/choronzon/gene"
	"github.com/choronzon/choronzon/rng"
)

// permissivePlugin admits any child at any position, isolating each
// recombinator's own tree-shaping logic from plug-in-specific constraints.
type permissivePlugin struct{}

func (permissivePlugin) Name() string                            { return "permissive" }
func (permissivePlugin) Deserialize(data []byte) (*chromo.Chromosome, error) { return nil, nil }
func (permissivePlugin) Serialize(c *chromo.Chromosome) ([]byte, error)      { return nil, nil }
func (permissivePlugin) Admissible(parentKind, childKind string, position int) bool {
	return true
}

func fourChunkTree() *gene.Gene {
	sig := gene.New("SIG", []byte{0x89, 0x50, 0x4E, 0x47}, nil, gene.FlagEssential|gene.FlagLeaf)
	ihdr := gene.New("IHDR", []byte{0x00, 0x00, 0x00, 0x01}, nil, gene.FlagStructural)
	idat := gene.New("IDAT", []byte{0xAB, 0xCD}, nil, gene.FlagStructural)
	iend := gene.New("IEND", nil, nil, gene.FlagStructural)
	return gene.New("FILE", nil, []*gene.Gene{sig, ihdr, idat, iend}, gene.FlagStructural)
}

func TestRegistryNamesMatch(t *testing.T) {
	for _, name := range Names {
		_, ok := Registry[name]
		assert.Truef(t, ok, "Names lists %q but Registry has no entry for it", name)
	}
	assert.Len(t, Registry, len(Names))
}

func TestSingleParentOperatorsDoNotMutateInput(t *testing.T) {
	plugin := permissivePlugin{}
	for name, isSingle := range SingleParent {
		require.True(t, isSingle)
		root := fourChunkTree()
		snapshot := root.Clone()
		r := rng.New(13)
		_ = Registry[name](r, plugin, root, nil)
		assert.Truef(t, root.Equal(snapshot), "recombinator %q mutated its input", name)
	}
}

func TestGeneSwapExchangesStructuralChildren(t *testing.T) {
	root := fourChunkTree()
	plugin := permissivePlugin{}
	r := rng.New(2)
	result := GeneSwap(r, plugin, root, nil)
	assert.Equal(t, "SIG", result.Children[0].Kind, "the signature must never move")
	assert.ElementsMatch(t,
		[]string{result.Children[1].Kind, result.Children[2].Kind, result.Children[3].Kind},
		[]string{"IHDR", "IDAT", "IEND"})
}

func TestGeneDuplicateGrowsChildCount(t *testing.T) {
	root := fourChunkTree()
	plugin := permissivePlugin{}
	r := rng.New(8)
	result := GeneDuplicate(r, plugin, root, nil)
	assert.Len(t, result.Children, 5)
}

func TestGeneRemoveRefusesToDropEssential(t *testing.T) {
	// A tree where the only structural child also happens to contain the
	// essential gene: removal must be a no-op rather than discard it.
	essentialChild := gene.New("CRITICAL", []byte{0x01}, nil, gene.FlagStructural|gene.FlagEssential)
	root := gene.New("FILE", nil, []*gene.Gene{essentialChild}, gene.FlagStructural)
	plugin := permissivePlugin{}
	r := rng.New(1)
	result := GeneRemove(r, plugin, root, nil)
	assert.True(t, result.Equal(root))
}

func TestGeneRemoveDropsNonEssentialStructuralChild(t *testing.T) {
	root := fourChunkTree()
	plugin := permissivePlugin{}
	r := rng.New(6)
	result := GeneRemove(r, plugin, root, nil)
	assert.Len(t, result.Children, 3)
	assert.Equal(t, "SIG", result.Children[0].Kind)
}

func TestGeneShuffleKeepsNonStructuralChildFixed(t *testing.T) {
	root := fourChunkTree()
	plugin := permissivePlugin{}
	r := rng.New(0x1)
	result := GeneShuffle(r, plugin, root, nil)
	assert.Equal(t, "SIG", result.Children[0].Kind)
	assert.True(t, result.Children[0].Equal(root.Children[0]))
	assert.ElementsMatch(t,
		[]string{result.Children[1].Kind, result.Children[2].Kind, result.Children[3].Kind},
		[]string{"IHDR", "IDAT", "IEND"})
}

func TestCrossOverWithNilSecondParentIsNoOp(t *testing.T) {
	root := fourChunkTree()
	plugin := permissivePlugin{}
	r := rng.New(4)
	result := CrossOver(r, plugin, root, nil)
	assert.True(t, result.Equal(root))
}

func TestCrossOverReplacesSubtreeFromDonor(t *testing.T) {
	a := fourChunkTree()
	b := gene.New("FILE", nil, []*gene.Gene{
		gene.New("SIG", []byte{0x89, 0x50, 0x4E, 0x47}, nil, gene.FlagEssential|gene.FlagLeaf),
		gene.New("TEXT", []byte("hello"), nil, gene.FlagStructural),
	}, gene.FlagStructural)
	plugin := permissivePlugin{}
	r := rng.New(21)
	result := CrossOver(r, plugin, a, b)
	assert.Equal(t, "SIG", result.Children[0].Kind)
	found := false
	for _, c := range result.Children[1:] {
		if c.Kind == "TEXT" {
			found = true
		}
	}
	assert.True(t, found, "expected a TEXT donor subtree to appear somewhere in the result")
}

func TestGeneSpliceWithNilSecondParentIsNoOp(t *testing.T) {
	root := fourChunkTree()
	plugin := permissivePlugin{}
	r := rng.New(5)
	result := GeneSplice(r, plugin, root, nil)
	assert.True(t, result.Equal(root))
}

func TestGeneSpliceInsertsDonorSubtree(t *testing.T) {
	a := fourChunkTree()
	b := gene.New("FILE", nil, []*gene.Gene{
		gene.New("TEXT", []byte("spliced"), nil, gene.FlagStructural),
	}, gene.FlagStructural)
	plugin := permissivePlugin{}
	r := rng.New(77)
	result := GeneSplice(r, plugin, a, b)
	assert.Len(t, result.Children, 5)
}
