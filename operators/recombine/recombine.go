// Package recombine implements the tree-structural variation operators.
// Unlike mutators, recombinators may take a second parent and must consult
// a format.Plugin's admissibility predicate before committing an edit, so
// they never produce a tree the plug-in would refuse to serialize sensibly.
package recombine

import (
	"github.com/choronzon/choronzon/format"
	"github.com/choronzon/choronzon/gene"
	"github.com/choronzon/choronzon/rng"
)

// Func is the signature every recombinator satisfies. b is nil for the
// single-parent operators (gene_swap, gene_duplicate, gene_remove,
// gene_shuffle); it is required for cross_over and gene_splice. A
// recombinator that cannot find an admissible edit returns a (structurally
// equal) unchanged root, recorded by the scheduler as a no-op.
type Func func(r *rng.Source, plugin format.Plugin, a, b *gene.Gene) *gene.Gene

// Names lists every recombinator in registration order.
var Names = []string{
	"gene_swap", "gene_duplicate", "gene_remove", "gene_shuffle", "cross_over", "gene_splice",
}

// SingleParent is the subset of Names that never consult a second parent,
// used by the scheduler to decide whether it needs to draw two parents for
// a given operator.
var SingleParent = map[string]bool{
	"gene_swap":      true,
	"gene_duplicate": true,
	"gene_remove":    true,
	"gene_shuffle":   true,
}

// Registry maps a recombinator name to its implementation.
var Registry = map[string]Func{
	"gene_swap":      GeneSwap,
	"gene_duplicate": GeneDuplicate,
	"gene_remove":    GeneRemove,
	"gene_shuffle":   GeneShuffle,
	"cross_over":     CrossOver,
	"gene_splice":    GeneSplice,
}

// structuralChildren returns the indices, among parent's children, of
// those flagged structural.
func structuralChildren(parent *gene.Gene) []int {
	var idx []int
	for i, c := range parent.Children {
		if c.Flags.Has(gene.FlagStructural) {
			idx = append(idx, i)
		}
	}
	return idx
}

// internalNodesWithStructuralChildren collects the path to every node in
// root that has at least `min` structural children.
func internalNodesWithStructuralChildren(root *gene.Gene, min int) []gene.Path {
	var paths []gene.Path
	gene.Walk(root, func(v gene.Visit) bool {
		if len(structuralChildren(v.Gene)) >= min {
			paths = append(paths, append(gene.Path(nil), v.Path...))
		}
		return true
	})
	return paths
}

// GeneSwap exchanges two random structural children that share an
// admissible parent kind, within one parent tree.
func GeneSwap(r *rng.Source, plugin format.Plugin, a, b *gene.Gene) *gene.Gene {
	candidates := internalNodesWithStructuralChildren(a, 2)
	if len(candidates) == 0 {
		return a
	}
	parentPath := candidates[r.Intn(len(candidates))]
	parent := gene.At(a, parentPath)
	structural := structuralChildren(parent)

	i := structural[r.Intn(len(structural))]
	j := structural[r.Intn(len(structural))]
	for attempts := 0; attempts < 8 && i == j; attempts++ {
		j = structural[r.Intn(len(structural))]
	}
	if i == j {
		return a
	}
	childI, childJ := parent.Children[i], parent.Children[j]
	if !plugin.Admissible(parent.Kind, childJ.Kind, i) || !plugin.Admissible(parent.Kind, childI.Kind, j) {
		return a
	}
	return gene.Swap(a, append(append(gene.Path(nil), parentPath...), i), append(append(gene.Path(nil), parentPath...), j))
}

// GeneDuplicate appends a clone of a random structural child to the same
// parent, if admissibility permits the duplicate at the new position.
func GeneDuplicate(r *rng.Source, plugin format.Plugin, a, b *gene.Gene) *gene.Gene {
	candidates := internalNodesWithStructuralChildren(a, 1)
	if len(candidates) == 0 {
		return a
	}
	parentPath := candidates[r.Intn(len(candidates))]
	parent := gene.At(a, parentPath)
	structural := structuralChildren(parent)
	chosen := parent.Children[structural[r.Intn(len(structural))]]

	newPos := len(parent.Children)
	if !plugin.Admissible(parent.Kind, chosen.Kind, newPos) {
		return a
	}
	return gene.InsertAt(a, parentPath, newPos, chosen.Clone())
}

// GeneRemove deletes a random structural child, provided the remaining
// tree is still admissible and every essential gene survives.
func GeneRemove(r *rng.Source, plugin format.Plugin, a, b *gene.Gene) *gene.Gene {
	candidates := internalNodesWithStructuralChildren(a, 1)
	if len(candidates) == 0 {
		return a
	}
	parentPath := candidates[r.Intn(len(candidates))]
	parent := gene.At(a, parentPath)
	structural := structuralChildren(parent)
	idx := structural[r.Intn(len(structural))]
	victim := parent.Children[idx]

	if containsEssential(victim) {
		return a
	}
	childPath := append(append(gene.Path(nil), parentPath...), idx)
	return gene.RemoveAt(a, childPath)
}

func containsEssential(g *gene.Gene) bool {
	found := false
	gene.Walk(g, func(v gene.Visit) bool {
		if v.Gene.Flags.Has(gene.FlagEssential) {
			found = true
			return false
		}
		return true
	})
	return found
}

// GeneShuffle reorders the structural children of one randomly chosen
// internal node, leaving non-structural children (e.g. an essential
// signature gene) fixed in place.
func GeneShuffle(r *rng.Source, plugin format.Plugin, a, b *gene.Gene) *gene.Gene {
	candidates := internalNodesWithStructuralChildren(a, 2)
	if len(candidates) == 0 {
		return a
	}
	parentPath := candidates[r.Intn(len(candidates))]
	parent := gene.At(a, parentPath)
	structural := structuralChildren(parent)

	permuted := append([]int(nil), structural...)
	for i := len(permuted) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		permuted[i], permuted[j] = permuted[j], permuted[i]
	}

	newChildren := append([]*gene.Gene(nil), parent.Children...)
	for slot, origIdx := range structural {
		newChildren[origIdx] = parent.Children[permuted[slot]]
	}
	for _, origIdx := range structural {
		if !plugin.Admissible(parent.Kind, newChildren[origIdx].Kind, origIdx) {
			return a
		}
	}
	replacement := parent.Clone()
	replacement.Children = newChildren
	return gene.ReplaceAt(a, parentPath, replacement)
}

// CrossOver replaces a random structural subtree in parent a with a random
// structural subtree drawn from parent b whose root kind is admissible at
// the target position.
func CrossOver(r *rng.Source, plugin format.Plugin, a, b *gene.Gene) *gene.Gene {
	if b == nil {
		return a
	}
	targets := internalNodesWithStructuralChildren(a, 1)
	donors := collectStructuralSubtrees(b)
	if len(targets) == 0 || len(donors) == 0 {
		return a
	}

	for attempts := 0; attempts < 8; attempts++ {
		parentPath := targets[r.Intn(len(targets))]
		parent := gene.At(a, parentPath)
		structural := structuralChildren(parent)
		idx := structural[r.Intn(len(structural))]

		donor := donors[r.Intn(len(donors))]
		if plugin.Admissible(parent.Kind, donor.Kind, idx) {
			childPath := append(append(gene.Path(nil), parentPath...), idx)
			return gene.ReplaceAt(a, childPath, donor)
		}
	}
	return a
}

// GeneSplice inserts a subtree from parent b into parent a at an
// admissible insertion point.
func GeneSplice(r *rng.Source, plugin format.Plugin, a, b *gene.Gene) *gene.Gene {
	if b == nil {
		return a
	}
	targets := internalNodesWithStructuralChildren(a, 1)
	donors := collectStructuralSubtrees(b)
	if len(targets) == 0 || len(donors) == 0 {
		return a
	}

	for attempts := 0; attempts < 8; attempts++ {
		parentPath := targets[r.Intn(len(targets))]
		parent := gene.At(a, parentPath)
		pos := r.Intn(len(parent.Children) + 1)

		donor := donors[r.Intn(len(donors))]
		if plugin.Admissible(parent.Kind, donor.Kind, pos) {
			return gene.InsertAt(a, parentPath, pos, donor)
		}
	}
	return a
}

// collectStructuralSubtrees returns every structural gene in tree,
// anywhere in the tree, as a candidate donor subtree for cross_over and
// gene_splice.
func collectStructuralSubtrees(tree *gene.Gene) []*gene.Gene {
	var out []*gene.Gene
	gene.Walk(tree, func(v gene.Visit) bool {
		if v.Gene.Flags.Has(gene.FlagStructural) {
			out = append(out, v.Gene)
		}
		return true
	})
	return out
}
