// Package chromo defines the Chromosome: a candidate input plus the
// evolutionary bookkeeping the scheduler and corpus need to rank, persist
// and re-derive it.
package chromo

import "github.com/choronzon/choronzon/gene"

// ID identifies a chromosome within a campaign. IDs are opaque strings
// (UUIDs in practice) so that persisted references remain stable across
// restarts regardless of in-memory ordering.
type ID string

// Chromosome is a root Gene plus its evolutionary provenance.
type Chromosome struct {
	ID         ID
	Root       *gene.Gene
	Parents    []ID
	Generation int

	// OperatorChain records, in order, the name of every variation
	// operator applied to produce this chromosome from its parent(s).
	// A freshly deserialized seed has an empty chain.
	OperatorChain []string

	Fitness  float64
	Executed bool
}

// Clone returns a deep copy of c. The returned chromosome's Root does not
// alias c.Root.
func (c *Chromosome) Clone() *Chromosome {
	if c == nil {
		return nil
	}
	return &Chromosome{
		ID:            c.ID,
		Root:          c.Root.Clone(),
		Parents:       append([]ID(nil), c.Parents...),
		Generation:    c.Generation,
		OperatorChain: append([]string(nil), c.OperatorChain...),
		Fitness:       c.Fitness,
		Executed:      c.Executed,
	}
}

// WithChild returns a new Chromosome describing a child produced from this
// chromosome (and optionally a second parent) by the named operator. The
// child starts unexecuted with zero fitness; the scheduler fills those in
// after the trial runs.
func (c *Chromosome) WithChild(id ID, root *gene.Gene, operator string, generation int, otherParent ID) *Chromosome {
	parents := []ID{c.ID}
	if otherParent != "" {
		parents = append(parents, otherParent)
	}
	chain := append(append([]string(nil), c.OperatorChain...), operator)
	return &Chromosome{
		ID:            id,
		Root:          root,
		Parents:       parents,
		Generation:    generation,
		OperatorChain: chain,
	}
}
