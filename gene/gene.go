// Package gene implements the structural representation shared by every
// Choronzon chromosome: a tree of typed nodes describing one candidate file.
//
// Trees are persistent. Every edit primitive returns a new root built by
// copying the spine from the edited node up to the root, exactly as an
// immutable radix tree copies the path to a modified leaf instead of
// mutating nodes in place; the rest of the tree is shared by reference.
// Callers never need to defend against a mutated parent.
package gene

import "bytes"

// Flag is a bitmask of structural properties a Gene carries.
type Flag uint8

const (
	// FlagStructural marks a gene eligible for reordering, duplication or
	// removal by a recombinator.
	FlagStructural Flag = 1 << iota
	// FlagEssential marks a gene that must remain present in the tree for
	// serialization to succeed; recombinators must not remove it.
	FlagEssential
	// FlagLeaf forbids a gene from carrying children.
	FlagLeaf
)

// Has reports whether f contains all bits of other.
func (f Flag) Has(other Flag) bool { return f&other == other }

// Gene is one elementary structural unit of a file format, e.g. a single
// PNG chunk. A Gene owns its payload and its children; it never aliases a
// sibling's or cousin's backing array after a clone.
type Gene struct {
	Kind     string
	Payload  []byte
	Children []*Gene
	Flags    Flag
}

// New constructs a Gene, copying payload and children so the new node does
// not alias the caller's slices.
func New(kind string, payload []byte, children []*Gene, flags Flag) *Gene {
	g := &Gene{
		Kind:    kind,
		Payload: append([]byte(nil), payload...),
		Flags:   flags,
	}
	if len(children) > 0 {
		g.Children = make([]*Gene, len(children))
		for i, c := range children {
			g.Children[i] = c.Clone()
		}
	}
	return g
}

// Clone returns a deep, independently owned copy of g.
func (g *Gene) Clone() *Gene {
	if g == nil {
		return nil
	}
	clone := &Gene{
		Kind:    g.Kind,
		Payload: append([]byte(nil), g.Payload...),
		Flags:   g.Flags,
	}
	if len(g.Children) > 0 {
		clone.Children = make([]*Gene, len(g.Children))
		for i, c := range g.Children {
			clone.Children[i] = c.Clone()
		}
	}
	return clone
}

// Equal reports structural equality: same kind, same payload bytes, and
// recursively equal children in the same order. Flags are not part of
// structural identity — two genes produced by different plug-in paths but
// describing the same bytes must compare equal.
func (g *Gene) Equal(other *Gene) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.Kind != other.Kind {
		return false
	}
	if !bytes.Equal(g.Payload, other.Payload) {
		return false
	}
	if len(g.Children) != len(other.Children) {
		return false
	}
	for i := range g.Children {
		if !g.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

// IsLeaf reports whether g carries no children.
func (g *Gene) IsLeaf() bool { return len(g.Children) == 0 }
