package gene

import "github.com/choronzon/choronzon/internal/invariant"

// Path addresses a node by the sequence of child indices from the root.
// An empty Path addresses the root itself.
type Path []int

// Equal reports whether two paths address the same node.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Visit is yielded by Walk for every node in pre-order: its path from the
// root and the node itself.
type Visit struct {
	Path Path
	Gene *Gene
}

// Walk performs a lazy pre-order traversal of root, invoking yield for each
// node. Walk stops early if yield returns false. Walk never mutates root.
func Walk(root *Gene, yield func(Visit) bool) {
	if root == nil {
		return
	}
	var walk func(g *Gene, path Path) bool
	walk = func(g *Gene, path Path) bool {
		if !yield(Visit{Path: path, Gene: g}) {
			return false
		}
		for i, c := range g.Children {
			if !walk(c, append(path.clone(), i)) {
				return false
			}
		}
		return true
	}
	walk(root, Path{})
}

// At returns the node addressed by path, or nil if the path does not
// resolve within root.
func At(root *Gene, path Path) *Gene {
	n := root
	for _, idx := range path {
		if n == nil || idx < 0 || idx >= len(n.Children) {
			return nil
		}
		n = n.Children[idx]
	}
	return n
}

// Parent returns the node addressed by all but the last element of path,
// plus the index of the addressed child within it. Parent of the root path
// returns (nil, -1).
func Parent(root *Gene, path Path) (*Gene, int) {
	if len(path) == 0 {
		return nil, -1
	}
	return At(root, path[:len(path)-1]), path[len(path)-1]
}

// rebuildSpine clones every node from the root down to (but not including)
// the node at path, applying edit to the node it finds there, and returns
// the new root. The subtree the edit does not touch is shared by reference
// with the original tree.
func rebuildSpine(root *Gene, path Path, edit func(parent *Gene, index int) *Gene) *Gene {
	invariant.NotNil(root, "root")
	if len(path) == 0 {
		return edit(nil, -1)
	}
	newRoot := root.shallowCopy()
	cur := newRoot
	for i := 0; i < len(path)-1; i++ {
		idx := path[i]
		invariant.GenePath(idx, len(cur.Children), path)
		child := cur.Children[idx].shallowCopy()
		cur.Children[idx] = child
		cur = child
	}
	lastIdx := path[len(path)-1]
	invariant.GenePath(lastIdx, len(cur.Children), path)
	cur.Children[lastIdx] = edit(cur, lastIdx)
	return newRoot
}

// shallowCopy copies a node's own fields and its children slice header,
// without deep-cloning the children themselves — used internally by the
// spine-rebuilding edits so unaffected subtrees remain shared.
func (g *Gene) shallowCopy() *Gene {
	cp := &Gene{
		Kind:    g.Kind,
		Payload: append([]byte(nil), g.Payload...),
		Flags:   g.Flags,
	}
	if g.Children != nil {
		cp.Children = append([]*Gene(nil), g.Children...)
	}
	return cp
}

// ReplaceAt returns a new root with the node at path replaced by newGene.
// The original tree is untouched.
func ReplaceAt(root *Gene, path Path, newGene *Gene) *Gene {
	if len(path) == 0 {
		return newGene.Clone()
	}
	return rebuildSpine(root, path, func(parent *Gene, index int) *Gene {
		return newGene.Clone()
	})
}

// InsertAt returns a new root with g inserted as a child of the node at
// parentPath, at the given index (0 <= index <= len(children)).
func InsertAt(root *Gene, parentPath Path, index int, g *Gene) *Gene {
	if len(parentPath) == 0 {
		newRoot := root.shallowCopy()
		invariant.InsertIndex(index, len(newRoot.Children), parentPath)
		newRoot.Children = insertChild(newRoot.Children, index, g.Clone())
		return newRoot
	}
	return rebuildSpine(root, parentPath, func(parent *Gene, childIdx int) *Gene {
		node := parent.Children[childIdx].shallowCopy()
		invariant.InsertIndex(index, len(node.Children), parentPath)
		node.Children = insertChild(node.Children, index, g.Clone())
		return node
	})
}

func insertChild(children []*Gene, index int, g *Gene) []*Gene {
	out := make([]*Gene, 0, len(children)+1)
	out = append(out, children[:index]...)
	out = append(out, g)
	out = append(out, children[index:]...)
	return out
}

// RemoveAt returns a new root with the node at path removed from its
// parent's children. RemoveAt on the root path is invalid and panics: the
// root cannot be removed from itself.
func RemoveAt(root *Gene, path Path) *Gene {
	invariant.Precondition(len(path) > 0, "cannot remove the root gene")
	return rebuildSpineRemove(root, path)
}

func rebuildSpineRemove(root *Gene, path Path) *Gene {
	newRoot := root.shallowCopy()
	cur := newRoot
	for i := 0; i < len(path)-1; i++ {
		idx := path[i]
		child := cur.Children[idx].shallowCopy()
		cur.Children[idx] = child
		cur = child
	}
	lastIdx := path[len(path)-1]
	cur.Children = append(append([]*Gene(nil), cur.Children[:lastIdx]...), cur.Children[lastIdx+1:]...)
	return newRoot
}

// Swap returns a new root with the subtrees at pathA and pathB exchanged.
// Both paths must resolve to existing, non-root nodes.
func Swap(root *Gene, pathA, pathB Path) *Gene {
	invariant.Precondition(len(pathA) > 0 && len(pathB) > 0, "cannot swap the root gene")
	a := At(root, pathA)
	b := At(root, pathB)
	invariant.NotNil(a, "gene at pathA")
	invariant.NotNil(b, "gene at pathB")

	result := ReplaceAt(root, pathA, b)
	result = ReplaceAt(result, pathB, a)
	return result
}

// Count returns the number of nodes in the tree rooted at root.
func Count(root *Gene) int {
	n := 0
	Walk(root, func(Visit) bool { n++; return true })
	return n
}
