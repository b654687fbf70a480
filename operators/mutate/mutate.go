// Package mutate implements the byte-level mutation operators: each acts on
// one randomly chosen payload within a single parent's gene tree and
// returns a new root with that payload edited. Mutators never touch tree
// structure — that is the recombinators' job (see operators/recombine).
package mutate

import (
	"math"

	"github.com/choronzon/choronzon/gene"
	"github.com/choronzon/choronzon/rng"
)

// Func is the signature every mutator satisfies: given a PRNG and a parent
// tree, produce a child tree. A mutator that finds no eligible payload
// returns root unchanged (structurally equal), which the scheduler records
// as a no-op.
type Func func(r *rng.Source, root *gene.Gene) *gene.Gene

// Names lists every mutator in registration order, matching the order
// operators.NewTable expects so weights line up with a persisted snapshot.
var Names = []string{
	"bit_flip", "byte_flip", "byte_set_high_bit", "byte_clear_high_bit",
	"random_byte", "byte_swap", "byte_insert", "byte_delete", "boundary_value",
}

// Registry maps a mutator name to its implementation, pre-bound with the
// default budgets described in the operator design.
var Registry = map[string]Func{
	"bit_flip":            func(r *rng.Source, root *gene.Gene) *gene.Gene { return BitFlip(r, root, budgetN(r, 1, 4)) },
	"byte_flip":           func(r *rng.Source, root *gene.Gene) *gene.Gene { return ByteFlip(r, root, budgetN(r, 1, 4)) },
	"byte_set_high_bit":   ByteSetHighBit,
	"byte_clear_high_bit": ByteClearHighBit,
	"random_byte":         RandomByte,
	"byte_swap":           ByteSwap,
	"byte_insert":         func(r *rng.Source, root *gene.Gene) *gene.Gene { return ByteInsert(r, root, budgetN(r, 1, 8)) },
	"byte_delete":         func(r *rng.Source, root *gene.Gene) *gene.Gene { return ByteDelete(r, root, budgetN(r, 1, 8)) },
	"boundary_value":      BoundaryValue,
}

func budgetN(r *rng.Source, min, max int) int {
	return min + r.Intn(max-min+1)
}

// selectPayload walks root in pre-order and picks, uniformly among genes
// whose payload is non-empty, the path to one of them. It returns a nil
// path if no such gene exists.
func selectPayload(r *rng.Source, root *gene.Gene) gene.Path {
	var candidates []gene.Path
	gene.Walk(root, func(v gene.Visit) bool {
		if len(v.Gene.Payload) > 0 {
			p := append(gene.Path{}, v.Path...)
			candidates = append(candidates, p)
		}
		return true
	})
	if len(candidates) == 0 {
		return nil
	}
	return candidates[r.Intn(len(candidates))]
}

func withPayload(r *rng.Source, root *gene.Gene, edit func(r *rng.Source, payload []byte) []byte) *gene.Gene {
	path := selectPayload(r, root)
	if path == nil {
		return root
	}
	target := gene.At(root, path)
	newPayload := edit(r, append([]byte(nil), target.Payload...))
	replacement := target.Clone()
	replacement.Payload = newPayload
	return gene.ReplaceAt(root, path, replacement)
}

// clampBudget keeps a byte-edit count within [1, len(payload)], the
// "sensible clamp" the operator design calls for.
func clampBudget(n, payloadLen int) int {
	if payloadLen == 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	if n > payloadLen {
		n = payloadLen
	}
	return n
}

// BitFlip flips n random bits in one randomly chosen non-empty payload.
func BitFlip(r *rng.Source, root *gene.Gene, n int) *gene.Gene {
	return withPayload(r, root, func(r *rng.Source, payload []byte) []byte {
		bits := clampBudget(n, len(payload)*8)
		for i := 0; i < bits; i++ {
			bitPos := r.Intn(len(payload) * 8)
			payload[bitPos/8] ^= 1 << uint(bitPos%8)
		}
		return payload
	})
}

// ByteFlip XORs n random bytes with random nonzero masks.
func ByteFlip(r *rng.Source, root *gene.Gene, n int) *gene.Gene {
	return withPayload(r, root, func(r *rng.Source, payload []byte) []byte {
		count := clampBudget(n, len(payload))
		for i := 0; i < count; i++ {
			pos := r.Intn(len(payload))
			mask := byte(1 + r.Intn(255))
			payload[pos] ^= mask
		}
		return payload
	})
}

// ByteSetHighBit sets the high bit of one random byte.
func ByteSetHighBit(r *rng.Source, root *gene.Gene) *gene.Gene {
	return withPayload(r, root, func(r *rng.Source, payload []byte) []byte {
		pos := r.Intn(len(payload))
		payload[pos] |= 0x80
		return payload
	})
}

// ByteClearHighBit clears the high bit of one random byte.
func ByteClearHighBit(r *rng.Source, root *gene.Gene) *gene.Gene {
	return withPayload(r, root, func(r *rng.Source, payload []byte) []byte {
		pos := r.Intn(len(payload))
		payload[pos] &^= 0x80
		return payload
	})
}

// RandomByte overwrites one byte with a uniformly random value.
func RandomByte(r *rng.Source, root *gene.Gene) *gene.Gene {
	return withPayload(r, root, func(r *rng.Source, payload []byte) []byte {
		pos := r.Intn(len(payload))
		payload[pos] = byte(r.Intn(256))
		return payload
	})
}

// ByteSwap swaps two random byte positions in one payload. On a
// single-byte payload it is necessarily a no-op.
func ByteSwap(r *rng.Source, root *gene.Gene) *gene.Gene {
	return withPayload(r, root, func(r *rng.Source, payload []byte) []byte {
		if len(payload) < 2 {
			return payload
		}
		i := r.Intn(len(payload))
		j := r.Intn(len(payload))
		payload[i], payload[j] = payload[j], payload[i]
		return payload
	})
}

// ByteInsert inserts k random bytes at a random position.
func ByteInsert(r *rng.Source, root *gene.Gene, k int) *gene.Gene {
	path := selectPayload(r, root)
	if path == nil {
		return root
	}
	target := gene.At(root, path)
	pos := r.Intn(len(target.Payload) + 1)
	insert := make([]byte, k)
	r.Bytes(insert)

	newPayload := make([]byte, 0, len(target.Payload)+k)
	newPayload = append(newPayload, target.Payload[:pos]...)
	newPayload = append(newPayload, insert...)
	newPayload = append(newPayload, target.Payload[pos:]...)

	replacement := target.Clone()
	replacement.Payload = newPayload
	return gene.ReplaceAt(root, path, replacement)
}

// ByteDelete removes k consecutive bytes at a random position. It refuses
// to empty a payload belonging to a gene whose format marks it essential,
// since an essential gene's serialization may depend on a non-empty
// payload; such a call is a no-op.
func ByteDelete(r *rng.Source, root *gene.Gene, k int) *gene.Gene {
	path := selectPayload(r, root)
	if path == nil {
		return root
	}
	target := gene.At(root, path)
	count := clampBudget(k, len(target.Payload))
	if target.Flags.Has(gene.FlagEssential) && count >= len(target.Payload) {
		count = len(target.Payload) - 1
	}
	if count <= 0 {
		return root
	}
	pos := r.Intn(len(target.Payload) - count + 1)

	newPayload := make([]byte, 0, len(target.Payload)-count)
	newPayload = append(newPayload, target.Payload[:pos]...)
	newPayload = append(newPayload, target.Payload[pos+count:]...)

	replacement := target.Clone()
	replacement.Payload = newPayload
	return gene.ReplaceAt(root, path, replacement)
}

// boundaryValues are the values BoundaryValue draws from, at widths where
// they fit: 1, 2, 4 and 8-byte windows.
var boundaryValues = []int64{0, 1, -1, math.MaxInt64, math.MinInt64, 0x7F, 0x80, 0xFF, 0xFFFF, 0x7FFFFFFF, 0x80000000}

// BoundaryValue replaces a 1/2/4/8-byte window at a random aligned
// position with a boundary value drawn from the canonical edge-case set,
// truncated (and, for the signed values, sign-extended within the window)
// to the chosen width.
func BoundaryValue(r *rng.Source, root *gene.Gene) *gene.Gene {
	return withPayload(r, root, func(r *rng.Source, payload []byte) []byte {
		widths := []int{1, 2, 4, 8}
		var candidates []int
		for _, w := range widths {
			if w <= len(payload) {
				candidates = append(candidates, w)
			}
		}
		if len(candidates) == 0 {
			return payload
		}
		width := candidates[r.Intn(len(candidates))]
		alignedPositions := (len(payload) - width) / width
		pos := r.Intn(alignedPositions+1) * width

		value := boundaryValues[r.Intn(len(boundaryValues))]
		for i := 0; i < width; i++ {
			payload[pos+i] = byte(value >> uint(8*i))
		}
		return payload
	})
}
