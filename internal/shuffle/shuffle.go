// Package shuffle produces seeded, reproducible permutations of suite order.
//
// The algorithm is fixed and versioned so that any implementation, in any
// language, yields the same order for the same seed:
//
//   - Generator: Bob Jenkins' 32-bit integer hash applied to a running state,
//     returning (state & 0xfffffff) / 0x10000000 in [0, 1).
//   - Permutation: Fisher-Yates from the last index down to 1, picking
//     j = floor(r * (i + 1)).
//
// All arithmetic wraps modulo 2^32.
package shuffle

import "math"

// Algorithm names the permutation scheme implemented by this package.
const Algorithm = "jenkins32-fy/1"

// Generator is a seeded pseudo-random source. It is not safe for concurrent use.
type Generator struct {
	state uint32
}

// NewGenerator seeds a generator. Seeds are reduced modulo 2^32.
func NewGenerator(seed int64) *Generator {
	return &Generator{state: uint32(seed)}
}

// Next advances the generator and returns a value in [0, 1).
func (g *Generator) Next() float64 {
	a := g.state
	a = a + 0x7ed55d16 + (a << 12)
	a = a ^ 0xc761c23c ^ (a >> 19)
	a = a + 0x165667b1 + (a << 5)
	a = (a + 0xd3a2646c) ^ (a << 9)
	a = a + 0xfd7046c5 + (a << 3)
	a = a ^ 0xb55a4f09 ^ (a >> 16)
	g.state = a
	return float64(a&0xfffffff) / 0x10000000
}

// Permutation returns a permutation of [0, n) drawn from g.
func (g *Generator) Permutation(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(math.Floor(g.Next() * float64(i+1)))
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Permutation is a convenience for a single permutation from a fresh seed.
func Permutation(n int, seed int64) []int {
	return NewGenerator(seed).Permutation(n)
}

// Apply reorders items according to order, returning a new slice.
func Apply[T any](items []T, order []int) []T {
	out := make([]T, len(order))
	for i, idx := range order {
		out[i] = items[idx]
	}
	return out
}
