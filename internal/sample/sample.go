// Package sample draws reproducible uniform samples without replacement.
package sample

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// Indices returns min(n, size) distinct positions in [0, size), chosen
// uniformly at random for the given seed and sorted ascending. The same
// (size, n, seed) always yields the same positions. n <= 0 selects every
// position.
func Indices(size, n int, seed uint64) []int {
	if size <= 0 {
		return []int{}
	}
	if n <= 0 || n >= size {
		all := make([]int, size)
		for i := range all {
			all[i] = i
		}
		return all
	}

	idx := make([]int, n)
	sampleuv.WithoutReplacement(idx, size, rand.NewPCG(seed, seed))
	slices.Sort(idx)
	return idx
}

// Take returns the items at Indices(len(items), n, seed), in source order.
// The input is never truncated to its first n elements.
func Take[T any](items []T, n int, seed uint64) []T {
	idx := Indices(len(items), n, seed)
	if len(idx) == len(items) {
		return items
	}
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}
