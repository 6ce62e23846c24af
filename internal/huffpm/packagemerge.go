// Package huffpm assigns length-limited, Kraft-optimal Huffman code lengths
// to a set of symbol weights via Larmore & Hirschberg's package-merge
// technique: symbols are repeatedly paired into "packages" of combined
// weight across max-length levels, and a symbol's final code length is the
// number of packages (at any level) that still contain it after keeping
// only the lightest 2(m-1) items of the last level.
package huffpm

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// ErrNoSolution is returned when the weight set cannot be represented
// within the given maximum code length (too many non-zero symbols for 2^L).
var ErrNoSolution = errors.New("no solution for the given width and set of weights")

// Lengths computes code lengths for freq, one per index, such that no
// length exceeds limit and the resulting lengths minimize sum(freq[i]*len[i])
// subject to the Kraft inequality. Zero-weight symbols get length 0. If
// exactly one symbol has non-zero weight, it gets length 1 (so a full binary
// tree with a sentinel leaf can still be built). limit must be in [1, 64].
func Lengths(freq []uint64, limit uint8) ([]uint8, error) {
	lengths := make([]uint8, len(freq))

	type weighted struct {
		weight uint64
		orig   int
	}
	var nonzero []weighted
	for i, w := range freq {
		if w > 0 {
			nonzero = append(nonzero, weighted{w, i})
		}
	}

	m := len(nonzero)
	if m == 0 {
		return lengths, nil
	}
	if m == 1 {
		lengths[nonzero[0].orig] = 1
		return lengths, nil
	}

	if limit < 64 && uint64(m) > uint64(1)<<limit {
		return nil, ErrNoSolution
	}

	sort.Slice(nonzero, func(i, j int) bool {
		if nonzero[i].weight != nonzero[j].weight {
			return nonzero[i].weight < nonzero[j].weight
		}
		return nonzero[i].orig < nonzero[j].orig
	})

	words := (m + 63) / 64
	newBits := func() []uint64 { return make([]uint64, words) }
	setBit := func(b []uint64, i int) { b[i/64] |= 1 << uint(i%64) }
	orBits := func(a, c []uint64) []uint64 {
		out := make([]uint64, words)
		for i := range out {
			out[i] = a[i] | c[i]
		}
		return out
	}

	type item struct {
		weight uint64
		bits   []uint64
	}

	base := make([]item, m)
	for i, w := range nonzero {
		b := newBits()
		setBit(b, i)
		base[i] = item{weight: w.weight, bits: b}
	}

	mergeByWeight := func(a, b []item) []item {
		out := make([]item, 0, len(a)+len(b))
		i, j := 0, 0
		for i < len(a) && j < len(b) {
			if a[i].weight <= b[j].weight {
				out = append(out, a[i])
				i++
			} else {
				out = append(out, b[j])
				j++
			}
		}
		out = append(out, a[i:]...)
		out = append(out, b[j:]...)
		return out
	}

	level := base // list at the current level, starts as list_L
	for lvl := int(limit) - 1; lvl >= 1; lvl-- {
		packages := make([]item, 0, len(level)/2)
		for k := 0; k+1 < len(level); k += 2 {
			packages = append(packages, item{
				weight: level[k].weight + level[k+1].weight,
				bits:   orBits(level[k].bits, level[k+1].bits),
			})
		}
		level = mergeByWeight(base, packages)
	}

	need := 2*m - 2
	if need > len(level) {
		need = len(level)
	}
	for _, it := range level[:need] {
		for i := 0; i < m; i++ {
			if it.bits[i/64]&(1<<uint(i%64)) != 0 {
				lengths[nonzero[i].orig]++
			}
		}
	}

	for _, n := range nonzero {
		if lengths[n.orig] == 0 || lengths[n.orig] > limit {
			return nil, ErrNoSolution
		}
	}

	return lengths, nil
}
