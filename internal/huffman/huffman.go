// Package huffman builds canonical Huffman codes from symbol frequencies
// (via package-merge length assignment), generates canonical (code, length)
// pairs, and builds an arena-allocated decode tree.
package huffman

import (
	"math/big"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/sqzarchive/squeeze/internal/huffpm"
)

// Code pairs a canonical bit pattern with its length. Length 0 means the
// symbol is absent from the code.
type Code struct {
	Code   uint16
	Length uint8
}

var (
	// ErrInvalidLengths is returned when a length vector fails the Kraft
	// equality check (or the single-nonzero-length special case).
	ErrInvalidLengths = errors.New("invalid code lengths")
	// ErrPrefixViolation is returned when inserting a code would make it a
	// prefix of an already-inserted code, or vice versa.
	ErrPrefixViolation = errors.New("attempt to insert a code that is a prefix of another")
	// ErrEmptyTree is returned when decoding against a tree with zero codes.
	ErrEmptyTree = errors.New("huffman tree has no codes")
	// ErrInvalidSymbol is returned when decoding reaches the sentinel leaf
	// or otherwise cannot resolve a valid symbol.
	ErrInvalidSymbol = errors.New("invalid huffman symbol")
	// ErrNoCode is returned when encoding a symbol whose length is 0.
	ErrNoCode = errors.New("symbol has no assigned code")
)

// SentinelSymbol marks the sentinel leaf added to single-code trees so the
// decoder never walks into a nil child.
const SentinelSymbol = -1

// BuildLengths assigns length-limited canonical code lengths to freq via
// package-merge.
func BuildLengths(freq []uint64, limit uint8) ([]uint8, error) {
	return huffpm.Lengths(freq, limit)
}

// Validate checks that lengths satisfies the Kraft equality (or the single
// non-zero length special case, which must be length 1). A vector with no
// non-zero length is accepted as the empty code.
func Validate(lengths []uint8) error {
	nz := 0
	var only uint8
	for _, l := range lengths {
		if l > 0 {
			nz++
			only = l
		}
	}
	if nz == 0 {
		return nil
	}
	if nz == 1 {
		if only != 1 {
			return ErrInvalidLengths
		}
		return nil
	}

	maxLen := uint8(0)
	for _, l := range lengths {
		if l > maxLen {
			maxLen = l
		}
	}
	one := big.NewInt(1)
	sum := new(big.Int)
	for _, l := range lengths {
		if l == 0 {
			continue
		}
		sum.Add(sum, new(big.Int).Lsh(one, uint(maxLen-l)))
	}
	scale := new(big.Int).Lsh(one, uint(maxLen))
	if sum.Cmp(scale) != 0 {
		return ErrInvalidLengths
	}
	return nil
}

// Canonical generates canonical (code, length) pairs from a length vector,
// following the standard rule: sort (length, index) ascending, assign code 0
// to the first, and each subsequent code is (prev+1) shifted left by the
// length delta.
func Canonical(lengths []uint8) []Code {
	codes := make([]Code, len(lengths))

	type li struct {
		length uint8
		index  int
	}
	items := make([]li, 0, len(lengths))
	for i, l := range lengths {
		if l > 0 {
			items = append(items, li{l, i})
		}
	}
	sort.Slice(items, func(a, b int) bool {
		if items[a].length != items[b].length {
			return items[a].length < items[b].length
		}
		return items[a].index < items[b].index
	})
	if len(items) == 0 {
		return codes
	}

	code := uint16(0)
	prevLen := items[0].length
	codes[items[0].index] = Code{Code: code, Length: prevLen}
	for _, it := range items[1:] {
		code = (code + 1) << (it.length - prevLen)
		codes[it.index] = Code{Code: code, Length: it.length}
		prevLen = it.length
	}
	return codes
}

// node is an arena entry: either an internal node with up to two children,
// or a leaf holding a symbol index (or SentinelSymbol).
type node struct {
	children [2]int32
	leaf     bool
	symbol   int32
}

// Tree is an arena-allocated binary decode tree. A zero-value Tree (nil
// nodes) represents the empty tree.
type Tree struct {
	nodes []node
}

func (t *Tree) alloc() int32 {
	t.nodes = append(t.nodes, node{children: [2]int32{-1, -1}})
	return int32(len(t.nodes) - 1)
}

// BuildTree inserts every non-zero-length code into a fresh arena tree.
func BuildTree(codes []Code) (*Tree, error) {
	t := &Tree{}
	root := t.alloc()
	count := 0

	for sym, c := range codes {
		if c.Length == 0 {
			continue
		}
		count++
		cur := root
		for b := int(c.Length) - 1; b >= 0; b-- {
			if t.nodes[cur].leaf {
				return nil, ErrPrefixViolation
			}
			bit := (c.Code >> uint(b)) & 1
			child := t.nodes[cur].children[bit]
			if b == 0 {
				if child != -1 {
					return nil, ErrPrefixViolation
				}
				leaf := t.alloc()
				t.nodes[leaf].leaf = true
				t.nodes[leaf].symbol = int32(sym)
				t.nodes[cur].children[bit] = leaf
				break
			}
			if child == -1 {
				child = t.alloc()
				t.nodes[cur].children[bit] = child
			}
			cur = child
		}
	}

	if count == 0 {
		t.nodes = nil
		return t, nil
	}

	// Exactly one code: root has only a left child. Attach a sentinel leaf
	// on the right so the decoder never walks into a null child.
	if t.nodes[root].children[0] != -1 && t.nodes[root].children[1] == -1 {
		sentinel := t.alloc()
		t.nodes[sentinel].leaf = true
		t.nodes[sentinel].symbol = SentinelSymbol
		t.nodes[root].children[1] = sentinel
	}

	return t, nil
}

// BitReader is the minimal interface Decode needs: one bit at a time, MSB
// first, matching bitio.Decoder.DecodeBits(1).
type BitReader interface {
	DecodeBits(n uint8) (uint64, error)
}

// Decode descends the tree one bit at a time until it reaches a leaf,
// returning its symbol, or ErrInvalidSymbol if it is the sentinel.
func (t *Tree) Decode(r BitReader) (int, error) {
	if len(t.nodes) == 0 {
		return 0, ErrEmptyTree
	}
	cur := int32(0)
	for {
		n := &t.nodes[cur]
		if n.leaf {
			if n.symbol == SentinelSymbol {
				return 0, ErrInvalidSymbol
			}
			return int(n.symbol), nil
		}
		bit, err := r.DecodeBits(1)
		if err != nil {
			return 0, err
		}
		next := n.children[bit]
		if next == -1 {
			return 0, ErrInvalidSymbol
		}
		cur = next
	}
}

// BitWriter is the minimal interface EncodeSymbol needs.
type BitWriter interface {
	EncodeBits(value uint64, n uint8) error
}

// EncodeSymbol writes symbol's canonical code.
func EncodeSymbol(w BitWriter, codes []Code, symbol int) error {
	if symbol < 0 || symbol >= len(codes) {
		return ErrNoCode
	}
	c := codes[symbol]
	if c.Length == 0 {
		return ErrNoCode
	}
	return w.EncodeBits(uint64(c.Code), c.Length)
}

// FromFrequencies is the common convenience path: build lengths, validate,
// generate canonical codes and a decode tree in one call.
func FromFrequencies(freq []uint64, limit uint8) (lengths []uint8, codes []Code, tree *Tree, err error) {
	lengths, err = BuildLengths(freq, limit)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := Validate(lengths); err != nil {
		return nil, nil, nil, err
	}
	codes = Canonical(lengths)
	tree, err = BuildTree(codes)
	if err != nil {
		return nil, nil, nil, err
	}
	return lengths, codes, tree, nil
}
