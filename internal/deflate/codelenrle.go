package deflate

import "github.com/sqzarchive/squeeze/internal/huffman"

// CLOrder is the fixed RFC 1951 transmission order of the 19 code-length
// alphabet symbols.
var CLOrder = [19]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// NumCLSymbols is the size of the code-length meta-alphabet.
const NumCLSymbols = 19

// CLEntry is one token of the code-length RLE stream: either a literal
// length (0..15, ExtraBits == 0) or one of the repeat symbols 16/17/18 with
// its extra-bits value.
type CLEntry struct {
	Symbol     uint8
	ExtraBits  uint8
	ExtraValue uint16
}

// EncodeCodeLengths greedily RLE-encodes a sequence of code lengths (each
// 0..15) per RFC 1951 section 3.2.7.
func EncodeCodeLengths(lengths []uint8) []CLEntry {
	var out []CLEntry
	i := 0
	for i < len(lengths) {
		if lengths[i] == 0 {
			run := 1
			for i+run < len(lengths) && lengths[i+run] == 0 {
				run++
			}
			j := 0
			for run-j >= 138 {
				out = append(out, CLEntry{Symbol: 18, ExtraBits: 7, ExtraValue: 138 - 11})
				j += 138
			}
			rem := run - j
			switch {
			case rem >= 11:
				out = append(out, CLEntry{Symbol: 18, ExtraBits: 7, ExtraValue: uint16(rem - 11)})
			case rem >= 3:
				out = append(out, CLEntry{Symbol: 17, ExtraBits: 3, ExtraValue: uint16(rem - 3)})
			default:
				for k := 0; k < rem; k++ {
					out = append(out, CLEntry{Symbol: 0})
				}
			}
			i += run
			continue
		}

		val := lengths[i]
		run := 1
		for i+run < len(lengths) && lengths[i+run] == val {
			run++
		}
		out = append(out, CLEntry{Symbol: val})
		remaining := run - 1
		for remaining >= 3 {
			take := remaining
			if take > 6 {
				take = 6
			}
			out = append(out, CLEntry{Symbol: 16, ExtraBits: 2, ExtraValue: uint16(take - 3)})
			remaining -= take
		}
		for k := 0; k < remaining; k++ {
			out = append(out, CLEntry{Symbol: val})
		}
		i += run
	}
	return out
}

// HistogramCLEntries builds the 19-symbol frequency table the secondary
// Huffman code is built from.
func HistogramCLEntries(entries []CLEntry) []uint64 {
	freq := make([]uint64, NumCLSymbols)
	for _, e := range entries {
		freq[e.Symbol]++
	}
	return freq
}

// TrimTrailingCLLengths returns the number of secondary code lengths
// (HCLEN + 4) that must be transmitted: trailing zero lengths, in CLOrder,
// are elided down to a minimum of 4.
func TrimTrailingCLLengths(lengths []uint8) int {
	n := NumCLSymbols
	for n > 4 && lengths[CLOrder[n-1]] == 0 {
		n--
	}
	return n
}

// WriteCLEntry emits one RLE token: its secondary Huffman code, followed by
// any extra bits the symbol carries.
func WriteCLEntry(w huffman.BitWriter, codes []huffman.Code, e CLEntry) error {
	if err := huffman.EncodeSymbol(w, codes, int(e.Symbol)); err != nil {
		return err
	}
	if e.ExtraBits == 0 {
		return nil
	}
	return w.EncodeBits(uint64(e.ExtraValue), e.ExtraBits)
}

// ReadCodeLengths decodes exactly n code lengths from the RLE stream using
// the secondary decode tree.
func ReadCodeLengths(tree *huffman.Tree, r interface {
	huffman.BitReader
}, n int) ([]uint8, error) {
	lengths := make([]uint8, 0, n)
	for len(lengths) < n {
		sym, err := tree.Decode(r)
		if err != nil {
			return nil, err
		}
		switch sym {
		case 16:
			if len(lengths) == 0 {
				return nil, ErrRepeatWithoutPrevious
			}
			extra, err := r.DecodeBits(2)
			if err != nil {
				return nil, err
			}
			prev := lengths[len(lengths)-1]
			for k := uint64(0); k < extra+3; k++ {
				lengths = append(lengths, prev)
			}
		case 17:
			extra, err := r.DecodeBits(3)
			if err != nil {
				return nil, err
			}
			for k := uint64(0); k < extra+3; k++ {
				lengths = append(lengths, 0)
			}
		case 18:
			extra, err := r.DecodeBits(7)
			if err != nil {
				return nil, err
			}
			for k := uint64(0); k < extra+11; k++ {
				lengths = append(lengths, 0)
			}
		default:
			lengths = append(lengths, uint8(sym))
		}
	}
	if len(lengths) > n {
		lengths = lengths[:n]
	}
	return lengths, nil
}
