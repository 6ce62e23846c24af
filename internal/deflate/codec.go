// DeflateCodec combines LZ77 and Huffman into dynamic-Huffman (BTYPE=10)
// DEFLATE blocks, per spec section 4.6. Stored (BTYPE=00) and fixed-Huffman
// (BTYPE=01) blocks are never produced, and are rejected on decode.
package deflate

import "github.com/sqzarchive/squeeze/internal/huffman"

const (
	NumLitLenSyms = 286 // 256 literals + EOB + 29 length symbols
	EndOfBlock    = 256

	blockTypeDynamic = 2
	clLengthLimit    = 7
	litDistLimit     = 15
)

// EncodeBlock runs LZ77 over src and writes it as a single dynamic-Huffman
// DEFLATE block, setting the final-block flag when final is true.
func EncodeBlock(w huffman.BitWriter, src []byte, final bool, params Params) error {
	tokens := NewMatcher(src, params).Tokens()

	litFreq := make([]uint64, NumLitLenSyms)
	distFreq := make([]uint64, NumDistSyms)
	for _, t := range tokens {
		switch t.Kind {
		case TokenLiteral:
			litFreq[t.Sym]++
		case TokenLenDist:
			lsym, _, _ := EncodeLength(t.Len)
			litFreq[257+int(lsym)]++
			dsym, _, _ := EncodeDistance(t.Dist)
			distFreq[dsym]++
		}
	}
	if litFreq[EndOfBlock] == 0 {
		litFreq[EndOfBlock] = 1
	}
	distSum := uint64(0)
	for _, f := range distFreq {
		distSum += f
	}
	if distSum == 0 {
		distFreq[0] = 1
	}

	litLens, err := huffman.BuildLengths(litFreq, litDistLimit)
	if err != nil {
		return err
	}
	if err := huffman.Validate(litLens); err != nil {
		return err
	}
	litCodes := huffman.Canonical(litLens)

	distLens, err := huffman.BuildLengths(distFreq, litDistLimit)
	if err != nil {
		return err
	}
	if err := huffman.Validate(distLens); err != nil {
		return err
	}
	distCodes := huffman.Canonical(distLens)

	nrLitLen := 257
	for i := len(litLens) - 1; i >= 257; i-- {
		if litLens[i] != 0 {
			nrLitLen = i + 1
			break
		}
	}
	nrDist := 1
	for i := len(distLens) - 1; i >= 1; i-- {
		if distLens[i] != 0 {
			nrDist = i + 1
			break
		}
	}

	header := uint64(blockTypeDynamic)
	if final {
		header |= 4
	}
	if err := w.EncodeBits(header, 3); err != nil {
		return err
	}
	if err := w.EncodeBits(uint64(nrLitLen-257), 5); err != nil {
		return err
	}
	if err := w.EncodeBits(uint64(nrDist-1), 5); err != nil {
		return err
	}

	combined := make([]uint8, 0, nrLitLen+nrDist)
	combined = append(combined, litLens[:nrLitLen]...)
	combined = append(combined, distLens[:nrDist]...)
	clEntries := EncodeCodeLengths(combined)
	clFreq := HistogramCLEntries(clEntries)
	clLens, err := huffman.BuildLengths(clFreq, clLengthLimit)
	if err != nil {
		return err
	}
	if err := huffman.Validate(clLens); err != nil {
		return err
	}
	clCodes := huffman.Canonical(clLens)

	hclen := TrimTrailingCLLengths(clLens)
	if err := w.EncodeBits(uint64(hclen-4), 4); err != nil {
		return err
	}
	for i := 0; i < hclen; i++ {
		if err := w.EncodeBits(uint64(clLens[CLOrder[i]]), 3); err != nil {
			return err
		}
	}
	for _, e := range clEntries {
		if err := WriteCLEntry(w, clCodes, e); err != nil {
			return err
		}
	}

	for _, t := range tokens {
		switch t.Kind {
		case TokenLiteral:
			if err := huffman.EncodeSymbol(w, litCodes, int(t.Sym)); err != nil {
				return err
			}
		case TokenLenDist:
			lsym, lextraBits, lextraVal := EncodeLength(t.Len)
			if err := huffman.EncodeSymbol(w, litCodes, 257+int(lsym)); err != nil {
				return err
			}
			if lextraBits > 0 {
				if err := w.EncodeBits(uint64(lextraVal), lextraBits); err != nil {
					return err
				}
			}
			dsym, dextraBits, dextraVal := EncodeDistance(t.Dist)
			if err := huffman.EncodeSymbol(w, distCodes, int(dsym)); err != nil {
				return err
			}
			if dextraBits > 0 {
				if err := w.EncodeBits(uint64(dextraVal), dextraBits); err != nil {
					return err
				}
			}
		}
	}
	return huffman.EncodeSymbol(w, litCodes, EndOfBlock)
}

// DecodeBlock reads one DEFLATE block from r, appending decoded bytes to
// win, and reports whether it was flagged as the final block.
func DecodeBlock(r huffman.BitReader, win *Window) (final bool, err error) {
	header, err := r.DecodeBits(3)
	if err != nil {
		return false, err
	}
	final = header&4 != 0
	btype := header & 3
	if btype == 3 {
		return false, ErrInvalidHeaderBits
	}
	if btype != blockTypeDynamic {
		return false, ErrUnsupportedBlockType
	}

	hlit, err := r.DecodeBits(5)
	if err != nil {
		return false, err
	}
	nrLitLen := 257 + int(hlit)
	hdist, err := r.DecodeBits(5)
	if err != nil {
		return false, err
	}
	nrDist := 1 + int(hdist)
	hclenMinus4, err := r.DecodeBits(4)
	if err != nil {
		return false, err
	}
	hclen := 4 + int(hclenMinus4)

	clLens := make([]uint8, NumCLSymbols)
	for i := 0; i < hclen; i++ {
		v, err := r.DecodeBits(3)
		if err != nil {
			return false, err
		}
		clLens[CLOrder[i]] = uint8(v)
	}
	if err := huffman.Validate(clLens); err != nil {
		return false, ErrInvalidCodeLengths
	}
	clCodes := huffman.Canonical(clLens)
	clTree, err := huffman.BuildTree(clCodes)
	if err != nil {
		return false, err
	}

	combined, err := ReadCodeLengths(clTree, r, nrLitLen+nrDist)
	if err != nil {
		return false, err
	}
	litLens := make([]uint8, NumLitLenSyms)
	copy(litLens, combined[:nrLitLen])
	distLens := make([]uint8, NumDistSyms)
	copy(distLens, combined[nrLitLen:nrLitLen+nrDist])

	if err := huffman.Validate(litLens); err != nil {
		return false, ErrInvalidCodeLengths
	}
	if err := huffman.Validate(distLens); err != nil {
		return false, ErrInvalidCodeLengths
	}
	litTree, err := huffman.BuildTree(huffman.Canonical(litLens))
	if err != nil {
		return false, err
	}
	distTree, err := huffman.BuildTree(huffman.Canonical(distLens))
	if err != nil {
		return false, err
	}

	for {
		sym, err := litTree.Decode(r)
		if err != nil {
			return false, ErrLitLenDecode
		}
		if sym == EndOfBlock {
			return final, nil
		}
		if sym < EndOfBlock {
			win.Literal(byte(sym))
			continue
		}
		lsym := uint8(sym - 257)
		var lextra uint64
		if bits := LengthExtraBits(lsym); bits > 0 {
			lextra, err = r.DecodeBits(bits)
			if err != nil {
				return false, err
			}
		}
		length, err := DecodeLength(lsym, uint16(lextra))
		if err != nil {
			return false, ErrInvalidLenDistSymbol
		}

		dsym, err := distTree.Decode(r)
		if err != nil {
			return false, ErrInvalidDistanceSymbol
		}
		var dextra uint64
		if bits := DistanceExtraBits(uint8(dsym)); bits > 0 {
			dextra, err = r.DecodeBits(bits)
			if err != nil {
				return false, err
			}
		}
		dist, err := DecodeDistance(uint8(dsym), uint16(dextra))
		if err != nil {
			return false, ErrInvalidDistanceSymbol
		}
		if err := win.Match(length, dist); err != nil {
			return false, err
		}
	}
}
