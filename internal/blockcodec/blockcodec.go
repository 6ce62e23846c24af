// Package blockcodec is the per-entry encode/decode façade: given a
// CompressionParams (method + level) it picks None, the standalone
// 257-symbol Huffman format, or chunked DEFLATE, per spec section 4.7.
package blockcodec

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/sqzarchive/squeeze/internal/bitio"
	"github.com/sqzarchive/squeeze/internal/deflate"
	"github.com/sqzarchive/squeeze/internal/huffman"
)

// Method identifies the content encoding carried in an entry header.
type Method uint8

const (
	MethodNone    Method = 0
	MethodHuffman Method = 1
	MethodDeflate Method = 2
)

// ErrInvalidMethod is returned for any Method value outside None/Huffman/Deflate.
var ErrInvalidMethod = errors.New("invalid compression method")

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "None"
	case MethodHuffman:
		return "Huffman"
	case MethodDeflate:
		return "Deflate"
	default:
		return "invalid"
	}
}

// huffmanBlockSizesPerLevel is also used as the general block chunk size for
// EncoderPool's fixed-size scheduling (spec sections 4.9/4.10 do not name a
// separate constant, and section 6 ties it to level for Huffman explicitly;
// reusing one table keeps both methods' block boundaries level-driven).
var huffmanBlockSizesPerLevel = [9]int{
	4 * 1024, 4 * 1024, 8 * 1024, 16 * 1024, 24 * 1024,
	32 * 1024, 48 * 1024, 64 * 1024, 128 * 1024,
}

// BlockSize returns the fixed chunk size used to split a content stream for
// the given level, clamping level into [0,8].
func BlockSize(level int) int {
	if level < 0 {
		level = 0
	}
	if level > 8 {
		level = 8
	}
	return huffmanBlockSizesPerLevel[level]
}

// Encode writes src to w under method/level. None is a byte-for-byte copy;
// Huffman and Deflate chunk src into BlockSize(level) pieces.
func Encode(w io.Writer, src []byte, method Method, level int) error {
	switch method {
	case MethodNone:
		_, err := w.Write(src)
		return err
	case MethodHuffman:
		bw := bufio.NewWriter(w)
		enc := bitio.NewEncoder(bw)
		if err := encodeHuffman(enc, src, level); err != nil {
			return err
		}
		if _, err := enc.Finalize(); err != nil {
			return err
		}
		return bw.Flush()
	case MethodDeflate:
		bw := bufio.NewWriter(w)
		enc := bitio.NewEncoder(bw)
		if err := encodeDeflate(enc, src, level); err != nil {
			return err
		}
		if _, err := enc.Finalize(); err != nil {
			return err
		}
		return bw.Flush()
	default:
		return ErrInvalidMethod
	}
}

// Decode reads one entry's content from r under method/level. contentSize is
// the number of wire bytes the entry occupies (EntryHeader's own
// content_size field, per spec section 3) — for None it is also the decoded
// length, since that method is an identity transform; for Huffman and
// Deflate it only bounds how much of r belongs to this entry; the actual
// decoded length falls out of the self-terminating block stream.
func Decode(r io.Reader, contentSize int64, method Method, level int) ([]byte, error) {
	switch method {
	case MethodNone:
		out := make([]byte, contentSize)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, err
		}
		return out, nil
	case MethodHuffman:
		src := &limitedSource{r: bufio.NewReader(r), remaining: contentSize}
		dec := bitio.NewDecoder(src)
		return decodeHuffman(dec, src)
	case MethodDeflate:
		src := &limitedSource{r: bufio.NewReader(r), remaining: contentSize}
		dec := bitio.NewDecoder(src)
		return decodeDeflate(dec, src)
	default:
		return nil, ErrInvalidMethod
	}
}

// limitedSource is a bitio.ByteSource that counts down a fixed wire-byte
// budget, letting a block decode loop know when it has consumed an entire
// entry's content without needing a byte-aligned end-of-block marker.
type limitedSource struct {
	r         *bufio.Reader
	remaining int64
}

func (s *limitedSource) ReadByte() (byte, error) {
	if s.remaining <= 0 {
		return 0, io.EOF
	}
	b, err := s.r.ReadByte()
	if err != nil {
		return 0, err
	}
	s.remaining--
	return b, nil
}

// encodeHuffman chunks src into BlockSize(level) pieces and encodes each as
// an independent, byte-aligned Huffman block (padding after every block, not
// just the last): EncoderPool compresses chunks on separate workers and
// concatenates their independently-finalized output, so a single-call
// encode of the same content must byte-align identically or the two paths
// would disagree on the wire format.
func encodeHuffman(enc *bitio.Encoder, src []byte, level int) error {
	size := BlockSize(level)
	if len(src) == 0 {
		if err := encodeHuffmanBlock(enc, nil); err != nil {
			return err
		}
		_, err := enc.Finalize()
		return err
	}
	for off := 0; off < len(src); off += size {
		end := off + size
		if end > len(src) {
			end = len(src)
		}
		if err := encodeHuffmanBlock(enc, src[off:end]); err != nil {
			return err
		}
		if _, err := enc.Finalize(); err != nil {
			return err
		}
	}
	return nil
}

const (
	huffmanAlphabetSize = 257
	huffmanTerminator   = 256
	clLengthLimit       = 7
	huffmanLengthLimit  = 15
)

func encodeHuffmanBlock(w huffman.BitWriter, chunk []byte) error {
	freq := make([]uint64, huffmanAlphabetSize)
	for _, b := range chunk {
		freq[b]++
	}
	if freq[huffmanTerminator] == 0 {
		freq[huffmanTerminator] = 1
	}
	lengths, codes, _, err := huffman.FromFrequencies(freq, huffmanLengthLimit)
	if err != nil {
		return err
	}

	entries := deflate.EncodeCodeLengths(lengths)
	clFreq := deflate.HistogramCLEntries(entries)
	clLens, err := huffman.BuildLengths(clFreq, clLengthLimit)
	if err != nil {
		return err
	}
	if err := huffman.Validate(clLens); err != nil {
		return err
	}
	clCodes := huffman.Canonical(clLens)

	hclen := deflate.TrimTrailingCLLengths(clLens)
	if err := w.EncodeBits(uint64(hclen-4), 4); err != nil {
		return err
	}
	for i := 0; i < hclen; i++ {
		if err := w.EncodeBits(uint64(clLens[deflate.CLOrder[i]]), 3); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := deflate.WriteCLEntry(w, clCodes, e); err != nil {
			return err
		}
	}

	for _, b := range chunk {
		if err := huffman.EncodeSymbol(w, codes, int(b)); err != nil {
			return err
		}
	}
	return huffman.EncodeSymbol(w, codes, huffmanTerminator)
}

// decodeHuffman decodes blocks until src's wire-byte budget is exhausted,
// realigning to a byte boundary after each one to match encodeHuffman's
// per-block padding. Every encoded stream, including an empty source,
// carries at least one block (encodeHuffman always emits one even for zero
// bytes), so this always runs at least once.
func decodeHuffman(dec *bitio.Decoder, src *limitedSource) ([]byte, error) {
	var out []byte
	for {
		chunk, err := decodeHuffmanBlock(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		dec.AlignByte()
		if src.remaining <= 0 {
			return out, nil
		}
	}
}

func decodeHuffmanBlock(r huffman.BitReader) ([]byte, error) {
	hclenMinus4, err := r.DecodeBits(4)
	if err != nil {
		return nil, err
	}
	hclen := 4 + int(hclenMinus4)

	clLens := make([]uint8, deflate.NumCLSymbols)
	for i := 0; i < hclen; i++ {
		v, err := r.DecodeBits(3)
		if err != nil {
			return nil, err
		}
		clLens[deflate.CLOrder[i]] = uint8(v)
	}
	if err := huffman.Validate(clLens); err != nil {
		return nil, deflate.ErrInvalidCodeLengths
	}
	clTree, err := huffman.BuildTree(huffman.Canonical(clLens))
	if err != nil {
		return nil, err
	}

	lengths, err := deflate.ReadCodeLengths(clTree, r, huffmanAlphabetSize)
	if err != nil {
		return nil, err
	}
	if err := huffman.Validate(lengths); err != nil {
		return nil, deflate.ErrInvalidCodeLengths
	}
	tree, err := huffman.BuildTree(huffman.Canonical(lengths))
	if err != nil {
		return nil, err
	}

	var out []byte
	for {
		sym, err := tree.Decode(r)
		if err != nil {
			return nil, deflate.ErrLitLenDecode
		}
		if sym == huffmanTerminator {
			return out, nil
		}
		out = append(out, byte(sym))
	}
}

// encodeDeflate chunks src into BlockSize(level) pieces, byte-aligning after
// every block for the same reason encodeHuffman does: EncoderPool compresses
// chunks independently, so the single-call path must match block-for-block.
// Each chunk is itself flagged final, since each is its own complete DEFLATE
// bit stream rather than a sub-block of one continuous stream.
func encodeDeflate(enc *bitio.Encoder, src []byte, level int) error {
	size := BlockSize(level)
	params := deflate.ParamsForLevel(level)
	if len(src) == 0 {
		if err := deflate.EncodeBlock(enc, nil, true, params); err != nil {
			return err
		}
		_, err := enc.Finalize()
		return err
	}
	for off := 0; off < len(src); off += size {
		end := off + size
		if end > len(src) {
			end = len(src)
		}
		if err := deflate.EncodeBlock(enc, src[off:end], true, params); err != nil {
			return err
		}
		if _, err := enc.Finalize(); err != nil {
			return err
		}
	}
	return nil
}

// decodeDeflate decodes one chunk's block per iteration, realigning to a
// byte boundary afterward (encodeDeflate flags every chunk final and pads
// it independently, since EncoderPool compresses chunks on separate
// workers), continuing while src's wire-byte budget remains. A final=false
// block would signal more sub-blocks within the same chunk's own bit
// stream; none of squeeze's own encoders ever produce one, but DecodeBlock
// is still driven by its own flag rather than assuming exactly one call per
// chunk, so a future multi-block-per-chunk encoder would still decode.
func decodeDeflate(dec *bitio.Decoder, src *limitedSource) ([]byte, error) {
	var win deflate.Window
	for {
		final, err := deflate.DecodeBlock(dec, &win)
		if err != nil {
			return nil, err
		}
		if !final {
			continue
		}
		dec.AlignByte()
		if src.remaining <= 0 {
			return win.Bytes(), nil
		}
	}
}
