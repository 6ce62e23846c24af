package deflate

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/sqzarchive/squeeze/internal/bitio"
)

func TestLengthDistanceSymbolRoundTrip(t *testing.T) {
	for length := uint16(3); length <= 258; length++ {
		sym, extraBits, extraVal := EncodeLength(length)
		got, err := DecodeLength(sym, extraVal)
		if err != nil {
			t.Fatalf("length %d: %v", length, err)
		}
		if got != length {
			t.Fatalf("length %d: round-trip got %d (sym %d extra %d/%d)", length, got, sym, extraBits, extraVal)
		}
	}
	for _, dist := range []uint16{1, 2, 3, 4, 5, 100, 1000, 4096, 32768} {
		sym, _, extraVal := EncodeDistance(dist)
		got, err := DecodeDistance(sym, extraVal)
		if err != nil {
			t.Fatalf("dist %d: %v", dist, err)
		}
		if got != dist {
			t.Fatalf("dist %d: round-trip got %d", dist, got)
		}
	}
}

func TestMatcherTokensReconstruct(t *testing.T) {
	src := []byte("the quick brown fox the quick brown fox jumps over the lazy dog dog dog dog")
	m := NewMatcher(src, ParamsForLevel(6))
	tokens := m.Tokens()

	var win Window
	for _, tok := range tokens {
		switch tok.Kind {
		case TokenLiteral:
			win.Literal(tok.Sym)
		case TokenLenDist:
			if err := win.Match(tok.Len, tok.Dist); err != nil {
				t.Fatalf("Match: %v", err)
			}
		}
	}
	if !bytes.Equal(win.Bytes(), src) {
		t.Fatalf("token stream did not reconstruct source:\n got %q\nwant %q", win.Bytes(), src)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	src := []byte("abababababababab xyz xyz xyz xyz hello world hello world")
	tokens := NewMatcher(src, ParamsForLevel(4)).Tokens()

	packed := Pack(tokens)
	got, err := Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(got) != len(tokens) {
		t.Fatalf("token count mismatch: got %d want %d", len(got), len(tokens))
	}
	for i := range tokens {
		if got[i] != tokens[i] {
			t.Fatalf("token %d mismatch: got %+v want %+v", i, got[i], tokens[i])
		}
	}
}

func encodeDecodeBlock(t *testing.T, src []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := bitio.NewEncoder(&buf)
	if err := EncodeBlock(enc, src, true, ParamsForLevel(level)); err != nil {
		t.Fatalf("EncodeBlock: %v", err)
	}
	if _, err := enc.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	dec := bitio.NewDecoder(bytes.NewReader(buf.Bytes()))
	var win Window
	final, err := DecodeBlock(dec, &win)
	if err != nil {
		t.Fatalf("DecodeBlock: %v", err)
	}
	if !final {
		t.Fatalf("expected final flag set")
	}
	return win.Bytes()
}

func TestDeflateBlockRoundTripText(t *testing.T) {
	src := []byte(`Lorem ipsum dolor sit amet, consectetur adipiscing elit.
Lorem ipsum dolor sit amet, consectetur adipiscing elit.
The quick brown fox jumps over the lazy dog. The quick brown fox.`)
	got := encodeDecodeBlock(t, src, 6)
	if !bytes.Equal(got, src) {
		t.Fatalf("round-trip mismatch:\n got %q\nwant %q", got, src)
	}
}

func TestDeflateBlockRoundTripEmpty(t *testing.T) {
	got := encodeDecodeBlock(t, nil, 3)
	if len(got) != 0 {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestDeflateBlockRoundTripSingleByte(t *testing.T) {
	got := encodeDecodeBlock(t, []byte{0x41}, 0)
	if !bytes.Equal(got, []byte{0x41}) {
		t.Fatalf("got %q want %q", got, []byte{0x41})
	}
}

func TestDeflateBlockRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := make([]byte, 4096)
	rng.Read(src)
	got := encodeDecodeBlock(t, src, 8)
	if !bytes.Equal(got, src) {
		t.Fatalf("random round-trip mismatch")
	}
}

func TestDeflateBlockRoundTripRepetitive(t *testing.T) {
	src := bytes.Repeat([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), 200)
	got := encodeDecodeBlock(t, src, 8)
	if !bytes.Equal(got, src) {
		t.Fatalf("repetitive round-trip mismatch")
	}
}

func TestDeflateBlockRejectsStoredType(t *testing.T) {
	var buf bytes.Buffer
	enc := bitio.NewEncoder(&buf)
	enc.EncodeBits(0, 3) // BTYPE=00, not final
	enc.Finalize()

	dec := bitio.NewDecoder(bytes.NewReader(buf.Bytes()))
	var win Window
	_, err := DecodeBlock(dec, &win)
	if err != ErrUnsupportedBlockType {
		t.Fatalf("got %v, want ErrUnsupportedBlockType", err)
	}
}
