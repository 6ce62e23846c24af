// LZ77 sliding-window match finder with hash chains and lazy matching, and
// the matching copy-with-overlap decode side, per spec section 4.5.
package deflate

const (
	SearchSize     = 32768
	LookaheadSize  = 258
	MinMatch       = 3
	maxMatchOffset = SearchSize
)

// Params holds the two level-tied runtime knobs from spec section 4.5.
type Params struct {
	LazyMatchThreshold   int
	MatchInsertThreshold int
}

// levelParams is indexed by compression level 0..8. Larger levels search
// harder (accept only longer immediate matches). Every MatchInsertThreshold
// here is above LookaheadSize, the longest possible match, so at every level
// an accepted match's position is always inserted into the hash chain.
var levelParams = [9]Params{
	{LazyMatchThreshold: 4, MatchInsertThreshold: 4096},
	{LazyMatchThreshold: 5, MatchInsertThreshold: 4096},
	{LazyMatchThreshold: 6, MatchInsertThreshold: 8192},
	{LazyMatchThreshold: 8, MatchInsertThreshold: 8192},
	{LazyMatchThreshold: 16, MatchInsertThreshold: 16384},
	{LazyMatchThreshold: 32, MatchInsertThreshold: 16384},
	{LazyMatchThreshold: 64, MatchInsertThreshold: 32768},
	{LazyMatchThreshold: 128, MatchInsertThreshold: 32768},
	{LazyMatchThreshold: 258, MatchInsertThreshold: 32768},
}

// ParamsForLevel clamps level into [0,8] and returns its Params.
func ParamsForLevel(level int) Params {
	if level < 0 {
		level = 0
	}
	if level > 8 {
		level = 8
	}
	return levelParams[level]
}

// Matcher runs the lazy LZ77 match finder over an in-memory source buffer.
type Matcher struct {
	src    []byte
	params Params
	head   [SearchSize]int32
	prev   [SearchSize]int32
}

// NewMatcher prepares a Matcher over src with the given Params.
func NewMatcher(src []byte, params Params) *Matcher {
	m := &Matcher{src: src, params: params}
	for i := range m.head {
		m.head[i] = -1
	}
	return m
}

func (m *Matcher) hash3(pos int) uint32 {
	var key uint32
	key = (key << 5) ^ uint32(m.src[pos])
	key = (key << 5) ^ uint32(m.src[pos+1])
	key = (key << 5) ^ uint32(m.src[pos+2])
	return key % SearchSize
}

func (m *Matcher) insert(pos int) {
	if pos+MinMatch > len(m.src) {
		return
	}
	h := m.hash3(pos)
	m.prev[pos%SearchSize] = m.head[h]
	m.head[h] = int32(pos)
}

func (m *Matcher) matchLen(a, b int) int {
	n := len(m.src)
	l := 0
	for b+l < n && l < LookaheadSize && m.src[a+l] == m.src[b+l] {
		l++
	}
	return l
}

// findMatch returns the longest, nearest match starting at pos, also probing
// small self-overlapping distances 1..MinMatch-1.
func (m *Matcher) findMatch(pos int) (bestLen int, bestDist int) {
	n := len(m.src)
	if pos+MinMatch > n {
		return 0, 0
	}
	h := m.hash3(pos)
	cand := m.head[h]
	for cand != -1 && pos-int(cand) <= maxMatchOffset {
		l := m.matchLen(int(cand), pos)
		if l > bestLen {
			bestLen = l
			bestDist = pos - int(cand)
		}
		next := m.prev[int(cand)%SearchSize]
		if next >= cand { // chain corrupted or exhausted; stop defensively
			break
		}
		cand = next
	}
	for d := 1; d < MinMatch; d++ {
		cand2 := pos - d
		if cand2 < 0 {
			break
		}
		l := m.matchLen(cand2, pos)
		if l > bestLen {
			bestLen = l
			bestDist = d
		}
	}
	return
}

// Tokens runs the full matcher over src and returns the LZ77 token stream.
// A match is accepted immediately once it reaches LazyMatchThreshold. A
// shorter match is not discarded outright: the position one byte ahead is
// probed first, and only if that lookahead finds something longer is the
// original match dropped in favor of a literal-then-lazy-match; otherwise
// the original match is used after all, per spec section 4.5 step 5.
func (m *Matcher) Tokens() []Token {
	n := len(m.src)
	var tokens []Token
	pos := 0
	for pos < n {
		length, dist := m.findMatch(pos)
		if length >= MinMatch && length >= m.params.LazyMatchThreshold {
			if length <= m.params.MatchInsertThreshold {
				m.insert(pos)
			}
			if length > LookaheadSize {
				length = LookaheadSize
			}
			tokens = append(tokens, LenDist(uint16(length), uint16(dist)))
			pos += length
			continue
		}

		if length >= MinMatch {
			m.insert(pos)
			if pos+1 < n {
				nextLength, nextDist := m.findMatch(pos + 1)
				if nextLength > length {
					tokens = append(tokens, Literal(m.src[pos]))
					pos++
					if nextLength <= m.params.MatchInsertThreshold {
						m.insert(pos)
					}
					if nextLength > LookaheadSize {
						nextLength = LookaheadSize
					}
					tokens = append(tokens, LenDist(uint16(nextLength), uint16(nextDist)))
					pos += nextLength
					continue
				}
			}
			if length > LookaheadSize {
				length = LookaheadSize
			}
			tokens = append(tokens, LenDist(uint16(length), uint16(dist)))
			pos += length
			continue
		}

		m.insert(pos)
		tokens = append(tokens, Literal(m.src[pos]))
		pos++
	}
	return tokens
}

// Window is the decode-side copy-with-overlap engine: LenDist(len, dist)
// reads len bytes starting dist bytes behind the current output, which
// naturally supports RLE-style runs (dist=1, len=N).
type Window struct {
	out []byte
}

func (w *Window) Bytes() []byte { return w.out }

func (w *Window) Literal(b byte) { w.out = append(w.out, b) }

func (w *Window) Match(length, dist uint16) error {
	if int(dist) > len(w.out) {
		return ErrDistanceBeforeStart
	}
	start := len(w.out) - int(dist)
	for i := 0; i < int(length); i++ {
		w.out = append(w.out, w.out[start+i])
	}
	return nil
}
