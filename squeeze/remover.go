package squeeze

import (
	"container/heap"
	"io"
)

const moveChunkSize = 32 * 1024

// PendingRemove is one (pos, len) interval scheduled by WillRemove. Wait
// returns its outcome once PerformRemoves has run.
type PendingRemove struct {
	pos int64
	len int64
	err error
}

func (p *PendingRemove) Wait() error { return p.err }

// WillRemove schedules the entry occupying [pos, pos+length) for removal on
// the next PerformRemoves call. pos and length are normally taken straight
// from an Iterator's (pos, header) pair and header.FullEncodedSize().
func (a *Archive) WillRemove(pos, length int64) *PendingRemove {
	p := &PendingRemove{pos: pos, len: length}
	a.pendingRemoves = append(a.pendingRemoves, p)
	return p
}

// posHeap is a min-heap over PendingRemove.pos, per spec section 4.11 step 1.
type posHeap []*PendingRemove

func (h posHeap) Len() int            { return len(h) }
func (h posHeap) Less(i, j int) bool  { return h[i].pos < h[j].pos }
func (h posHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *posHeap) Push(x any)         { *h = append(*h, x.(*PendingRemove)) }
func (h *posHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PerformRemoves carries out every interval scheduled by WillRemove since
// the last call, in a single left-to-right pass (spec section 4.11): sort by
// position, walk the stream moving each surviving span left by the
// accumulated gap, then truncate. Duplicate positions collapse onto the
// first one popped; every PendingRemove sharing that position resolves
// together. A hard I/O error aborts the whole pass, leaving the stream at
// the failure point, and is also recorded on every remaining interval's
// PendingRemove.
func (a *Archive) PerformRemoves() error {
	pending := a.pendingRemoves
	a.pendingRemoves = nil
	if len(pending) == 0 {
		return nil
	}

	h := make(posHeap, len(pending))
	copy(h, pending)
	heap.Init(&h)

	type interval struct {
		pos, len int64
		group    []*PendingRemove
	}
	var intervals []interval
	for h.Len() > 0 {
		p := heap.Pop(&h).(*PendingRemove)
		if n := len(intervals); n > 0 && intervals[n-1].pos == p.pos {
			intervals[n-1].group = append(intervals[n-1].group, p)
			continue
		}
		intervals = append(intervals, interval{pos: p.pos, len: p.len, group: []*PendingRemove{p}})
	}

	originalEnd, err := a.end()
	if err != nil {
		err = mark(err, ErrStreamRead)
		for _, iv := range intervals {
			resolveAll(iv.group, err)
		}
		return err
	}

	var gap int64
	for i, iv := range intervals {
		nextStart := originalEnd
		if i+1 < len(intervals) {
			nextStart = intervals[i+1].pos
		}
		srcStart := iv.pos + iv.len
		dstStart := iv.pos - gap
		if err := copyLeft(a.rw, srcStart, dstStart, nextStart-srcStart); err != nil {
			werr := mark(err, ErrStreamWrite)
			resolveAll(iv.group, werr)
			for _, rest := range intervals[i+1:] {
				resolveAll(rest.group, werr)
			}
			return werr
		}
		gap += iv.len
		resolveAll(iv.group, nil)
	}

	newEnd := originalEnd - gap
	if t, ok := a.rw.(interface{ Truncate(int64) error }); ok {
		if err := t.Truncate(newEnd); err != nil {
			return mark(err, ErrStreamWrite)
		}
	}
	_, err = a.rw.Seek(newEnd, io.SeekStart)
	if err != nil {
		return mark(err, ErrStreamWrite)
	}
	return nil
}

func resolveAll(group []*PendingRemove, err error) {
	for _, p := range group {
		p.err = err
	}
}

// copyLeft relocates the n bytes at [src, src+n) in rw down to [dst, dst+n),
// dst <= src, in fixed-size chunks staged through memory so overlapping
// source/destination ranges are always handled correctly.
func copyLeft(rw io.ReadWriteSeeker, src, dst, n int64) error {
	buf := make([]byte, moveChunkSize)
	for n > 0 {
		chunk := int64(len(buf))
		if chunk > n {
			chunk = n
		}
		if _, err := rw.Seek(src, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.ReadFull(rw, buf[:chunk]); err != nil {
			return err
		}
		if _, err := rw.Seek(dst, io.SeekStart); err != nil {
			return err
		}
		if _, err := rw.Write(buf[:chunk]); err != nil {
			return err
		}
		src += chunk
		dst += chunk
		n -= chunk
	}
	return nil
}
