package squeeze

import (
	"io"

	"github.com/sqzarchive/squeeze/entry"
)

// Update replaces any existing entry whose path matches a pending append
// with that append, per spec section 4.13: it scans the archive for paths
// that collide with the pending batch, schedules those existing entries for
// removal, performs the removal pass, then performs the append pass. A
// pending append whose path is not already present behaves exactly like a
// plain PerformAppends.
func (a *Archive) Update() error {
	pending := a.pendingAppends
	if len(pending) == 0 {
		return a.PerformAppends()
	}

	byPath := make(map[string]bool, len(pending))
	for _, p := range pending {
		byPath[p.header.Path] = true
	}

	it := entry.NewIterator(a.rw)
	for {
		pos, h, err := it.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return mark(err, ErrStreamRead)
		}
		if byPath[h.Path] {
			a.WillRemove(pos, h.FullEncodedSize())
		}
	}

	if err := a.PerformRemoves(); err != nil {
		return err
	}
	return a.PerformAppends()
}
