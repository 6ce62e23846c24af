package squeeze

import (
	"io"

	"github.com/sqzarchive/squeeze/entry"
)

// ListedEntry is one archive entry's identity and header, as returned by
// List. Pos is the entry's starting byte offset, usable directly with
// WillRemove.
type ListedEntry struct {
	Pos    int64
	Header entry.EntryHeader
}

// List enumerates every entry in the archive without decoding any content,
// a supplementary read-only operation built directly on Iterator.
func (a *Archive) List() ([]ListedEntry, error) {
	it := entry.NewIterator(a.rw)
	var out []ListedEntry
	for {
		pos, h, err := it.Next()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, mark(err, ErrStreamRead)
		}
		out = append(out, ListedEntry{Pos: pos, Header: h})
	}
}
