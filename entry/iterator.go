package entry

import "io"

// Iterator walks an archive stream header by header, per spec section
// 4.12. End-of-stream is reported as io.EOF from Next, the Go idiom for
// squeeze's "distinguished npos iterator".
type Iterator struct {
	r   io.ReadSeeker
	pos int64
}

// NewIterator wraps r, starting at offset 0. Each Next seeks to the
// iterator's own offset first, so r may be moved between calls.
func NewIterator(r io.ReadSeeker) *Iterator {
	return &Iterator{r: r}
}

// Reset seeks back to the start of the stream, making the iterator
// restartable.
func (it *Iterator) Reset() error {
	_, err := it.r.Seek(0, io.SeekStart)
	it.pos = 0
	return err
}

// Next decodes the header at the current position, returning its starting
// offset alongside it, then advances past the header's content so the next
// call lands on the following entry. io.EOF signals a clean end of stream.
func (it *Iterator) Next() (pos int64, header EntryHeader, err error) {
	pos = it.pos
	if _, err := it.r.Seek(pos, io.SeekStart); err != nil {
		return pos, EntryHeader{}, err
	}
	header, err = DecodeHeader(it.r)
	if err != nil {
		return pos, EntryHeader{}, err
	}
	it.pos += header.FullEncodedSize()
	if header.ContentSize > 0 {
		if _, err := it.r.Seek(int64(header.ContentSize), io.SeekCurrent); err != nil {
			return pos, header, err
		}
	}
	return pos, header, nil
}
