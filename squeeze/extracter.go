package squeeze

import (
	"bytes"
	"io"

	"github.com/sqzarchive/squeeze/entry"
	"github.com/sqzarchive/squeeze/internal/blockcodec"
)

// Extract walks the archive from the start and materializes every entry
// through output, per spec section 4.12. It stops at the first error;
// entries already materialized are left in place.
func (a *Archive) Extract(output entry.EntryOutput) error {
	it := entry.NewIterator(a.rw)
	for {
		pos, h, err := it.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return mark(err, ErrStreamRead)
		}
		if err := a.extractEntry(pos, h, output); err != nil {
			return err
		}
	}
}

func (a *Archive) extractEntry(pos int64, h entry.EntryHeader, output entry.EntryOutput) error {
	switch h.Attributes.Type() {
	case entry.TypeDirectory:
		if err := output.MakeDir(h); err != nil {
			return mark(err, ErrOutputWrite)
		}
	case entry.TypeSymlink:
		target, err := a.readSymlinkTarget(pos, h)
		if err != nil {
			return err
		}
		if err := output.WriteSymlink(h, target); err != nil {
			return mark(err, ErrOutputWrite)
		}
	case entry.TypeRegularFile:
		if err := a.extractFile(pos, h, output); err != nil {
			return err
		}
	case entry.TypeNone:
		return ErrNoneTypeNoOutput
	default:
		return entry.ErrInvalidEntryType
	}
	return mark(output.Finalize(h), ErrOutputWrite)
}

// readSymlinkTarget reads a Symlink entry's content verbatim and strips a
// single trailing NUL if present, tolerating the legacy target+'\0'
// convention alongside the bare-target one (spec section 6).
func (a *Archive) readSymlinkTarget(pos int64, h entry.EntryHeader) (string, error) {
	if h.ContentSize == 0 {
		return "", ErrSymlinkNoContent
	}
	contentStart := pos + int64(entry.StaticHeaderSize) + int64(len(h.Path))
	if _, err := a.rw.Seek(contentStart, io.SeekStart); err != nil {
		return "", mark(err, ErrStreamRead)
	}
	buf := make([]byte, h.ContentSize)
	if _, err := io.ReadFull(a.rw, buf); err != nil {
		return "", mark(err, ErrStreamRead)
	}
	buf = bytes.TrimSuffix(buf, []byte{0})
	if len(buf) == 0 {
		return "", ErrSymlinkNoContent
	}
	return string(buf), nil
}

func (a *Archive) extractFile(pos int64, h entry.EntryHeader, output entry.EntryOutput) error {
	contentStart := pos + int64(entry.StaticHeaderSize) + int64(len(h.Path))
	if _, err := a.rw.Seek(contentStart, io.SeekStart); err != nil {
		return mark(err, ErrStreamRead)
	}
	data, err := blockcodec.Decode(a.rw, int64(h.ContentSize), h.Compression.Method, int(h.Compression.Level))
	if err != nil {
		return mark(err, ErrStreamRead)
	}
	w, err := output.CreateFile(h)
	if err != nil {
		return mark(err, ErrOutputWrite)
	}
	defer w.Close()
	if _, err := w.Write(data); err != nil {
		return mark(err, ErrOutputWrite)
	}
	return nil
}
