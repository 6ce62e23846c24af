package entry

import "io"

// EntryInput is the Appender's view of one pending entry: everything it
// needs to write a header and stream content, without knowing where the
// bytes actually come from (filesystem walking is out of core scope — spec
// section 1 — and reaches the engine only through this interface).
type EntryInput interface {
	Path() string
	Attributes() EntryAttributes

	// Open returns the raw, uncompressed content of a RegularFile entry.
	// Not called for Directory or Symlink entries.
	Open() (io.ReadCloser, error)

	// SymlinkTarget returns the link target for a Symlink entry's content.
	SymlinkTarget() (string, error)
}

// EntryOutput is the Extracter's collaborator: it materializes decoded
// entries wherever the caller wants them (a real filesystem, an in-memory
// tree, etc).
type EntryOutput interface {
	// CreateFile opens a sink to receive a RegularFile entry's decoded
	// content bytes. The caller closes it.
	CreateFile(h EntryHeader) (io.WriteCloser, error)

	MakeDir(h EntryHeader) error

	WriteSymlink(h EntryHeader, target string) error

	// Finalize is called once an entry's content has been fully written,
	// so the output collaborator can set permissions.
	Finalize(h EntryHeader) error
}
