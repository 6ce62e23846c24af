package fsio

import (
	"io"
	"io/fs"
	"os"

	"github.com/sqzarchive/squeeze/entry"
)

// DiskInput adapts one real filesystem entry to entry.EntryInput. Build a
// slice of these with DiskOrder.
type DiskInput struct {
	fullPath    string
	archivePath string
	info        fs.FileInfo
}

func (d *DiskInput) Path() string { return d.archivePath }

func (d *DiskInput) Attributes() entry.EntryAttributes {
	mode := d.info.Mode()
	var t entry.EntryType
	switch {
	case mode&fs.ModeSymlink != 0:
		t = entry.TypeSymlink
	case d.info.IsDir():
		t = entry.TypeDirectory
	default:
		t = entry.TypeRegularFile
	}
	return entry.NewAttributes(t, uint16(mode.Perm()))
}

func (d *DiskInput) Open() (io.ReadCloser, error) {
	return os.Open(d.fullPath)
}

func (d *DiskInput) SymlinkTarget() (string, error) {
	return os.Readlink(d.fullPath)
}
