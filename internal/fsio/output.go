package fsio

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sqzarchive/squeeze/entry"
)

// DiskOutput materializes extracted entries under Root, a real directory on
// disk. Missing parent directories are created implicitly.
type DiskOutput struct {
	Root string
}

func (o *DiskOutput) resolve(path string) string {
	return filepath.Join(o.Root, filepath.FromSlash(path))
}

func (o *DiskOutput) CreateFile(h entry.EntryHeader) (io.WriteCloser, error) {
	full := o.resolve(h.Path)
	if err := os.MkdirAll(filepath.Dir(full), 0777); err != nil {
		return nil, err
	}
	return os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(h.Attributes.Perm()))
}

func (o *DiskOutput) MakeDir(h entry.EntryHeader) error {
	return os.MkdirAll(o.resolve(h.Path), os.FileMode(h.Attributes.Perm())|0700)
}

func (o *DiskOutput) WriteSymlink(h entry.EntryHeader, target string) error {
	full := o.resolve(h.Path)
	if err := os.MkdirAll(filepath.Dir(full), 0777); err != nil {
		return err
	}
	_ = os.Remove(full)
	return os.Symlink(target, full)
}

// Finalize sets an entry's final permission bits once its content has
// landed; symlinks have no mode of their own to fix up.
func (o *DiskOutput) Finalize(h entry.EntryHeader) error {
	if h.Attributes.Type() == entry.TypeSymlink {
		return nil
	}
	return os.Chmod(o.resolve(h.Path), os.FileMode(h.Attributes.Perm()))
}
