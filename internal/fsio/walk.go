// Package fsio adapts a real filesystem tree to the archive engine's
// EntryInput/EntryOutput contracts (entry package), the supplementary
// "actually touches disk" layer that spec section 1 keeps out of core scope.
package fsio

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// DiskOrder walks root and returns every regular file, directory, and
// symlink beneath it (root itself excluded), ordered by on-disk inode
// number where the platform exposes one. Appending in roughly this order
// keeps the Appender's sequential reads close to the underlying storage's
// own layout. If any entry lacks such a key, walk order is kept.
func DiskOrder(root string) ([]*DiskInput, error) {
	type found struct {
		path string
		info fs.FileInfo
		key  uint64
		has  bool
	}
	var all []found
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		key, ok := diskOrderKey(info)
		all = append(all, found{path: p, info: info, key: key, has: ok})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortable := true
	for _, f := range all {
		if !f.has {
			sortable = false
			break
		}
	}
	if sortable {
		sort.SliceStable(all, func(i, j int) bool { return all[i].key < all[j].key })
	}

	out := make([]*DiskInput, len(all))
	for i, f := range all {
		rel, err := filepath.Rel(root, f.path)
		if err != nil {
			return nil, err
		}
		out[i] = &DiskInput{fullPath: f.path, archivePath: filepath.ToSlash(rel), info: f.info}
	}
	return out, nil
}

func diskOrderKey(i fs.FileInfo) (uint64, bool) {
	if ino, ok := tryInode(i); ok {
		return ino, true
	}
	switch t := i.Sys().(type) {
	case interface{ ByteOffset() int64 }:
		return uint64(t.ByteOffset()), true
	case interface{ Inode() uint64 }:
		return t.Inode(), true
	}
	return 0, false
}

var tryInode = func(fs.FileInfo) (uint64, bool) { return 0, false }
