package fsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sqzarchive/squeeze/entry"
)

func entryHeaderFor(path string, perm uint16) entry.EntryHeader {
	return entry.EntryHeader{Attributes: entry.NewAttributes(entry.TypeRegularFile, perm), Path: path}
}

func entryHeaderForDir(path string, perm uint16) entry.EntryHeader {
	return entry.EntryHeader{Attributes: entry.NewAttributes(entry.TypeDirectory, perm), Path: path}
}

func entryHeaderForSymlink(path string) entry.EntryHeader {
	return entry.EntryHeader{Attributes: entry.NewAttributes(entry.TypeSymlink, 0777), Path: path}
}

func TestDiskOrderWalksTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("world"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := DiskOrder(dir)
	if err != nil {
		t.Fatalf("DiskOrder: %v", err)
	}
	paths := make(map[string]bool, len(entries))
	for _, e := range entries {
		paths[e.Path()] = true
	}
	for _, want := range []string{"a.txt", "sub", filepath.ToSlash(filepath.Join("sub", "b.txt"))} {
		if !paths[want] {
			t.Fatalf("missing entry %q in %v", want, paths)
		}
	}
}

func TestDiskInputReadsFileContent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := DiskOrder(dir)
	if err != nil {
		t.Fatalf("DiskOrder: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	rc, err := entries[0].Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, 5)
	if _, err := rc.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}
}

func TestDiskOutputWritesFileDirAndSymlink(t *testing.T) {
	root := t.TempDir()
	out := &DiskOutput{Root: root}

	h := entryHeaderFor("nested/file.txt", 0644)
	w, err := out.CreateFile(h)
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := out.Finalize(h); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "nested", "file.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q, want %q", got, "payload")
	}

	dirHeader := entryHeaderForDir("adir", 0755)
	if err := out.MakeDir(dirHeader); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}
	if fi, err := os.Stat(filepath.Join(root, "adir")); err != nil || !fi.IsDir() {
		t.Fatalf("expected directory: %v", err)
	}

	linkHeader := entryHeaderForSymlink("lnk")
	if err := out.WriteSymlink(linkHeader, "nested/file.txt"); err != nil {
		t.Fatalf("WriteSymlink: %v", err)
	}
	target, err := os.Readlink(filepath.Join(root, "lnk"))
	if err != nil || target != "nested/file.txt" {
		t.Fatalf("got %q, %v", target, err)
	}
}
