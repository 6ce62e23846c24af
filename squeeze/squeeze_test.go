package squeeze

import (
	"bytes"
	"io"
	"testing"

	"github.com/sqzarchive/squeeze/entry"
	"github.com/sqzarchive/squeeze/internal/blockcodec"
)

// seekableBuffer is an in-memory io.ReadWriteSeeker that also implements
// Truncate, exercising the Remover's truncation path.
type seekableBuffer struct {
	data []byte
	pos  int64
}

func (b *seekableBuffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *seekableBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *seekableBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		b.pos = offset
	case io.SeekCurrent:
		b.pos += offset
	case io.SeekEnd:
		b.pos = int64(len(b.data)) + offset
	}
	return b.pos, nil
}

func (b *seekableBuffer) Truncate(size int64) error {
	if size < int64(len(b.data)) {
		b.data = b.data[:size]
	}
	return nil
}

type memInput struct {
	path    string
	attrs   entry.EntryAttributes
	content []byte
	symlink string
}

func (m *memInput) Path() string                      { return m.path }
func (m *memInput) Attributes() entry.EntryAttributes { return m.attrs }
func (m *memInput) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.content)), nil
}
func (m *memInput) SymlinkTarget() (string, error) { return m.symlink, nil }

type memFileWriter struct {
	buf  bytes.Buffer
	out  *memOutput
	path string
}

func (w *memFileWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memFileWriter) Close() error {
	w.out.files[w.path] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}

type memOutput struct {
	files    map[string][]byte
	dirs     map[string]bool
	symlinks map[string]string
}

func newMemOutput() *memOutput {
	return &memOutput{
		files:    make(map[string][]byte),
		dirs:     make(map[string]bool),
		symlinks: make(map[string]string),
	}
}

func (o *memOutput) CreateFile(h entry.EntryHeader) (io.WriteCloser, error) {
	return &memFileWriter{out: o, path: h.Path}, nil
}
func (o *memOutput) MakeDir(h entry.EntryHeader) error {
	o.dirs[h.Path] = true
	return nil
}
func (o *memOutput) WriteSymlink(h entry.EntryHeader, target string) error {
	o.symlinks[h.Path] = target
	return nil
}
func (o *memOutput) Finalize(h entry.EntryHeader) error { return nil }

func regularFile(path string, content []byte, perm uint16) *memInput {
	return &memInput{path: path, attrs: entry.NewAttributes(entry.TypeRegularFile, perm), content: content}
}

// Scenario 1: empty archive.
func TestEmptyArchive(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	entries, err := a.List()
	if err != nil || len(entries) != 0 {
		t.Fatalf("List on empty archive: %v, %v", entries, err)
	}
	if err := a.Extract(newMemOutput()); err != nil {
		t.Fatalf("Extract on empty archive: %v", err)
	}
}

// Scenario 2: one regular file, Deflate level 1, archive size <= 60 bytes.
func TestAppendExtractRegularFileDeflate(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	input := regularFile("a.txt", []byte("hello\n"), 0644)
	pend, err := a.WillAppend(input, entry.CompressionParams{Method: blockcodec.MethodDeflate, Level: 1})
	if err != nil {
		t.Fatalf("WillAppend: %v", err)
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}
	if err := pend.Wait(); err != nil {
		t.Fatalf("pending status: %v", err)
	}
	if len(buf.data) > 60 {
		t.Fatalf("archive size %d, want <= 60", len(buf.data))
	}

	out := newMemOutput()
	if err := a.Extract(out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(out.files["a.txt"]) != "hello\n" {
		t.Fatalf("got %q, want %q", out.files["a.txt"], "hello\n")
	}
}

// Scenario 3: one symlink.
func TestAppendExtractSymlink(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	input := &memInput{
		path:    "lnk",
		attrs:   entry.NewAttributes(entry.TypeSymlink, 0777),
		symlink: "a.txt",
	}
	if _, err := a.WillAppend(input, entry.CompressionParams{}); err != nil {
		t.Fatalf("WillAppend: %v", err)
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}

	out := newMemOutput()
	if err := a.Extract(out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.symlinks["lnk"] != "a.txt" {
		t.Fatalf("got %q, want %q", out.symlinks["lnk"], "a.txt")
	}
}

// Scenario 4: Huffman round-trip on biased data must shrink strictly.
func TestHuffmanRoundTripBiasedData(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		if i%10 == 0 {
			data[i] = 'B'
		} else {
			data[i] = 'A'
		}
	}

	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	input := regularFile("biased.bin", data, 0644)
	if _, err := a.WillAppend(input, entry.CompressionParams{Method: blockcodec.MethodHuffman, Level: 5}); err != nil {
		t.Fatalf("WillAppend: %v", err)
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}
	if len(buf.data) >= len(data) {
		t.Fatalf("archive size %d not smaller than source %d", len(buf.data), len(data))
	}

	out := newMemOutput()
	if err := a.Extract(out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(out.files["biased.bin"], data) {
		t.Fatalf("round-trip mismatch")
	}
}

// Scenario 5: LZ77 self-match round-trips exactly through Deflate.
func TestLZ77SelfMatchRoundTrip(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	data := []byte("abcabcabcabc")
	input := regularFile("repeat.bin", data, 0644)
	if _, err := a.WillAppend(input, entry.CompressionParams{Method: blockcodec.MethodDeflate, Level: 4}); err != nil {
		t.Fatalf("WillAppend: %v", err)
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}

	out := newMemOutput()
	if err := a.Extract(out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !bytes.Equal(out.files["repeat.bin"], data) {
		t.Fatalf("got %q, want %q", out.files["repeat.bin"], data)
	}
}

// Scenario 6: multi-remove algebra.
func TestMultiRemoveEqualsDirectSingleFileArchive(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	payload := func(b byte) []byte {
		p := make([]byte, 10)
		for i := range p {
			p[i] = b
		}
		return p
	}
	for _, e := range []struct {
		path string
		b    byte
	}{{"f1", '1'}, {"f2", '2'}, {"f3", '3'}} {
		if _, err := a.WillAppend(regularFile(e.path, payload(e.b), 0644), entry.CompressionParams{Method: blockcodec.MethodNone}); err != nil {
			t.Fatalf("WillAppend %s: %v", e.path, err)
		}
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}

	listed, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var f1, f3 *ListedEntry
	for i := range listed {
		switch listed[i].Header.Path {
		case "f1":
			f1 = &listed[i]
		case "f3":
			f3 = &listed[i]
		}
	}
	if f1 == nil || f3 == nil {
		t.Fatalf("expected f1 and f3 in listing, got %+v", listed)
	}
	a.WillRemove(f1.Pos, f1.Header.FullEncodedSize())
	a.WillRemove(f3.Pos, f3.Header.FullEncodedSize())
	if err := a.PerformRemoves(); err != nil {
		t.Fatalf("PerformRemoves: %v", err)
	}

	directBuf := &seekableBuffer{}
	direct := Open(directBuf)
	defer direct.Close()
	if _, err := direct.WillAppend(regularFile("f2", payload('2'), 0644), entry.CompressionParams{Method: blockcodec.MethodNone}); err != nil {
		t.Fatalf("WillAppend (direct): %v", err)
	}
	if err := direct.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends (direct): %v", err)
	}

	if !bytes.Equal(buf.data, directBuf.data) {
		t.Fatalf("multi-remove result differs from direct single-file archive:\n got  %x\n want %x", buf.data, directBuf.data)
	}
}

// Order preservation: entries land in WillAppend call order regardless of
// which worker finishes compressing first.
func TestOrderPreservation(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	paths := []string{"z", "a", "m"}
	for _, p := range paths {
		if _, err := a.WillAppend(regularFile(p, []byte(p+p+p), 0644), entry.CompressionParams{Method: blockcodec.MethodHuffman, Level: 3}); err != nil {
			t.Fatalf("WillAppend: %v", err)
		}
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}

	listed, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != len(paths) {
		t.Fatalf("got %d entries, want %d", len(listed), len(paths))
	}
	for i, want := range paths {
		if listed[i].Header.Path != want {
			t.Fatalf("entry %d: got %q, want %q", i, listed[i].Header.Path, want)
		}
	}
}

// Iterator fixpoint: re-iterating a freshly written archive yields the same
// (path, header) sequence.
func TestIteratorFixpoint(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	for _, p := range []string{"one", "two"} {
		if _, err := a.WillAppend(regularFile(p, []byte("content-"+p), 0644), entry.CompressionParams{Method: blockcodec.MethodDeflate, Level: 2}); err != nil {
			t.Fatalf("WillAppend: %v", err)
		}
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}

	first, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	second, err := a.List()
	if err != nil {
		t.Fatalf("List (again): %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Header.Path != second[i].Header.Path || first[i].Header.ContentSize != second[i].Header.ContentSize {
			t.Fatalf("entry %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

// Updater replaces an existing same-path entry.
func TestUpdaterReplacesExistingPath(t *testing.T) {
	buf := &seekableBuffer{}
	a := Open(buf)
	defer a.Close()

	if _, err := a.WillAppend(regularFile("keep", []byte("old"), 0644), entry.CompressionParams{Method: blockcodec.MethodNone}); err != nil {
		t.Fatalf("WillAppend: %v", err)
	}
	if _, err := a.WillAppend(regularFile("target", []byte("version one"), 0644), entry.CompressionParams{Method: blockcodec.MethodNone}); err != nil {
		t.Fatalf("WillAppend: %v", err)
	}
	if err := a.PerformAppends(); err != nil {
		t.Fatalf("PerformAppends: %v", err)
	}

	if _, err := a.WillAppend(regularFile("target", []byte("version two"), 0644), entry.CompressionParams{Method: blockcodec.MethodNone}); err != nil {
		t.Fatalf("WillAppend (replacement): %v", err)
	}
	if err := a.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}

	out := newMemOutput()
	if err := a.Extract(out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(out.files["keep"]) != "old" {
		t.Fatalf("got %q, want %q", out.files["keep"], "old")
	}
	if string(out.files["target"]) != "version two" {
		t.Fatalf("got %q, want %q", out.files["target"], "version two")
	}

	listed, err := a.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("got %d entries after update, want 2", len(listed))
	}
}
