// Command squeeze is a filesystem-facing front end for the squeeze archive
// engine: walk a directory, append its entries to an archive, list or
// extract an existing one, or import a single foreign-compressed file as a
// new entry. The engine itself (package squeeze) never touches a real
// filesystem or argv; all of that lives here, out of core scope.
package main

import (
	"bytes"
	"compress/gzip"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DataDog/zstd"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/therootcompany/xz"
	"golang.org/x/sys/unix"

	"github.com/sqzarchive/squeeze/entry"
	"github.com/sqzarchive/squeeze/internal/blockcodec"
	"github.com/sqzarchive/squeeze/internal/fsio"
	"github.com/sqzarchive/squeeze/squeeze"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "append":
		err = runAppend(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "squeeze:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: squeeze <create|append|list|extract|import> ...
  create  -o archive.sqz [--include pat] [--exclude pat] [--method deflate|huffman|none] [--level n] dir
  append  -o archive.sqz [--include pat] [--exclude pat] [--method deflate|huffman|none] [--level n] dir
  list    archive.sqz
  extract -o destdir archive.sqz
  import  -o path/in/archive archive.sqz foreign-compressed-file`)
}

type walkFlags struct {
	out      string
	include  string
	exclude  string
	method   string
	level    int
	workers  int
}

func parseWalkFlags(name string, args []string) (*walkFlags, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f := &walkFlags{}
	fs.StringVar(&f.out, "o", "", "archive path")
	fs.StringVar(&f.include, "include", "", "doublestar glob; only matching paths are added")
	fs.StringVar(&f.exclude, "exclude", "", "doublestar glob; matching paths are skipped")
	fs.StringVar(&f.method, "method", "deflate", "compression method: deflate, huffman, or none")
	fs.IntVar(&f.level, "level", 6, "compression level")
	fs.IntVar(&f.workers, "workers", 0, "worker count (0 = all CPUs)")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if f.out == "" {
		return nil, nil, fmt.Errorf("-o archive path is required")
	}
	return f, fs.Args(), nil
}

func compressionMethod(name string) (blockcodec.Method, error) {
	switch strings.ToLower(name) {
	case "deflate":
		return blockcodec.MethodDeflate, nil
	case "huffman":
		return blockcodec.MethodHuffman, nil
	case "none":
		return blockcodec.MethodNone, nil
	default:
		return 0, fmt.Errorf("unknown compression method %q", name)
	}
}

// processUmask reads the process umask (by the standard trick of setting it
// to 0 and immediately restoring it) so disk-sourced entries that don't
// otherwise specify permissions fall back to the same default a shell
// redirection would use, rather than baking in 0666/0777 unconditionally.
func processUmask() uint32 {
	mask := unix.Umask(0)
	unix.Umask(mask)
	return uint32(mask)
}

func walkAndSchedule(a *squeeze.Archive, root string, f *walkFlags) error {
	method, err := compressionMethod(f.method)
	if err != nil {
		return err
	}
	entries, err := fsio.DiskOrder(root)
	if err != nil {
		return err
	}
	umask := processUmask()
	for _, in := range entries {
		rel := in.Path()
		if f.include != "" {
			ok, err := doublestar.Match(f.include, rel)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		if f.exclude != "" {
			ok, err := doublestar.Match(f.exclude, rel)
			if err != nil {
				return err
			}
			if ok {
				continue
			}
		}
		params := entry.CompressionParams{Method: method, Level: uint8(f.level)}
		if _, err := a.WillAppend(maskedInput{in, umask}, params); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
	}
	return nil
}

// maskedInput applies the process umask to a disk entry's reported
// permission bits, the way file creation through a shell redirect would.
type maskedInput struct {
	*fsio.DiskInput
	umask uint32
}

func (m maskedInput) Attributes() entry.EntryAttributes {
	a := m.DiskInput.Attributes()
	return entry.NewAttributes(a.Type(), a.Perm()&^uint16(m.umask))
}

func openRW(path string, create bool) (*os.File, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	return os.OpenFile(path, flags, 0644)
}

func runCreate(args []string) error {
	f, rest, err := parseWalkFlags("create", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("create takes exactly one directory argument")
	}
	file, err := openRW(f.out, true)
	if err != nil {
		return err
	}
	defer file.Close()

	a := squeeze.Open(file, squeeze.WithWorkers(f.workers))
	defer a.Close()
	if err := walkAndSchedule(a, rest[0], f); err != nil {
		return err
	}
	return a.PerformAppends()
}

func runAppend(args []string) error {
	f, rest, err := parseWalkFlags("append", args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("append takes exactly one directory argument")
	}
	file, err := openRW(f.out, false)
	if err != nil {
		return err
	}
	defer file.Close()

	a := squeeze.Open(file, squeeze.WithWorkers(f.workers))
	defer a.Close()
	if err := walkAndSchedule(a, rest[0], f); err != nil {
		return err
	}
	return a.Update()
}

func runList(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("list takes exactly one archive argument")
	}
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	a := squeeze.Open(file)
	defer a.Close()
	listed, err := a.List()
	if err != nil {
		return err
	}
	for _, e := range listed {
		fmt.Printf("%10d  %s  %s\n", e.Header.ContentSize, e.Header.Attributes.Type(), e.Header.Path)
	}
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	out := fs.String("o", ".", "destination directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("extract takes exactly one archive argument")
	}
	file, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer file.Close()

	if err := os.MkdirAll(*out, 0777); err != nil {
		return err
	}
	a := squeeze.Open(file)
	defer a.Close()
	return a.Extract(&fsio.DiskOutput{Root: *out})
}

// runImport appends a single file to the archive whose own bytes are
// transparently decoded first if they carry a recognized foreign
// compression container (.xz, .zst, .gz); the decoded content is what
// squeeze's own codec then recompresses.
func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	dest := fs.String("o", "", "destination path inside the archive")
	method := fs.String("method", "deflate", "compression method: deflate, huffman, or none")
	level := fs.Int("level", 6, "compression level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dest == "" || fs.NArg() != 2 {
		return fmt.Errorf("import takes exactly two arguments: archive and source-file, plus -o destination-path")
	}
	archive, source := fs.Arg(0), fs.Arg(1)

	m, err := compressionMethod(*method)
	if err != nil {
		return err
	}

	file, err := openRW(archive, true)
	if err != nil {
		return err
	}
	defer file.Close()

	rc, err := openForeignDecoder(source)
	if err != nil {
		return err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return err
	}

	a := squeeze.Open(file)
	defer a.Close()
	if _, err := a.WillAppend(&importedInput{path: *dest, content: content}, entry.CompressionParams{Method: m, Level: uint8(*level)}); err != nil {
		return err
	}
	return a.Update()
}

// decodedSource pairs a decoder's Read with the underlying file's Close, so
// closing the returned ReadCloser also releases the file descriptor.
type decodedSource struct {
	io.Reader
	file *os.File
}

func (d decodedSource) Close() error { return d.file.Close() }

func openForeignDecoder(source string) (io.ReadCloser, error) {
	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".xz":
		r, err := xz.NewReader(f, xz.DefaultDictMax)
		if err != nil {
			f.Close()
			return nil, err
		}
		return decodedSource{r, f}, nil
	case ".zst":
		return decodedSource{zstd.NewReader(f), f}, nil
	case ".gz":
		r, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return decodedSource{r, f}, nil
	default:
		return f, nil
	}
}

type importedInput struct {
	path    string
	content []byte
}

func (i *importedInput) Path() string { return i.path }
func (i *importedInput) Attributes() entry.EntryAttributes {
	return entry.NewAttributes(entry.TypeRegularFile, 0644)
}
func (i *importedInput) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(i.content)), nil
}
func (i *importedInput) SymlinkTarget() (string, error) { return "", nil }
