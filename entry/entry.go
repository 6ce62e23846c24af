// Package entry defines the archive's per-entry data model: the packed
// version/attributes fields, the compression parameters, and the
// EntryHeader binary record written before every entry's content, per spec
// sections 3 and 4.8.
package entry

import "github.com/sqzarchive/squeeze/internal/blockcodec"

// EntryType is the high 7 bits of EntryAttributes.
type EntryType uint8

const (
	TypeNone        EntryType = 0
	TypeRegularFile EntryType = 1
	TypeDirectory   EntryType = 2
	TypeSymlink     EntryType = 3
)

func (t EntryType) valid() bool {
	return t <= TypeSymlink
}

func (t EntryType) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeRegularFile:
		return "RegularFile"
	case TypeDirectory:
		return "Directory"
	case TypeSymlink:
		return "Symlink"
	default:
		return "invalid"
	}
}

// Permission bit positions within the low 9 bits of EntryAttributes.
const (
	PermOwnerRead  = 0400
	PermOwnerWrite = 0200
	PermOwnerExec  = 0100
	PermGroupRead  = 040
	PermGroupWrite = 020
	PermGroupExec  = 010
	PermOtherRead  = 04
	PermOtherWrite = 02
	PermOtherExec  = 01
)

// EntryAttributes packs a 7-bit EntryType and 9 bits of POSIX-style
// permission triples into 16 bits: type in the high bits, permissions in
// the low 9.
type EntryAttributes uint16

// NewAttributes packs t and perm (the low 9 bits used, higher bits ignored).
func NewAttributes(t EntryType, perm uint16) EntryAttributes {
	return EntryAttributes(uint16(t)<<9 | (perm & 0x1FF))
}

func (a EntryAttributes) Type() EntryType { return EntryType(a >> 9) }
func (a EntryAttributes) Perm() uint16    { return uint16(a) & 0x1FF }

// CompressionParams names the codec and level that produced an entry's
// content, carried verbatim in the header.
type CompressionParams struct {
	Method blockcodec.Method
	Level  uint8
}

// Version packs a 12/10/10-bit major/minor/patch triple into a 32-bit LE
// word, major in the high bits.
type Version uint32

func PackVersion(major, minor, patch uint16) Version {
	return Version(uint32(major&0xFFF)<<20 | uint32(minor&0x3FF)<<10 | uint32(patch&0x3FF))
}

func (v Version) Major() uint16 { return uint16(v>>20) & 0xFFF }
func (v Version) Minor() uint16 { return uint16(v>>10) & 0x3FF }
func (v Version) Patch() uint16 { return uint16(v) & 0x3FF }

// FormatVersion is the version squeeze writes into headers it produces;
// decoders accept any version.
var FormatVersion = PackVersion(1, 0, 0)

// StaticHeaderSize is the fixed part of every EntryHeader: version(4) +
// content_size(8) + method(1) + level(1) + attributes(2) + path_len(2).
const StaticHeaderSize = 4 + 8 + 1 + 1 + 2 + 2

// EntryHeader is the per-entry record written immediately before an
// entry's content bytes.
type EntryHeader struct {
	Version     Version
	ContentSize uint64
	Compression CompressionParams
	Attributes  EntryAttributes
	Path        string
}

// FullEncodedSize is the total bytes this header plus its content occupy in
// the archive stream.
func (h EntryHeader) FullEncodedSize() int64 {
	return int64(StaticHeaderSize) + int64(len(h.Path)) + int64(h.ContentSize)
}
