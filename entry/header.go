package entry

import (
	"encoding/binary"
	"io"

	"github.com/sqzarchive/squeeze/internal/blockcodec"
)

// Encode writes h to w: version(4) | content_size(8) | method(1) | level(1)
// | attributes(2) | path_len(2) | path, all little-endian, back-to-back.
func (h EntryHeader) Encode(w io.Writer) error {
	if len(h.Path) > 0xFFFF {
		return ErrPathTooLong
	}
	var buf [StaticHeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	binary.LittleEndian.PutUint64(buf[4:12], h.ContentSize)
	buf[12] = byte(h.Compression.Method)
	buf[13] = h.Compression.Level
	binary.LittleEndian.PutUint16(buf[14:16], uint16(h.Attributes))
	binary.LittleEndian.PutUint16(buf[16:18], uint16(len(h.Path)))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, h.Path)
	return err
}

// DecodeHeader reads one EntryHeader from r, rejecting unknown compression
// method or entry type variants.
func DecodeHeader(r io.Reader) (EntryHeader, error) {
	var buf [StaticHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return EntryHeader{}, err
	}

	method := blockcodec.Method(buf[12])
	if method != blockcodec.MethodNone && method != blockcodec.MethodHuffman && method != blockcodec.MethodDeflate {
		return EntryHeader{}, ErrInvalidCompressionMethod
	}
	attrs := EntryAttributes(binary.LittleEndian.Uint16(buf[14:16]))
	if !attrs.Type().valid() {
		return EntryHeader{}, ErrInvalidEntryType
	}

	pathLen := binary.LittleEndian.Uint16(buf[16:18])
	path := make([]byte, pathLen)
	if pathLen > 0 {
		if _, err := io.ReadFull(r, path); err != nil {
			return EntryHeader{}, err
		}
	}

	h := EntryHeader{
		Version:     Version(binary.LittleEndian.Uint32(buf[0:4])),
		ContentSize: binary.LittleEndian.Uint64(buf[4:12]),
		Compression: CompressionParams{Method: method, Level: buf[13]},
		Attributes:  attrs,
		Path:        string(path),
	}
	return h, nil
}

// RewriteContentSize seeks to headerPos+4 (past the version field) on ws and
// overwrites the 8-byte content_size field, used by the append scheduler
// once a compressed entry's final size is known.
func RewriteContentSize(ws io.WriteSeeker, headerPos int64, newSize uint64) error {
	if _, err := ws.Seek(headerPos+4, io.SeekStart); err != nil {
		return err
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], newSize)
	_, err := ws.Write(buf[:])
	return err
}
