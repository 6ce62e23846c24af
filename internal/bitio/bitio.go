// Package bitio implements an MSB-first bit stream over a byte sink or
// source: the first bit written becomes bit 7 of the first byte. This is
// the convention squeeze's header bits, code-length tables and DEFLATE
// symbol streams all use.
package bitio

import "io"

// ByteSink is the minimal trait a bit encoder needs from its destination.
type ByteSink interface {
	WriteByte(b byte) error
}

// ByteSource is the minimal trait a bit decoder needs from its origin.
type ByteSource interface {
	ReadByte() (byte, error)
}

// Encoder accumulates bits MSB-first and flushes whole bytes to a ByteSink.
type Encoder struct {
	w     ByteSink
	cur   byte
	nbits uint8 // bits already placed in cur, counted from the top
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w ByteSink) *Encoder {
	return &Encoder{w: w}
}

// Rebind swaps the underlying sink, preserving any partial in-progress byte.
func (e *Encoder) Rebind(w ByteSink) {
	e.w = w
}

// EncodeBits writes the low n bits of value, most-significant bit first.
func (e *Encoder) EncodeBits(value uint64, n uint8) error {
	for n > 0 {
		take := 8 - e.nbits
		if take > n {
			take = n
		}
		shift := n - take
		mask := uint64(1)<<take - 1
		bits := byte((value >> shift) & mask)
		e.cur |= bits << (8 - e.nbits - take)
		e.nbits += take
		n -= take
		if e.nbits == 8 {
			if err := e.w.WriteByte(e.cur); err != nil {
				return err
			}
			e.cur, e.nbits = 0, 0
		}
	}
	return nil
}

// Finalize flushes any partial trailing byte (its bits are already
// left-aligned in the high bits of the accumulator) and reports the number
// of padding bits written with it.
func (e *Encoder) Finalize() (padding int, err error) {
	if e.nbits == 0 {
		return 0, nil
	}
	padding = int(8 - e.nbits)
	err = e.w.WriteByte(e.cur)
	e.cur, e.nbits = 0, 0
	return padding, err
}

// Decoder mirrors Encoder, reading bits MSB-first from a ByteSource.
type Decoder struct {
	r     ByteSource
	cur   byte
	nbits uint8 // unread bits remaining in cur, counted from the top
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r ByteSource) *Decoder {
	return &Decoder{r: r}
}

// Rebind swaps the underlying source, preserving any partially-consumed byte.
func (d *Decoder) Rebind(r ByteSource) {
	d.r = r
}

// ErrExhausted is returned when fewer than the requested bits are available.
var ErrExhausted = io.ErrUnexpectedEOF

// DecodeBits reads n bits, most-significant bit first.
func (d *Decoder) DecodeBits(n uint8) (value uint64, err error) {
	for n > 0 {
		if d.nbits == 0 {
			d.cur, err = d.r.ReadByte()
			if err != nil {
				if err == io.EOF {
					return 0, ErrExhausted
				}
				return 0, err
			}
			d.nbits = 8
		}
		take := d.nbits
		if take > n {
			take = n
		}
		shift := d.nbits - take
		mask := byte(1)<<take - 1
		bits := (d.cur >> shift) & mask
		value = value<<take | uint64(bits)
		d.nbits -= take
		n -= take
	}
	return value, nil
}

// AlignByte discards any unread bits remaining in the current byte,
// resuming decoding at the next byte boundary.
func (d *Decoder) AlignByte() {
	d.nbits = 0
}
