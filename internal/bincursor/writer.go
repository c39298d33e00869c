// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package bincursor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrUncommitted = errors.New("placeholder never committed")

// ByteOrder is satisfied by binary.BigEndian and binary.LittleEndian.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Writer appends to a growable buffer. Forward references are reserved with
// Placeholder and filled in later with Commit.
type Writer struct {
	buf   []byte
	open  int
	Order ByteOrder
}

func NewWriter() *Writer {
	return &Writer{Order: binary.BigEndian}
}

// Placeholder is a reserved fixed-width field in a Writer's buffer.
type Placeholder struct {
	w     *Writer
	pos   int
	width int
	done  bool
}

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *Writer) Zeros(n int) {
	w.buf = append(w.buf, make([]byte, n)...)
}

func (w *Writer) U8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) U16(v uint16) { w.buf = w.Order.AppendUint16(w.buf, v) }
func (w *Writer) U32(v uint32) { w.buf = w.Order.AppendUint32(w.buf, v) }
func (w *Writer) U64(v uint64) { w.buf = w.Order.AppendUint64(w.buf, v) }
func (w *Writer) I16(v int16)  { w.U16(uint16(v)) }
func (w *Writer) I32(v int32)  { w.U32(uint32(v)) }

// PascalString writes a length byte and the string, which must be under 256 bytes.
func (w *Writer) PascalString(s []byte) error {
	if len(s) > 255 {
		return fmt.Errorf("pascal string too long: %d bytes", len(s))
	}
	w.U8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// Placeholder reserves width bytes (1, 2, 4 or 8) at the current position.
func (w *Writer) Placeholder(width int) *Placeholder {
	switch width {
	case 1, 2, 4, 8:
	default:
		panic(fmt.Sprintf("bincursor: bad placeholder width %d", width))
	}
	p := &Placeholder{w: w, pos: len(w.buf), width: width}
	for range width {
		w.buf = append(w.buf, 0xca)
	}
	w.open++
	return p
}

// Commit writes v into the reserved field. Values that do not fit are an error.
func (p *Placeholder) Commit(v uint64) error {
	if p.done {
		panic("bincursor: placeholder committed twice")
	}
	if p.width < 8 && v>>(8*p.width) != 0 {
		return fmt.Errorf("value %#x does not fit in %d-byte field", v, p.width)
	}
	dst := p.w.buf[p.pos : p.pos+p.width]
	switch p.width {
	case 1:
		dst[0] = uint8(v)
	case 2:
		p.w.Order.PutUint16(dst, uint16(v))
	case 4:
		p.w.Order.PutUint32(dst, uint32(v))
	case 8:
		p.w.Order.PutUint64(dst, v)
	}
	p.done = true
	p.w.open--
	return nil
}

// Bytes returns the finished buffer, failing if any placeholder is still open.
func (w *Writer) Bytes() ([]byte, error) {
	if w.open != 0 {
		return nil, fmt.Errorf("%w: %d outstanding", ErrUncommitted, w.open)
	}
	return w.buf, nil
}
