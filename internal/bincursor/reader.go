// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package bincursor reads and writes fixed-width binary fields through a cursor.
package bincursor

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrTruncated = errors.New("truncated data")

// Reader is a bounds-checked sequential reader over an immutable buffer.
// Seek and Skip never fail: the check happens at the next read.
type Reader struct {
	buf   []byte
	off   int
	Order binary.ByteOrder
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf, Order: binary.BigEndian}
}

func (r *Reader) Offset() int    { return r.off }
func (r *Reader) Len() int       { return len(r.buf) }
func (r *Reader) Seek(off int)   { r.off = off }
func (r *Reader) Skip(delta int) { r.off += delta }

// Bytes returns the whole underlying buffer regardless of the cursor.
func (r *Reader) Bytes() []byte { return r.buf }

// Remaining may be negative if the cursor was moved past the end.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) EOF() bool { return r.off >= len(r.buf) }

// ReadExact returns a subslice of the underlying buffer, not a copy.
func (r *Reader) ReadExact(n int) ([]byte, error) {
	if n < 0 || r.off < 0 || r.off > len(r.buf) || len(r.buf)-r.off < n {
		return nil, fmt.Errorf("%w: want %d bytes at offset %d of %d", ErrTruncated, n, r.off, len(r.buf))
	}
	p := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return p, nil
}

func (r *Reader) U8() (uint8, error) {
	p, err := r.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *Reader) U16() (uint16, error) {
	p, err := r.ReadExact(2)
	if err != nil {
		return 0, err
	}
	return r.Order.Uint16(p), nil
}

func (r *Reader) U32() (uint32, error) {
	p, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return r.Order.Uint32(p), nil
}

func (r *Reader) U64() (uint64, error) {
	p, err := r.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return r.Order.Uint64(p), nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// PascalString reads a length byte followed by that many bytes.
func (r *Reader) PascalString() ([]byte, error) {
	n, err := r.U8()
	if err != nil {
		return nil, err
	}
	return r.ReadExact(int(n))
}

// I16s fills the arguments in order, convenient for rectangles.
func (r *Reader) I16s(dst ...*int16) error {
	for _, d := range dst {
		v, err := r.I16()
		if err != nil {
			return err
		}
		*d = v
	}
	return nil
}
