// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package resourcefork

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/elliotnunn/resourceform/internal/bincursor"
)

// Parse reads a resource fork. The returned Fork owns copies of all data.
// An empty buffer is an empty fork.
func Parse(fork []byte) (*Fork, error) {
	f := New()
	if len(fork) == 0 {
		return f, nil
	}
	if len(fork) < 16 {
		return nil, fmt.Errorf("%w: %d-byte header", ErrFormat, len(fork))
	}

	dataOffset := uint64(binary.BigEndian.Uint32(fork[0:]))
	mapOffset := uint64(binary.BigEndian.Uint32(fork[4:]))
	dataSize := uint64(binary.BigEndian.Uint32(fork[8:]))
	mapSize := uint64(binary.BigEndian.Uint32(fork[12:]))
	if dataOffset+dataSize > uint64(len(fork)) {
		return nil, fmt.Errorf("%w: data section %#x+%#x overruns %#x-byte fork", ErrFormat, dataOffset, dataSize, len(fork))
	}
	if mapOffset+mapSize > uint64(len(fork)) {
		return nil, fmt.Errorf("%w: map section %#x+%#x overruns %#x-byte fork", ErrFormat, mapOffset, mapSize, len(fork))
	}

	data := bincursor.NewReader(fork[dataOffset:][:dataSize])
	rmap := bincursor.NewReader(fork[mapOffset:][:mapSize])

	var tlo, nlo uint16
	rmap.Skip(16) // copy of the header
	err := firstErr(
		u32(rmap, &f.JunkNextMap),
		u16(rmap, &f.JunkFileRef),
		u16(rmap, &f.Attributes),
		u16(rmap, &tlo),
		u16(rmap, &nlo),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: map header: %w", ErrFormat, err)
	}

	types := bincursor.NewReader(nil)
	names := bincursor.NewReader(nil)
	if int(tlo) <= rmap.Len() {
		types = bincursor.NewReader(fork[mapOffset:][:mapSize][tlo:])
	}
	if int(nlo) <= rmap.Len() {
		names = bincursor.NewReader(fork[mapOffset:][:mapSize][nlo:])
	}

	nTypeMinusOne, err := types.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: type list: %w", ErrFormat, err)
	}
	nType := int(nTypeMinusOne) + 1
	if nTypeMinusOne == 0xffff {
		nType = 0 // empty map as written by some tools
	}

	type placed struct {
		offset uint32
		r      *Resource
	}
	var all []placed

	for i := range nType {
		types.Seek(2 + 8*i)
		t, err := types.ReadExact(4)
		if err != nil {
			return nil, fmt.Errorf("%w: type list: %w", ErrFormat, err)
		}
		var nResMinusOne, refOffset uint16
		if err := firstErr(u16(types, &nResMinusOne), u16(types, &refOffset)); err != nil {
			return nil, fmt.Errorf("%w: type list: %w", ErrFormat, err)
		}
		if f.index[[4]byte(t)] != nil {
			return nil, fmt.Errorf("%w: type '%s' listed twice", ErrFormat, t)
		}

		refs := bincursor.NewReader(types.Bytes())
		refs.Seek(int(refOffset))
		for range int(nResMinusOne) + 1 {
			r := &Resource{Type: [4]byte(t)}
			var nameOffset uint16
			var attr uint32
			err := firstErr(
				i16(refs, &r.ID),
				u16(refs, &nameOffset),
				u32(refs, &attr),
				u32(refs, &r.Junk),
			)
			if err != nil {
				return nil, fmt.Errorf("%w: reference list of '%s': %w", ErrFormat, t, err)
			}
			r.Flags = uint8(attr >> 24)
			if r.Flags&FlagCompressed != 0 {
				return nil, fmt.Errorf("%w: %s is compressed", ErrUnsupported, r)
			}

			if nameOffset != 0xffff {
				names.Seek(int(nameOffset))
				name, err := names.PascalString()
				if err != nil {
					return nil, fmt.Errorf("%w: name of %s: %w", ErrFormat, r, err)
				}
				r.Name = bytes.Clone(name)
			}

			dataof := attr & 0xffffff
			data.Seek(int(dataof))
			size, err := data.U32()
			if err != nil {
				return nil, fmt.Errorf("%w: data of %s: %w", ErrFormat, r, err)
			}
			body, err := data.ReadExact(int(size))
			if err != nil {
				return nil, fmt.Errorf("%w: data of %s: %w", ErrFormat, r, err)
			}
			r.Data = bytes.Clone(body)
			if r.Data == nil {
				r.Data = []byte{}
			}

			if err := f.Add(r); err != nil {
				return nil, err
			}
			all = append(all, placed{dataof, r})
		}
	}

	slices.SortStableFunc(all, func(a, b placed) int { return cmp.Compare(a.offset, b.offset) })
	for i, p := range all {
		p.r.Order = uint32(i)
	}
	return f, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func u16(r *bincursor.Reader, v *uint16) (err error) {
	*v, err = r.U16()
	return
}

func u32(r *bincursor.Reader, v *uint32) (err error) {
	*v, err = r.U32()
	return
}

func i16(r *bincursor.Reader, v *int16) (err error) {
	*v, err = r.I16()
	return
}
