// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package resourcefork

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/elliotnunn/resourceform/internal/bincursor"
)

const (
	dataStart      = 256 // header plus the 240 bytes reserved for the system
	typeListOffset = 28  // from the start of the map
)

// dataOrder lists resources the way their data should be laid out:
// parsed resources by Order, then the rest in tree order.
func (f *Fork) dataOrder() []*Resource {
	var all []*Resource
	for r := range f.All {
		all = append(all, r)
	}
	slices.SortStableFunc(all, func(a, b *Resource) int {
		return cmp.Compare(a.Order, b.Order) // OrderUnknown sorts last
	})
	return all
}

// Bytes serializes the fork in the layout the Resource Manager writes.
func (f *Fork) Bytes() ([]byte, error) {
	for _, tl := range f.types {
		if len(tl.res) == 0 {
			return nil, fmt.Errorf("%w: type '%s' has no resources", ErrFormat, tl.t[:])
		}
		if len(tl.res) > 0x10000 {
			return nil, fmt.Errorf("%w: type '%s' has too many resources", ErrFormat, tl.t[:])
		}
	}
	if len(f.types) > 0x10000 {
		return nil, fmt.Errorf("%w: too many types", ErrFormat)
	}

	w := bincursor.NewWriter()
	var hdr [2][4]*bincursor.Placeholder // the header, and its copy in the map
	hdr[0] = [4]*bincursor.Placeholder{w.Placeholder(4), w.Placeholder(4), w.Placeholder(4), w.Placeholder(4)}
	w.Zeros(dataStart - w.Len())

	offsets := make(map[*Resource]uint32)
	for _, r := range f.dataOrder() {
		off := w.Len() - dataStart
		if off > 0xffffff {
			return nil, fmt.Errorf("%w: data section too large at %s", ErrFormat, r)
		}
		offsets[r] = uint32(off)
		w.U32(uint32(len(r.Data)))
		w.Write(r.Data)
	}
	dataLen := w.Len() - dataStart

	mapStart := w.Len()
	hdr[1] = [4]*bincursor.Placeholder{w.Placeholder(4), w.Placeholder(4), w.Placeholder(4), w.Placeholder(4)}
	w.U32(f.JunkNextMap)
	w.U16(f.JunkFileRef)
	w.U16(f.Attributes)
	w.U16(typeListOffset)
	nameList := w.Placeholder(2)

	typeList := w.Len()
	w.U16(uint16(len(f.types) - 1)) // 0xffff when empty
	refLists := make([]*bincursor.Placeholder, len(f.types))
	for i, tl := range f.types {
		w.Write(tl.t[:])
		w.U16(uint16(len(tl.res) - 1))
		refLists[i] = w.Placeholder(2)
	}

	var names [][]byte
	nameOffset := 0
	for i, tl := range f.types {
		if err := refLists[i].Commit(uint64(w.Len() - typeList)); err != nil {
			return nil, fmt.Errorf("%w: reference list of '%s': %w", ErrFormat, tl.t[:], err)
		}
		for _, r := range tl.res {
			w.I16(r.ID)
			if len(r.Name) == 0 {
				w.U16(0xffff)
			} else {
				if len(r.Name) > 255 {
					return nil, fmt.Errorf("%w: name of %s is %d bytes", ErrFormat, r, len(r.Name))
				}
				if nameOffset > 0xfffe {
					return nil, fmt.Errorf("%w: name list too large at %s", ErrFormat, r)
				}
				w.U16(uint16(nameOffset))
				nameOffset += 1 + len(r.Name)
				names = append(names, r.Name)
			}
			w.U32(uint32(r.Flags)<<24 | offsets[r])
			w.U32(r.Junk)
		}
	}

	if err := nameList.Commit(uint64(w.Len() - mapStart)); err != nil {
		return nil, fmt.Errorf("%w: map too large: %w", ErrFormat, err)
	}
	for _, n := range names {
		w.PascalString(n) // length checked above
	}
	mapLen := w.Len() - mapStart

	for _, h := range hdr {
		for i, v := range []int{dataStart, mapStart, dataLen, mapLen} {
			if err := h[i].Commit(uint64(v)); err != nil {
				return nil, fmt.Errorf("%w: fork too large: %w", ErrFormat, err)
			}
		}
	}
	return w.Bytes()
}
