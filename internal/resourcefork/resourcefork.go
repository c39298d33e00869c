// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package resourcefork reads and writes the classic Mac OS resource fork format.
//
// A parsed Fork is an in-memory tree keyed by four-byte type code and 16-bit ID.
// Serializing it reproduces the layout Apple's Resource Manager writes,
// including the opaque fields that round-trip verbatim.
package resourcefork

import (
	"errors"
	"fmt"

	"github.com/elliotnunn/resourceform/internal/appledouble"
)

var (
	ErrFormat      = errors.New("not a valid resource fork")
	ErrUnsupported = errors.New("unsupported resource fork feature")
)

const (
	FlagCompressed = 0x01 // needs the Resource Manager's decompressor
	FlagChanged    = 0x02
	FlagPreload    = 0x04
	FlagProtected  = 0x08
	FlagLocked     = 0x10
	FlagPurgeable  = 0x20
	FlagSysHeap    = 0x40
)

// OrderUnknown marks a resource that did not come from a parsed fork.
const OrderUnknown = 0xffffffff

type Resource struct {
	Type  [4]byte
	ID    int16
	Data  []byte
	Name  []byte // empty means no name
	Flags uint8
	Junk  uint32 // the handle field, meaningless on disk
	Order uint32 // position in the original data section, or OrderUnknown
}

func (r *Resource) String() string {
	return fmt.Sprintf("'%s' #%d", r.Type[:], r.ID)
}

// Fork holds resources grouped by type. Types and resources keep their
// insertion order, which decides the shape of the serialized map.
type Fork struct {
	Attributes  uint16 // Finder-visible map attributes
	JunkNextMap uint32
	JunkFileRef uint16

	types []*typeList
	index map[[4]byte]*typeList
}

type typeList struct {
	t    [4]byte
	res  []*Resource
	byID map[int16]*Resource
}

func New() *Fork {
	return &Fork{index: make(map[[4]byte]*typeList)}
}

// Add inserts a resource, rejecting a duplicate type and ID.
func (f *Fork) Add(r *Resource) error {
	if f.index == nil {
		f.index = make(map[[4]byte]*typeList)
	}
	tl := f.index[r.Type]
	if tl == nil {
		tl = &typeList{t: r.Type, byID: make(map[int16]*Resource)}
		f.index[r.Type] = tl
		f.types = append(f.types, tl)
	}
	if _, dup := tl.byID[r.ID]; dup {
		return fmt.Errorf("%w: duplicate resource %s", ErrFormat, r)
	}
	tl.byID[r.ID] = r
	tl.res = append(tl.res, r)
	return nil
}

// Types lists the type codes in insertion order.
func (f *Fork) Types() [][4]byte {
	ret := make([][4]byte, len(f.types))
	for i, tl := range f.types {
		ret[i] = tl.t
	}
	return ret
}

// Resources lists the resources of a type in insertion order.
func (f *Fork) Resources(t [4]byte) []*Resource {
	if tl := f.index[t]; tl != nil {
		return tl.res
	}
	return nil
}

func (f *Fork) Get(t [4]byte, id int16) *Resource {
	if tl := f.index[t]; tl != nil {
		return tl.byID[id]
	}
	return nil
}

// All visits every resource in map order.
func (f *Fork) All(yield func(*Resource) bool) {
	for _, tl := range f.types {
		for _, r := range tl.res {
			if !yield(r) {
				return
			}
		}
	}
}

// Len counts resources of all types.
func (f *Fork) Len() int {
	n := 0
	for _, tl := range f.types {
		n += len(tl.res)
	}
	return n
}

// Open parses a bare resource fork, or the resource fork inside an AppleDouble file.
// An AppleDouble file without a resource fork entry yields an empty fork.
func Open(b []byte) (*Fork, error) {
	entries, err := appledouble.Parse(b)
	if errors.Is(err, appledouble.ErrNotAppleDouble) {
		return Parse(b)
	} else if err != nil {
		return nil, err
	}
	return Parse(entries[appledouble.RESOURCE_FORK])
}
