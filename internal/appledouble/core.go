// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package appledouble

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/elliotnunn/resourceform/internal/bincursor"
)

var appleDoubleEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrNotAppleDouble = errors.New("not an AppleDouble file")
	ErrFormat         = errors.New("malformed AppleDouble file")
)

const (
	Magic   = 0x00051607
	Version = 0x00020000
)

const (
	DATA_FORK           = 1
	RESOURCE_FORK       = 2
	REAL_NAME           = 3
	COMMENT             = 4
	ICON_BW             = 5
	ICON_COLOR          = 6
	FILE_INFO_V1        = 7 // Old v1 file info combining FILE_DATES_INFO and MACINTOSH_FILE_INFO.
	FILE_DATES_INFO     = 8
	FINDER_INFO         = 9  // FinderInfo (16) + FinderXInfo (16)
	MACINTOSH_FILE_INFO = 10 // 32 bits, bits 31 = protected and 32 = locked
	PRODOS_FILE_INFO    = 11
	MSDOS_FILE_INFO     = 12
	SHORT_NAME          = 13 // AFP short name.
	AFP_FILE_INFO       = 14
	DIRECTORY_ID        = 15 // AFP directory ID.
)

// some writers leave the low byte of the magic number zero
func isMagic(m uint32) bool {
	return m == Magic || m == Magic&^0xff
}

// Parse splits an AppleDouble file into its entries, keyed by entry ID.
// Input that does not start with the magic number fails with ErrNotAppleDouble.
func Parse(b []byte) (map[int][]byte, error) {
	r := bincursor.NewReader(b)
	magic, err := r.U32()
	if err != nil || !isMagic(magic) {
		return nil, ErrNotAppleDouble
	}
	version, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	} else if version != Version {
		return nil, fmt.Errorf("%w: version %#08x", ErrFormat, version)
	}
	r.Skip(16) // filler
	n, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	entries := make(map[int][]byte, n)
	for i := range int(n) {
		r.Seek(26 + 12*i)
		id, err1 := r.U32()
		offset, err2 := r.U32()
		size, err3 := r.U32()
		if err := errors.Join(err1, err2, err3); err != nil {
			return nil, fmt.Errorf("%w: entry table: %w", ErrFormat, err)
		}
		if uint64(offset)+uint64(size) > uint64(len(b)) {
			return nil, fmt.Errorf("%w: entry %d at %#x+%#x overruns %#x-byte file",
				ErrFormat, id, offset, size, len(b))
		}
		entries[int(id)] = b[offset:][:size]
	}
	return entries, nil
}

// MakePrefix lays out the header and every record except the resource fork,
// which it reserves room for at the end, no earlier than rForkMinOffset.
// The caller appends the fork to the returned buffer.
func MakePrefix(records map[int][]byte, rforkSize, rForkMinOffset int64) (buf []byte, rForkOffset int64) {
	var keys []int
	for k := range records {
		if k != RESOURCE_FORK {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	if rforkSize > 0 {
		keys = append(keys, RESOURCE_FORK)
	}

	w := bincursor.NewWriter()
	w.U32(Magic) // modern macOS expects the 07 byte
	w.U32(Version)
	w.Zeros(16) // modern macOS puts "Mac OS X" here, doesn't seem to be necessary
	w.U16(uint16(len(keys)))

	offsets := make([]*bincursor.Placeholder, len(keys))
	for i, key := range keys {
		w.U32(uint32(key))
		offsets[i] = w.Placeholder(4)
		if key == RESOURCE_FORK {
			w.U32(uint32(rforkSize))
		} else {
			w.U32(uint32(len(records[key])))
		}
	}

	for i, key := range keys {
		if key == RESOURCE_FORK {
			rForkOffset = max(int64(w.Len()), rForkMinOffset)
			offsets[i].Commit(uint64(rForkOffset))
			w.Zeros(int(rForkOffset) - w.Len())
		} else {
			offsets[i].Commit(uint64(w.Len()))
			w.Write(records[key])
		}
	}

	buf, err := w.Bytes()
	if err != nil {
		panic(err) // every placeholder is committed above
	}
	return buf, rForkOffset
}

// Pack builds a complete AppleDouble file from its records.
func Pack(records map[int][]byte) []byte {
	fork := records[RESOURCE_FORK]
	buf, _ := MakePrefix(records, int64(len(fork)), 0)
	return append(buf, fork...)
}
