// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pict

import (
	"fmt"

	"github.com/elliotnunn/resourceform/internal/bincursor"
)

// UnpackBits expands PackBits data made of unit-byte items. A control byte
// of 128 is ignored, above 128 repeats the next item 257-n times, and
// below 128 introduces n+1 literal items.
func UnpackBits(src []byte, unit int) ([]byte, error) {
	r := bincursor.NewReader(src)
	dst := make([]byte, 0, 2*len(src))
	for !r.EOF() {
		flag, _ := r.U8()
		switch {
		case flag == 128:
		case flag > 128:
			item, err := r.ReadExact(unit)
			if err != nil {
				return nil, fmt.Errorf("packed run: %w", err)
			}
			for range 257 - int(flag) {
				dst = append(dst, item...)
			}
		default:
			items, err := r.ReadExact(unit * (int(flag) + 1))
			if err != nil {
				return nil, fmt.Errorf("literal run: %w", err)
			}
			dst = append(dst, items...)
		}
	}
	return dst, nil
}

// unpackRows reads the pixel data of a raster. Rows narrower than 8 bytes
// are never packed, otherwise each has a length prefix, a byte wide unless
// rows exceed 250 bytes.
func unpackRows(r *bincursor.Reader, unit, rows, rowBytes int, packed bool) ([]byte, error) {
	if !packed || rowBytes < 8 {
		raw, err := r.ReadExact(rowBytes * rows)
		if err != nil {
			return nil, fmt.Errorf("unpacked rows: %w", err)
		}
		return raw, nil
	}

	var dst []byte
	for y := range rows {
		var n int
		if rowBytes > 250 {
			v, err := r.U16()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", y, err)
			}
			n = int(v)
		} else {
			v, err := r.U8()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", y, err)
			}
			n = int(v)
		}
		src, err := r.ReadExact(n)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", y, err)
		}
		row, err := UnpackBits(src, unit)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", y, err)
		}
		dst = append(dst, row...)
	}
	return dst, nil
}
