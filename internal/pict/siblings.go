// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pict

import (
	"fmt"
	"image"

	"github.com/elliotnunn/resourceform/internal/bincursor"
)

// DecodeCicn rasterizes a color icon, using its 1-bit mask as the alpha channel.
func DecodeCicn(data []byte, opts *Options) (*Image, error) {
	r := bincursor.NewReader(data)

	r.Skip(4) // base address
	pm, err := readXmap(r)
	if err != nil {
		return nil, fmt.Errorf("cicn pixmap: %w", err)
	}
	r.Skip(4)
	mask, err := readXmap(r)
	if err != nil {
		return nil, fmt.Errorf("cicn mask: %w", err)
	}
	r.Skip(4)
	bw, err := readXmap(r)
	if err != nil {
		return nil, fmt.Errorf("cicn bitmap: %w", err)
	}
	r.Skip(4) // icon data handle
	if !pm.isPixmap || mask.isPixmap || bw.isPixmap {
		return nil, fmt.Errorf("%w: cicn headers are the wrong kind", ErrFormat)
	}

	maskBits, err := r.ReadExact(mask.rowBytes * mask.frame.Dy())
	if err != nil {
		return nil, fmt.Errorf("cicn mask: %w", err)
	}
	// the bitmap is as tall as the mask, whatever its own bounds say
	if _, err := r.ReadExact(bw.rowBytes * mask.frame.Dy()); err != nil {
		return nil, fmt.Errorf("cicn bitmap: %w", err)
	}
	pal, err := readColortable(r, opts.logger())
	if err != nil {
		return nil, fmt.Errorf("cicn: %w", err)
	}
	raw, err := r.ReadExact(pm.rowBytes * pm.frame.Dy())
	if err != nil {
		return nil, fmt.Errorf("cicn pixels: %w", err)
	}

	img, err := indexed(raw, pm, pal)
	if err != nil {
		return nil, fmt.Errorf("cicn pixels: %w", err)
	}
	if mask.rowBytes == 0 {
		return img, nil // no mask means opaque
	}
	if mask.frame.Size() != pm.frame.Size() {
		return nil, fmt.Errorf("%w: cicn mask %v does not match pixmap %v", ErrFormat, mask.frame, pm.frame)
	}
	alpha, err := expand(maskBits, 1)
	if err == nil {
		alpha, err = trim(alpha, mask.frame.Dx(), 8*mask.rowBytes, mask.frame.Dy())
	}
	if err != nil {
		return nil, fmt.Errorf("cicn mask: %w", err)
	}
	for i, a := range alpha {
		img.Pix[4*i+3] = 0xff * a
	}
	return img, nil
}

// DecodePpat rasterizes a color pattern. Only indexed (type 1) patterns are supported.
func DecodePpat(data []byte, opts *Options) (*Image, error) {
	r := bincursor.NewReader(data)
	patType, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("ppat: %w", err)
	}
	patMap, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("ppat: %w", err)
	}
	patData, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("ppat: %w", err)
	}
	if patType != 1 {
		return nil, fmt.Errorf("%w: type %d ppat", ErrUnsupported, patType)
	}

	r.Seek(int(patMap))
	r.Skip(4) // base address
	pm, err := readXmap(r)
	if err != nil {
		return nil, fmt.Errorf("ppat pixmap: %w", err)
	}
	if !pm.isPixmap {
		return nil, fmt.Errorf("%w: ppat has a bitmap where a pixmap belongs", ErrFormat)
	}
	if pm.pmTable < patData {
		return nil, fmt.Errorf("%w: ppat colortable at %#x precedes pixels at %#x", ErrFormat, pm.pmTable, patData)
	}

	r.Seek(int(patData))
	raw, err := r.ReadExact(int(pm.pmTable - patData))
	if err != nil {
		return nil, fmt.Errorf("ppat pixels: %w", err)
	}
	pal, err := readColortable(r, opts.logger())
	if err != nil {
		return nil, fmt.Errorf("ppat: %w", err)
	}
	return indexed(raw, pm, pal)
}

// DecodeSicn stacks a list of 16x16 black and white icons vertically.
func DecodeSicn(data []byte) (*Image, error) {
	n := len(data) / 32
	if n == 0 {
		return nil, fmt.Errorf("%w: SICN of %d bytes holds no icons", ErrFormat, len(data))
	}
	x := &xmap{rowBytes: 2, frame: image.Rect(0, 0, 16, 16*n)}
	return indexed(data[:32*n], x, bwPalette)
}
