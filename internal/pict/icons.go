// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pict

import (
	"fmt"
	"image"
)

// The system palettes that 4 and 8-bit Finder icons index into.
var (
	clut4 = func() *palette {
		p := new(palette)
		for i, rgb := range []uint32{
			0xFFFFFF, 0xFCF305, 0xFF6402, 0xDD0806, 0xF20884, 0x4600A5, 0x0000D4, 0x02ABEA,
			0x1FB714, 0x006411, 0x562C05, 0x90713A, 0xC0C0C0, 0x808080, 0x404040, 0x000000,
		} {
			p[i] = [4]byte{byte(rgb), byte(rgb >> 8), byte(rgb >> 16), 0xff}
		}
		return p
	}()

	clut8 = func() *palette {
		p := new(palette)
		levels := []byte{0xFF, 0xCC, 0x99, 0x66, 0x33, 0x00}
		ramp := []byte{0xEE, 0xDD, 0xBB, 0xAA, 0x88, 0x77, 0x55, 0x44, 0x22, 0x11}
		i := 0
		for _, r := range levels {
			for _, g := range levels {
				for _, b := range levels {
					if r|g|b != 0 {
						p[i] = [4]byte{b, g, r, 0xff}
						i++
					}
				}
			}
		}
		for _, v := range ramp {
			p[i] = [4]byte{0, 0, v, 0xff}
			i++
		}
		for _, v := range ramp {
			p[i] = [4]byte{0, v, 0, 0xff}
			i++
		}
		for _, v := range ramp {
			p[i] = [4]byte{v, 0, 0, 0xff}
			i++
		}
		for _, v := range ramp {
			p[i] = [4]byte{v, v, v, 0xff}
			i++
		}
		p[i] = black
		return p
	}()
)

// DecodeIcon rasterizes a square Finder icon (ICN#, icl4, icl8 and their
// small ics counterparts) of the given side length and depth in bits.
// The mask is 1 bit deep and may be nil, leaving every pixel opaque.
func DecodeIcon(data []byte, size, depth int, mask []byte) (*Image, error) {
	pal := map[int]*palette{1: bwPalette, 4: clut4, 8: clut8}[depth]
	if pal == nil {
		return nil, fmt.Errorf("%w: %d-bit icon", ErrUnsupported, depth)
	}
	need := size * size * depth / 8
	if len(data) < need {
		return nil, fmt.Errorf("%w: %d-bit %dx%d icon needs %d bytes, has %d", ErrFormat, depth, size, size, need, len(data))
	}
	x := &xmap{rowBytes: size * depth / 8, frame: image.Rect(0, 0, size, size), isPixmap: true, pixelSize: int16(depth)}
	img, err := indexed(data[:need], x, pal)
	if err != nil {
		return nil, err
	}
	if mask == nil {
		return img, nil
	}

	if len(mask) < size*size/8 {
		return nil, fmt.Errorf("%w: %dx%d icon mask has %d bytes", ErrFormat, size, size, len(mask))
	}
	alpha, err := expand(mask[:size*size/8], 1)
	if err != nil {
		return nil, err
	}
	for i, a := range alpha {
		img.Pix[4*i+3] = 0xff * a
	}
	return img, nil
}
