// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pict

import (
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"

	"github.com/elliotnunn/resourceform/internal/bincursor"
)

// xmap is a BitMap or PixMap header. A BitMap is always 1 bit deep.
type xmap struct {
	rowBytes  int
	frame     image.Rectangle
	isPixmap  bool
	packType  int16
	pixelType int16
	pixelSize int16
	cmpCount  int16
	cmpSize   int16
	pmTable   uint32 // offset of the colortable, in some layouts
}

func (x *xmap) bitsPerPixel() int {
	if !x.isPixmap {
		return 1
	}
	return int(x.pixelSize)
}

func readXmap(r *bincursor.Reader) (*xmap, error) {
	var err error
	u32 := func() (v uint32) {
		if err == nil {
			v, err = r.U32()
		}
		return
	}
	i16 := func() (v int16) {
		if err == nil {
			v, err = r.I16()
		}
		return
	}

	flagged := uint16(i16())
	x := &xmap{rowBytes: int(flagged & 0x7fff), isPixmap: flagged&0x8000 != 0}
	if err != nil {
		return nil, err
	}
	x.frame, err = readRect(r)
	if err != nil {
		return nil, err
	}
	if x.frame.Dx() < 0 || x.frame.Dy() < 0 {
		return nil, fmt.Errorf("%w: negative raster dimensions %v", ErrFormat, x.frame)
	}
	if !x.isPixmap {
		return x, nil
	}

	i16() // pmVersion
	x.packType = i16()
	u32() // packSize
	u32() // hRes
	u32() // vRes
	x.pixelType = i16()
	x.pixelSize = i16()
	x.cmpCount = i16()
	x.cmpSize = i16()
	u32() // planeBytes
	x.pmTable = u32()
	u32() // reserved
	if err != nil {
		return nil, err
	}
	return x, nil
}

// palette holds BGRA colors. Slots a colortable does not set are transparent magenta.
type palette [256][4]byte

var unsetColor = [4]byte{0xff, 0x00, 0xff, 0x00}

var bwPalette = func() *palette {
	p := new(palette)
	p[0], p[1] = white, black
	return p
}()

func readColortable(r *bincursor.Reader, log *slog.Logger) (*palette, error) {
	r.Skip(4) // seed
	r.Skip(2) // flags
	n, err := r.U16()
	if err != nil {
		return nil, fmt.Errorf("colortable: %w", err)
	}
	count := int(n) + 1
	if count > 256 {
		return nil, fmt.Errorf("%w: %d-entry colortable", ErrFormat, count)
	}

	p := new(palette)
	for i := range p {
		p[i] = unsetColor
	}
	var set [256]bool
	illegal := make(map[uint16]bool)
	for i := range count {
		var idx, red, green, blue uint16
		err := firstErr(u16(r, &idx), u16(r, &red), u16(r, &green), u16(r, &blue))
		if err != nil {
			return nil, fmt.Errorf("colortable: %w", err)
		}
		ci := int(idx)
		if ci >= 256 {
			if !illegal[idx] {
				log.Warn("pictPaletteIndex", "index", idx)
				illegal[idx] = true
			}
			ci = 0
		}
		if ci == 0 {
			ci = i
		}
		if set[ci] {
			log.Warn("pictPaletteOverwrite", "index", ci)
		}
		set[ci] = true
		p[ci] = [4]byte{uint8(blue >> 8), uint8(green >> 8), uint8(red >> 8), 0xff}
	}
	return p, nil
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

// bits draws one of the six raster opcodes onto the canvas.
func (d *decoder) bits(op uint16) error {
	direct := op == opDirectBitsRect || op == opDirectBitsRgn
	region := op == opBitsRgn || op == opPackBitsRgn || op == opDirectBitsRgn
	packed := op != opBitsRect && op != opBitsRgn

	if direct {
		d.r.Skip(4) // base address
	}
	x, err := readXmap(d.r)
	if err != nil {
		return err
	}
	var pal *palette
	if !direct && x.isPixmap {
		if pal, err = readColortable(d.r, d.log); err != nil {
			return err
		}
	}

	src, err := readRect(d.r)
	if err != nil {
		return err
	}
	dst, err := readRect(d.r)
	if err != nil {
		return err
	}
	if src.Size() != dst.Size() {
		d.log.Warn("pictRectMismatch", "src", src, "dst", dst, "frame", x.frame)
	}

	mode, err := d.r.I16()
	if err != nil {
		return err
	}
	mode &^= 64 // ditherCopy
	if mode != 0 {
		d.log.Warn("pictTransferMode", "mode", mode)
	}

	var mask []byte
	var maskRect image.Rectangle
	if region {
		n, err := d.r.U16()
		if err != nil {
			return err
		}
		if n < 10 {
			return fmt.Errorf("%w: %d-byte mask region", ErrFormat, n)
		}
		if maskRect, err = readRect(d.r); err != nil {
			return err
		}
		scans, err := d.r.ReadExact(int(n) - 10)
		if err != nil {
			return err
		}
		if len(scans) > 0 {
			if mask, err = unpackMaskRgn(maskRect, scans); err != nil {
				return err
			}
		}
	}

	img, err := readPixels(d.r, x, pal, packed)
	if err != nil {
		return err
	}
	if mask != nil {
		applyMask(img, x.frame, mask, maskRect)
	}
	if src != x.frame {
		img = crop(img, x.frame, src)
	}

	d.rasters++
	if d.version == 1 && d.rasters > 1 {
		d.log.Warn("pictMultipleRasters", "n", d.rasters)
		return nil
	}
	blit(d.canvas, d.frame, img, dst.Min)
	return nil
}

// readPixels decodes raster data into an image the size of the frame.
func readPixels(r *bincursor.Reader, x *xmap, pal *palette, packed bool) (*Image, error) {
	w, h := x.frame.Dx(), x.frame.Dy()
	if w*h > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d raster is too large", ErrUnsupported, w, h)
	}

	switch {
	case !x.isPixmap:
		raw, err := unpackRows(r, 1, h, x.rowBytes, packed)
		if err != nil {
			return nil, err
		}
		return indexed(raw, x, bwPalette)
	case x.packType == 1 || x.rowBytes < 8:
		raw, err := unpackRows(r, 1, h, x.rowBytes, false)
		if err != nil {
			return nil, err
		}
		return indexed(raw, x, pal)
	case x.packType == 0:
		raw, err := unpackRows(r, 1, h, x.rowBytes, packed)
		if err != nil {
			return nil, err
		}
		return indexed(raw, x, pal)
	case x.packType == 3:
		return rgb555(r, x, packed)
	case x.packType == 4:
		return planar(r, x, packed)
	}
	return nil, fmt.Errorf("%w: pack type %d", ErrUnsupported, x.packType)
}

// expand widens 1, 2 or 4-bit pixels to a byte each.
func expand(raw []byte, bits int) ([]byte, error) {
	switch bits {
	case 8:
		return raw, nil
	case 1, 2, 4:
	default:
		return nil, fmt.Errorf("%w: %d-bit indexed pixels", ErrUnsupported, bits)
	}
	per := 8 / bits
	valueMask := byte(1)<<bits - 1
	out := make([]byte, 0, per*len(raw))
	for _, b := range raw {
		for i := per - 1; i >= 0; i-- {
			out = append(out, b>>(i*bits)&valueMask)
		}
	}
	return out, nil
}

// trim drops the columns that pad each row out to a whole number of bytes,
// leaving exactly width*height pixels.
func trim(px []byte, width, perRow, height int) ([]byte, error) {
	if perRow < width || len(px) < perRow*height {
		return nil, fmt.Errorf("%w: %d pixels cannot fill %d rows of %d (stride %d)",
			ErrFormat, len(px), height, width, perRow)
	}
	if perRow == width {
		return px[:width*height], nil
	}
	out := make([]byte, width*height)
	for y := range height {
		copy(out[y*width:], px[y*perRow:][:width])
	}
	return out, nil
}

func indexed(raw []byte, x *xmap, pal *palette) (*Image, error) {
	if pal == nil {
		return nil, fmt.Errorf("%w: indexed pixels without a colortable", ErrFormat)
	}
	bits := x.bitsPerPixel()
	px, err := expand(raw, bits)
	if err != nil {
		return nil, err
	}
	w, h := x.frame.Dx(), x.frame.Dy()
	px, err = trim(px, w, 8*x.rowBytes/bits, h)
	if err != nil {
		return nil, err
	}
	img := &Image{Width: w, Height: h, Pix: make([]byte, 4*len(px))}
	for i, c := range px {
		copy(img.Pix[4*i:], pal[c][:])
	}
	return img, nil
}

// rgb555 decodes 16-bit chunky pixels.
func rgb555(r *bincursor.Reader, x *xmap, packed bool) (*Image, error) {
	w, h := x.frame.Dx(), x.frame.Dy()
	if x.rowBytes%2 != 0 || 2*w > x.rowBytes {
		return nil, fmt.Errorf("%w: %d row bytes for %d 16-bit pixels", ErrFormat, x.rowBytes, w)
	}
	raw, err := unpackRows(r, 2, h, x.rowBytes, packed)
	if err != nil {
		return nil, err
	}
	if len(raw) != h*x.rowBytes {
		return nil, fmt.Errorf("%w: 16-bit raster unpacked to %d bytes, want %d", ErrFormat, len(raw), h*x.rowBytes)
	}

	img := &Image{Width: w, Height: h, Pix: make([]byte, 4*w*h)}
	for y := range h {
		for i := range w {
			p := binary.BigEndian.Uint16(raw[y*x.rowBytes+2*i:])
			o := 4 * (y*w + i)
			img.Pix[o+0] = scale5(p)
			img.Pix[o+1] = scale5(p >> 5)
			img.Pix[o+2] = scale5(p >> 10)
			img.Pix[o+3] = 0xff
		}
	}
	return img, nil
}

func scale5(v uint16) byte {
	return byte(uint32(v&0x1f) * 255 / 31)
}

// planar decodes rows made of 3 (RGB) or 4 (ARGB) consecutive component planes.
func planar(r *bincursor.Reader, x *xmap, packed bool) (*Image, error) {
	w, h := x.frame.Dx(), x.frame.Dy()
	n := int(x.cmpCount)
	if n != 3 && n != 4 {
		return nil, fmt.Errorf("%w: %d-component direct pixels", ErrUnsupported, n)
	}
	raw, err := unpackRows(r, 1, h, x.rowBytes, packed)
	if err != nil {
		return nil, err
	}
	if len(raw) != n*w*h {
		return nil, fmt.Errorf("%w: %d-plane raster unpacked to %d bytes, want %d", ErrFormat, n, len(raw), n*w*h)
	}

	img := &Image{Width: w, Height: h, Pix: make([]byte, 4*w*h)}
	for y := range h {
		row := raw[y*n*w:]
		for i := range w {
			o := 4 * (y*w + i)
			if n == 3 {
				img.Pix[o+0] = row[2*w+i]
				img.Pix[o+1] = row[1*w+i]
				img.Pix[o+2] = row[0*w+i]
				img.Pix[o+3] = 0xff
			} else {
				img.Pix[o+0] = row[3*w+i]
				img.Pix[o+1] = row[2*w+i]
				img.Pix[o+2] = row[1*w+i]
				img.Pix[o+3] = row[0*w+i]
			}
		}
	}
	return img, nil
}

// unpackMaskRgn turns a region's scanline data into one opacity byte per
// pixel of its bounding rectangle. Each scanline record toggles spans of the
// running row, which repeats until the next record.
func unpackMaskRgn(rect image.Rectangle, scans []byte) ([]byte, error) {
	w, h := rect.Dx(), rect.Dy()
	if w < 0 || h < 0 || w*h > maxPixels {
		return nil, fmt.Errorf("%w: mask region bounds %v", ErrFormat, rect)
	}
	out := make([]byte, 0, w*h)
	row := make([]byte, w)
	last := rect.Min.Y

	r := bincursor.NewReader(scans)
	for !r.EOF() {
		y, err := r.I16()
		if err != nil {
			return nil, fmt.Errorf("mask region: %w", err)
		}
		if y == 0x7fff {
			break
		}
		if int(y) < last || len(out)+(int(y)-last)*w > w*h {
			return nil, fmt.Errorf("%w: mask region scanline %d out of order", ErrFormat, y)
		}
		for range int(y) - last {
			out = append(out, row...)
		}

		for {
			left, err := r.I16()
			if err != nil {
				return nil, fmt.Errorf("mask region: %w", err)
			}
			if left == 0x7fff {
				break
			}
			right, err := r.I16()
			if err != nil {
				return nil, fmt.Errorf("mask region: %w", err)
			}
			for x := int(left); x < int(right); x++ {
				i := x - rect.Min.X
				if i < 0 || i >= w {
					return nil, fmt.Errorf("%w: mask region span %d-%d outside %v", ErrFormat, left, right, rect)
				}
				row[i] ^= 0xff
			}
		}
		last = int(y)
	}

	if len(out) != w*h {
		return nil, fmt.Errorf("%w: mask region covers %d of %d rows", ErrFormat, len(out)/max(w, 1), h)
	}
	return out, nil
}

// applyMask overwrites the alpha of every pixel that the mask covers.
func applyMask(img *Image, imgRect image.Rectangle, mask []byte, maskRect image.Rectangle) {
	inter := imgRect.Intersect(maskRect)
	mw := maskRect.Dx()
	for y := inter.Min.Y; y < inter.Max.Y; y++ {
		for x := inter.Min.X; x < inter.Max.X; x++ {
			m := mask[(y-maskRect.Min.Y)*mw+(x-maskRect.Min.X)]
			img.Pix[4*((y-imgRect.Min.Y)*img.Width+(x-imgRect.Min.X))+3] = m
		}
	}
}

// crop cuts an image whose pixels cover imgRect down to the part inside keep.
func crop(img *Image, imgRect, keep image.Rectangle) *Image {
	inter := imgRect.Intersect(keep)
	out := &Image{Width: inter.Dx(), Height: inter.Dy(), Pix: make([]byte, 4*inter.Dx()*inter.Dy())}
	dx, dy := inter.Min.X-imgRect.Min.X, inter.Min.Y-imgRect.Min.Y
	for y := range out.Height {
		copy(out.Pix[4*y*out.Width:][:4*out.Width], img.Pix[4*((dy+y)*img.Width+dx):])
	}
	return out
}

// blit copies img onto the canvas with its top left corner at "at",
// clipped to the canvas.
func blit(canvas *Image, canvasRect image.Rectangle, img *Image, at image.Point) {
	placed := image.Rectangle{Min: at, Max: at.Add(image.Pt(img.Width, img.Height))}
	inter := placed.Intersect(canvasRect)
	if inter.Empty() {
		return
	}
	sx, sy := inter.Min.X-placed.Min.X, inter.Min.Y-placed.Min.Y
	cx, cy := inter.Min.X-canvasRect.Min.X, inter.Min.Y-canvasRect.Min.Y
	n := 4 * inter.Dx()
	for y := range inter.Dy() {
		copy(canvas.Pix[4*((cy+y)*canvas.Width+cx):][:n], img.Pix[4*((sy+y)*img.Width+sx):][:n])
	}
}
