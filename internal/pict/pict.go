// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package pict rasterizes QuickDraw pictures (PICT resources) and the raster
// resources built from the same parts: cicn, ppat and SICN.
//
// Only the bitmap opcodes draw anything. Every other opcode is skipped, so a
// picture made of lines and text comes out as a blank canvas.
package pict

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/Velocidex/ordereddict"
	"github.com/elliotnunn/resourceform/internal/bincursor"
)

var (
	ErrFormat      = errors.New("malformed picture")
	ErrUnsupported = errors.New("unsupported picture feature")
)

// canvases bigger than this are refused rather than allocated
const maxPixels = 1 << 26

type Options struct {
	Logger *slog.Logger // advisory warnings, slog.Default() if nil
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Image is a decoded picture: Width*Height pixels, 4 bytes each in
// blue-green-red-alpha order, rows top to bottom.
type Image struct {
	Width, Height int
	Pix           []byte
}

func newImage(r image.Rectangle, fill [4]byte) (*Image, error) {
	if r.Dx() < 0 || r.Dy() < 0 {
		return nil, fmt.Errorf("%w: negative dimensions %v", ErrFormat, r)
	}
	if r.Dx()*r.Dy() > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d image is too large", ErrUnsupported, r.Dx(), r.Dy())
	}
	m := &Image{Width: r.Dx(), Height: r.Dy(), Pix: make([]byte, 4*r.Dx()*r.Dy())}
	for i := 0; i < len(m.Pix); i += 4 {
		copy(m.Pix[i:], fill[:])
	}
	return m, nil
}

// NRGBA converts to the standard library's representation, for encoding.
func (m *Image) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i := 0; i+3 < len(m.Pix) && i+3 < len(img.Pix); i += 4 {
		img.Pix[i+0] = m.Pix[i+2]
		img.Pix[i+1] = m.Pix[i+1]
		img.Pix[i+2] = m.Pix[i+0]
		img.Pix[i+3] = m.Pix[i+3]
	}
	return img
}

var (
	white = [4]byte{0xff, 0xff, 0xff, 0xff}
	black = [4]byte{0x00, 0x00, 0x00, 0xff}
)

type decoder struct {
	r       *bincursor.Reader
	log     *slog.Logger
	version int
	frame   image.Rectangle
	canvas  *Image
	rasters int
}

// Decode rasterizes a PICT resource onto a white canvas the size of its frame.
func Decode(data []byte, opts *Options) (*Image, error) {
	d := &decoder{r: bincursor.NewReader(data), log: opts.logger()}
	if err := d.readHeader(); err != nil {
		return nil, err
	}
	for {
		done, err := d.step()
		if err != nil {
			return nil, err
		}
		if done {
			return d.canvas, nil
		}
	}
}

func (d *decoder) readHeader() error {
	d.r.Skip(2) // picture size, meaningless since v2 pictures outgrew it
	frame, err := readRect(d.r)
	if err != nil {
		return err
	}
	d.frame = frame
	d.canvas, err = newImage(frame, white)
	if err != nil {
		return err
	}

	marker, err := d.r.U8()
	if err != nil {
		return err
	}
	if marker == opPicVersion {
		v, err := d.r.U8()
		if err != nil {
			return err
		} else if v != 1 {
			return fmt.Errorf("%w: version %d picture", ErrUnsupported, v)
		}
		d.version = 1
		return nil
	}

	d.r.Skip(-1)
	var op uint16
	var v, ff uint8
	op, err = d.r.U16()
	if err == nil {
		v, err = d.r.U8()
	}
	if err == nil {
		ff, err = d.r.U8()
	}
	switch {
	case err != nil:
		return err
	case op != opPicVersion || ff != 0xff:
		return fmt.Errorf("%w: bad version 2 header", ErrFormat)
	case v != 2:
		return fmt.Errorf("%w: version %d picture", ErrUnsupported, v)
	}
	d.version = 2
	return nil
}

// step consumes one opcode and its data.
func (d *decoder) step() (done bool, err error) {
	var op uint16
	at := d.r.Offset()
	if d.version == 1 {
		var b uint8
		b, err = d.r.U8()
		op = uint16(b)
	} else {
		if at%2 == 1 {
			d.r.Skip(1)
			at++
		}
		op, err = d.r.U16()
	}
	if err != nil {
		return false, fmt.Errorf("opcode at %#x: %w", at, err)
	}

	if n := ReservedOpcodeSize(op); n >= 0 {
		_, err = d.r.ReadExact(n)
		return false, err
	}

	switch {
	case op == opEndOfPicture:
		return true, nil
	case op == opClipRgn:
		return false, d.clipRgn()
	case op == opBitsRect || op == opBitsRgn ||
		op == opPackBitsRect || op == opPackBitsRgn ||
		op == opDirectBitsRect || op == opDirectBitsRgn:
		return false, d.bits(op)
	case 0x00D0 <= op && op <= 0x00FE: // reserved, with a length word
		n, err := d.r.U16()
		if err != nil {
			return false, err
		}
		_, err = d.r.ReadExact(int(n))
		return false, err
	}

	tmpl, ok := opcodeTemplates[op]
	if !ok {
		return false, fmt.Errorf("%w: opcode %#04x at %#x", ErrUnsupported, op, at)
	}
	if !quietOpcodes[op] {
		d.log.Debug("pictSkipOpcode", "opcode", fmt.Sprintf("%#04x", op), "offset", at)
	}
	rec, err := tmpl.UnpackRecord(d.r.Bytes(), d.r.Offset())
	if err != nil {
		return false, fmt.Errorf("%w: opcode %#04x at %#x: %w", bincursor.ErrTruncated, op, at, err)
	}
	d.r.Skip(tmpl.RecordLen())
	if dict, ok := rec.(*ordereddict.Dict); ok {
		rest := 0
		if n, ok := dict.Get("len"); ok {
			rest = int(n.(int64))
		} else if n, ok := dict.Get("size"); ok {
			rest = int(n.(int64)) - tmpl.RecordLen()
		} else if n, ok := dict.Get("datalen"); ok {
			rest = int(n.(int64)) + 2 - tmpl.RecordLen()
		}
		if rest < 0 {
			return false, fmt.Errorf("%w: opcode %#04x at %#x is too short", ErrFormat, op, at)
		}
		d.r.Skip(rest)
	}
	return false, nil
}

func (d *decoder) clipRgn() error {
	n, err := d.r.U16()
	if err != nil {
		return err
	}
	if n < 10 {
		return fmt.Errorf("%w: %d-byte clip region", ErrFormat, n)
	}
	clip, err := readRect(d.r)
	if err != nil {
		return err
	}
	d.r.Skip(int(n) - 10) // non-rectangular regions have scanline data
	if clip != d.frame {
		d.log.Warn("pictClipMismatch", "clip", clip, "canvas", d.frame)
	}
	return nil
}

func readRect(r *bincursor.Reader) (image.Rectangle, error) {
	var t, l, b, rt int16
	if err := r.I16s(&t, &l, &b, &rt); err != nil {
		return image.Rectangle{}, err
	}
	return image.Rectangle{Min: image.Pt(int(l), int(t)), Max: image.Pt(int(rt), int(b))}, nil
}
