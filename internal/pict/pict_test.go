// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pict

import (
	"bytes"
	"encoding/hex"
	"errors"
	"image"
	"log/slog"
	"strings"
	"testing"

	"github.com/elliotnunn/resourceform/internal/bincursor"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		panic(err)
	}
	return b
}

func quiet() (*Options, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Options{Logger: slog.New(slog.NewTextHandler(&buf, nil))}, &buf
}

func TestUnpackBits(t *testing.T) {
	cases := []struct {
		in, out string
		unit    int
	}{
		{"02 aabbcc", "aabbcc", 1},
		{"fe 77", "777777", 1},
		{"80", "", 1},
		{"80 01 1122 fd 33", "1122333333 33", 1},
		{"ff 1234 00 5678", "12341234 5678", 2},
	}
	for _, c := range cases {
		got, err := UnpackBits(mustHex(c.in), c.unit)
		if err != nil {
			t.Errorf("%s: %v", c.in, err)
		} else if !bytes.Equal(got, mustHex(c.out)) {
			t.Errorf("%s: got %x, want %s", c.in, got, c.out)
		}
	}

	if _, err := UnpackBits(mustHex("05 0102"), 1); !errors.Is(err, bincursor.ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestReservedOpcodeSize(t *testing.T) {
	cases := map[uint16]int{
		0x0036: 8,
		0x003E: 0,
		0x0066: 12,
		0x006E: 4,
		0x00B5: 0,
		0x0150: 2,
		0x0200: 4,
		0x02FF: 2,
		0x0BFF: 22,
		0x0C00: 24,
		0x7F80: 254,
		0x8080: 0,
		0x0030: -1,
		0x00A0: -1,
		0x00FF: -1,
		0x8200: -1,
	}
	for op, want := range cases {
		if got := ReservedOpcodeSize(op); got != want {
			t.Errorf("%#04x: got %d, want %d", op, got, want)
		}
	}
}

// 2x2 DirectBitsRect with 3 packed planes, after a header opcode, DefHilite and ClipRgn
var v2Direct = mustHex(`
	0000 0000 0000 0002 0002 001102ff
	0c00 000000000000000000000000000000000000000000000000
	001e
	0001 000a 0000 0000 0002 0002
	009a 000000ff
	8008 0000 0000 0002 0002 0000 0004 00000000 00480000 00480000 0010 0020 0003 0008 00000000 00000000 00000000
	0000 0000 0002 0002 0000 0000 0002 0002 0040
	07 05ff0000ff0000
	02 fb80
	00 00ff`)

func TestDecodeV2Direct(t *testing.T) {
	opts, log := quiet()
	img, err := Decode(v2Direct, opts)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 2 || img.Height != 2 {
		t.Fatalf("size %dx%d", img.Width, img.Height)
	}
	want := mustHex("0000ffff 00ff00ff 808080ff 808080ff")
	if !bytes.Equal(img.Pix, want) {
		t.Errorf("pixels %x", img.Pix)
	}
	if log.Len() != 0 {
		t.Errorf("unexpected warnings: %s", log)
	}

	nrgba := img.NRGBA()
	if r, g, b, _ := nrgba.At(0, 0).RGBA(); r != 0xffff || g != 0 || b != 0 {
		t.Errorf("NRGBA top left is %v", nrgba.At(0, 0))
	}
}

// 8-pixel v1 picture drawn twice by BitsRect from a 16-pixel bitmap
var v1Bits = mustHex(`
	0000 0000 0000 0001 0008 1101
	90 0002 0000 0000 0001 0010 0000 0000 0001 0008 0000 0000 0001 0008 0000 f000
	90 0002 0000 0000 0001 0010 0000 0000 0001 0008 0000 0000 0001 0008 0000 ffff
	ff`)

func TestDecodeV1FirstRasterWins(t *testing.T) {
	opts, log := quiet()
	img, err := Decode(v1Bits, opts)
	if err != nil {
		t.Fatal(err)
	}
	want := bytes.Repeat([]byte{0, 0, 0, 0xff}, 4)
	want = append(want, bytes.Repeat([]byte{0xff, 0xff, 0xff, 0xff}, 4)...)
	if !bytes.Equal(img.Pix, want) {
		t.Errorf("pixels %x", img.Pix)
	}
	if !strings.Contains(log.String(), "pictMultipleRasters") {
		t.Errorf("expected a warning, got %q", log)
	}
}

func TestDecodeErrors(t *testing.T) {
	opts, _ := quiet()

	if _, err := Decode(mustHex("0000 0000 0000 0002 0002 0011 03ff"), opts); !errors.Is(err, ErrUnsupported) {
		t.Errorf("version 3: expected ErrUnsupported, got %v", err)
	}
	if _, err := Decode(mustHex("0000 0000 0000 0002 0002 0012 02ff"), opts); !errors.Is(err, ErrFormat) {
		t.Errorf("bad marker: expected ErrFormat, got %v", err)
	}
	if _, err := Decode(mustHex("0000 0000 0000 fffe 0002 001102ff 00ff"), opts); !errors.Is(err, ErrFormat) {
		t.Errorf("negative height: expected ErrFormat, got %v", err)
	}
	if _, err := Decode(mustHex("0000 0000 0000 0002 0002 001102ff 00a2"), opts); !errors.Is(err, ErrUnsupported) {
		t.Errorf("unknown opcode: expected ErrUnsupported, got %v", err)
	}
	if _, err := Decode(v2Direct[:100], opts); !errors.Is(err, bincursor.ErrTruncated) {
		t.Errorf("truncated: expected ErrTruncated, got %v", err)
	}
}

func TestSkipVariableLength(t *testing.T) {
	// LongComment with 3 bytes of payload, then a 6-byte polygon
	pic := mustHex(`
		0000 0000 0000 0001 0001 001102ff
		00a1 0064 0003 616263 00
		0070 0006 00000000
		00ff`)
	img, err := Decode(pic, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix, []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("pixels %x", img.Pix)
	}
}

func TestTrimExcessColumns(t *testing.T) {
	// 3 pixels wide, but each 4-bit row is padded to 4 pixels
	x := &xmap{rowBytes: 2, frame: image.Rect(0, 0, 3, 2), isPixmap: true, pixelSize: 4}
	img, err := indexed(mustHex("0f 1f 2f 3f"), x, clut4)
	if err != nil {
		t.Fatal(err)
	}
	if len(img.Pix) != 4*3*2 {
		t.Fatalf("%d bytes of pixels, want %d", len(img.Pix), 4*3*2)
	}
	// the second row starts with index 2 and ends with index 3
	if img.Pix[4*1+2] != 0 || img.Pix[4*3+2] != 0xff || img.Pix[4*5+2] != 0xdd {
		t.Errorf("pixels %x", img.Pix)
	}
}

func TestColortable(t *testing.T) {
	opts, log := quiet()
	ct := mustHex(`00000000 0000 0002
		0000 ffff 0000 0000
		0100 0000 ffff 0000
		0001 0000 0000 ffff`)
	pal, err := readColortable(bincursor.NewReader(ct), opts.logger())
	if err != nil {
		t.Fatal(err)
	}
	if pal[0] != [4]byte{0, 0, 0xff, 0xff} || pal[1] != [4]byte{0xff, 0, 0, 0xff} {
		t.Errorf("palette starts %x", pal[:2])
	}
	if pal[2] != unsetColor {
		t.Errorf("unset slot is %x", pal[2])
	}
	for _, w := range []string{"pictPaletteIndex", "pictPaletteOverwrite"} {
		if !strings.Contains(log.String(), w) {
			t.Errorf("missing %s warning in %q", w, log)
		}
	}
}

func TestMaskRegion(t *testing.T) {
	// a 2x2 region covering the right column
	scans := mustHex("0000 0001 0002 7fff 0002 0001 0002 7fff 7fff")
	mask, err := unpackMaskRgn(image.Rect(0, 0, 2, 2), scans)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mask, []byte{0, 0xff, 0, 0xff}) {
		t.Errorf("mask %x", mask)
	}

	if _, err := unpackMaskRgn(image.Rect(0, 0, 2, 2), mustHex("0000 0005 0006 7fff 7fff")); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestSicn(t *testing.T) {
	data := make([]byte, 64)
	data[0] = 0x80
	img, err := DecodeSicn(data)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 16 || img.Height != 32 {
		t.Errorf("size %dx%d", img.Width, img.Height)
	}
	if !bytes.Equal(img.Pix[:8], []byte{0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff}) {
		t.Errorf("pixels %x", img.Pix[:8])
	}

	if _, err := DecodeSicn(make([]byte, 31)); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestIcon(t *testing.T) {
	data := make([]byte, 16*16)
	data[0] = 215 // first entry of the red ramp
	mask := make([]byte, 32)
	mask[0] = 0x80

	img, err := DecodeIcon(data, 16, 8, mask)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix[:8], []byte{0, 0, 0xee, 0xff, 0xff, 0xff, 0xff, 0}) {
		t.Errorf("pixels %x", img.Pix[:8])
	}
	if clut8[255] != black || clut8[0] != white {
		t.Errorf("clut8 ends are %x %x", clut8[0], clut8[255])
	}

	if _, err := DecodeIcon(data[:10], 16, 8, nil); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
	if _, err := DecodeIcon(data, 16, 2, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestCicn(t *testing.T) {
	// 8x2 icon, 8 bits deep, two colors, left half masked out
	cicn := mustHex(`
		00000000 8008 0000 0000 0002 0008 0000 0000 00000000 00480000 00480000 0000 0008 0001 0008 00000000 00000000 00000000
		00000000 0001 0000 0000 0002 0008
		00000000 0000 0000 0000 0000 0000
		00000000
		0f 0f
		00000000 0000 0001
		0000 ffff ffff ffff
		0001 0000 0000 0000
		0000000000000000 0101010101010101`)
	img, err := DecodeCicn(cicn, nil)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 8 || img.Height != 2 {
		t.Fatalf("size %dx%d", img.Width, img.Height)
	}
	if !bytes.Equal(img.Pix[:4], []byte{0xff, 0xff, 0xff, 0}) {
		t.Errorf("masked pixel %x", img.Pix[:4])
	}
	if !bytes.Equal(img.Pix[4*12:4*13], []byte{0, 0, 0, 0xff}) {
		t.Errorf("opaque pixel %x", img.Pix[4*12:4*13])
	}
}

func TestCicnBitmapHeight(t *testing.T) {
	// as above, but the black and white bitmap claims no height and still
	// carries two rows, one per row of the mask
	cicn := mustHex(`
		00000000 8008 0000 0000 0002 0008 0000 0000 00000000 00480000 00480000 0000 0008 0001 0008 00000000 00000000 00000000
		00000000 0001 0000 0000 0002 0008
		00000000 0001 0000 0000 0000 0008
		00000000
		0f 0f
		ff ff
		00000000 0000 0001
		0000 ffff ffff ffff
		0001 0000 0000 0000
		0000000000000000 0101010101010101`)
	img, err := DecodeCicn(cicn, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(img.Pix[4*12:4*13], []byte{0, 0, 0, 0xff}) {
		t.Errorf("opaque pixel %x", img.Pix[4*12:4*13])
	}
}
