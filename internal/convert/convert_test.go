// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package convert

import (
	"bytes"
	"encoding/hex"
	"errors"
	"image/png"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/Velocidex/ordereddict"
	"github.com/elliotnunn/resourceform/internal/bincursor"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"github.com/elliotnunn/resourceform/internal/structtemplate"
	"github.com/elliotnunn/resourceform/internal/textenc"
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		panic(err)
	}
	return b
}

func res(t string, id int16, data []byte) *resourcefork.Resource {
	return &resourcefork.Resource{Type: fourCC(t), ID: id, Data: data, Order: resourcefork.OrderUnknown}
}

func TestLookup(t *testing.T) {
	reg := Standard(textenc.MacRoman, nil)
	if _, ok := reg.Lookup(fourCC("zzzz")).(Hex); !ok {
		t.Error("unknown types should fall back to hex")
	}
	if k := JSONKey(reg.Lookup(fourCC("zzzz"))); k != "data" {
		t.Errorf("hex key is %q", k)
	}
	if k := JSONKey(reg.Lookup(fourCC("STR#"))); k != "obj" {
		t.Errorf("STR# key is %q", k)
	}
	if ext := reg.Lookup(fourCC("PICT")).SeparateFile(); ext != ".png" {
		t.Errorf("PICT extension is %q", ext)
	}
}

func TestHex(t *testing.T) {
	v, _ := Hex{}.Unpack(res("zzzz", 1, []byte{0xab, 0x01}), nil)
	if v != "AB01" {
		t.Errorf("got %v", v)
	}
	b, err := Hex{}.Pack("ab01")
	if err != nil || !bytes.Equal(b, []byte{0xab, 0x01}) {
		t.Errorf("got %x, %v", b, err)
	}
	if _, err := (Hex{}).Pack("xyz"); !errors.Is(err, structtemplate.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestStrings(t *testing.T) {
	enc := textenc.MacRoman

	v, err := PString{enc}.Unpack(res("STR ", 128, []byte("\x02Hi")), nil)
	if err != nil || v != "Hi" {
		t.Errorf("STR: %v, %v", v, err)
	}
	if _, err := (PString{enc}).Unpack(res("STR ", 128, []byte("\x02Hi!")), nil); !errors.Is(err, ErrTrailing) {
		t.Errorf("expected ErrTrailing, got %v", err)
	}
	if _, err := (PString{enc}).Pack(strings.Repeat("x", 256)); !errors.Is(err, structtemplate.ErrRange) {
		t.Errorf("expected ErrRange, got %v", err)
	}

	data := []byte("\x00\x02\x03one\x05caf\x8e!")
	v, err = StringList{enc}.Unpack(res("STR#", 128, data), nil)
	if err != nil || !reflect.DeepEqual(v, []any{"one", "café!"}) {
		t.Fatalf("STR#: %#v, %v", v, err)
	}
	back, err := StringList{enc}.Pack(v)
	if err != nil || !bytes.Equal(back, data) {
		t.Errorf("STR# pack: %q, %v", back, err)
	}

	v, err = Text{enc}.Unpack(res("TEXT", 128, []byte("a\rb")), nil)
	if err != nil || v != "a\rb" {
		t.Errorf("TEXT: %q, %v", v, err)
	}

	utf8, err := textenc.Lookup("utf-8")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := (Text{utf8}).Unpack(res("TEXT", 128, []byte("caf\x8e")), nil); !errors.Is(err, ErrLossyText) {
		t.Errorf("expected ErrLossyText, got %v", err)
	}
}

func TestTemplate(t *testing.T) {
	data := []byte("\x05Width" + "DWRD" + "\x04Name" + "PSTR")
	v, err := Template{textenc.MacRoman}.Unpack(res("TMPL", 128, data), nil)
	if err != nil {
		t.Fatal(err)
	}
	list := v.([]any)
	if len(list) != 2 {
		t.Fatalf("got %d fields", len(list))
	}
	d := list[1].(*ordereddict.Dict)
	if label, _ := d.Get("label"); label != "Name" {
		t.Errorf("label %v", label)
	}
	if kind, _ := d.Get("type"); kind != "PSTR" {
		t.Errorf("type %v", kind)
	}

	back, err := Template{textenc.MacRoman}.Pack(list)
	if err != nil || !bytes.Equal(back, data) {
		t.Errorf("pack: %q, %v", back, err)
	}

	bad := []any{map[string]any{"label": "x", "type": "LONGER"}}
	if _, err := (Template{textenc.MacRoman}).Pack(bad); !errors.Is(err, structtemplate.ErrShape) {
		t.Errorf("expected ErrShape, got %v", err)
	}
}

func TestStructFlag(t *testing.T) {
	typ, conv, err := ParseStructFlag("Hedr:>hh+:x,y")
	if err != nil {
		t.Fatal(err)
	}
	if typ != fourCC("Hedr") {
		t.Errorf("type %q", typ)
	}
	v, err := conv.Unpack(res("Hedr", 128, mustHex("0001 0002 fffd 0004")), nil)
	if err != nil {
		t.Fatal(err)
	}
	recs := v.([]any)
	if x, _ := recs[1].(*ordereddict.Dict).Get("x"); x != int64(-3) {
		t.Errorf("x = %v", x)
	}

	_, err = conv.Unpack(res("Hedr", 128, mustHex("0001 0002 00")), nil)
	if !errors.Is(err, structtemplate.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}

	for _, s := range []string{"Hedr", "Hedr:>hz", "TOOLONG:>h"} {
		if _, _, err := ParseStructFlag(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}

func TestResourceError(t *testing.T) {
	err := error(&ResourceError{Type: fourCC("PICT"), ID: 5, Err: ErrOneWay})
	if !errors.Is(err, ErrOneWay) {
		t.Error("ResourceError should unwrap")
	}
	if err.Error() != "'PICT' #5: conversion cannot be reversed" {
		t.Errorf("message %q", err)
	}
}

func TestIconMask(t *testing.T) {
	var log bytes.Buffer
	conv := Icon{Log: slog.New(slog.NewTextHandler(&log, nil))}

	bw := make([]byte, 256)
	bw[128] = 0x80 // only the top left pixel is in the mask
	color := make([]byte, 32*32)
	color[0] = 215 // red

	fork := resourcefork.New()
	fork.Add(res("ICN#", 128, bw))
	fork.Add(res("icl8", 128, color))
	fork.Add(res("icl8", 129, color))

	v, err := conv.Unpack(fork.Get(fourCC("icl8"), 128), fork)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(v.([]byte)))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("bounds %v", img.Bounds())
	}
	if r, _, _, a := img.At(0, 0).RGBA(); a != 0xffff || r != 0xeeee {
		t.Errorf("top left pixel %v", img.At(0, 0))
	}
	if _, _, _, a := img.At(1, 0).RGBA(); a != 0 {
		t.Errorf("unmasked pixel %v", img.At(1, 0))
	}
	if log.Len() != 0 {
		t.Errorf("unexpected warning %s", &log)
	}

	if _, err := conv.Unpack(fork.Get(fourCC("icl8"), 129), fork); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(log.String(), "iconMaskMissing") {
		t.Errorf("expected a warning, got %q", &log)
	}
}

func TestPicturePNG(t *testing.T) {
	v, err := Picture{Kind: "SICN"}.Unpack(res("SICN", 1, make([]byte, 32)), nil)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(v.([]byte)))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Errorf("bounds %v", img.Bounds())
	}
	if _, err := (Picture{Kind: "PICT"}).Pack(v); !errors.Is(err, ErrOneWay) {
		t.Errorf("expected ErrOneWay, got %v", err)
	}
}

// format 1 snd, one bufferCmd, standard header, 4 unsigned 8-bit samples at 22050 Hz
var sndStd = mustHex(`
	0001 0001 0005 00000080
	0001 8051 0000 00000014
	00000000 00000004 56220000 00000000 00000000 00 3c
	80818283`)

func TestSound(t *testing.T) {
	r := res("snd ", 128, sndStd)
	r.Name = []byte("Beep")
	v, err := Sound{}.Unpack(r, nil)
	if err != nil {
		t.Fatal(err)
	}
	aiff := v.([]byte)

	if string(aiff[:4]) != "FORM" || string(aiff[8:12]) != "AIFC" {
		t.Fatalf("bad header %q", aiff[:12])
	}
	if n := int(aiff[4])<<24 | int(aiff[5])<<16 | int(aiff[6])<<8 | int(aiff[7]); n != len(aiff)-8 {
		t.Errorf("FORM size %d, file size %d", n, len(aiff))
	}
	comm := mustHex("434f4d4d 00000024 0001 00000004 0008 400dac44000000000000 72617720 0c") // COMM, 36 bytes
	if !bytes.Contains(aiff, append(comm, "Unsigned PCM\x00"...)) {
		t.Errorf("missing COMM chunk in %x", aiff)
	}
	if !bytes.Contains(aiff, []byte("NAME\x00\x00\x00\x04Beep")) {
		t.Error("missing NAME chunk")
	}
	if bytes.Contains(aiff, []byte("INST")) || bytes.Contains(aiff, []byte("MARK")) {
		t.Error("unexpected INST or MARK for an unlooped middle C")
	}
	if !bytes.HasSuffix(aiff, mustHex("53534e44 0000000c 00000000 00000000 80818283")) {
		t.Errorf("bad SSND chunk at end of %x", aiff)
	}
}

func TestSoundLoop(t *testing.T) {
	data := bytes.Clone(sndStd)
	copy(data[32:], mustHex("00000001 00000003 00 3d")) // loop 1-3, base note 61
	v, err := Sound{}.Unpack(res("snd ", 128, data), nil)
	if err != nil {
		t.Fatal(err)
	}
	aiff := v.([]byte)
	mark := mustHex("4d41524b 00000022 0002 0065 00000001 08") // MARK, 34 bytes
	if !bytes.Contains(aiff, append(mark, "beg loop\x00"...)) {
		t.Errorf("missing MARK chunk in %x", aiff)
	}
	inst := mustHex("494e5354 00000014 3d 00 00 7f 00 7f 0000 0001 0065 0066 000000000000")
	if !bytes.Contains(aiff, inst) {
		t.Errorf("missing INST chunk in %x", aiff)
	}
}

func TestSoundErrors(t *testing.T) {
	if _, err := (Sound{}).Unpack(res("snd ", 1, mustHex("0003 0000")), nil); !errors.Is(err, ErrSound) {
		t.Errorf("format 3: expected ErrSound, got %v", err)
	}
	if _, err := (Sound{}).Unpack(res("snd ", 1, sndStd[:40]), nil); !errors.Is(err, bincursor.ErrTruncated) {
		t.Errorf("short: expected ErrTruncated, got %v", err)
	}
}

func TestIEEEExtended(t *testing.T) {
	cases := map[float64]string{
		0:       "00000000000000000000",
		1:       "3fff8000000000000000",
		22050:   "400dac44000000000000",
		44100:   "400eac44000000000000",
		-0.5:    "bffe8000000000000000",
		11025.5: "400cac46000000000000",
	}
	for f, want := range cases {
		got := ieeeExtended(f)
		if hex.EncodeToString(got[:]) != want {
			t.Errorf("%v: got %x, want %s", f, got, want)
		}
	}
}

const xmlPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0"><dict><key>CFBundleName</key><string>Demo</string></dict></plist>
`

func TestPlist(t *testing.T) {
	v, err := Plist{}.Unpack(res("plst", 0, []byte(xmlPlist)), nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Plist{}.Pack(v)
	if err != nil || string(b) != xmlPlist {
		t.Errorf("round trip: %q, %v", b, err)
	}
	if _, err := (Plist{}).Unpack(res("plst", 0, []byte("{ unterminated")), nil); err == nil {
		t.Error("expected an error for a broken property list")
	}
}

func TestIcns(t *testing.T) {
	good := mustHex("69636e73 00000008")
	if _, err := (Icns{}).Unpack(res("icns", 1, good), nil); err != nil {
		t.Error(err)
	}
	if _, err := (Icns{}).Unpack(res("icns", 1, mustHex("69636e73 00000009")), nil); err == nil {
		t.Error("expected a length error")
	}
}

type countingConverter struct {
	Hex
	calls *int
}

func (c countingConverter) Unpack(res *resourcefork.Resource, fork *resourcefork.Fork) (any, error) {
	*c.calls++
	return append([]byte("converted "), res.Data...), nil
}

func (countingConverter) SeparateFile() string { return ".bin" }

func TestCache(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	conv := countingConverter{calls: &calls}

	c, err := OpenCache(dir, 16)
	if err != nil {
		t.Fatal(err)
	}
	w := c.Wrap(conv)
	for range 3 {
		v, err := w.Unpack(res("PICT", 1, []byte("abc")), nil)
		if err != nil || string(v.([]byte)) != "converted abc" {
			t.Fatalf("got %q, %v", v, err)
		}
	}
	w.Unpack(res("PICT", 2, []byte("abd")), nil)
	if calls != 2 {
		t.Errorf("%d conversions, want 2", calls)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = OpenCache(dir, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	v, err := c.Wrap(conv).Unpack(res("PICT", 3, []byte("abc")), nil)
	if err != nil || string(v.([]byte)) != "converted abc" {
		t.Fatalf("got %q, %v", v, err)
	}
	if calls != 2 {
		t.Errorf("disk tier missed: %d conversions", calls)
	}
}

func TestCacheNames(t *testing.T) {
	c, err := OpenCache("", 16)
	if err != nil {
		t.Fatal(err)
	}
	w := c.Wrap(Sound{})
	for _, name := range []string{"Beep", "Boop"} {
		r := res("snd ", 128, sndStd)
		r.Name = []byte(name)
		v, err := w.Unpack(r, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(v.([]byte), []byte("NAME\x00\x00\x00\x04"+name)) {
			t.Errorf("AIFF for %q has the wrong NAME chunk", name)
		}
	}
}

func TestUseCache(t *testing.T) {
	c, err := OpenCache("", 4)
	if err != nil {
		t.Fatal(err)
	}
	reg := Standard(textenc.MacRoman, nil)
	reg.UseCache(c)
	if _, ok := reg.Lookup(fourCC("PICT")).(cached); !ok {
		t.Error("PICT should be cached")
	}
	if _, ok := reg.Lookup(fourCC("icl8")).(cached); ok {
		t.Error("icons depend on their siblings and must not be cached")
	}
}

func TestLossy(t *testing.T) {
	c, err := OpenCache("", 4)
	if err != nil {
		t.Fatal(err)
	}
	reg := Standard(textenc.MacRoman, nil)
	reg.UseCache(c)
	for typ, want := range map[string]bool{"PICT": true, "snd ": true, "ICN#": true, "STR ": false, "plst": false, "zzzz": false} {
		if got := Lossy(reg.Lookup(fourCC(typ))); got != want {
			t.Errorf("%q: got %v", typ, got)
		}
	}
}
