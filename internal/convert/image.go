// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package convert

import (
	"bytes"
	"fmt"
	"image/png"
	"log/slog"

	"github.com/elliotnunn/resourceform/internal/pict"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
)

// Picture rasterizes a QuickDraw picture or one of its relatives to PNG.
// Kind is the resource type it expects: PICT, cicn, ppat or SICN.
type Picture struct {
	Kind string
	Log  *slog.Logger
}

func (c Picture) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	opts := &pict.Options{Logger: logFor(c.Log, res)}
	var img *pict.Image
	var err error
	switch c.Kind {
	case "PICT":
		img, err = pict.Decode(res.Data, opts)
	case "cicn":
		img, err = pict.DecodeCicn(res.Data, opts)
	case "ppat":
		img, err = pict.DecodePpat(res.Data, opts)
	case "SICN":
		img, err = pict.DecodeSicn(res.Data)
	default:
		return nil, fmt.Errorf("no picture decoder for %q", c.Kind)
	}
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func (Picture) Pack(any) ([]byte, error) { return nil, ErrOneWay }
func (Picture) SeparateFile() string     { return ".png" }
func (Picture) Lossy() bool              { return true }

func encodePNG(img *pict.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img.NRGBA()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func logFor(log *slog.Logger, res *resourcefork.Resource) *slog.Logger {
	if log == nil {
		log = slog.Default()
	}
	return log.With("resource", res.String())
}

type iconKind struct {
	size, depth int
	mask        [4]byte // the black and white icon list carrying the mask
}

var iconKinds = map[[4]byte]iconKind{
	fourCC("ICN#"): {32, 1, fourCC("ICN#")},
	fourCC("icl4"): {32, 4, fourCC("ICN#")},
	fourCC("icl8"): {32, 8, fourCC("ICN#")},
	fourCC("ics#"): {16, 1, fourCC("ics#")},
	fourCC("ics4"): {16, 4, fourCC("ics#")},
	fourCC("ics8"): {16, 8, fourCC("ics#")},
}

// Icon rasterizes a Finder icon to PNG. The mask is the second half of the
// ICN# or ics# resource with the same ID. Without one the icon is opaque.
type Icon struct {
	Log *slog.Logger
}

func (c Icon) Unpack(res *resourcefork.Resource, fork *resourcefork.Fork) (any, error) {
	k, ok := iconKinds[res.Type]
	if !ok {
		return nil, fmt.Errorf("%s is not an icon type", res)
	}
	n := k.size * k.size / 8

	var mask []byte
	var sib *resourcefork.Resource
	if fork != nil {
		sib = fork.Get(k.mask, res.ID)
	}
	if res.Type == k.mask {
		sib = res
	}
	if sib != nil && len(sib.Data) >= 2*n {
		mask = sib.Data[n : 2*n]
	} else {
		logFor(c.Log, res).Warn("iconMaskMissing", "maskType", string(k.mask[:]))
	}

	img, err := pict.DecodeIcon(res.Data, k.size, k.depth, mask)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func (Icon) Pack(any) ([]byte, error) { return nil, ErrOneWay }
func (Icon) SeparateFile() string     { return ".png" }
func (Icon) Lossy() bool              { return true }
