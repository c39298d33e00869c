// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/elliotnunn/resourceform/internal/appledouble"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"github.com/klauspost/compress/zstd"
	"github.com/therootcompany/xz"
)

// input is a loaded resource fork and the file it came from.
type input struct {
	fork *resourcefork.Fork
	raw  []byte                   // after decompression, possibly an AppleDouble file
	meta *appledouble.AppleDouble // nil unless raw is AppleDouble
	from string                   // the path actually read, or the attribute name
}

// load finds the resource fork belonging to name. The file itself may be a
// bare fork, an AppleDouble file, or either of those compressed. When the
// file is empty, as a data-only copy of a Mac file usually is, the fork is
// looked for in the "._" sidecar and then the extended attribute.
func load(name string, fromXattr bool) (*input, error) {
	if fromXattr {
		return loadXattr(name)
	}

	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	from := name
	if len(b) == 0 {
		side := appledouble.Sidecar(name)
		b, err = os.ReadFile(side)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("noSidecar", "path", side)
			return loadXattr(name)
		} else if err != nil {
			return nil, err
		}
		from = side
	}

	b, err = unwrap(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	fork, err := resourcefork.Open(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	in := &input{fork: fork, raw: b, from: from}
	if entries, err := appledouble.Parse(b); err == nil {
		in.meta = appledouble.Load(entries)
	}
	return in, nil
}

func loadXattr(name string) (*input, error) {
	b, err := readXattr(name)
	if err != nil {
		return nil, err
	}
	fork, err := resourcefork.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &input{fork: fork, raw: b, from: name + " " + xattrName}, nil
}

// unwrap strips any layers of compression.
func unwrap(b []byte) ([]byte, error) {
	for range 4 {
		inner, kind, err := decompress(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		if kind == "" {
			return b, nil
		}
		slog.Debug("decompressed", "format", kind, "from", len(b), "to", len(inner))
		b = inner
	}
	return b, nil
}

// decompress recognises one compression format by its magic number, and
// returns the data unchanged with an empty kind if there is none.
func decompress(b []byte) (inner []byte, kind string, err error) {
	matchAt := func(s string, offset int) bool {
		return len(b) >= offset+len(s) && string(b[offset:][:len(s)]) == s
	}

	var r io.Reader
	switch {
	case matchAt("\x1f\x8b", 0):
		kind = "gzip"
		r, err = gzip.NewReader(bytes.NewReader(b))
	case matchAt("BZh", 0):
		kind = "bzip2"
		r = bzip2.NewReader(bytes.NewReader(b))
	case matchAt("\xfd7zXZ\x00", 0):
		kind = "xz"
		r, err = xz.NewReader(bytes.NewReader(b), xz.DefaultDictMax)
	case matchAt("\x28\xb5\x2f\xfd", 0):
		kind = "zstd"
		var d *zstd.Decoder
		d, err = zstd.NewReader(bytes.NewReader(b), zstd.WithDecoderConcurrency(1))
		if err == nil {
			defer d.Close()
			r = d
		}
	default:
		return b, "", nil
	}
	if err != nil {
		return nil, kind, err
	}

	inner, err = io.ReadAll(io.LimitReader(r, int64(memLimit)+1))
	if err != nil {
		return nil, kind, err
	}
	if len(inner) > memLimit {
		return nil, kind, fmt.Errorf("expands past %d bytes", memLimit)
	}
	return inner, kind, nil
}
