// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package main

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elliotnunn/resourceform/internal/appledouble"
	"github.com/elliotnunn/resourceform/internal/jsonio"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"github.com/klauspost/compress/zstd"
)

func testFork(t *testing.T) []byte {
	f := resourcefork.New()
	for _, r := range []*resourcefork.Resource{
		{Type: [4]byte{'S', 'T', 'R', ' '}, ID: 128, Name: []byte("Greeting"), Data: []byte("\x05Hello"), Flags: resourcefork.FlagPurgeable},
		{Type: [4]byte{'S', 'T', 'R', '#'}, ID: 0, Data: []byte("\x00\x02\x01a\x02bc")},
		{Type: [4]byte{'z', 'z', 'z', 'z'}, ID: -4, Data: []byte{1, 2, 3}},
	} {
		r.Order = resourcefork.OrderUnknown
		if err := f.Add(r); err != nil {
			t.Fatal(err)
		}
	}
	b, err := f.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func gzipped(b []byte) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	w.Write(b)
	w.Close()
	return buf.Bytes()
}

func zstded(b []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	defer enc.Close()
	return enc.EncodeAll(b, nil)
}

func TestUnwrap(t *testing.T) {
	plain := []byte("not compressed at all")
	cases := []struct {
		name string
		in   []byte
	}{
		{"plain", plain},
		{"gzip", gzipped(plain)},
		{"zstd", zstded(plain)},
		{"zstd in gzip", gzipped(zstded(plain))},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := unwrap(c.in)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("got %q", got)
			}
		})
	}

	if _, err := unwrap([]byte("\x1f\x8bgarbage")); err == nil {
		t.Error("expected an error from a broken gzip stream")
	}
}

func TestDecompressLimit(t *testing.T) {
	old := memLimit
	memLimit = 100
	defer func() { memLimit = old }()

	if _, _, err := decompress(gzipped(make([]byte, 101))); err == nil {
		t.Error("expected the expansion limit to apply")
	}
	if _, _, err := decompress(gzipped(make([]byte, 100))); err != nil {
		t.Error(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	fork := testFork(t)

	bare := filepath.Join(dir, "bare.rsrc")
	os.WriteFile(bare, gzipped(fork), 0o666)
	in, err := load(bare, false)
	if err != nil {
		t.Fatal(err)
	}
	if in.fork.Len() != 3 || in.from != bare {
		t.Errorf("got %d resources from %s", in.fork.Len(), in.from)
	}
	if in.meta != nil {
		t.Errorf("bare fork has Finder info %v", in.meta)
	}

	// a data-only copy with its fork in the sidecar
	app := filepath.Join(dir, "App")
	os.WriteFile(app, nil, 0o666)
	meta := &appledouble.AppleDouble{Type: [4]byte{'A', 'P', 'P', 'L'}}
	os.WriteFile(filepath.Join(dir, "._App"), meta.WithResourceFork(fork), 0o666)
	in, err = load(app, false)
	if err != nil {
		t.Fatal(err)
	}
	if in.fork.Len() != 3 || filepath.Base(in.from) != "._App" {
		t.Errorf("got %d resources from %s", in.fork.Len(), in.from)
	}
	if in.meta == nil || in.meta.Type != meta.Type {
		t.Errorf("Finder info lost: %v", in.meta)
	}

	lonely := filepath.Join(dir, "Lonely")
	os.WriteFile(lonely, nil, 0o666)
	if _, err := load(lonely, false); err == nil {
		t.Error("expected an error for an empty file with no fork anywhere")
	}
}

func TestListFork(t *testing.T) {
	fork, err := resourcefork.Parse(testFork(t))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	opts := &jsonio.Options{Filter: jsonio.Filter{Exclude: []string{"zzzz"}}}
	if err := listFork(&buf, fork, opts); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"'STR '", "Greeting", "'STR#'", "u"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "zzzz") {
		t.Errorf("excluded type listed:\n%s", out)
	}
	if got := strings.Count(out, "\n"); got != 3 {
		t.Errorf("want a header and 2 rows, got %d lines:\n%s", got, out)
	}
}

func TestFlagString(t *testing.T) {
	cases := map[uint8]string{
		0:                                                   "-",
		resourcefork.FlagPurgeable:                          "u",
		resourcefork.FlagPreload | resourcefork.FlagLocked: "pL",
		resourcefork.FlagCompressed:                         "z",
	}
	for f, want := range cases {
		if got := flagString(f); got != want {
			t.Errorf("%#x: got %q, want %q", f, got, want)
		}
	}
}

func TestExtractPack(t *testing.T) {
	dir := t.TempDir()
	fork := testFork(t)
	src := filepath.Join(dir, "Thing.rsrc")
	os.WriteFile(src, fork, 0o666)

	var tl tally
	doc := filepath.Join(dir, "Thing.json")
	if err := cmdExtract([]string{"-q", "-o", doc, src}, &tl); err != nil {
		t.Fatal(err)
	}
	if len(tl.errs) != 0 {
		t.Fatal(tl.errs)
	}
	text, err := os.ReadFile(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(text), `"obj": "Hello"`) {
		t.Errorf("string not converted:\n%s", text)
	}

	out := filepath.Join(dir, "Again.rsrc")
	if err := cmdPack([]string{"-q", "-o", out, doc}, &tl); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, fork) {
		t.Error("extract then pack changed the fork")
	}

	ad := filepath.Join(dir, "Again.ad")
	if err := cmdPack([]string{"-q", "-appledouble", "-type", "TEXT", "-creator", "ttxt", "-o", ad, doc}, &tl); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(ad)
	entries, err := appledouble.Parse(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(entries[appledouble.RESOURCE_FORK], fork) || string(entries[appledouble.FINDER_INFO][:8]) != "TEXTttxt" {
		t.Error("AppleDouble wrapper is wrong")
	}
}

func TestCommandErrors(t *testing.T) {
	var tl tally
	for _, args := range [][]string{
		{"-q"},
		{"-q", "a", "b"},
		{"-q", "-encoding", "klingon", "x"},
		{"-q", "-i", "[", "x"},
		{"-q", "-t", "nocolon", "x"},
	} {
		if err := cmdList(args, &tl); err == nil {
			t.Errorf("%q: expected an error", args)
		}
	}
}
