// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package appledouble

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRoundTrip(t *testing.T) {
	const fork = "hello this is a fork"

	ad := &AppleDouble{
		Type:    [4]byte{'r', 's', 'r', 'c'},
		Creator: [4]byte{'R', 'S', 'E', 'D'},
		Flags:   FlagHasBundle,
		ModTime: time.Date(1996, 5, 6, 7, 8, 9, 0, time.UTC),
		Locked:  true,
	}
	file := ad.WithResourceFork([]byte(fork))

	entries, err := Parse(file)
	if err != nil {
		t.Fatal(err)
	}
	if string(entries[RESOURCE_FORK]) != fork {
		t.Errorf("resource fork = %q", entries[RESOURCE_FORK])
	}
	if !bytes.HasSuffix(file, []byte(fork)) {
		t.Error("does not end with fork")
	}

	got := Load(entries)
	if got.Type != ad.Type || got.Creator != ad.Creator || got.Flags != ad.Flags || !got.Locked {
		t.Errorf("metadata = %+v", got)
	}
	if !got.ModTime.Equal(ad.ModTime) {
		t.Errorf("mod time = %v", got.ModTime)
	}
	if !got.CreateTime.IsZero() {
		t.Errorf("unknown create time came back as %v", got.CreateTime)
	}
}

func TestNoResourceFork(t *testing.T) {
	file := Pack(map[int][]byte{REAL_NAME: []byte("Read Me")})
	entries, err := Parse(file)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := entries[RESOURCE_FORK]; ok {
		t.Error("unexpected resource fork entry")
	}
	if string(entries[REAL_NAME]) != "Read Me" {
		t.Errorf("name = %q", entries[REAL_NAME])
	}
}

func TestMinOffset(t *testing.T) {
	buf, off := MakePrefix(map[int][]byte{COMMENT: []byte("x")}, 10, 8192)
	if off != 8192 || len(buf) != 8192 {
		t.Errorf("fork offset %d, prefix %d bytes", off, len(buf))
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("\x00\x00\x01\x00 a resource fork")); !errors.Is(err, ErrNotAppleDouble) {
		t.Errorf("expected ErrNotAppleDouble, got %v", err)
	}
	if _, err := Parse(nil); !errors.Is(err, ErrNotAppleDouble) {
		t.Errorf("expected ErrNotAppleDouble, got %v", err)
	}

	file := Pack(map[int][]byte{RESOURCE_FORK: []byte("fork")})
	if _, err := Parse(file[:len(file)-1]); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat for truncated file, got %v", err)
	}

	file[7] = 1 // version
	if _, err := Parse(file); !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat for bad version, got %v", err)
	}
}

func TestOldMagic(t *testing.T) {
	file := Pack(map[int][]byte{RESOURCE_FORK: []byte("fork")})
	file[3] = 0
	if _, err := Parse(file); err != nil {
		t.Error(err)
	}
}

func TestDump(t *testing.T) {
	ad := &AppleDouble{Type: [4]byte{'T', 'E', 'X', 'T'}, Creator: [4]byte{'t', 't', 'x', 't'}}
	s, err := Dump(ad.WithResourceFork([]byte("fork")))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`FINDER_INFO=("TEXT","ttxt")`,
		"FILE_DATES_INFO=(C=unknown,",
		"MACINTOSH_FILE_INFO=()",
		"RESOURCE_FORK=0x",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("dump lacks %q:\n%s", want, s)
		}
	}
}

func TestSidecar(t *testing.T) {
	if got := Sidecar("a/b/Read Me"); got != "a/b/._Read Me" {
		t.Errorf("got %q", got)
	}
}

func TestFlagNames(t *testing.T) {
	got := strings.Join(FlagNames(FlagIsOnDesk|0x6|FlagHasBundle|FlagIsAlias), ",")
	if got != "isOnDesk,color3,hasBundle,isAlias" {
		t.Errorf("got %s", got)
	}
	if FlagNames(0) != nil {
		t.Error("no flags should give no names")
	}

	ad := &AppleDouble{
		Type:    [4]byte{'A', 'P', 'P', 'L'},
		Creator: [4]byte{'?', '?', '?', '?'},
		Flags:   FlagHasBundle | FlagIsInvisible,
		Locked:  true,
	}
	entries, err := Parse(ad.WithResourceFork(nil))
	if err != nil {
		t.Fatal(err)
	}
	want := `type "APPL" creator "????" flags hasBundle,isInvisible locked`
	if s := Load(entries).String(); s != want {
		t.Errorf("got %s", s)
	}
}
