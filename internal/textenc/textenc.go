// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package textenc converts classic Mac OS byte strings (resource names, TEXT
// resources) to and from Go strings, and turns type codes into safe filenames.
package textenc

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding is passed explicitly to everything that decodes names or text.
type Encoding struct {
	Name string
	enc  encoding.Encoding
}

var MacRoman = Encoding{"macroman", charmap.Macintosh}

var byName = map[string]Encoding{
	"macroman": MacRoman,
	"mac":      MacRoman,
	"latin1":   {"latin1", charmap.ISO8859_1},
	"utf-8":    {"utf-8", unicode.UTF8},
	"utf8":     {"utf-8", unicode.UTF8},
}

// Lookup finds an encoding by its command-line name.
func Lookup(name string) (Encoding, error) {
	e, ok := byName[strings.ToLower(name)]
	if !ok {
		return Encoding{}, fmt.Errorf("unknown text encoding %q", name)
	}
	return e, nil
}

func (e Encoding) enco() encoding.Encoding {
	if e.enc == nil {
		return charmap.Macintosh
	}
	return e.enc
}

// Decode never fails: undecodable bytes become U+FFFD.
func (e Encoding) Decode(b []byte) string {
	s, err := e.enco().NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "�")
	}
	return string(s)
}

func (e Encoding) Encode(s string) ([]byte, error) {
	b, err := e.enco().NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%s cannot represent %q: %w", e.Name, s, err)
	}
	return b, nil
}

// SanitizeType makes a filename out of a type code: trailing spaces are
// dropped (unless the code is all spaces) and unsafe bytes are %-escaped.
// The result is always a valid path element.
func SanitizeType(t [4]byte) string {
	b := t[:]
	if string(b) != "    " {
		b = []byte(strings.TrimRight(string(b), " "))
	}
	name := url.PathEscape(string(b))
	if name == "." || name == ".." {
		name = strings.ReplaceAll(name, ".", "%2E")
	}
	return name
}

// ParseType is the inverse of SanitizeType, and also accepts plain short
// codes like "STR" which are padded with spaces.
func ParseType(s string) ([4]byte, error) {
	raw, err := url.PathUnescape(s)
	if err != nil {
		return [4]byte{}, fmt.Errorf("bad type code %q: %w", s, err)
	}
	if len(raw) > 4 || len(raw) == 0 {
		return [4]byte{}, fmt.Errorf("bad type code %q: must be 1 to 4 bytes", s)
	}
	var t [4]byte
	copy(t[:], raw+"    ")
	return t, nil
}

// SanitizeName keeps only characters that are safe in any filesystem.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteRune(c)
		}
	}
	return b.String()
}
