// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package structtemplate converts between binary records and structured values
// according to a compact format string:
//
//	[endian] tokens [+] [:name1,name2,...]
//
// For example ">hh:x,y" describes two big-endian int16 fields named x and y,
// and ">H+" describes a resource made of back-to-back uint16 values.
package structtemplate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrSyntax         = errors.New("bad struct template")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrShape          = errors.New("value does not match template")
	ErrRange          = errors.New("value out of range")
)

type Kind uint8

const (
	Int8 Kind = iota
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
	Bool
	Bytes // fixed-length byte string, hex in structured form
)

var kindSizes = [...]int{
	Int8: 1, Uint8: 1, Int16: 2, Uint16: 2, Int32: 4, Uint32: 4,
	Int64: 8, Uint64: 8, Float32: 4, Float64: 8, Bool: 1,
}

var kindLetters = map[rune]Kind{
	'b': Int8, 'B': Uint8,
	'h': Int16, 'H': Uint16,
	'i': Int32, 'I': Uint32, 'l': Int32, 'L': Uint32,
	'q': Int64, 'Q': Uint64,
	'f': Float32, 'd': Float64,
	'?': Bool,
}

// Field is one value slot in a record. Padding ("x") has no Field.
type Field struct {
	Kind   Kind
	Size   int // bytes
	Offset int // from the start of the record
}

// Template is a compiled format string. It is immutable and safe to share.
type Template struct {
	source string
	order  binary.ByteOrder
	fields []Field
	names  []string
	reclen int
	list   bool
}

// Compile parses a template string.
func Compile(s string) (*Template, error) {
	format, names, hasNames := strings.Cut(s, ":")
	format = strings.TrimSpace(format)
	if format == "" {
		return nil, fmt.Errorf("%w %q: empty format", ErrSyntax, s)
	}

	t := &Template{source: s, order: binary.BigEndian}

	switch format[0] {
	case '<':
		t.order = binary.LittleEndian
		format = format[1:]
	case '>', '!', '@', '=': // resources are Mac data, so "native" means big-endian
		format = format[1:]
	}

	if strings.HasSuffix(format, "+") {
		t.list = true
		format = strings.TrimSuffix(format, "+")
	}

	repeat, counted := 0, false
	for _, c := range format {
		switch {
		case unicode.IsSpace(c):
			continue
		case c >= '0' && c <= '9':
			repeat = repeat*10 + int(c-'0')
			counted = true
			continue
		}
		if !counted {
			repeat = 1
		}
		switch c {
		case 's': // one field of repeat bytes, possibly none
			t.fields = append(t.fields, Field{Kind: Bytes, Size: repeat, Offset: t.reclen})
			t.reclen += repeat
		case 'c':
			for range repeat {
				t.fields = append(t.fields, Field{Kind: Bytes, Size: 1, Offset: t.reclen})
				t.reclen++
			}
		case 'x':
			t.reclen += repeat
		default:
			k, ok := kindLetters[c]
			if !ok {
				return nil, fmt.Errorf("%w %q: unsupported field character %q", ErrSyntax, s, c)
			}
			for range repeat {
				t.fields = append(t.fields, Field{Kind: k, Size: kindSizes[k], Offset: t.reclen})
				t.reclen += kindSizes[k]
			}
		}
		repeat, counted = 0, false
	}
	if counted {
		return nil, fmt.Errorf("%w %q: dangling repeat count", ErrSyntax, s)
	}
	if t.list && t.reclen == 0 {
		return nil, fmt.Errorf("%w %q: zero-length record list", ErrSyntax, s)
	}

	if hasNames {
		given := strings.Split(names, ",")
		t.names = make([]string, len(t.fields))
		for i := range t.fields {
			if i < len(given) && strings.TrimSpace(given[i]) != "" {
				t.names[i] = strings.TrimSpace(given[i])
			} else {
				t.names[i] = fmt.Sprintf(".field%d", i)
			}
		}
	}
	return t, nil
}

// MustCompile is for templates known at compile time.
func MustCompile(s string) *Template {
	t, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) String() string  { return t.source }
func (t *Template) RecordLen() int  { return t.reclen }
func (t *Template) IsList() bool    { return t.list }
func (t *Template) Fields() []Field { return t.fields }
func (t *Template) Names() []string { return t.names }

func (t *Template) isScalar() bool { return len(t.fields) == 1 && t.names == nil }
