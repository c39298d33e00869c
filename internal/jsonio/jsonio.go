// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package jsonio translates between a resource fork and an editable JSON
// document, with bulky resources such as pictures kept in separate files.
//
// The document has a "_metadata" object for the map header fields, then one
// object per type keyed by the four-character code, each holding one object
// per resource keyed by decimal ID. Keys of any other length are ignored.
package jsonio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/Velocidex/ordereddict"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/elliotnunn/resourceform/internal/convert"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"github.com/elliotnunn/resourceform/internal/textenc"
)

const metadataKey = "_metadata"

var ErrFormat = errors.New("bad resource JSON")

// ErrNotFinite means a converter produced NaN or an infinity, which JSON
// cannot carry. The resource is kept as hex instead.
var ErrNotFinite = errors.New("number has no JSON form")

// Filter selects types by glob patterns matched against their sanitized
// names, as in "STR", "ICN%23" or "snd". An empty Include matches all.
type Filter struct {
	Include, Exclude []string
}

func (f Filter) Validate() error {
	for _, p := range append(f.Include[:len(f.Include):len(f.Include)], f.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("bad type pattern %q", p)
		}
	}
	return nil
}

func (f Filter) Allows(t [4]byte) bool {
	name := textenc.SanitizeType(t)
	for _, p := range f.Exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, p := range f.Include {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

type Options struct {
	Converters *convert.Registry // convert.Standard if nil
	Enc        textenc.Encoding
	Filter     Filter

	// WriteFile receives the output of converters that make separate
	// files, named "TYPE/ID.Name.ext". If nil those resources stay inline as hex.
	// Pictures and sounds are one-way, so their hex is kept as well.
	WriteFile func(name string, data []byte) error

	// Files is where Decode finds separate files.
	Files fs.FS
}

func (o *Options) registry() *convert.Registry {
	if o.Converters == nil {
		o.Converters = convert.Standard(o.Enc, nil)
	}
	return o.Converters
}

// Encode builds the JSON document for a fork. A resource that fails to
// convert is stored as hex with a "conversion_error" member, and the failure
// is returned among the errors rather than stopping the encoding.
func Encode(fork *resourcefork.Fork, opts *Options) (*ordereddict.Dict, []error) {
	if opts == nil {
		opts = new(Options)
	}
	reg := opts.registry()

	doc := ordereddict.NewDict().Set(metadataKey, ordereddict.NewDict().
		Set("junk1", int64(fork.JunkNextMap)).
		Set("junk2", int64(fork.JunkFileRef)).
		Set("file_attributes", int64(fork.Attributes)))

	var errs []error
	for _, t := range fork.Types() {
		if !opts.Filter.Allows(t) {
			continue
		}
		conv := reg.Lookup(t)
		typeDoc := ordereddict.NewDict()
		doc.Set(typeKey(t), typeDoc)

		for _, r := range fork.Resources(t) {
			wrapper, err := encodeResource(r, fork, conv, opts)
			if err != nil {
				errs = append(errs, err)
			}
			typeDoc.Set(strconv.Itoa(int(r.ID)), wrapper)
		}
	}
	return doc, errs
}

func encodeResource(r *resourcefork.Resource, fork *resourcefork.Fork, conv convert.Converter, opts *Options) (*ordereddict.Dict, error) {
	wrapper := ordereddict.NewDict()
	if len(r.Name) > 0 {
		wrapper.Set("name", opts.Enc.Decode(r.Name))
	}
	if r.Flags != 0 {
		wrapper.Set("flags", int64(r.Flags))
	}
	if r.Junk != 0 {
		wrapper.Set("junk", int64(r.Junk))
	}
	if r.Order != resourcefork.OrderUnknown {
		wrapper.Set("order", int64(r.Order))
	}

	if len(r.Data) == 0 {
		wrapper.Set("data", "")
		return wrapper, nil
	}
	if conv.SeparateFile() != "" && opts.WriteFile == nil {
		conv = convert.Hex{}
	}

	v, err := conv.Unpack(r, fork)
	if err == nil && !finite(v) {
		err = ErrNotFinite
	}
	if err != nil {
		err = &convert.ResourceError{Type: r.Type, ID: r.ID, Err: err}
		wrapper.Set("conversion_error", err.Error())
		hex, _ := convert.Hex{}.Unpack(r, fork)
		wrapper.Set("data", hex)
		return wrapper, err
	}

	if ext := conv.SeparateFile(); ext != "" {
		name := FileName(r, opts.Enc, ext)
		if werr := opts.WriteFile(name, v.([]byte)); werr != nil {
			return wrapper, &convert.ResourceError{Type: r.Type, ID: r.ID, Err: werr}
		}
		wrapper.Set("file", name)
		if convert.Lossy(conv) {
			hex, _ := convert.Hex{}.Unpack(r, fork)
			wrapper.Set("data", hex)
		}
		return wrapper, nil
	}
	wrapper.Set(convert.JSONKey(conv), v)
	return wrapper, nil
}

// finite reports whether every float in a converted value can be written
// as a JSON number.
func finite(v any) bool {
	switch x := v.(type) {
	case float64:
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	case float32:
		return finite(float64(x))
	case []any:
		for _, e := range x {
			if !finite(e) {
				return false
			}
		}
	case *ordereddict.Dict:
		for _, k := range x.Keys() {
			if e, _ := x.Get(k); !finite(e) {
				return false
			}
		}
	}
	return true
}

// FileName is where a separate file for a resource goes, relative to the
// resources directory.
func FileName(r *resourcefork.Resource, enc textenc.Encoding, ext string) string {
	base := strconv.Itoa(int(r.ID))
	if len(r.Name) > 0 {
		if clean := textenc.SanitizeName(enc.Decode(r.Name)); clean != "" {
			base += "." + clean
		}
	}
	return textenc.SanitizeType(r.Type) + "/" + base + ext
}

// typeKey spells a type code in MacRoman, which maps every byte to exactly
// one character, whatever encoding the names use.
func typeKey(t [4]byte) string {
	return textenc.MacRoman.Decode(t[:])
}

// isTypeKey tells type keys from metadata, which has longer keys.
func isTypeKey(s string) bool {
	return utf8.RuneCountInString(s) == 4
}

func parseTypeKey(s string) ([4]byte, error) {
	b, err := textenc.MacRoman.Encode(s)
	if err != nil || len(b) != 4 {
		return [4]byte{}, fmt.Errorf("bad type code %q", s)
	}
	return [4]byte(b), nil
}

// Marshal renders the document with tab indentation.
func Marshal(doc *ordereddict.Dict) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "\t")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a JSON document back into a fork, preserving the order of
// types and resources.
func Decode(r io.Reader, opts *Options) (*resourcefork.Fork, error) {
	if opts == nil {
		opts = new(Options)
	}
	reg := opts.registry()

	v, err := readOrdered(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	doc, ok := v.(*ordereddict.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: top level is not an object", ErrFormat)
	}

	fork := resourcefork.New()
	if md, ok := doc.Get(metadataKey); ok {
		if err := decodeMetadata(fork, md); err != nil {
			return nil, err
		}
	}

	for _, key := range doc.Keys() {
		if !isTypeKey(key) {
			continue
		}
		t, err := parseTypeKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if !opts.Filter.Allows(t) {
			continue
		}
		v, _ := doc.Get(key)
		typeDoc, ok := v.(*ordereddict.Dict)
		if !ok {
			return nil, fmt.Errorf("%w: type %q is not an object", ErrFormat, key)
		}
		conv := reg.Lookup(t)

		for _, idKey := range typeDoc.Keys() {
			id, err := strconv.ParseInt(idKey, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: type %q: bad ID %q", ErrFormat, key, idKey)
			}
			v, _ := typeDoc.Get(idKey)
			r, err := decodeResource(t, int16(id), v, conv, opts)
			if err != nil {
				return nil, &convert.ResourceError{Type: t, ID: int16(id), Err: err}
			}
			if err := fork.Add(r); err != nil {
				return nil, err
			}
		}
	}
	return fork, nil
}

func decodeMetadata(fork *resourcefork.Fork, v any) error {
	md, ok := v.(*ordereddict.Dict)
	if !ok {
		return fmt.Errorf("%w: %s is not an object", ErrFormat, metadataKey)
	}
	var err error
	get := func(key string, bits int) uint64 {
		if err != nil {
			return 0
		}
		v, ok := md.Get(key)
		if !ok {
			return 0
		}
		var n uint64
		n, err = number(v, bits)
		if err != nil {
			err = fmt.Errorf("%w: %s.%s: %w", ErrFormat, metadataKey, key, err)
		}
		return n
	}
	fork.JunkNextMap = uint32(get("junk1", 32))
	fork.JunkFileRef = uint16(get("junk2", 16))
	fork.Attributes = uint16(get("file_attributes", 16))
	return err
}

func decodeResource(t [4]byte, id int16, v any, conv convert.Converter, opts *Options) (*resourcefork.Resource, error) {
	wrapper, ok := v.(*ordereddict.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: resource is not an object", ErrFormat)
	}
	r := &resourcefork.Resource{Type: t, ID: id, Order: resourcefork.OrderUnknown}

	if v, ok := wrapper.Get("name"); ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: name is not a string", ErrFormat)
		}
		name, err := opts.Enc.Encode(s)
		if err != nil {
			return nil, err
		}
		if len(name) > 255 {
			return nil, fmt.Errorf("%w: name is %d bytes", ErrFormat, len(name))
		}
		r.Name = name
	}
	for _, f := range []struct {
		key  string
		bits int
		set  func(uint64)
	}{
		{"flags", 8, func(n uint64) { r.Flags = uint8(n) }},
		{"junk", 32, func(n uint64) { r.Junk = uint32(n) }},
		{"order", 32, func(n uint64) { r.Order = uint32(n) }},
	} {
		if v, ok := wrapper.Get(f.key); ok {
			n, err := number(v, f.bits)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrFormat, f.key, err)
			}
			f.set(n)
		}
	}

	var err error
	key := convert.JSONKey(conv)
	viewOnly := convert.Lossy(conv)
	if viewOnly {
		conv, key = convert.Hex{}, "data"
	}
	if file, ok := wrapper.Get("file"); ok && !viewOnly {
		name, ok := file.(string)
		if !ok {
			return nil, fmt.Errorf("%w: file is not a string", ErrFormat)
		}
		if opts.Files == nil {
			return nil, fmt.Errorf("no directory to read %s from", name)
		}
		b, err := fs.ReadFile(opts.Files, name)
		if err != nil {
			return nil, err
		}
		r.Data, err = conv.Pack(b)
		if err != nil {
			return nil, err
		}
	} else if v, ok := wrapper.Get(key); ok {
		r.Data, err = conv.Pack(v)
	} else if v, ok := wrapper.Get("data"); ok {
		r.Data, err = convert.Hex{}.Pack(v) // a failed conversion falls back to hex
	} else {
		err = fmt.Errorf("%w: no %q, \"data\" or \"file\" member", ErrFormat, key)
	}
	if err != nil {
		return nil, err
	}
	if r.Data == nil {
		r.Data = []byte{}
	}
	return r, nil
}

// number accepts a JSON integer that fits in bits unsigned bits.
func number(v any, bits int) (uint64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%v is not a number", v)
	}
	n, err := strconv.ParseUint(num.String(), 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%v is not a %d-bit unsigned integer", v, bits)
	}
	return n, nil
}

// readOrdered decodes one JSON value, keeping objects as ordered dicts and
// numbers as json.Number.
func readOrdered(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("data after the top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil // string, json.Number, bool or nil
	}

	switch delim {
	case '{':
		d := ordereddict.NewDict()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			d.Set(kt.(string), v)
		}
		_, err = dec.Token()
		return d, err
	case '[':
		list := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		_, err = dec.Token()
		return list, err
	}
	return nil, fmt.Errorf("unexpected %v", delim)
}
