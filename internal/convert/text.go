// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package convert

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
	"github.com/elliotnunn/resourceform/internal/bincursor"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"github.com/elliotnunn/resourceform/internal/structtemplate"
	"github.com/elliotnunn/resourceform/internal/textenc"
)

// Hex is the lossless fallback: data as uppercase base 16.
type Hex struct{}

func (Hex) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	return strings.ToUpper(hex.EncodeToString(res.Data)), nil
}

func (Hex) Pack(v any) ([]byte, error) {
	if v == nil {
		return []byte{}, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: want hex string, got %T", structtemplate.ErrShape, v)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", structtemplate.ErrShape, err)
	}
	return b, nil
}

func (Hex) SeparateFile() string { return "" }
func (Hex) JSONKey() string      { return "data" }

// decodeExact refuses text that would not encode back to the same bytes.
func decodeExact(enc textenc.Encoding, b []byte) (string, error) {
	s := enc.Decode(b)
	if back, err := enc.Encode(s); err != nil || !bytes.Equal(back, b) {
		return "", fmt.Errorf("%w: text does not survive the %s encoding", ErrLossyText, enc.Name)
	}
	return s, nil
}

func wantString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: want string, got %T", structtemplate.ErrShape, v)
	}
	return s, nil
}

// Text is a whole resource of encoded text (TEXT, and the like).
type Text struct{ Enc textenc.Encoding }

func (c Text) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	return decodeExact(c.Enc, res.Data)
}

func (c Text) Pack(v any) ([]byte, error) {
	s, err := wantString(v)
	if err != nil {
		return nil, err
	}
	return c.Enc.Encode(s)
}

func (Text) SeparateFile() string { return "" }

// PString is a single Pascal string (STR ).
type PString struct{ Enc textenc.Encoding }

func (c PString) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	r := bincursor.NewReader(res.Data)
	s, err := r.PascalString()
	if err != nil {
		return nil, err
	}
	if !r.EOF() {
		return nil, fmt.Errorf("%w: %d bytes after the string", ErrTrailing, r.Remaining())
	}
	return decodeExact(c.Enc, s)
}

func (c PString) Pack(v any) ([]byte, error) {
	s, err := wantString(v)
	if err != nil {
		return nil, err
	}
	b, err := c.Enc.Encode(s)
	if err != nil {
		return nil, err
	}
	w := bincursor.NewWriter()
	if err := writePString(w, b); err != nil {
		return nil, err
	}
	return w.Bytes()
}

func (PString) SeparateFile() string { return "" }

func writePString(w *bincursor.Writer, b []byte) error {
	if err := w.PascalString(b); err != nil {
		return fmt.Errorf("%w: %v", structtemplate.ErrRange, err)
	}
	return nil
}

// StringList is a count followed by Pascal strings (STR#).
type StringList struct{ Enc textenc.Encoding }

func (c StringList) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	r := bincursor.NewReader(res.Data)
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	list := make([]any, 0, n)
	for i := range int(n) {
		s, err := r.PascalString()
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		text, err := decodeExact(c.Enc, s)
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		list = append(list, text)
	}
	if !r.EOF() {
		return nil, fmt.Errorf("%w: %d bytes after %d strings", ErrTrailing, r.Remaining(), n)
	}
	return list, nil
}

func (c StringList) Pack(v any) ([]byte, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: want list of strings, got %T", structtemplate.ErrShape, v)
	}
	if len(list) > 0xffff {
		return nil, fmt.Errorf("%w: %d strings", structtemplate.ErrRange, len(list))
	}
	w := bincursor.NewWriter()
	w.U16(uint16(len(list)))
	for i, item := range list {
		s, err := wantString(item)
		if err == nil {
			var b []byte
			if b, err = c.Enc.Encode(s); err == nil {
				err = writePString(w, b)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
	}
	return w.Bytes()
}

func (StringList) SeparateFile() string { return "" }

// Template lists the fields of a ResEdit template (TMPL): a label and a
// four-character field type for each.
type Template struct{ Enc textenc.Encoding }

func (c Template) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	r := bincursor.NewReader(res.Data)
	var fields []any
	for !r.EOF() {
		label, err := r.PascalString()
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", len(fields), err)
		}
		kind, err := r.ReadExact(4)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", len(fields), err)
		}
		fields = append(fields, ordereddict.NewDict().
			Set("label", c.Enc.Decode(label)).
			Set("type", c.Enc.Decode(kind)))
	}
	if fields == nil {
		fields = []any{}
	}
	return fields, nil
}

func (c Template) Pack(v any) ([]byte, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: want list of fields, got %T", structtemplate.ErrShape, v)
	}
	w := bincursor.NewWriter()
	for i, item := range list {
		label, kind, err := templateField(item)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		lb, err := c.Enc.Encode(label)
		if err == nil {
			err = writePString(w, lb)
		}
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		kb, err := c.Enc.Encode(kind)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		if len(kb) != 4 {
			return nil, fmt.Errorf("field %d: %w: type %q is not 4 bytes", i, structtemplate.ErrShape, kind)
		}
		w.Write(kb)
	}
	return w.Bytes()
}

func (Template) SeparateFile() string { return "" }

func templateField(v any) (label, kind string, err error) {
	var l, k any
	var okl, okk bool
	switch d := v.(type) {
	case *ordereddict.Dict:
		l, okl = d.Get("label")
		k, okk = d.Get("type")
	case map[string]any:
		l, okl = d["label"]
		k, okk = d["type"]
	default:
		return "", "", fmt.Errorf("%w: want label and type, got %T", structtemplate.ErrShape, v)
	}
	if !okl || !okk {
		return "", "", fmt.Errorf("%w: want label and type", structtemplate.ErrShape)
	}
	if label, err = wantString(l); err != nil {
		return "", "", err
	}
	if kind, err = wantString(k); err != nil {
		return "", "", err
	}
	return label, kind, nil
}

// Struct applies a user-supplied struct template.
type Struct struct{ T *structtemplate.Template }

func (c Struct) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	return c.T.Unpack(res.Data)
}

func (c Struct) Pack(v any) ([]byte, error) {
	return c.T.Pack(v)
}

func (Struct) SeparateFile() string { return "" }

// ParseStructFlag reads a command-line converter of the form TYPE:template,
// for example "Hedr:>hh+:x,y".
func ParseStructFlag(s string) ([4]byte, Struct, error) {
	typ, tmpl, ok := strings.Cut(s, ":")
	if !ok {
		return [4]byte{}, Struct{}, fmt.Errorf("struct converter %q: want TYPE:template", s)
	}
	t, err := textenc.ParseType(typ)
	if err != nil {
		return [4]byte{}, Struct{}, err
	}
	compiled, err := structtemplate.Compile(tmpl)
	if err != nil {
		return [4]byte{}, Struct{}, err
	}
	return t, Struct{T: compiled}, nil
}
