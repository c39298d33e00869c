// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package convert turns resource data into friendlier forms and back:
// text, structured records, or whole files such as PNG and AIFF-C.
package convert

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"github.com/elliotnunn/resourceform/internal/textenc"
)

var (
	// ErrOneWay is returned by Pack on converters whose output cannot be
	// turned back into the original resource, such as rasterized pictures.
	ErrOneWay = errors.New("conversion cannot be reversed")
	// ErrTrailing means the resource has bytes the converted form would lose.
	ErrTrailing = errors.New("trailing data")
	// ErrLossyText means the bytes are not valid in the chosen text encoding.
	ErrLossyText = errors.New("text would not round trip")
)

// Converter translates the data of one resource type.
//
// A converter with a SeparateFile extension produces and consumes the whole
// content of that file as []byte. Otherwise the value is stored inline in
// the JSON document and must survive a round trip through encoding/json.
type Converter interface {
	Unpack(res *resourcefork.Resource, fork *resourcefork.Fork) (any, error)
	Pack(v any) ([]byte, error)
	SeparateFile() string
}

// JSONKey names the member that holds a converter's inline value:
// "data" for hex, "obj" for everything else.
func JSONKey(c Converter) string {
	if k, ok := c.(interface{ JSONKey() string }); ok {
		return k.JSONKey()
	}
	return "obj"
}

// Lossy reports whether a converter's output cannot be packed back, so the
// resource must also be kept as hex.
func Lossy(c Converter) bool {
	l, ok := c.(interface{ Lossy() bool })
	return ok && l.Lossy()
}

// ResourceError attributes a conversion failure to one resource.
type ResourceError struct {
	Type [4]byte
	ID   int16
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("'%s' #%d: %v", e.Type[:], e.ID, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Registry maps type codes to converters. Types without an entry use Hex.
type Registry struct {
	m map[[4]byte]Converter
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[[4]byte]Converter)}
}

func (r *Registry) Set(t [4]byte, c Converter) {
	r.m[t] = c
}

func (r *Registry) Lookup(t [4]byte) Converter {
	if c, ok := r.m[t]; ok {
		return c
	}
	return Hex{}
}

// Standard returns the built-in converters. Names and text are decoded with
// enc, and advisory warnings go to log (slog.Default() if nil).
func Standard(enc textenc.Encoding, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := NewRegistry()
	r.Set(fourCC("TEXT"), Text{Enc: enc})
	r.Set(fourCC("STR "), PString{Enc: enc})
	r.Set(fourCC("STR#"), StringList{Enc: enc})
	r.Set(fourCC("TMPL"), Template{Enc: enc})

	r.Set(fourCC("PICT"), Picture{Kind: "PICT", Log: log})
	r.Set(fourCC("cicn"), Picture{Kind: "cicn", Log: log})
	r.Set(fourCC("ppat"), Picture{Kind: "ppat", Log: log})
	r.Set(fourCC("SICN"), Picture{Kind: "SICN", Log: log})
	for t := range iconKinds {
		r.Set(t, Icon{Log: log})
	}

	r.Set(fourCC("snd "), Sound{Log: log})
	r.Set(fourCC("plst"), Plist{})
	r.Set(fourCC("icns"), Icns{})
	return r
}

func fourCC(s string) [4]byte {
	var t [4]byte
	copy(t[:], s+"    ")
	return t
}
