// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package structtemplate

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/Velocidex/ordereddict"
)

// Unpack decodes a whole resource. In scalar mode the data must be exactly one
// record long, in list mode a whole number of records, returned as []any.
func (t *Template) Unpack(data []byte) (any, error) {
	if !t.list {
		if len(data) != t.reclen {
			return nil, fmt.Errorf("%w: template %q wants %d bytes, data has %d",
				ErrLengthMismatch, t.source, t.reclen, len(data))
		}
		return t.UnpackRecord(data, 0)
	}

	if len(data)%t.reclen != 0 {
		return nil, fmt.Errorf("%w: template %q wants a multiple of %d bytes, data has %d",
			ErrLengthMismatch, t.source, t.reclen, len(data))
	}
	ret := make([]any, 0, len(data)/t.reclen)
	for off := 0; off < len(data); off += t.reclen {
		rec, err := t.UnpackRecord(data, off)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rec)
	}
	return ret, nil
}

// UnpackRecord decodes one record at off, ignoring anything after it.
// The result is a *ordereddict.Dict if the template has names,
// the bare value if there is exactly one field, and []any otherwise.
func (t *Template) UnpackRecord(data []byte, off int) (any, error) {
	if off < 0 || len(data)-off < t.reclen {
		return nil, fmt.Errorf("%w: template %q wants %d bytes at offset %d, data has %d",
			ErrLengthMismatch, t.source, t.reclen, off, len(data))
	}
	rec := data[off:]

	values := make([]any, len(t.fields))
	for i, f := range t.fields {
		values[i] = t.decodeField(f, rec[f.Offset:][:f.Size])
	}

	switch {
	case t.names != nil:
		d := ordereddict.NewDict()
		for i, v := range values {
			d.Set(t.names[i], v)
		}
		return d, nil
	case len(values) == 1:
		return values[0], nil
	default:
		return values, nil
	}
}

func (t *Template) decodeField(f Field, b []byte) any {
	switch f.Kind {
	case Int8:
		return int64(int8(b[0]))
	case Uint8:
		return int64(b[0])
	case Int16:
		return int64(int16(t.order.Uint16(b)))
	case Uint16:
		return int64(t.order.Uint16(b))
	case Int32:
		return int64(int32(t.order.Uint32(b)))
	case Uint32:
		return int64(t.order.Uint32(b))
	case Int64:
		return int64(t.order.Uint64(b))
	case Uint64:
		return t.order.Uint64(b)
	case Float32:
		return float64(math.Float32frombits(t.order.Uint32(b)))
	case Float64:
		return math.Float64frombits(t.order.Uint64(b))
	case Bool:
		return b[0] != 0
	default: // Bytes
		return strings.ToUpper(hex.EncodeToString(b))
	}
}

// Pack is the inverse of Unpack.
func (t *Template) Pack(v any) ([]byte, error) {
	if !t.list {
		return t.PackRecord(nil, v)
	}

	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: template %q expects a list, got %T", ErrShape, t.source, v)
	}
	buf := make([]byte, 0, rv.Len()*t.reclen)
	for i := range rv.Len() {
		var err error
		buf, err = t.PackRecord(buf, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return buf, nil
}

// PackRecord appends one encoded record to buf.
func (t *Template) PackRecord(buf []byte, v any) ([]byte, error) {
	values, err := t.slots(v)
	if err != nil {
		return nil, err
	}

	start := len(buf)
	buf = append(buf, make([]byte, t.reclen)...)
	rec := buf[start:]
	for i, f := range t.fields {
		err := t.encodeField(f, rec[f.Offset:][:f.Size], values[i])
		if err != nil {
			name := strconv.Itoa(i)
			if t.names != nil {
				name = t.names[i]
			}
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return buf, nil
}

// slots flattens a structured record into one value per field.
func (t *Template) slots(v any) ([]any, error) {
	switch {
	case t.names != nil:
		values := make([]any, len(t.names))
		for i, name := range t.names {
			var ok bool
			switch d := v.(type) {
			case *ordereddict.Dict:
				values[i], ok = d.Get(name)
			case map[string]any:
				values[i], ok = d[name]
			default:
				return nil, fmt.Errorf("%w: template %q expects named fields, got %T", ErrShape, t.source, v)
			}
			if !ok {
				return nil, fmt.Errorf("%w: template %q: missing field %q", ErrShape, t.source, name)
			}
		}
		return values, nil
	case t.isScalar():
		switch v.(type) {
		case []any, map[string]any, *ordereddict.Dict:
			return nil, fmt.Errorf("%w: template %q expects a bare value, got %T", ErrShape, t.source, v)
		}
		return []any{v}, nil
	default:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: template %q expects a tuple, got %T", ErrShape, t.source, v)
		}
		if len(list) != len(t.fields) {
			return nil, fmt.Errorf("%w: template %q has %d fields, got %d values",
				ErrShape, t.source, len(t.fields), len(list))
		}
		return list, nil
	}
}

func (t *Template) encodeField(f Field, b []byte, v any) error {
	switch f.Kind {
	case Bytes:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: want hex string, got %T", ErrShape, v)
		}
		raw, err := hex.DecodeString(s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrShape, err)
		}
		if len(raw) > f.Size {
			return fmt.Errorf("%w: %d bytes in a %d-byte field", ErrRange, len(raw), f.Size)
		}
		copy(b, raw) // short strings are zero-padded
		return nil
	case Bool:
		switch x := v.(type) {
		case bool:
			if x {
				b[0] = 1
			}
			return nil
		}
		n, err := toInt(v)
		if err != nil {
			return err
		}
		if n != 0 {
			b[0] = 1
		}
		return nil
	case Float32:
		x, err := toFloat(v)
		if err != nil {
			return err
		}
		t.order.PutUint32(b, math.Float32bits(float32(x)))
		return nil
	case Float64:
		x, err := toFloat(v)
		if err != nil {
			return err
		}
		t.order.PutUint64(b, math.Float64bits(x))
		return nil
	case Uint64:
		n, err := toUint(v)
		if err != nil {
			return err
		}
		t.order.PutUint64(b, n)
		return nil
	}

	n, err := toInt(v)
	if err != nil {
		return err
	}
	lo, hi := intRange(f.Kind)
	if n < lo || n > hi {
		return fmt.Errorf("%w: %d does not fit", ErrRange, n)
	}
	switch f.Size {
	case 1:
		b[0] = uint8(n)
	case 2:
		t.order.PutUint16(b, uint16(n))
	case 4:
		t.order.PutUint32(b, uint32(n))
	case 8:
		t.order.PutUint64(b, uint64(n))
	}
	return nil
}

func intRange(k Kind) (lo, hi int64) {
	switch k {
	case Int8:
		return math.MinInt8, math.MaxInt8
	case Uint8:
		return 0, math.MaxUint8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case Uint16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Uint32:
		return 0, math.MaxUint32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// toInt accepts every numeric form a decoded JSON or Go caller might hand us.
func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrShape, err)
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= 0x1p63 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrShape, x)
		}
		return int64(x), nil
	case float32:
		return toInt(float64(x))
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d", ErrRange, x)
		}
		return int64(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uintptr:
		return int64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("%w: want a number, got %T", ErrShape, v)
}

func toUint(v any) (uint64, error) {
	switch x := v.(type) {
	case uint64:
		return x, nil
	case json.Number:
		n, err := strconv.ParseUint(x.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrShape, err)
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) || x < 0 || x >= 0x1p64 {
			return 0, fmt.Errorf("%w: %v is not an unsigned integer", ErrShape, x)
		}
		return uint64(x), nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrRange, n)
	}
	return uint64(n), nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrShape, err)
		}
		return f, nil
	}
	n, err := toInt(v)
	return float64(n), err
}
