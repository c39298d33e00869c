// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/elliotnunn/resourceform/internal/resourcefork"
	"howett.net/plist"
)

func wantBytes(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("want file contents, got %T", v)
	}
	return b, nil
}

// Plist stores a property list resource in a file of its own, after
// checking that it parses.
type Plist struct{}

func (Plist) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	if err := checkPlist(res.Data); err != nil {
		return nil, err
	}
	return bytes.Clone(res.Data), nil
}

func (Plist) Pack(v any) ([]byte, error) {
	b, err := wantBytes(v)
	if err != nil {
		return nil, err
	}
	if err := checkPlist(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (Plist) SeparateFile() string { return ".plist" }

func checkPlist(b []byte) error {
	var v any
	if _, err := plist.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("property list: %w", err)
	}
	return nil
}

// Icns stores an icon family in a file of its own. The resource is already
// in the .icns file format.
type Icns struct{}

func (Icns) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	if err := checkIcns(res.Data); err != nil {
		return nil, err
	}
	return bytes.Clone(res.Data), nil
}

func (Icns) Pack(v any) ([]byte, error) {
	b, err := wantBytes(v)
	if err != nil {
		return nil, err
	}
	if err := checkIcns(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (Icns) SeparateFile() string { return ".icns" }

func checkIcns(b []byte) error {
	if len(b) < 8 || string(b[:4]) != "icns" {
		return fmt.Errorf("icon family lacks its 'icns' header")
	}
	if n := binary.BigEndian.Uint32(b[4:]); int64(n) != int64(len(b)) {
		return fmt.Errorf("icon family header says %d bytes, resource has %d", n, len(b))
	}
	return nil
}
