// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build darwin || linux

package main

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

func readXattr(name string) ([]byte, error) {
	for {
		n, err := unix.Getxattr(name, xattrName, nil)
		if err != nil {
			return nil, xattrError("getxattr", name, err)
		}
		buf := make([]byte, n)
		m, err := unix.Getxattr(name, xattrName, buf)
		if errors.Is(err, unix.ERANGE) {
			continue // grew in between
		} else if err != nil {
			return nil, xattrError("getxattr", name, err)
		}
		return buf[:m], nil
	}
}

func writeXattr(name string, data []byte) error {
	if err := unix.Setxattr(name, xattrName, data, 0); err != nil {
		return xattrError("setxattr", name, err)
	}
	return nil
}

func xattrError(op, name string, err error) error {
	if errors.Is(err, errNoAttr) {
		err = fs.ErrNotExist
	}
	return &fs.PathError{Op: op, Path: name + " " + xattrName, Err: err}
}
