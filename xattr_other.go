// Copyright (c) Elliot Nunn
// Licensed under the MIT license

//go:build !darwin && !linux

package main

import (
	"errors"
	"io/fs"
)

const xattrName = "com.apple.ResourceFork"

var errNoXattr = errors.New("extended attributes are not supported on this platform")

func readXattr(name string) ([]byte, error) {
	return nil, &fs.PathError{Op: "getxattr", Path: name, Err: errNoXattr}
}

func writeXattr(name string, data []byte) error {
	return &fs.PathError{Op: "setxattr", Path: name, Err: errNoXattr}
}
