// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package resourcefork

import (
	"bytes"
	"io/fs"
	"strconv"
	"time"
)

type resourceFile struct {
	*bytes.Reader
	fsys *FS
	r    *Resource
}

func newResourceFile(fsys *FS, r *Resource) *resourceFile {
	return &resourceFile{Reader: bytes.NewReader(r.Data), fsys: fsys, r: r}
}

func (f *resourceFile) Stat() (fs.FileInfo, error) {
	return f, nil
}

func (f *resourceFile) Close() error {
	return nil
}

func (f *resourceFile) Name() string { // FileInfo + DirEntry
	return strconv.Itoa(int(f.r.ID))
}

func (f *resourceFile) IsDir() bool { // FileInfo + DirEntry
	return false
}

func (f *resourceFile) Type() fs.FileMode { // DirEntry
	return 0
}

func (f *resourceFile) Info() (fs.FileInfo, error) { // DirEntry
	return f, nil
}

// Size shadows bytes.Reader.Size, which it agrees with.
func (f *resourceFile) Size() int64 { // FileInfo
	return int64(len(f.r.Data))
}

func (f *resourceFile) Mode() fs.FileMode { // FileInfo
	return 0o444
}

func (f *resourceFile) ModTime() time.Time { // FileInfo
	return f.fsys.ModTime
}

// Sys exposes the underlying *Resource for callers that want its name or flags.
func (f *resourceFile) Sys() any { // FileInfo
	return f.r
}
