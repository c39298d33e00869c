// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package resourcefork

import (
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/elliotnunn/resourceform/internal/textenc"
)

// FS presents a Fork as a read-only tree of "TYPE/ID" files.
// Type directories are named with textenc.SanitizeType.
type FS struct {
	Fork    *Fork
	ModTime time.Time
}

func (f *Fork) FS() fs.FS {
	return &FS{Fork: f}
}

func (fsys *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if name == "." {
		return &rootDir{fsys: fsys}, nil
	}

	tname, idname, hasID := strings.Cut(name, "/")
	tl := fsys.typeNamed(tname)
	if tl == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if !hasID {
		return &typeDir{fsys: fsys, tl: tl}, nil
	}

	id, err := strconv.ParseInt(idname, 10, 16)
	if err != nil || strconv.Itoa(int(id)) != idname {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	r := tl.byID[int16(id)]
	if r == nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return newResourceFile(fsys, r), nil
}

func (fsys *FS) typeNamed(name string) *typeList {
	t, err := textenc.ParseType(name)
	if err != nil || textenc.SanitizeType(t) != name {
		return nil
	}
	return fsys.Fork.index[t]
}

type rootDir struct {
	fsys       *FS
	listOffset int
}

func (*rootDir) Read([]byte) (n int, err error) {
	return 0, io.EOF
}

func (d *rootDir) ReadDir(count int) ([]fs.DirEntry, error) {
	types := d.fsys.Fork.types
	n := len(types) - d.listOffset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}

	list := make([]fs.DirEntry, n)
	for i := range list {
		list[i] = &typeDir{fsys: d.fsys, tl: types[d.listOffset+i]}
	}
	d.listOffset += n
	return list, nil
}

func (d *rootDir) Stat() (fs.FileInfo, error) {
	return d, nil
}

func (*rootDir) Close() error {
	return nil
}

func (s *rootDir) Name() string { // FileInfo + DirEntry
	return "."
}

func (*rootDir) IsDir() bool { // FileInfo + DirEntry
	return true
}

func (*rootDir) Type() fs.FileMode { // DirEntry
	return fs.ModeDir
}

func (s *rootDir) Info() (fs.FileInfo, error) { // DirEntry
	return s, nil
}

func (*rootDir) Size() int64 { // FileInfo
	return 0
}

func (*rootDir) Mode() fs.FileMode { // FileInfo
	return fs.ModeDir | 0o555
}

func (d *rootDir) ModTime() time.Time { // FileInfo
	return d.fsys.ModTime
}

func (s *rootDir) Sys() any { // FileInfo
	return nil
}
