// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package resourcefork

import (
	"io"
	"io/fs"
	"time"

	"github.com/elliotnunn/resourceform/internal/textenc"
)

type typeDir struct {
	fsys       *FS
	tl         *typeList
	listOffset int
}

func (*typeDir) Read([]byte) (n int, err error) {
	return 0, io.EOF
}

func (d *typeDir) ReadDir(count int) ([]fs.DirEntry, error) {
	n := len(d.tl.res) - d.listOffset
	if n == 0 && count > 0 {
		return nil, io.EOF
	}
	if count > 0 && n > count {
		n = count
	}

	list := make([]fs.DirEntry, n)
	for i := range list {
		list[i] = newResourceFile(d.fsys, d.tl.res[d.listOffset+i])
	}
	d.listOffset += n
	return list, nil
}

func (d *typeDir) Stat() (fs.FileInfo, error) {
	return d, nil
}

func (*typeDir) Close() error {
	return nil
}

func (s *typeDir) Name() string { // FileInfo + DirEntry
	return textenc.SanitizeType(s.tl.t)
}

func (*typeDir) IsDir() bool { // FileInfo + DirEntry
	return true
}

func (*typeDir) Type() fs.FileMode { // DirEntry
	return fs.ModeDir
}

func (s *typeDir) Info() (fs.FileInfo, error) { // DirEntry
	return s, nil
}

func (*typeDir) Size() int64 { // FileInfo
	return 0
}

func (*typeDir) Mode() fs.FileMode { // FileInfo
	return fs.ModeDir | 0o555
}

func (d *typeDir) ModTime() time.Time { // FileInfo
	return d.fsys.ModTime
}

func (s *typeDir) Sys() any { // FileInfo
	return &s.tl.t
}
