// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package appledouble

import (
	"encoding/binary"
	"fmt"
	"math"
	"path"
	"strings"
	"time"
)

// AppleDouble is the file metadata that travels alongside a resource fork.
// Excludes the Finder info fields that become meaningless when moving to a different disk.
type AppleDouble struct {
	// Basic filesystem metadata, zero when unknown
	CreateTime, ModTime, BkTime, AccTime time.Time
	Locked                               bool

	// FinderInfo
	Type     [4]byte
	Creator  [4]byte
	Flags    uint16
	Location struct{ Y, X int16 }
	XFlags   uint16 // ignore the rarely used "filename display script" function
}

const unknownDate = 0x80000000

// ADTime converts a FILE_DATES_INFO timestamp, signed seconds since 2000.
func ADTime(t uint32) time.Time {
	return appleDoubleEpoch.Add(time.Second * time.Duration(int32(t)))
}

// Sidecar names the "._" file that macOS keeps beside a file on a foreign volume.
func Sidecar(name string) string {
	a, b := path.Split(name)
	return a + "._" + b
}

const (
	FlagIsOnDesk            = 0x0001 // Files and folders (System 6)
	MaskColor               = 0x000E // Files and folders
	FlagRequireSwitchLaunch = 0x0020 // Applications only
	FlagIsShared            = 0x0040 // Applications only
	FlagHasNoINITs          = 0x0080 // Extensions/Control Panels only
	FlagHasBeenInited       = 0x0100 // Files only (all BNDL/FREF/open/kind have been added)
	FlagAOCELetter          = 0x0200 // obsoleted
	FlagHasCustomIcon       = 0x0400 // Files and folders
	FlagIsStationery        = 0x0800 // Files only
	FlagNameLocked          = 0x1000 // Files and folders
	FlagHasBundle           = 0x2000 // Files only
	FlagIsInvisible         = 0x4000 // Files and folders
	FlagIsAlias             = 0x8000 // Files only
)

var flagNames = []struct {
	bit  uint16
	name string
}{
	{FlagIsOnDesk, "isOnDesk"},
	{MaskColor, ""},
	{0x0010, "unknown0x10"},
	{FlagRequireSwitchLaunch, "requireSwitchLaunch"},
	{FlagIsShared, "isShared"},
	{FlagHasNoINITs, "hasNoINITs"},
	{FlagHasBeenInited, "hasBeenInited"},
	{FlagAOCELetter, "aoceLetter"},
	{FlagHasCustomIcon, "hasCustomIcon"},
	{FlagIsStationery, "isStationery"},
	{FlagNameLocked, "nameLocked"},
	{FlagHasBundle, "hasBundle"},
	{FlagIsInvisible, "isInvisible"},
	{FlagIsAlias, "isAlias"},
}

// FlagNames spells out the Finder flags that are set, lowest bit first.
// The color label comes out as "colorN".
func FlagNames(f uint16) []string {
	var ret []string
	for _, n := range flagNames {
		switch {
		case f&n.bit == 0:
		case n.bit == MaskColor:
			ret = append(ret, fmt.Sprintf("color%d", f&MaskColor>>1))
		default:
			ret = append(ret, n.name)
		}
	}
	return ret
}

// String summarizes the metadata on one line.
func (m *AppleDouble) String() string {
	s := fmt.Sprintf("type %q creator %q", m.Type[:], m.Creator[:])
	if names := FlagNames(m.Flags); len(names) > 0 {
		s += " flags " + strings.Join(names, ",")
	}
	if m.Locked {
		s += " locked"
	}
	if !m.ModTime.IsZero() {
		s += " modified " + m.ModTime.Format(time.DateTime)
	}
	return s
}

// Load reads the metadata records of a parsed AppleDouble file, ignoring any that are malformed.
func Load(entries map[int][]byte) *AppleDouble {
	m := new(AppleDouble)
	if d := entries[FINDER_INFO]; len(d) >= 32 {
		m.LoadFInfo((*[16]byte)(d))
		m.LoadFXInfo((*[16]byte)(d[16:]))
	}
	if d := entries[FILE_DATES_INFO]; len(d) >= 16 {
		for i, t := range []*time.Time{&m.CreateTime, &m.ModTime, &m.BkTime, &m.AccTime} {
			if stamp := binary.BigEndian.Uint32(d[4*i:]); stamp != unknownDate {
				*t = ADTime(stamp)
			}
		}
	}
	if d := entries[MACINTOSH_FILE_INFO]; len(d) >= 1 {
		m.Locked = d[0]&0x80 != 0
	}
	return m
}

func (m *AppleDouble) LoadFInfo(d *[16]byte) {
	copy(m.Type[:], d[:])
	copy(m.Creator[:], d[4:])
	m.Flags = binary.BigEndian.Uint16(d[8:])
	m.Location.Y = int16(binary.BigEndian.Uint16(d[10:]))
	m.Location.X = int16(binary.BigEndian.Uint16(d[12:]))
}

func (m *AppleDouble) LoadFXInfo(d *[16]byte) {
	m.XFlags = binary.BigEndian.Uint16(d[8:])
	if m.XFlags&0x8000 != 0 {
		m.XFlags = 0 // the disagreeable rarely-used "filename script" field
	}
}

func (m *AppleDouble) fileInfoRec() [32]byte {
	var d [32]byte
	copy(d[:], m.Type[:])
	copy(d[4:], m.Creator[:])
	binary.BigEndian.PutUint16(d[8:], m.Flags)
	binary.BigEndian.PutUint16(d[10:], uint16(m.Location.Y))
	binary.BigEndian.PutUint16(d[12:], uint16(m.Location.X))
	binary.BigEndian.PutUint16(d[16+8:], m.XFlags)
	return d
}

func (m *AppleDouble) datesRec() [16]byte {
	var d [16]byte
	for i, t := range []time.Time{m.CreateTime, m.ModTime, m.BkTime, m.AccTime} {
		if t.IsZero() {
			binary.BigEndian.PutUint32(d[4*i:], unknownDate)
			continue
		}
		stamp := int64(t.Sub(appleDoubleEpoch) / time.Second)
		stamp = min(math.MaxInt32, stamp)
		stamp = max(math.MinInt32+1, stamp)
		binary.BigEndian.PutUint32(d[4*i:], uint32(int32(stamp)))
	}
	return d
}

func (m *AppleDouble) flagsRec() [4]byte {
	if m.Locked {
		return [4]byte{0x80, 0, 0, 0}
	} else {
		return [4]byte{0x0, 0, 0, 0}
	}
}

// WithResourceFork returns a complete AppleDouble file carrying the metadata and the fork.
func (m *AppleDouble) WithResourceFork(fork []byte) []byte {
	finder, dates, flags := m.fileInfoRec(), m.datesRec(), m.flagsRec()
	return Pack(map[int][]byte{
		FINDER_INFO:         finder[:],
		FILE_DATES_INFO:     dates[:],
		MACINTOSH_FILE_INFO: flags[:],
		RESOURCE_FORK:       fork,
	})
}
