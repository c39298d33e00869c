// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package appledouble

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

var admap = map[int]string{
	1:  "DATA_FORK",
	2:  "RESOURCE_FORK",
	3:  "REAL_NAME",
	4:  "COMMENT",
	5:  "ICON_BW",
	6:  "ICON_COLOR",
	7:  "FILE_INFO_V1",
	8:  "FILE_DATES_INFO",
	9:  "FINDER_INFO",
	10: "MACINTOSH_FILE_INFO",
	11: "PRODOS_FILE_INFO",
	12: "MSDOS_FILE_INFO",
	13: "SHORT_NAME",
	14: "AFP_FILE_INFO",
	15: "DIRECTORY_ID",
}

// Dump describes each entry on its own line, decoding the Finder metadata
// and giving only the extent of anything else.
func Dump(b []byte) (string, error) {
	entries, err := Parse(b)
	if err != nil {
		return "", err
	}

	count := binary.BigEndian.Uint16(b[24:])
	var bild strings.Builder
	for i := range int(count) {
		kind := binary.BigEndian.Uint32(b[26+12*i:])
		offset := binary.BigEndian.Uint32(b[26+12*i+4:])
		name := admap[int(kind)]
		if name == "" {
			name = fmt.Sprintf("UNKNOWN_%X", kind)
		}

		data := entries[int(kind)]
		val := fmt.Sprintf("%#x:%#x", offset, int(offset)+len(data))
		switch kind {
		case FILE_DATES_INFO:
			val = formatDates(data)
		case FINDER_INFO: // differs between files and directories
			val = formatFinderInfo(data)
		case MACINTOSH_FILE_INFO:
			val = formatOtherInfo(data)
		case REAL_NAME, COMMENT:
			val = strconv.Quote(string(data))
		}
		if bild.Len() > 0 {
			bild.WriteByte('\n')
		}
		fmt.Fprintf(&bild, "%s=%s", name, val)
	}
	return bild.String(), nil
}

func macdate(data []byte) string {
	t := binary.BigEndian.Uint32(data)
	if t == unknownDate {
		return "unknown"
	}
	return ADTime(t).Format("2006-01-02 15:04:05")
}

func formatDates(data []byte) string {
	if len(data) < 16 {
		return "malformed " + hex.EncodeToString(data)
	}
	return fmt.Sprintf("(C=%s,M=%s,B=%s,A=%s)",
		macdate(data[:]),
		macdate(data[4:]),
		macdate(data[8:]),
		macdate(data[12:]))
}

func formatFinderInfo(data []byte) string {
	if len(data) < 32 {
		return "malformed " + hex.EncodeToString(data)
	}
	isDir := string(data[:4]) != "\x00\x00\x00\x00" && (data[0] < 32 || data[2] < 32)

	var bild strings.Builder
	if isDir {
		fmt.Fprintf(&bild, "(%d,%d,%d,%d) ",
			int16(binary.BigEndian.Uint16(data[0:2])),
			int16(binary.BigEndian.Uint16(data[2:4])),
			int16(binary.BigEndian.Uint16(data[4:6])),
			int16(binary.BigEndian.Uint16(data[6:8])))
	} else {
		fmt.Fprintf(&bild, "(%q,%q) ", data[:4], data[4:8])
	}

	var m AppleDouble
	m.LoadFInfo((*[16]byte)(data))
	fmt.Fprintf(&bild, "(%s) (%d,%d) ", strings.Join(FlagNames(m.Flags), ","), m.Location.Y, m.Location.X)

	rsrv := int16(binary.BigEndian.Uint16(data[14:16]))
	fmt.Fprintf(&bild, "(rsrv=%#x) ", rsrv)

	if string(data[16:32]) != string(make([]byte, 16)) {
		fmt.Fprintf(&bild, "(ext=%s) ", hex.EncodeToString(data[16:32]))
	}

	return strings.TrimSuffix(bild.String(), " ")
}

func formatOtherInfo(data []byte) string {
	if len(data) != 4 || data[0]&0x3f != 0 || (data[1]|data[2]|data[3]) != 0 {
		return "malformed " + hex.EncodeToString(data)
	}
	var v []string
	if data[0]&0x80 != 0 {
		v = append(v, "locked")
	}
	if data[0]&0x40 != 0 {
		v = append(v, "protected")
	}
	return "(" + strings.Join(v, ",") + ")"
}
