// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package pict

import "github.com/elliotnunn/resourceform/internal/structtemplate"

// Opcodes named in Inside Macintosh: Imaging With QuickDraw, tables A-2 and A-3
const (
	opNOP            = 0x00
	opClipRgn        = 0x01
	opPicVersion     = 0x11
	opLongText       = 0x28
	opDefHilite      = 0x1E
	opBitsRect       = 0x90
	opBitsRgn        = 0x91
	opPackBitsRect   = 0x98
	opPackBitsRgn    = 0x99
	opDirectBitsRect = 0x9A
	opDirectBitsRgn  = 0x9B
	opShortComment   = 0xA0
	opLongComment    = 0xA1
	opEndOfPicture   = 0xFF
)

// Enough of each record to know its length. A "len" field counts the bytes
// that follow the record, "size" counts the whole record, and "datalen"
// counts everything after itself.
var opcodeFormats = map[uint16]string{
	0x00: ">", // NOP
	0x02: ">8B",
	0x03: ">H:font",
	0x04: ">B:face",
	0x05: ">B:mode",
	0x06: ">L:extraspace_fixed",
	0x07: ">HH:v,h",
	0x08: ">H:mode",
	0x09: ">8B",
	0x0A: ">8B",
	0x0B: ">HH:v,h",
	0x0C: ">HH:dh,dv",
	0x0D: ">H:size",
	0x0E: ">L:color",
	0x0F: ">L:color",

	0x10: ">HHHH:numv,numh,denomv,denomh",
	0x11: ">B:version",
	0x1A: ">HHH:r,g,b",
	0x1B: ">HHH:r,g,b",
	0x1C: ">",
	0x1D: ">HHH:r,g,b",
	0x1E: ">",
	0x1F: ">HHH:r,g,b",

	0x20: ">HHHH:v1,h1,v2,h2",
	0x21: ">HH:v,h",
	0x22: ">HHbb:v1,h1,dh,dv",
	0x23: ">bb:dh,dv",
	0x28: ">HHB:v,h,len",
	0x29: ">BB:dh,len",
	0x2A: ">BB:dv,len",
	0x2B: ">BBB:dh,dv,len",
	0x2C: ">HHB:datalen,oldfontid,len",
	0x2D: ">HLL:datalen,interchar_fixed,total_fixed",
	0x2E: ">HBBBB:datalen,outlinePreferred,preserveGlyph,fractionalWidths,scalingDisabled",

	// rect, rrect, oval
	0x30: ">HHHH:t,l,b,r", 0x31: ">HHHH:t,l,b,r", 0x32: ">HHHH:t,l,b,r", 0x33: ">HHHH:t,l,b,r", 0x34: ">HHHH:t,l,b,r",
	0x38: ">", 0x39: ">", 0x3A: ">", 0x3B: ">", 0x3C: ">",
	0x40: ">HHHH:t,l,b,r", 0x41: ">HHHH:t,l,b,r", 0x42: ">HHHH:t,l,b,r", 0x43: ">HHHH:t,l,b,r", 0x44: ">HHHH:t,l,b,r",
	0x48: ">", 0x49: ">", 0x4A: ">", 0x4B: ">", 0x4C: ">",
	0x50: ">HHHH:t,l,b,r", 0x51: ">HHHH:t,l,b,r", 0x52: ">HHHH:t,l,b,r", 0x53: ">HHHH:t,l,b,r", 0x54: ">HHHH:t,l,b,r",
	0x58: ">", 0x59: ">", 0x5A: ">", 0x5B: ">", 0x5C: ">",

	// arc
	0x60: ">HHHHHH:t,l,b,r,startAngle,arcAngle",
	0x61: ">HHHHHH:t,l,b,r,startAngle,arcAngle",
	0x62: ">HHHHHH:t,l,b,r,startAngle,arcAngle",
	0x63: ">HHHHHH:t,l,b,r,startAngle,arcAngle",
	0x64: ">HHHHHH:t,l,b,r,startAngle,arcAngle",
	0x68: ">", 0x69: ">", 0x6A: ">", 0x6B: ">", 0x6C: ">",

	// poly and rgn, only the size word
	0x70: ">H:size", 0x71: ">H:size", 0x72: ">H:size", 0x73: ">H:size", 0x74: ">H:size",
	0x78: ">", 0x79: ">", 0x7A: ">", 0x7B: ">", 0x7C: ">",
	0x80: ">H:size", 0x81: ">H:size", 0x82: ">H:size", 0x83: ">H:size", 0x84: ">H:size",
	0x88: ">", 0x89: ">", 0x8A: ">", 0x8B: ">", 0x8C: ">",

	0xA0:   ">H:kind",
	0xA1:   ">HH:kind,len",
	0x8200: ">L:len", // CompressedQuickTime
	0x8201: ">L:len", // UncompressedQuickTime
}

var opcodeTemplates = func() map[uint16]*structtemplate.Template {
	m := make(map[uint16]*structtemplate.Template, len(opcodeFormats))
	for op, f := range opcodeFormats {
		m[op] = structtemplate.MustCompile(f)
	}
	return m
}()

// skipped without comment
var quietOpcodes = map[uint16]bool{
	opLongComment:  true,
	opLongText:     true,
	opShortComment: true,
	opDefHilite:    true,
}

// ReservedOpcodeSize gives the number of data bytes following an opcode that
// Apple reserved for future use, or -1 if op is not reserved.
func ReservedOpcodeSize(op uint16) int {
	switch {
	case 0x0035 <= op && op <= 0x0037:
		return 8
	case 0x003D <= op && op <= 0x003F:
		return 0
	case 0x0045 <= op && op <= 0x0047:
		return 8
	case 0x004D <= op && op <= 0x004F:
		return 0
	case 0x0055 <= op && op <= 0x0057:
		return 8
	case 0x005D <= op && op <= 0x005F:
		return 0
	case 0x0065 <= op && op <= 0x0067:
		return 12
	case 0x006D <= op && op <= 0x006F:
		return 4
	case 0x007D <= op && op <= 0x007F:
		return 0
	case 0x008D <= op && op <= 0x008F:
		return 0
	case 0x00B0 <= op && op <= 0x00CF:
		return 0
	case 0x0100 <= op && op <= 0x01FF:
		return 2
	case op == 0x0200:
		return 4
	case op == 0x02FF:
		return 2
	case op == 0x0BFF:
		return 22
	case 0x0C00 <= op && op <= 0x7EFF:
		return 24
	case 0x7F00 <= op && op <= 0x7FFF:
		return 254
	case 0x8000 <= op && op <= 0x80FF:
		return 0
	}
	return -1
}
