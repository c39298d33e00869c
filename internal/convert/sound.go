// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package convert

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/elliotnunn/resourceform/internal/bincursor"
	"github.com/elliotnunn/resourceform/internal/resourcefork"
)

var ErrSound = errors.New("unsupported sound")

const (
	sndStandard  = 1
	sndHyperCard = 2

	encStandard   = 0x00 // 8-bit mono
	encCompressed = 0xfe
	encExtended   = 0xff // 8 or 16-bit, any channel count

	initMACE3 = 0x0300
	initMACE6 = 0x0400

	cmdSound  = 80
	cmdBuffer = 81
)

type codec struct {
	name          string
	samplesPerPkt int
	bytesPerPkt   int
	aiffBitDepth  int16
}

var codecs = map[string]codec{
	"MAC3": {"MACE 3-to-1", 6, 2, 8},
	"ima4": {"IMA 16 bit 4-to-1", 64, 34, 16},
	"twos": {"Signed big-endian PCM", 1, 2, 16},
	"sowt": {"Signed little-endian PCM", 1, 2, 16},
	"raw ": {"Unsigned PCM", 1, 1, 8},
	"ulaw": {"mu-law", 1, 1, 8},
	"alaw": {"A-law", 1, 1, 8},
}

// Sound wraps the sampled sound in an snd resource in an AIFF-C file,
// without decompressing it.
type Sound struct {
	Log *slog.Logger
}

func (c Sound) Unpack(res *resourcefork.Resource, _ *resourcefork.Fork) (any, error) {
	s, err := parseSnd(res.Data)
	if err != nil {
		return nil, err
	}
	if s.trailing != 0 {
		logFor(c.Log, res).Warn("sndTrailingBytes", "n", s.trailing)
	}
	s.name = res.Name
	return s.aiff()
}

func (Sound) Pack(any) ([]byte, error) { return nil, ErrOneWay }
func (Sound) SeparateFile() string     { return ".aiff" }
func (Sound) Lossy() bool              { return true }

type sampledSound struct {
	codec              string
	channels           int16
	packets            uint32
	rate               float64
	loopStart, loopEnd uint32
	baseNote           uint8
	samples            []byte
	trailing           int
	name               []byte
}

func parseSnd(data []byte) (*sampledSound, error) {
	r := bincursor.NewReader(data)
	var err error
	u16 := func() (v uint16) {
		if err == nil {
			v, err = r.U16()
		}
		return
	}
	u32 := func() (v uint32) {
		if err == nil {
			v, err = r.U32()
		}
		return
	}

	defaultCodec := "????"
	switch format := u16(); format {
	case sndStandard:
		nmod := int(u16())
		for i := range nmod {
			u16() // synth type
			init := u32()
			if i == 0 && init&initMACE6 != 0 {
				defaultCodec = "MAC6"
			} else if i == 0 && init&initMACE3 != 0 {
				defaultCodec = "MAC3"
			}
		}
	case sndHyperCard:
		u16() // reference count
		defaultCodec = "MAC3"
	default:
		if err == nil {
			return nil, fmt.Errorf("%w: format %d snd", ErrSound, format)
		}
	}

	header := -1
	ncmd := int(int16(u16()))
	for range ncmd {
		cmd := u16() & 0x7fff
		u16() // param1
		param2 := u32()
		if err == nil && (cmd == cmdSound || cmd == cmdBuffer) {
			header = int(int32(param2))
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("snd command list: %w", err)
	}
	if header < 0 {
		return nil, fmt.Errorf("%w: no sound or buffer command", ErrSound)
	}

	r.Seek(header)
	s := new(sampledSound)
	ptr := u32()
	union := u32()
	rate := u32()
	s.loopStart = u32()
	s.loopEnd = u32()
	var enc uint8
	if err == nil {
		enc, err = r.U8()
	}
	if err == nil {
		s.baseNote, err = r.U8()
	}
	if err != nil {
		return nil, fmt.Errorf("snd header: %w", err)
	}
	if ptr != 0 {
		return nil, fmt.Errorf("%w: samples held outside the resource", ErrSound)
	}
	s.rate = float64(rate) / 65536

	switch enc {
	case encStandard:
		s.codec = "raw "
		s.channels = 1
		s.packets = union
	case encCompressed:
		s.channels = int16(union)
		s.packets = u32()
		r.Skip(14)
		var fourcc []byte
		if err == nil {
			fourcc, err = r.ReadExact(4)
		}
		r.Skip(20)
		s.codec = string(fourcc)
		if s.codec == "\x00\x00\x00\x00" {
			s.codec = defaultCodec
		}
	case encExtended:
		s.channels = int16(union)
		s.packets = u32()
		r.Skip(22)
		depth := int16(u16())
		r.Skip(14)
		s.codec = "raw "
		if depth != 8 {
			s.codec = "twos"
		}
		if err == nil && codecs[s.codec].aiffBitDepth != depth {
			return nil, fmt.Errorf("%w: %d-bit extended sound", ErrSound, depth)
		}
	default:
		return nil, fmt.Errorf("%w: encoding %#02x", ErrSound, enc)
	}
	if err != nil {
		return nil, fmt.Errorf("snd header: %w", err)
	}

	cd, ok := codecs[s.codec]
	if !ok {
		return nil, fmt.Errorf("%w: codec %q", ErrSound, s.codec)
	}
	n := int(s.channels) * int(s.packets) * cd.bytesPerPkt
	s.trailing = r.Remaining() - n
	if s.samples, err = r.ReadExact(n); err != nil {
		return nil, fmt.Errorf("snd samples: %w", err)
	}
	return s, nil
}

func (s *sampledSound) aiff() ([]byte, error) {
	cd := codecs[s.codec]
	loop := int64(s.loopEnd)-int64(s.loopStart) > 1
	w := bincursor.NewWriter()

	err := chunk(w, "FORM", func() error {
		w.Write([]byte("AIFC"))
		err := chunk(w, "FVER", func() error {
			w.U32(0xa2805140) // AIFC version 1
			return nil
		})
		if err != nil {
			return err
		}

		err = chunk(w, "COMM", func() error {
			w.I16(s.channels)
			w.U32(s.packets)
			w.I16(cd.aiffBitDepth)
			ext := ieeeExtended(s.rate)
			w.Write(ext[:])
			w.Write([]byte(s.codec))
			return evenPString(w, cd.name)
		})
		if err != nil {
			return err
		}

		if loop {
			err = chunk(w, "MARK", func() error {
				w.I16(2)
				w.I16(101)
				w.U32(s.loopStart)
				if err := evenPString(w, "beg loop"); err != nil {
					return err
				}
				w.I16(102)
				w.U32(s.loopEnd)
				return evenPString(w, "end loop")
			})
			if err != nil {
				return err
			}
		}

		if s.baseNote != 60 || loop {
			err = chunk(w, "INST", func() error {
				w.U8(s.baseNote)
				w.U8(0)    // detune
				w.U8(0)    // low note
				w.U8(0x7f) // high note
				w.U8(0)    // low velocity
				w.U8(0x7f) // high velocity
				w.I16(0)   // gain
				if loop {
					w.I16(1) // forward
					w.I16(101)
					w.I16(102)
				} else {
					w.Zeros(6)
				}
				w.Zeros(6) // release loop
				return nil
			})
			if err != nil {
				return err
			}
		}

		if len(s.name) > 0 {
			err = chunk(w, "NAME", func() error {
				w.Write(s.name)
				return nil
			})
			if err != nil {
				return err
			}
		}

		err = chunk(w, "ANNO", func() error {
			fmt.Fprintf(w, "Verbatim copy of data stream from 'snd ' resource.\n"+
				"MIDI base note: %d, sustain loop: %d-%d\n", s.baseNote, s.loopStart, s.loopEnd)
			return nil
		})
		if err != nil {
			return err
		}

		return chunk(w, "SSND", func() error {
			w.Zeros(8) // offset and block size
			w.Write(s.samples)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return w.Bytes()
}

// chunk writes an IFF chunk around whatever body writes, padded to even length.
func chunk(w *bincursor.Writer, id string, body func() error) error {
	w.Write([]byte(id))
	size := w.Placeholder(4)
	start := w.Len()
	if err := body(); err != nil {
		return err
	}
	n := w.Len() - start
	if n%2 != 0 {
		w.U8(0)
	}
	if err := size.Commit(uint64(n)); err != nil {
		return fmt.Errorf("%s chunk: %w", id, err)
	}
	return nil
}

func evenPString(w *bincursor.Writer, s string) error {
	if err := w.PascalString([]byte(s)); err != nil {
		return err
	}
	if len(s)%2 == 0 {
		w.U8(0)
	}
	return nil
}

// ieeeExtended encodes the 80-bit float that AIFF uses for sample rates.
func ieeeExtended(f float64) [10]byte {
	var b [10]byte
	var sign uint16
	if f < 0 {
		sign = 0x8000
		f = -f
	}
	if f == 0 {
		return b
	}

	var expon uint16
	var hi, lo uint32
	mant, exp := math.Frexp(f)
	if exp > 0x4000 || !(mant < 1) { // infinity or NaN
		expon = sign | 0x7fff
	} else {
		exp += 0x3ffe
		if exp < 0 { // denormal
			mant = math.Ldexp(mant, exp)
			exp = 0
		}
		expon = sign | uint16(exp)
		mant = math.Ldexp(mant, 32)
		whole := math.Floor(mant)
		hi = uint32(whole)
		mant = math.Ldexp(mant-whole, 32)
		lo = uint32(math.Floor(mant))
	}

	b[0], b[1] = byte(expon>>8), byte(expon)
	b[2], b[3], b[4], b[5] = byte(hi>>24), byte(hi>>16), byte(hi>>8), byte(hi)
	b[6], b[7], b[8], b[9] = byte(lo>>24), byte(lo>>16), byte(lo>>8), byte(lo)
	return b
}
