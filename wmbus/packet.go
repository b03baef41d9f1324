// WMBUSBRIDGE - A wireless M-Bus link-layer receiver bridge.
// Copyright (C) 2026 Kustonium
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package wmbus

import (
	"encoding/hex"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/threeofsix"
)

const (
	// PreambleSize is how many raw bytes the receiver reads before it can
	// compute the full frame length.
	PreambleSize = 3

	modeCPreamble  = 0x54
	blockAPreamble = 0xCD
	blockBPreamble = 0x3D
	modeCPrefixLen = 2

	// Raw-length gates: anything shorter is RF noise, not a frame.
	minT1Raw = 60
	minC1Raw = 16

	// L-field sanity bounds on the logical frame length L+1.
	minWant = 12
	maxWant = 260

	rawHexMax = 256
)

// DropReason tags why a packet never became a frame. The strings are
// stable: diagnostics consumers bucket on them.
type DropReason string

const (
	DropNone            DropReason = ""
	DropTooShort        DropReason = "too_short"
	DropDecodeFailed    DropReason = "decode_failed"
	DropCRCFailed       DropReason = "dll_crc_failed"
	DropUnknownPreamble DropReason = "unknown_preamble"
	DropLFieldInvalid   DropReason = "l_field_invalid"
	DropLinkModeUnknown DropReason = "unknown_link_mode"
	DropTruncated       DropReason = "truncated"
)

// Packet accumulates raw bytes from the radio and converts them into a
// clean DLL frame. A packet has a single owner at any time: the receiver
// fills it, then hands it to the dispatcher, which converts and discards
// it. ConvertToFrame runs at most once; afterwards the packet is only
// good for reading diagnostics.
type Packet struct {
	data     []byte
	rssi     int8
	mode     LinkMode
	format   FrameFormat
	expected int

	converted bool

	// Diagnostics populated by ConvertToFrame.
	truncated  bool
	wantLen    int
	gotLen     int
	rawGotLen  int
	dropReason DropReason
	rawHex     string
	symTotal   int
	symInvalid int
}

func NewPacket() *Packet {
	return &Packet{data: make([]byte, 0, PreambleSize)}
}

// AppendSpace grows the buffer by n bytes and returns the writable tail
// region for the caller to fill from the radio FIFO.
func (p *Packet) AppendSpace(n int) []byte {
	old := len(p.data)
	p.data = append(p.data, make([]byte, n)...)
	return p.data[old:]
}

func (p *Packet) Len() int { return len(p.data) }

func (p *Packet) SetRSSI(rssi int8) { p.rssi = rssi }
func (p *Packet) RSSI() int8        { return p.rssi }

// LinkMode classifies the packet from its first raw byte. The result is
// cached on first observation and never recomputed: the buffer is filled
// front to back, and after conversion has mutated it reclassification
// would be wrong.
func (p *Packet) LinkMode() LinkMode {
	if p.mode == ModeUnknown && len(p.data) > 0 {
		if p.data[0] == modeCPreamble {
			p.mode = ModeC1
		} else {
			p.mode = ModeT1
		}
	}
	return p.mode
}

// LField is a best-effort read of the logical L byte while the packet is
// still streaming in. For C1 it sits behind the two mode-C prefix bytes;
// for T1 a short prefix is 3-of-6 decoded to reach it. Returns 0 when not
// yet known.
func (p *Packet) LField() byte {
	switch p.LinkMode() {
	case ModeC1:
		if len(p.data) < 3 {
			return 0
		}
		return p.data[2]

	case ModeT1:
		n := len(p.data)
		if n > 18 {
			n = 18
		}
		if decoded, _, ok := threeofsix.Decode(p.data[:n]); ok && len(decoded) > 0 {
			return decoded[0]
		}
	}
	return 0
}

// ExpectedSize computes the full on-wire byte count of the frame from the
// preamble, so the receiver knows how much to read. Returns 0 until
// enough bytes are present to tell. The result is cached.
func (p *Packet) ExpectedSize() int {
	if len(p.data) < PreambleSize {
		return 0
	}
	if p.expected != 0 {
		return p.expected
	}

	l := p.LField()
	if l == 0 {
		return 0
	}

	if p.LinkMode() != ModeC1 {
		p.expected = threeofsix.EncodedSize(TotalWithCRCFormatA(l))
	} else if p.data[1] == blockAPreamble {
		p.expected = modeCPrefixLen + TotalWithCRCFormatA(l)
	} else if p.data[1] == blockBPreamble {
		p.expected = modeCPrefixLen + TotalWithCRCFormatB(l)
	}
	return p.expected
}

func (p *Packet) drop(reason DropReason) *Frame {
	p.dropReason = reason
	return nil
}

// ConvertToFrame runs the decode / sanity / CRC-trim pipeline exactly
// once. It returns the clean frame on success and nil otherwise, leaving
// the drop reason and the want/got lengths behind for post-mortem. The
// working buffer is replaced at each stage rather than patched in place,
// so a failed stage never leaves a half-rewritten buffer.
func (p *Packet) ConvertToFrame() *Frame {
	if p.converted {
		return nil
	}
	p.converted = true

	p.truncated = false
	p.wantLen = 0
	p.gotLen = 0
	p.rawGotLen = len(p.data)
	p.dropReason = DropNone
	p.rawHex = hexPrefix(p.data, rawHexMax)

	switch p.LinkMode() {
	case ModeT1:
		if len(p.data) < minT1Raw {
			return p.drop(DropTooShort)
		}
		p.format = FormatA

		decoded, stats, ok := threeofsix.Decode(p.data)
		p.symTotal = stats.SymbolsTotal
		p.symInvalid = stats.SymbolsInvalid
		if !ok || len(decoded) < 2 {
			return p.drop(DropDecodeFailed)
		}
		p.data = decoded

	case ModeC1:
		if len(p.data) < minC1Raw {
			return p.drop(DropTooShort)
		}
		switch p.data[1] {
		case blockAPreamble:
			p.format = FormatA
		case blockBPreamble:
			p.format = FormatB
		default:
			return p.drop(DropUnknownPreamble)
		}
		p.data = p.data[modeCPrefixLen:]

	default:
		return p.drop(DropLinkModeUnknown)
	}

	l := p.data[0]
	want := int(l) + 1
	need := TotalWithCRCFormatA(l)
	if p.format == FormatB {
		need = TotalWithCRCFormatB(l)
	}
	p.wantLen = need
	p.gotLen = len(p.data)

	if want < minWant || want > maxWant {
		return p.drop(DropLFieldInvalid)
	}
	if len(p.data) < need {
		p.truncated = true
		return p.drop(DropTruncated)
	}
	// The radio may over-read past the frame; drop the tail.
	if len(p.data) > need {
		p.data = p.data[:need]
	}

	var trimmed []byte
	var ok bool
	if p.format == FormatA {
		trimmed, ok = TrimCRCFormatA(p.data)
	} else {
		trimmed, ok = TrimCRCFormatB(p.data)
	}
	if !ok {
		return p.drop(DropCRCFailed)
	}
	p.data = trimmed

	return &Frame{
		data:   trimmed,
		mode:   p.mode,
		format: p.format,
		rssi:   p.rssi,
	}
}

// Diagnostics accessors, valid after ConvertToFrame.

func (p *Packet) Truncated() bool        { return p.truncated }
func (p *Packet) WantLen() int           { return p.wantLen }
func (p *Packet) GotLen() int            { return p.gotLen }
func (p *Packet) RawGotLen() int         { return p.rawGotLen }
func (p *Packet) DropReason() DropReason { return p.dropReason }
func (p *Packet) RawHex() string         { return p.rawHex }
func (p *Packet) SymbolsTotal() int      { return p.symTotal }
func (p *Packet) SymbolsInvalid() int    { return p.symInvalid }
func (p *Packet) Format() FrameFormat    { return p.format }

func hexPrefix(data []byte, max int) string {
	if len(data) > max {
		data = data[:max]
	}
	return hex.EncodeToString(data)
}
