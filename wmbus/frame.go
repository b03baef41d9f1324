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
	"fmt"
	"strings"
	"time"
)

// Frame is a validated DLL payload with its CRC bytes stripped. Frames
// are immutable apart from the handled counter.
type Frame struct {
	data    []byte
	mode    LinkMode
	format  FrameFormat
	rssi    int8
	handled int
}

// NewFrame builds a frame from an already-validated payload. The normal
// producer is Packet.ConvertToFrame; this is for feeding handlers from
// other sources (tests, replayed captures).
func NewFrame(data []byte, mode LinkMode, format FrameFormat, rssi int8) *Frame {
	return &Frame{data: data, mode: mode, format: format, rssi: rssi}
}

func (f *Frame) Data() []byte        { return f.data }
func (f *Frame) LinkMode() LinkMode  { return f.mode }
func (f *Frame) Format() FrameFormat { return f.format }
func (f *Frame) RSSI() int8          { return f.rssi }

// MarkHandled is called by a handler that claimed the frame.
func (f *Frame) MarkHandled()      { f.handled++ }
func (f *Frame) HandledCount() int { return f.handled }

// Hex returns the payload as lowercase hex.
func (f *Frame) Hex() string {
	return hex.EncodeToString(f.data)
}

// RTLWMBus renders the frame as an rtl_wmbus-compatible line:
//
//	<mode>;1;1;<utc time>;<rssi>;;;0x<hex>\n
func (f *Frame) RTLWMBus(now time.Time) string {
	var b strings.Builder
	b.Grow(40 + 2*len(f.data))
	b.WriteString(f.mode.String())
	b.WriteString(";1;1;")
	b.WriteString(now.UTC().Format("2006-01-02 15:04:05"))
	b.WriteString(".00Z;")
	b.WriteString(fmt.Sprintf("%d", f.rssi))
	b.WriteString(";;;0x")
	b.WriteString(f.Hex())
	b.WriteString("\n")
	return b.String()
}

// AddressInfo is the DLL address block of a telegram, decoded
// best-effort for log lines. It stops at the CI byte; application payload
// parsing belongs downstream.
type AddressInfo struct {
	Manufacturer string
	ID           string
	Version      byte
	DeviceType   byte
	CI           byte
}

func (a AddressInfo) String() string {
	return fmt.Sprintf("mfr:%s id:%s ver:%d type:%d ci:%02X",
		a.Manufacturer, a.ID, a.Version, a.DeviceType, a.CI)
}

// AddressInfo decodes the manufacturer code, meter id, version, device
// type and CI from the clean payload. ok is false when the payload is too
// short to hold an address block.
func (f *Frame) AddressInfo() (info AddressInfo, ok bool) {
	d := f.data

	// base is the C-field index: payloads normally lead with the L-field.
	base := -1
	if len(d) >= 10 && int(d[0])+1 == len(d) {
		base = 1
	} else if len(d) >= 9 {
		base = 0
	}
	if base < 0 || len(d) < base+10 {
		return AddressInfo{Manufacturer: "???", ID: "????????", Version: 0xFF, DeviceType: 0xFF, CI: 0xFF}, false
	}

	m := uint16(d[base+1]) | uint16(d[base+2])<<8
	info.Manufacturer = decodeManufacturer(m)
	info.ID = decodeMeterID(d[base+3 : base+7])
	info.Version = d[base+7]
	info.DeviceType = d[base+8]
	info.CI = d[base+9]
	return info, true
}

// decodeManufacturer unpacks the three 5-bit letters of an EN 62056-21
// manufacturer code.
func decodeManufacturer(m uint16) string {
	letters := []byte{
		byte(m>>10&0x1F) + 64,
		byte(m>>5&0x1F) + 64,
		byte(m&0x1F) + 64,
	}
	for _, c := range letters {
		if c < 'A' || c > 'Z' {
			return "???"
		}
	}
	return string(letters)
}

// decodeMeterID renders the little-endian BCD meter id, falling back to
// hex when the bytes are not valid BCD.
func decodeMeterID(id []byte) string {
	bcd := true
	for _, b := range id {
		if b&0x0F > 9 || b>>4 > 9 {
			bcd = false
			break
		}
	}
	if !bcd {
		return fmt.Sprintf("%02X%02X%02X%02X", id[3], id[2], id[1], id[0])
	}
	return fmt.Sprintf("%d%d%d%d%d%d%d%d",
		id[3]>>4, id[3]&0x0F,
		id[2]>>4, id[2]&0x0F,
		id[1]>>4, id[1]&0x0F,
		id[0]>>4, id[0]&0x0F)
}
