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
	"encoding/binary"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/crc"
)

// Block layout, format A: block 0 carries 10 data bytes, blocks 1..n-2
// carry 16, the final block carries the remainder; every block is followed
// by a 2-byte CRC. Format B appends a single CRC after up to 125 data
// bytes, with an intermediate CRC inside the first 128 bytes once the
// L-field reaches 128.
const (
	blockZeroData = 10
	blockData     = 16

	// Format B: bytes 0..125 are data, 126..127 the intermediate CRC.
	formatBSplit = 126
)

var dllCRC = crc.NewEN13757()

// NumBlocksFormatA returns the block count of a format A frame with the
// given L-field.
func NumBlocksFormatA(l byte) int {
	if l < 26 {
		return 2
	}
	return (int(l)-26)/16 + 3
}

// TotalWithCRCFormatA returns the full format A frame size including CRC
// bytes. The L-field counts neither itself nor the CRCs, so the data
// region spans L+1 bytes.
func TotalWithCRCFormatA(l byte) int {
	return int(l) + 1 + 2*NumBlocksFormatA(l)
}

// TotalWithCRCFormatB returns the full format B frame size. The L-field
// already counts the CRC bytes.
func TotalWithCRCFormatB(l byte) int {
	return int(l) + 1
}

func blockOK(block []byte) bool {
	n := len(block) - 2
	return dllCRC.Checksum(block[:n]) == binary.BigEndian.Uint16(block[n:])
}

// TrimCRCFormatA verifies every block CRC of a format A frame and returns
// the compacted, CRC-free data region (L+1 bytes). The input must be
// exactly TotalWithCRCFormatA(buf[0]) long. The input is never mutated;
// on any mismatch the result is nil, false.
func TrimCRCFormatA(buf []byte) ([]byte, bool) {
	if len(buf) == 0 {
		return nil, false
	}
	l := buf[0]
	if len(buf) != TotalWithCRCFormatA(l) {
		return nil, false
	}

	if !blockOK(buf[:blockZeroData+2]) {
		return nil, false
	}
	out := make([]byte, 0, int(l)+1)
	out = append(out, buf[:blockZeroData]...)

	rem := int(l) + 1 - blockZeroData
	idx := blockZeroData + 2
	for rem > 0 {
		n := blockData
		if rem < n {
			n = rem
		}
		if !blockOK(buf[idx : idx+n+2]) {
			return nil, false
		}
		out = append(out, buf[idx:idx+n]...)
		idx += n + 2
		rem -= n
	}
	return out, true
}

// TrimCRCFormatB verifies the trailing (and, for L >= 128, the
// intermediate) CRC of a format B frame and returns the CRC-free data
// bytes. The input must be exactly L+1 bytes long and is never mutated.
func TrimCRCFormatB(buf []byte) ([]byte, bool) {
	if len(buf) < 3 {
		return nil, false
	}
	l := buf[0]
	if len(buf) != TotalWithCRCFormatB(l) {
		return nil, false
	}

	if l < 128 {
		n := len(buf) - 2
		if !blockOK(buf) {
			return nil, false
		}
		out := make([]byte, n)
		copy(out, buf[:n])
		return out, true
	}

	// The split frame needs room for the trailing CRC as well.
	if len(buf) < formatBSplit+4 {
		return nil, false
	}
	if !blockOK(buf[:formatBSplit+2]) {
		return nil, false
	}
	if !blockOK(buf[formatBSplit+2:]) {
		return nil, false
	}
	out := make([]byte, 0, len(buf)-4)
	out = append(out, buf[:formatBSplit]...)
	out = append(out, buf[formatBSplit+2:len(buf)-2]...)
	return out, true
}
