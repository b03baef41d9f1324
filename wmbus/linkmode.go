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

// LinkMode is the wM-Bus uplink mode a packet was received in, determined
// from the first raw byte: mode C transmissions lead with 0x54.
type LinkMode uint8

const (
	ModeUnknown LinkMode = iota
	ModeT1
	ModeC1
)

// NumLinkModes sizes per-mode counter arrays indexed by LinkMode.
const NumLinkModes = 3

func (m LinkMode) String() string {
	switch m {
	case ModeT1:
		return "T1"
	case ModeC1:
		return "C1"
	default:
		return "??"
	}
}

// FrameFormat selects between the two EN 13757-4 DLL framing variants.
// In format A the L-field excludes CRC bytes, in format B it includes
// them.
type FrameFormat uint8

const (
	FormatUnknown FrameFormat = iota
	FormatA
	FormatB
)

func (f FrameFormat) String() string {
	switch f {
	case FormatA:
		return "A"
	case FormatB:
		return "B"
	default:
		return "?"
	}
}
