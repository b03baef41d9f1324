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

// Package radio owns the receive side of the bridge: the transceiver
// capability interface and the worker that turns FIFO bytes into queued
// packets.
package radio

// Sync words the transceiver alternates between on RestartRx. The chip
// can only match one at a time, so the receiver ping-pongs.
const (
	SyncWordT1 uint16 = 0x543D
	SyncWordC1 uint16 = 0x54CD
)

// Transceiver is the capability set the receiver needs from a wM-Bus
// radio chip driver. Implementations for real hardware (SPI/GPIO) live
// outside this repository; this package ships a replay implementation
// for host use and tests.
type Transceiver interface {
	// RestartRx resets the chip's RX state machine and alternates the
	// configured sync word between T1 and C1.
	RestartRx()

	// ReadInTask blocks until exactly len(buf) FIFO bytes have been read,
	// returning false on timeout or hardware error. Called only from the
	// receiver goroutine.
	ReadInTask(buf []byte) bool

	// RSSI reports the last packet's received signal strength in dBm.
	RSSI() int8

	// AttachDataInterrupt registers the function the driver calls when
	// the FIFO crosses its threshold (sync seen, data available). The
	// callback must be non-blocking: it runs in the driver's interrupt
	// context.
	AttachDataInterrupt(fn func())
}
