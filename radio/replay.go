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

package radio

import (
	"bufio"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Replay serves recorded bursts from a file through the Transceiver
// interface, one burst per RestartRx. Lines are `<rssi>,<hex>` or bare
// hex (RSSI then defaults to -70 dBm); blank lines and #-comments are
// skipped. Reads past the end of a burst fail like a FIFO timeout would,
// which is exactly how short recordings exercise the error paths.
type Replay struct {
	mu        sync.Mutex
	bursts    [][]byte
	rssis     []int8
	idx       int
	pos       int
	armed     bool
	syncT1    bool
	dataReady func()
}

const replayDefaultRSSI = -70

// OpenReplay loads a burst recording.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open replay file")
	}
	defer f.Close()

	r := &Replay{}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		rssi := int8(replayDefaultRSSI)
		if i := strings.IndexByte(text, ','); i >= 0 {
			v, err := strconv.ParseInt(strings.TrimSpace(text[:i]), 10, 8)
			if err != nil {
				return nil, errors.Wrapf(err, "replay line %d: bad rssi", line)
			}
			rssi = int8(v)
			text = strings.TrimSpace(text[i+1:])
		}

		burst, err := hex.DecodeString(text)
		if err != nil {
			return nil, errors.Wrapf(err, "replay line %d: bad hex", line)
		}
		r.bursts = append(r.bursts, burst)
		r.rssis = append(r.rssis, rssi)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read replay file")
	}
	return r, nil
}

func (r *Replay) AttachDataInterrupt(fn func()) {
	r.mu.Lock()
	r.dataReady = fn
	r.mu.Unlock()
}

// RestartRx alternates the armed sync word and, when a burst is pending,
// raises the data interrupt.
func (r *Replay) RestartRx() {
	r.mu.Lock()
	r.syncT1 = !r.syncT1
	fire := r.dataReady
	if r.armed || r.idx >= len(r.bursts) {
		fire = nil
	} else {
		r.armed = true
		r.pos = 0
	}
	r.mu.Unlock()

	if fire != nil {
		fire()
	}
}

// ArmedSyncWord reports which sync word the last RestartRx configured.
func (r *Replay) ArmedSyncWord() uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.syncT1 {
		return SyncWordT1
	}
	return SyncWordC1
}

func (r *Replay) ReadInTask(buf []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.armed || r.idx >= len(r.bursts) {
		return false
	}
	burst := r.bursts[r.idx]
	if r.pos+len(buf) > len(burst) {
		// Burst exhausted mid-read: behave like a FIFO timeout and move
		// on to the next burst.
		r.armed = false
		r.idx++
		return false
	}
	copy(buf, burst[r.pos:])
	r.pos += len(buf)
	if r.pos == len(burst) {
		r.armed = false
		r.idx++
	}
	return true
}

// RSSI reports the strength recorded with the most recently served burst.
func (r *Replay) RSSI() int8 {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.idx
	if !r.armed && i > 0 {
		i--
	}
	if i >= len(r.rssis) {
		return replayDefaultRSSI
	}
	return r.rssis[i]
}

// Exhausted reports whether every burst has been served.
func (r *Replay) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idx >= len(r.bursts)
}
