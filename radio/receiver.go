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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

// Config sets the receiver's hop cadence. The zero value gives the
// defaults used on hardware.
type Config struct {
	// HopPeriod is how long to wait on one sync word before re-arming
	// with the other.
	HopPeriod time.Duration

	// WaitBudget bounds one waitForSync call; when it expires the loop
	// simply starts over.
	WaitBudget time.Duration

	// QueueDepth is the packet queue capacity between the receiver and
	// the dispatcher.
	QueueDepth int
}

const (
	defaultHopPeriod  = 500 * time.Millisecond
	defaultWaitBudget = 60 * time.Second
	defaultQueueDepth = 3
)

func (c *Config) applyDefaults() {
	if c.HopPeriod <= 0 {
		c.HopPeriod = defaultHopPeriod
	}
	if c.WaitBudget <= 0 {
		c.WaitBudget = defaultWaitBudget
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = defaultQueueDepth
	}
}

// Receiver runs the radio-facing worker goroutine: arm the radio, wait
// for the data interrupt, read one frame's worth of bytes into a fresh
// packet and enqueue it for the dispatcher. A packet successfully sent to
// the queue belongs to the consumer; on a full queue the newest packet is
// dropped, because stalling here would lose radio bytes anyway.
type Receiver struct {
	radio Transceiver
	cfg   Config
	queue chan *wmbus.Packet
	irq   chan struct{}
	stop  chan struct{}
	done  chan struct{}

	stopOnce sync.Once
	log      *logrus.Entry
}

func NewReceiver(t Transceiver, cfg Config, log *logrus.Logger) *Receiver {
	cfg.applyDefaults()
	r := &Receiver{
		radio: t,
		cfg:   cfg,
		queue: make(chan *wmbus.Packet, cfg.QueueDepth),
		irq:   make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		log:   log.WithField("component", "receiver"),
	}
	t.AttachDataInterrupt(r.dataReady)
	return r
}

// dataReady is the interrupt path: a non-blocking send on a capacity-1
// channel, the unit-semaphore the hop loop waits on.
func (r *Receiver) dataReady() {
	select {
	case r.irq <- struct{}{}:
	default:
	}
}

// Packets is the queue the dispatcher drains.
func (r *Receiver) Packets() <-chan *wmbus.Packet {
	return r.queue
}

func (r *Receiver) Start() {
	go r.run()
}

// Stop terminates the worker at the next hop boundary and waits for it.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Receiver) run() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		r.receiveFrame()
	}
}

// waitForSync ping-pongs the sync word until the data interrupt fires.
// Returns false on stop or when the wait budget runs out.
func (r *Receiver) waitForSync() bool {
	timer := time.NewTimer(r.cfg.HopPeriod)
	defer timer.Stop()

	for waited := time.Duration(0); waited < r.cfg.WaitBudget; waited += r.cfg.HopPeriod {
		r.radio.RestartRx()
		timer.Reset(r.cfg.HopPeriod)
		select {
		case <-r.irq:
			return true
		case <-timer.C:
		case <-r.stop:
			return false
		}
	}
	r.log.Debug("radio interrupt timeout")
	return false
}

func (r *Receiver) receiveFrame() {
	if !r.waitForSync() {
		return
	}

	pkt := wmbus.NewPacket()

	// Read just enough header to size the rest of the frame.
	if !r.radio.ReadInTask(pkt.AppendSpace(wmbus.PreambleSize)) {
		r.log.Debug("failed to read preamble")
		return
	}

	total := pkt.ExpectedSize()
	if total < wmbus.PreambleSize {
		r.log.Debug("cannot calculate payload size")
		return
	}

	if remaining := total - wmbus.PreambleSize; remaining > 0 {
		if !r.radio.ReadInTask(pkt.AppendSpace(remaining)) {
			r.log.WithFields(logrus.Fields{
				"mode": pkt.LinkMode().String(),
				"want": total,
			}).Debug("failed to read frame body")
			return
		}
	}

	pkt.SetRSSI(r.radio.RSSI())

	select {
	case r.queue <- pkt:
	default:
		r.log.Warn("packet queue full, dropping frame")
	}
}
