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

// Package bridge runs the consumer side of the pipeline: it drains the
// packet queue, converts packets to frames, keeps the diagnostics window
// and fans accepted frames out to registered handlers.
package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/diag"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

// Options are the diagnostics knobs recognized from configuration.
type Options struct {
	// DiagTopic receives summaries and per-packet events; empty disables
	// publishing (diagnostics then degrade to log output).
	DiagTopic string

	// Verbose gates per-packet logs. Events are still published when
	// false.
	Verbose bool

	// PublishRaw attaches the raw hex prefix to per-packet events.
	PublishRaw bool

	// SummaryInterval is the summary cadence, floored to 5 s.
	SummaryInterval time.Duration
}

const (
	DefaultDiagTopic       = "wmbus/diag"
	DefaultSummaryInterval = 60 * time.Second
	minSummaryInterval     = 5 * time.Second
)

// DefaultOptions mirror the firmware defaults.
func DefaultOptions() Options {
	return Options{
		DiagTopic:       DefaultDiagTopic,
		Verbose:         true,
		PublishRaw:      true,
		SummaryInterval: DefaultSummaryInterval,
	}
}

// FrameHandler consumes an accepted frame. Handlers that claim the frame
// call Frame.MarkHandled.
type FrameHandler func(*wmbus.Frame)

// Bridge is the dispatcher. Loop is single-threaded and non-blocking;
// the handler list is fixed once Loop starts being called.
type Bridge struct {
	packets <-chan *wmbus.Packet
	pub     diag.Publisher
	opts    Options

	win      diag.Window
	metrics  *diag.Metrics
	handlers []FrameHandler

	now         func() time.Time
	lastSummary time.Time

	log *logrus.Entry
}

func New(packets <-chan *wmbus.Packet, pub diag.Publisher, opts Options, log *logrus.Logger) *Bridge {
	if opts.SummaryInterval < minSummaryInterval {
		opts.SummaryInterval = minSummaryInterval
	}
	return &Bridge{
		packets: packets,
		pub:     pub,
		opts:    opts,
		now:     time.Now,
		log:     log.WithField("component", "bridge"),
	}
}

// SetMetrics attaches cumulative Prometheus mirrors of the window
// counters.
func (b *Bridge) SetMetrics(m *diag.Metrics) { b.metrics = m }

// AddFrameHandler registers a consumer for accepted frames. Call during
// setup only; the list is iterated without locking from Loop.
func (b *Bridge) AddFrameHandler(fn FrameHandler) {
	b.handlers = append(b.handlers, fn)
}

// Loop is one dispatcher invocation: publish a due summary, then drain at
// most one packet. It never blocks.
func (b *Bridge) Loop() {
	b.maybePublishSummary()

	select {
	case p := <-b.packets:
		b.process(p)
	default:
	}
}

// Run drives Loop until the context is canceled, then destroys anything
// left in the queue.
func (b *Bridge) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case <-ticker.C:
			b.Loop()
		}
	}
}

func (b *Bridge) drain() {
	for {
		select {
		case <-b.packets:
		default:
			return
		}
	}
}

func (b *Bridge) process(p *wmbus.Packet) {
	mode := p.LinkMode()
	b.win.RecordAttempt(mode)
	if b.metrics != nil {
		b.metrics.PacketsTotal.WithLabelValues(mode.String()).Inc()
	}

	frame := p.ConvertToFrame()

	if mode == wmbus.ModeT1 {
		b.win.RecordT1Symbols(p.SymbolsTotal(), p.SymbolsInvalid())
		if b.metrics != nil {
			b.metrics.T1Symbols.Add(float64(p.SymbolsTotal()))
			b.metrics.T1SymbolsInvalid.Add(float64(p.SymbolsInvalid()))
		}
	}

	if frame == nil {
		b.recordFailure(p, mode)
		return
	}

	b.win.RecordOK(mode, frame.RSSI())
	if b.metrics != nil {
		b.metrics.FramesOK.WithLabelValues(mode.String()).Inc()
	}

	if b.opts.Verbose {
		entry := b.log.WithFields(logrus.Fields{
			"bytes":  len(frame.Data()),
			"rssi":   frame.RSSI(),
			"mode":   mode.String(),
			"format": frame.Format().String(),
		})
		if info, ok := frame.AddressInfo(); ok {
			entry = entry.WithField("address", info.String())
		}
		entry.Info("telegram received")
	}

	for _, handler := range b.handlers {
		b.callHandler(handler, frame)
	}

	if n := frame.HandledCount(); n > 0 {
		b.log.WithField("handlers", n).Debug("telegram handled")
	} else {
		b.log.Debug("telegram not handled by any handler")
	}
}

// callHandler contains handler panics so one bad consumer cannot take
// down the dispatcher or starve the other handlers.
func (b *Bridge) callHandler(handler FrameHandler, frame *wmbus.Frame) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithField("panic", r).Error("frame handler panicked")
		}
	}()
	handler(frame)
}

func (b *Bridge) recordFailure(p *wmbus.Packet, mode wmbus.LinkMode) {
	switch {
	case p.Truncated():
		b.win.RecordTruncated(mode)
		if b.metrics != nil {
			b.metrics.PacketsTruncated.WithLabelValues(mode.String()).Inc()
		}
		b.publishEvent("truncated", p)

		if b.opts.Verbose {
			entry := b.log.WithFields(logrus.Fields{
				"mode":    mode.String(),
				"want":    p.WantLen(),
				"got":     p.GotLen(),
				"raw_got": p.RawGotLen(),
				"rssi":    p.RSSI(),
			})
			if b.opts.PublishRaw {
				entry = entry.WithField("raw", p.RawHex())
			}
			entry.Warn("truncated frame")
		}

	case p.DropReason() != wmbus.DropNone:
		b.win.RecordDrop(mode, p.DropReason(), p.RSSI())
		if b.metrics != nil {
			b.metrics.PacketsDropped.WithLabelValues(mode.String(), string(p.DropReason())).Inc()
		}
		b.publishEvent("dropped", p)

		if b.opts.Verbose {
			entry := b.log.WithFields(logrus.Fields{
				"reason":  string(p.DropReason()),
				"mode":    mode.String(),
				"want":    p.WantLen(),
				"got":     p.GotLen(),
				"raw_got": p.RawGotLen(),
				"rssi":    p.RSSI(),
			})
			if b.opts.PublishRaw {
				entry = entry.WithField("raw", p.RawHex())
			}
			entry.Warn("dropped packet")
		}
	}
}

// publishEvent ships a per-packet record. These go out regardless of
// Verbose so the logs can be silenced without losing drop visibility.
func (b *Bridge) publishEvent(event string, p *wmbus.Packet) {
	if b.pub == nil || b.opts.DiagTopic == "" {
		return
	}
	payload, err := json.Marshal(diag.NewPacketEvent(event, p, b.opts.PublishRaw))
	if err != nil {
		return
	}
	b.pub.Publish(b.opts.DiagTopic, payload)
}

func (b *Bridge) maybePublishSummary() {
	if b.opts.DiagTopic == "" {
		return
	}
	now := b.now()
	if b.lastSummary.IsZero() {
		b.lastSummary = now
		return
	}
	if now.Sub(b.lastSummary) < b.opts.SummaryInterval {
		return
	}
	b.lastSummary = now

	summary := b.win.Summary()
	if b.pub != nil && b.pub.IsConnected() {
		if payload, err := json.Marshal(summary); err == nil {
			b.pub.Publish(b.opts.DiagTopic, payload)
		}
	}

	entry := b.log.WithFields(logrus.Fields{
		"total":      summary.Total,
		"ok":         summary.OK,
		"truncated":  summary.Truncated,
		"dropped":    summary.Dropped,
		"crc_failed": summary.CRCFailed,
		"hint":       summary.HintCode + " | " + summary.HintPL,
	})
	if summary.HintCode == "OK" || summary.HintCode == "GOOD" {
		entry.Info("diagnostics summary")
	} else {
		entry.Warn("diagnostics summary")
	}
	if summary.ReasonsSumMismatch != 0 {
		b.log.WithField("reasons_sum", summary.ReasonsSum).
			Error("drop bucket sum does not match dropped counter")
	}

	b.win.Reset()
}

// Window exposes the live window for tests and status endpoints.
func (b *Bridge) Window() *diag.Window { return &b.win }

// SetClock replaces the time source; tests drive the summary cadence
// with it.
func (b *Bridge) SetClock(now func() time.Time) { b.now = now }
