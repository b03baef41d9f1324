package bridge

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/crc"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/diag"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/threeofsix"
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

type published struct {
	topic   string
	payload map[string]interface{}
}

// memPublisher captures published payloads in memory.
type memPublisher struct {
	connected bool
	events    []published
}

func (m *memPublisher) Publish(topic string, payload []byte) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		panic(err)
	}
	m.events = append(m.events, published{topic, decoded})
}

func (m *memPublisher) IsConnected() bool { return m.connected }

func (m *memPublisher) byEvent(event string) []published {
	var out []published
	for _, p := range m.events {
		if p.payload["event"] == event {
			out = append(out, p)
		}
	}
	return out
}

// fakeClock advances only when told to, driving the summary cadence.
type fakeClock struct{ now time.Time }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *fakeClock) get() time.Time          { return c.now }

func newTestBridge(pub *memPublisher, opts Options) (*Bridge, chan *wmbus.Packet, *fakeClock) {
	packets := make(chan *wmbus.Packet, 8)
	b := New(packets, pub, opts, testLogger())
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b.SetClock(clock.get)
	return b, packets, clock
}

var testCRC = crc.NewEN13757()

func appendBlock(wire, data []byte) []byte {
	wire = append(wire, data...)
	var sum [2]byte
	binary.BigEndian.PutUint16(sum[:], testCRC.Checksum(data))
	return append(wire, sum[:]...)
}

// c1FrameA builds a complete raw C1 format A packet with valid CRCs.
func c1FrameA(l byte) []byte {
	data := make([]byte, int(l)+1)
	data[0] = l
	for i := 1; i < len(data); i++ {
		data[i] = byte(i)
	}
	wire := appendBlock([]byte{0x54, 0xCD}, data[:10])
	rest := data[10:]
	for len(rest) > 0 {
		n := 16
		if len(rest) < n {
			n = len(rest)
		}
		wire = appendBlock(wire, rest[:n])
		rest = rest[n:]
	}
	return wire
}

func rawPacket(raw []byte, rssi int8) *wmbus.Packet {
	p := wmbus.NewPacket()
	copy(p.AppendSpace(len(raw)), raw)
	p.SetRSSI(rssi)
	return p
}

// t1Packet encodes a valid L=20 format A frame padded to a 60-byte coded
// burst (80 symbols). With corrupt set, the last four symbols — over-read
// tail, outside the frame proper — are forced to 0b111111, an invalid
// code word: the packet still converts cleanly but carries a 5% symbol
// error rate.
func t1Packet(corrupt bool, rssi int8) *wmbus.Packet {
	data := make([]byte, 21)
	data[0] = 20
	wire := appendBlock(nil, data[:10])
	wire = appendBlock(wire, data[10:])
	for len(wire) < 40 {
		wire = append(wire, 0xA5)
	}
	coded := threeofsix.Encode(wire)
	if corrupt {
		coded[57], coded[58], coded[59] = 0xFF, 0xFF, 0xFF
	}
	return rawPacket(coded, rssi)
}

func TestDispatchOKFrame(t *testing.T) {
	pub := &memPublisher{connected: true}
	b, packets, _ := newTestBridge(pub, DefaultOptions())

	var got []*wmbus.Frame
	b.AddFrameHandler(func(f *wmbus.Frame) {
		got = append(got, f)
		f.MarkHandled()
	})

	packets <- rawPacket(c1FrameA(20), -64)
	b.Loop()

	require.Len(t, got, 1)
	assert.Equal(t, 21, len(got[0].Data()))
	assert.Equal(t, 1, got[0].HandledCount())
	assert.EqualValues(t, 1, b.Window().OK)
	assert.Empty(t, pub.events)
}

func TestLoopWithoutPacketsIsIdle(t *testing.T) {
	b, _, _ := newTestBridge(&memPublisher{connected: true}, DefaultOptions())
	b.Loop() // must not block or panic
	assert.EqualValues(t, 0, b.Window().Total)
}

func TestHandlerPanicContained(t *testing.T) {
	b, packets, _ := newTestBridge(&memPublisher{connected: true}, DefaultOptions())

	ran := false
	b.AddFrameHandler(func(f *wmbus.Frame) { panic("bad handler") })
	b.AddFrameHandler(func(f *wmbus.Frame) { ran = true })

	packets <- rawPacket(c1FrameA(20), -64)
	require.NotPanics(t, b.Loop)
	assert.True(t, ran, "second handler must still run")
}

func TestDroppedEventPublished(t *testing.T) {
	pub := &memPublisher{connected: true}
	b, packets, _ := newTestBridge(pub, DefaultOptions())

	raw := c1FrameA(20)
	raw[len(raw)-1] ^= 0xFF // break the last CRC
	packets <- rawPacket(raw, -81)
	b.Loop()

	events := pub.byEvent("dropped")
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, DefaultDiagTopic, e.topic)
	assert.Equal(t, "dll_crc_failed", e.payload["reason"])
	assert.Equal(t, "C1", e.payload["mode"])
	assert.EqualValues(t, -81, e.payload["rssi"])
	assert.Contains(t, e.payload, "raw")
	assert.EqualValues(t, 1, b.Window().ModeCRCFailed[wmbus.ModeC1])
}

func TestTruncatedEventPublished(t *testing.T) {
	pub := &memPublisher{connected: false} // events go out even when disconnected
	opts := DefaultOptions()
	opts.Verbose = false // per-packet events publish regardless of verbosity
	opts.PublishRaw = false
	b, packets, _ := newTestBridge(pub, opts)

	raw := c1FrameA(20)
	packets <- rawPacket(raw[:len(raw)-1], -95)
	b.Loop()

	events := pub.byEvent("truncated")
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].payload, "raw")
	assert.NotContains(t, events[0].payload, "reason")
	assert.EqualValues(t, 1, b.Window().Truncated)
	assert.EqualValues(t, 0, b.Window().Dropped)
}

func TestNoPublishWithoutTopic(t *testing.T) {
	pub := &memPublisher{connected: true}
	opts := DefaultOptions()
	opts.DiagTopic = ""
	b, packets, clock := newTestBridge(pub, opts)

	raw := c1FrameA(20)
	raw[len(raw)-1] ^= 0xFF
	packets <- rawPacket(raw, -81)
	b.Loop()
	clock.advance(time.Hour)
	b.Loop()

	assert.Empty(t, pub.events)
}

func TestSummaryCadenceAndReset(t *testing.T) {
	pub := &memPublisher{connected: true}
	opts := DefaultOptions()
	opts.SummaryInterval = 10 * time.Second
	b, packets, clock := newTestBridge(pub, opts)

	b.Loop() // first call only arms the cadence
	packets <- rawPacket(c1FrameA(20), -64)
	b.Loop()

	clock.advance(9 * time.Second)
	b.Loop()
	assert.Empty(t, pub.byEvent("summary"), "summary before the interval")

	clock.advance(2 * time.Second)
	b.Loop()
	summaries := pub.byEvent("summary")
	require.Len(t, summaries, 1)
	s := summaries[0].payload
	assert.EqualValues(t, 1, s["total"])
	assert.EqualValues(t, 1, s["ok"])
	assert.EqualValues(t, 0, s["reasons_sum_mismatch"])
	assert.Equal(t, "GOOD", s["hint_code"])

	// The window is zeroed after a published summary.
	assert.Equal(t, diag.Window{}, *b.Window())

	// The next interval reports a fresh, empty window.
	clock.advance(11 * time.Second)
	b.Loop()
	summaries = pub.byEvent("summary")
	require.Len(t, summaries, 2)
	assert.EqualValues(t, 0, summaries[1].payload["total"])
	assert.Equal(t, "NO_DATA", summaries[1].payload["hint_code"])
}

func TestSummaryIntervalFloor(t *testing.T) {
	opts := DefaultOptions()
	opts.SummaryInterval = time.Second
	b := New(make(chan *wmbus.Packet), nil, opts, testLogger())
	assert.Equal(t, 5*time.Second, b.opts.SummaryInterval)
}

func TestSummaryNotPublishedWhenDisconnected(t *testing.T) {
	pub := &memPublisher{connected: false}
	opts := DefaultOptions()
	opts.SummaryInterval = 5 * time.Second
	b, packets, clock := newTestBridge(pub, opts)

	b.Loop()
	packets <- rawPacket(c1FrameA(20), -64)
	b.Loop()
	clock.advance(6 * time.Second)
	b.Loop()

	assert.Empty(t, pub.byEvent("summary"))
	// The window still resets on cadence so the next summary is fresh.
	assert.EqualValues(t, 0, b.Window().Total)
}

// End-to-end: 5% corrupted symbols across 240 T1 bursts triages as
// T1_SYMBOL_ERRORS.
func TestT1SymbolErrorTriage(t *testing.T) {
	pub := &memPublisher{connected: true}
	opts := DefaultOptions()
	opts.SummaryInterval = 5 * time.Second
	b, packets, clock := newTestBridge(pub, opts)

	b.Loop()
	for i := 0; i < 240; i++ {
		packets <- t1Packet(true, -75)
		b.Loop()
	}

	clock.advance(6 * time.Second)
	b.Loop()

	summaries := pub.byEvent("summary")
	require.Len(t, summaries, 1)
	assert.Equal(t, "T1_SYMBOL_ERRORS", summaries[0].payload["hint_code"])
}

// End-to-end: strong C1 frames both passing and failing CRC triage as
// receiver overload / multipath.
func TestC1OverloadTriage(t *testing.T) {
	pub := &memPublisher{connected: true}
	opts := DefaultOptions()
	opts.SummaryInterval = 5 * time.Second
	b, packets, clock := newTestBridge(pub, opts)

	b.Loop()
	for i := 0; i < 25; i++ {
		packets <- rawPacket(c1FrameA(20), -60)
		b.Loop()
	}
	for i := 0; i < 25; i++ {
		raw := c1FrameA(20)
		raw[len(raw)-1] ^= 0xFF
		packets <- rawPacket(raw, -70)
		b.Loop()
	}

	clock.advance(6 * time.Second)
	b.Loop()

	summaries := pub.byEvent("summary")
	require.Len(t, summaries, 1)
	s := summaries[0].payload
	assert.Equal(t, "C1_OVERLOAD_OR_MULTIPATH", s["hint_code"])
	c1 := s["c1"].(map[string]interface{})
	assert.EqualValues(t, 50, c1["total"])
	assert.EqualValues(t, 25, c1["crc_failed"])
	assert.EqualValues(t, -60, c1["avg_ok_rssi"])
	assert.EqualValues(t, -70, c1["avg_drop_rssi"])
}

func TestRunDrainsOnCancel(t *testing.T) {
	pub := &memPublisher{connected: true}
	b, packets, _ := newTestBridge(pub, DefaultOptions())

	packets <- rawPacket(c1FrameA(20), -64)
	packets <- rawPacket(c1FrameA(20), -64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Run(ctx, time.Hour)
	select {
	case <-packets:
		t.Fatal("queue not drained")
	default:
	}
}
