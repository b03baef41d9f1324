// Package diag aggregates link-layer receive statistics over a
// publishing window and derives a field-triage hint from them. All
// arithmetic is integer; the window is reset after every published
// summary.
package diag

import (
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

// Bucket is a stable drop-reason counter slot.
type Bucket uint8

const (
	BucketTooShort Bucket = iota
	BucketDecodeFailed
	BucketCRCFailed
	BucketUnknownPreamble
	BucketLFieldInvalid
	BucketUnknownLinkMode
	BucketOther

	numBuckets
)

// BucketFor maps a drop reason onto its counter slot. Unknown reasons
// land in BucketOther; the legacy "dll_crc_strip_failed" string emitted
// by older firmware still counts as a CRC failure.
func BucketFor(reason wmbus.DropReason) Bucket {
	switch reason {
	case wmbus.DropTooShort:
		return BucketTooShort
	case wmbus.DropDecodeFailed:
		return BucketDecodeFailed
	case wmbus.DropCRCFailed, "dll_crc_strip_failed":
		return BucketCRCFailed
	case wmbus.DropUnknownPreamble:
		return BucketUnknownPreamble
	case wmbus.DropLFieldInvalid:
		return BucketLFieldInvalid
	case wmbus.DropLinkModeUnknown:
		return BucketUnknownLinkMode
	}
	return BucketOther
}

// Window holds one summary interval's worth of counters. It is owned and
// mutated by the dispatcher only.
type Window struct {
	Total     uint32
	OK        uint32
	Truncated uint32
	Dropped   uint32

	DroppedByBucket [numBuckets]uint32

	RSSIOkSum   int32
	RSSIOkN     uint32
	RSSIDropSum int32
	RSSIDropN   uint32

	ModeTotal     [wmbus.NumLinkModes]uint32
	ModeOK        [wmbus.NumLinkModes]uint32
	ModeDropped   [wmbus.NumLinkModes]uint32
	ModeCRCFailed [wmbus.NumLinkModes]uint32

	ModeRSSIOkSum   [wmbus.NumLinkModes]int32
	ModeRSSIOkN     [wmbus.NumLinkModes]uint32
	ModeRSSIDropSum [wmbus.NumLinkModes]int32
	ModeRSSIDropN   [wmbus.NumLinkModes]uint32

	T1SymTotal   uint32
	T1SymInvalid uint32
}

// RecordAttempt counts a dequeued packet, whatever becomes of it.
func (w *Window) RecordAttempt(mode wmbus.LinkMode) {
	w.Total++
	w.ModeTotal[mode]++
}

func (w *Window) RecordOK(mode wmbus.LinkMode, rssi int8) {
	w.OK++
	w.RSSIOkSum += int32(rssi)
	w.RSSIOkN++
	w.ModeOK[mode]++
	w.ModeRSSIOkSum[mode] += int32(rssi)
	w.ModeRSSIOkN[mode]++
}

// RecordTruncated counts a truncated packet. Truncations are tracked
// orthogonally to drops: they appear in neither Dropped nor the reason
// buckets, so the bucket sum stays equal to Dropped.
func (w *Window) RecordTruncated(mode wmbus.LinkMode) {
	w.Truncated++
}

func (w *Window) RecordDrop(mode wmbus.LinkMode, reason wmbus.DropReason, rssi int8) {
	w.Dropped++
	w.RSSIDropSum += int32(rssi)
	w.RSSIDropN++
	w.ModeDropped[mode]++
	w.ModeRSSIDropSum[mode] += int32(rssi)
	w.ModeRSSIDropN[mode]++

	bucket := BucketFor(reason)
	w.DroppedByBucket[bucket]++
	if bucket == BucketCRCFailed {
		w.ModeCRCFailed[mode]++
	}
}

func (w *Window) RecordT1Symbols(total, invalid int) {
	w.T1SymTotal += uint32(total)
	w.T1SymInvalid += uint32(invalid)
}

// Reset zeroes every counter; called after each published summary.
func (w *Window) Reset() {
	*w = Window{}
}

// ReasonsSum is the total of all drop buckets; it must equal Dropped.
func (w *Window) ReasonsSum() uint32 {
	var sum uint32
	for _, n := range w.DroppedByBucket {
		sum += n
	}
	return sum
}

// Pct is an integer percentage, 0 when the denominator is 0.
func Pct(x, n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return x * 100 / n
}

// Avg is an integer-truncated mean, 0 when the count is 0.
func Avg(sum int32, n uint32) int32 {
	if n == 0 {
		return 0
	}
	return sum / int32(n)
}
