package diag

import (
	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

// Publisher is the transport capability diagnostics are written to.
// Implementations must not block the dispatcher; publish failures are
// the publisher's problem, not the caller's.
type Publisher interface {
	Publish(topic string, payload []byte)
	IsConnected() bool
}

// ModeSummary is the per-link-mode section of a summary payload.
type ModeSummary struct {
	Total       uint32 `json:"total"`
	OK          uint32 `json:"ok"`
	Dropped     uint32 `json:"dropped"`
	PerPct      uint32 `json:"per_pct"`
	CRCFailed   uint32 `json:"crc_failed"`
	CRCPct      uint32 `json:"crc_pct"`
	AvgOkRSSI   int32  `json:"avg_ok_rssi"`
	AvgDropRSSI int32  `json:"avg_drop_rssi"`
}

// T1Summary extends ModeSummary with 3-of-6 symbol quality.
type T1Summary struct {
	ModeSummary
	SymTotal      uint32 `json:"sym_total"`
	SymInvalid    uint32 `json:"sym_invalid"`
	SymInvalidPct uint32 `json:"sym_invalid_pct"`
}

// ReasonCounts is the dropped_by_reason section; keys are the stable
// DropReason strings.
type ReasonCounts struct {
	TooShort        uint32 `json:"too_short"`
	DecodeFailed    uint32 `json:"decode_failed"`
	CRCFailed       uint32 `json:"dll_crc_failed"`
	UnknownPreamble uint32 `json:"unknown_preamble"`
	LFieldInvalid   uint32 `json:"l_field_invalid"`
	UnknownLinkMode uint32 `json:"unknown_link_mode"`
	Other           uint32 `json:"other"`
}

// Summary is the periodic diagnostics payload.
type Summary struct {
	Event       string       `json:"event"`
	Total       uint32       `json:"total"`
	OK          uint32       `json:"ok"`
	Truncated   uint32       `json:"truncated"`
	Dropped     uint32       `json:"dropped"`
	CRCFailed   uint32       `json:"crc_failed"`
	CRCFailPct  uint32       `json:"crc_fail_pct"`
	DropPct     uint32       `json:"drop_pct"`
	TruncPct    uint32       `json:"trunc_pct"`
	AvgOkRSSI   int32        `json:"avg_ok_rssi"`
	AvgDropRSSI int32        `json:"avg_drop_rssi"`
	T1          T1Summary    `json:"t1"`
	C1          ModeSummary  `json:"c1"`
	ByReason    ReasonCounts `json:"dropped_by_reason"`

	// Internal consistency check: the bucket sum must equal Dropped.
	ReasonsSum         uint32 `json:"reasons_sum"`
	ReasonsSumMismatch uint8  `json:"reasons_sum_mismatch"`

	HintCode string `json:"hint_code"`
	HintEN   string `json:"hint_en"`
	HintPL   string `json:"hint_pl"`
}

func (w *Window) modeSummary(mode wmbus.LinkMode) ModeSummary {
	return ModeSummary{
		Total:       w.ModeTotal[mode],
		OK:          w.ModeOK[mode],
		Dropped:     w.ModeDropped[mode],
		PerPct:      Pct(w.ModeDropped[mode], w.ModeTotal[mode]),
		CRCFailed:   w.ModeCRCFailed[mode],
		CRCPct:      Pct(w.ModeCRCFailed[mode], w.ModeTotal[mode]),
		AvgOkRSSI:   Avg(w.ModeRSSIOkSum[mode], w.ModeRSSIOkN[mode]),
		AvgDropRSSI: Avg(w.ModeRSSIDropSum[mode], w.ModeRSSIDropN[mode]),
	}
}

// Summary renders the current window. The window is not reset; the
// dispatcher does that once the payload is out.
func (w *Window) Summary() Summary {
	hint := w.Hint()
	reasonsSum := w.ReasonsSum()

	s := Summary{
		Event:       "summary",
		Total:       w.Total,
		OK:          w.OK,
		Truncated:   w.Truncated,
		Dropped:     w.Dropped,
		CRCFailed:   w.DroppedByBucket[BucketCRCFailed],
		CRCFailPct:  Pct(w.DroppedByBucket[BucketCRCFailed], w.Total),
		DropPct:     Pct(w.Dropped, w.Total),
		TruncPct:    Pct(w.Truncated, w.Total),
		AvgOkRSSI:   Avg(w.RSSIOkSum, w.RSSIOkN),
		AvgDropRSSI: Avg(w.RSSIDropSum, w.RSSIDropN),
		T1: T1Summary{
			ModeSummary:   w.modeSummary(wmbus.ModeT1),
			SymTotal:      w.T1SymTotal,
			SymInvalid:    w.T1SymInvalid,
			SymInvalidPct: Pct(w.T1SymInvalid, w.T1SymTotal),
		},
		C1: w.modeSummary(wmbus.ModeC1),
		ByReason: ReasonCounts{
			TooShort:        w.DroppedByBucket[BucketTooShort],
			DecodeFailed:    w.DroppedByBucket[BucketDecodeFailed],
			CRCFailed:       w.DroppedByBucket[BucketCRCFailed],
			UnknownPreamble: w.DroppedByBucket[BucketUnknownPreamble],
			LFieldInvalid:   w.DroppedByBucket[BucketLFieldInvalid],
			UnknownLinkMode: w.DroppedByBucket[BucketUnknownLinkMode],
			Other:           w.DroppedByBucket[BucketOther],
		},
		ReasonsSum: reasonsSum,
		HintCode:   hint.Code,
		HintEN:     hint.EN,
		HintPL:     hint.PL,
	}
	if reasonsSum != w.Dropped {
		s.ReasonsSumMismatch = 1
	}
	return s
}

// PacketEvent is the per-packet payload published for truncated and
// dropped packets.
type PacketEvent struct {
	Event  string `json:"event"`
	Reason string `json:"reason,omitempty"`
	Mode   string `json:"mode"`
	RSSI   int    `json:"rssi"`
	Want   int    `json:"want"`
	Got    int    `json:"got"`
	RawGot int    `json:"raw_got"`
	Raw    string `json:"raw,omitempty"`
}

// NewPacketEvent builds the event payload for a packet that failed
// conversion. The raw hex prefix is attached only when includeRaw is set.
func NewPacketEvent(event string, p *wmbus.Packet, includeRaw bool) PacketEvent {
	e := PacketEvent{
		Event:  event,
		Mode:   p.LinkMode().String(),
		RSSI:   int(p.RSSI()),
		Want:   p.WantLen(),
		Got:    p.GotLen(),
		RawGot: p.RawGotLen(),
	}
	if event == "dropped" {
		e.Reason = string(p.DropReason())
	}
	if includeRaw {
		e.Raw = p.RawHex()
	}
	return e
}
