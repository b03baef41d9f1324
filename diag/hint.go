package diag

import "github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"

// Hint is a single advisory code for field triage, with English and
// Polish operator texts.
type Hint struct {
	Code string
	EN   string
	PL   string
}

// RSSI thresholds used by the rule chain, in dBm. The two "weak"
// thresholds are intentionally distinct: dashboards key on the exact rule
// outputs, so unifying them would silently reclassify windows.
const (
	weakDropRSSI   = -92
	c1WeakDropRSSI = -95
	strongOkRSSI   = -65
	strongDropRSSI = -80
)

// features are the window-derived quantities the rules decide on.
type features struct {
	total, ok uint32
	dropPct   uint32

	t1Total, t1OK, t1CRC   uint32
	c1Total, c1OK, c1CRC   uint32
	t1CRCPct               uint32
	avgDropRSSI            int32
	t1AvgOkRSSI, t1AvgDrop int32
	c1AvgOkRSSI, c1AvgDrop int32

	t1SymTotal      uint32
	t1SymInvalidPct uint32
}

func (w *Window) features() features {
	t1 := wmbus.ModeT1
	c1 := wmbus.ModeC1
	return features{
		total:   w.Total,
		ok:      w.OK,
		dropPct: Pct(w.Dropped, w.Total),

		t1Total: w.ModeTotal[t1],
		t1OK:    w.ModeOK[t1],
		t1CRC:   w.ModeCRCFailed[t1],
		c1Total: w.ModeTotal[c1],
		c1OK:    w.ModeOK[c1],
		c1CRC:   w.ModeCRCFailed[c1],

		t1CRCPct:    Pct(w.ModeCRCFailed[t1], w.ModeTotal[t1]),
		avgDropRSSI: Avg(w.RSSIDropSum, w.RSSIDropN),
		t1AvgOkRSSI: Avg(w.ModeRSSIOkSum[t1], w.ModeRSSIOkN[t1]),
		t1AvgDrop:   Avg(w.ModeRSSIDropSum[t1], w.ModeRSSIDropN[t1]),
		c1AvgOkRSSI: Avg(w.ModeRSSIOkSum[c1], w.ModeRSSIOkN[c1]),
		c1AvgDrop:   Avg(w.ModeRSSIDropSum[c1], w.ModeRSSIDropN[c1]),

		t1SymTotal:      w.T1SymTotal,
		t1SymInvalidPct: Pct(w.T1SymInvalid, w.T1SymTotal),
	}
}

type hintRule struct {
	hint  Hint
	match func(f features) bool
}

// The chain is first-match and append-only: dashboards key on the codes,
// so new rules go at the end (before the OK fallback), never in between.
var hintRules = []hintRule{
	{
		Hint{"NO_DATA", "no packets received yet", "brak odebranych ramek"},
		func(f features) bool { return f.total == 0 },
	},
	{
		Hint{"C1_WEAK_SIGNAL",
			"C1 frames fail DLL CRC at very low RSSI; improve antenna/placement",
			"C1: CRC DLL nie przechodzi przy bardzo niskim RSSI; popraw antenę/pozycję"},
		func(f features) bool {
			return f.c1Total > 0 && f.c1OK == 0 && f.c1CRC == f.c1Total && f.c1AvgDrop <= c1WeakDropRSSI
		},
	},
	{
		Hint{"C1_INTERFERENCE_OR_RX",
			"C1 frames fail DLL CRC despite decent RSSI; check interference/RX settings",
			"C1: CRC DLL nie przechodzi mimo niezłego RSSI; sprawdź zakłócenia/ustawienia RX"},
		func(f features) bool {
			return f.c1Total > 0 && f.c1OK == 0 && f.c1CRC == f.c1Total
		},
	},
	{
		Hint{"C1_OVERLOAD_OR_MULTIPATH",
			"C1 CRC fails despite strong RSSI; possible receiver overload or multipath. Move antenna 0.5-2m, change polarization, or attenuate.",
			"C1: CRC pada mimo dobrego RSSI; możliwy przester odbiornika lub wielodrogowość. Odsuń antenę 0,5-2m, zmień polaryzację lub stłum sygnał."},
		func(f features) bool {
			return f.c1Total > 0 && f.c1CRC > 0 && f.c1AvgOkRSSI >= strongOkRSSI && f.c1AvgDrop >= strongDropRSSI
		},
	},
	{
		Hint{"T1_OVERLOAD_OR_MULTIPATH",
			"T1 CRC fails despite strong RSSI; possible receiver overload or multipath. Move/rotate antenna or attenuate.",
			"T1: CRC pada mimo dobrego RSSI; możliwy przester lub wielodrogowość. Przestaw/obróć antenę lub stłum sygnał."},
		func(f features) bool {
			return f.t1Total > 0 && f.t1CRC > 0 && f.t1AvgOkRSSI >= strongOkRSSI && f.t1AvgDrop >= strongDropRSSI
		},
	},
	{
		Hint{"WEAK_SIGNAL",
			"many drops at very low RSSI; improve antenna/placement",
			"dużo dropów przy bardzo niskim RSSI; popraw antenę/pozycję"},
		func(f features) bool {
			return f.dropPct >= 60 && f.avgDropRSSI <= weakDropRSSI
		},
	},
	{
		Hint{"T1_SYMBOL_ERRORS",
			"T1 has many invalid 3-of-6 symbols; likely bit errors/interference",
			"T1: dużo błędnych symboli 3-of-6; możliwe błędy bitów/zakłócenia"},
		func(f features) bool {
			return f.t1Total > 0 && f.t1SymTotal >= 200 && f.t1SymInvalidPct >= 5
		},
	},
	{
		Hint{"T1_BITFLIPS",
			"T1 mostly decodes but often fails DLL CRC; likely occasional bitflips",
			"T1: dekoduje się, ale często pada CRC DLL; możliwe sporadyczne bitflipy"},
		func(f features) bool {
			return f.t1Total > 0 && f.t1CRCPct >= 10 && f.t1SymInvalidPct < 2
		},
	},
	{
		Hint{"GOOD", "RF link looks stable", "łącze radiowe wygląda stabilnie"},
		func(f features) bool { return f.ok > 0 && f.dropPct <= 10 },
	},
}

var hintOK = Hint{"OK", "looks good", "wygląda dobrze"}

// Hint evaluates the rule chain against the window, first match wins.
func (w *Window) Hint() Hint {
	f := w.features()
	for _, rule := range hintRules {
		if rule.match(f) {
			return rule.hint
		}
	}
	return hintOK
}
