package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kustonium/esphome-wmbus-bridge-rawonly/wmbus"
)

func TestHintNoData(t *testing.T) {
	var w Window
	assert.Equal(t, "NO_DATA", w.Hint().Code)
}

func TestHintC1WeakSignal(t *testing.T) {
	var w Window
	for i := 0; i < 10; i++ {
		w.RecordAttempt(wmbus.ModeC1)
		w.RecordDrop(wmbus.ModeC1, wmbus.DropCRCFailed, -100)
	}
	assert.Equal(t, "C1_WEAK_SIGNAL", w.Hint().Code)
}

func TestHintC1Interference(t *testing.T) {
	var w Window
	for i := 0; i < 10; i++ {
		w.RecordAttempt(wmbus.ModeC1)
		w.RecordDrop(wmbus.ModeC1, wmbus.DropCRCFailed, -70)
	}
	assert.Equal(t, "C1_INTERFERENCE_OR_RX", w.Hint().Code)
}

func TestHintC1Overload(t *testing.T) {
	var w Window
	// Strong successful frames alongside strong CRC failures.
	for i := 0; i < 25; i++ {
		w.RecordAttempt(wmbus.ModeC1)
		w.RecordOK(wmbus.ModeC1, -60)
	}
	for i := 0; i < 25; i++ {
		w.RecordAttempt(wmbus.ModeC1)
		w.RecordDrop(wmbus.ModeC1, wmbus.DropCRCFailed, -70)
	}
	assert.Equal(t, "C1_OVERLOAD_OR_MULTIPATH", w.Hint().Code)
}

func TestHintT1Overload(t *testing.T) {
	var w Window
	for i := 0; i < 5; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordOK(wmbus.ModeT1, -55)
	}
	for i := 0; i < 5; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordDrop(wmbus.ModeT1, wmbus.DropCRCFailed, -62)
	}
	assert.Equal(t, "T1_OVERLOAD_OR_MULTIPATH", w.Hint().Code)
}

func TestHintWeakSignal(t *testing.T) {
	var w Window
	for i := 0; i < 7; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordDrop(wmbus.ModeT1, wmbus.DropTooShort, -100)
	}
	for i := 0; i < 3; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordOK(wmbus.ModeT1, -85)
	}
	assert.Equal(t, "WEAK_SIGNAL", w.Hint().Code)
}

func TestHintT1SymbolErrors(t *testing.T) {
	var w Window
	for i := 0; i < 10; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordDrop(wmbus.ModeT1, wmbus.DropDecodeFailed, -75)
	}
	w.RecordT1Symbols(1000, 60) // 6% invalid
	assert.Equal(t, "T1_SYMBOL_ERRORS", w.Hint().Code)
}

func TestHintT1SymbolErrorsNeedsVolume(t *testing.T) {
	var w Window
	for i := 0; i < 10; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordDrop(wmbus.ModeT1, wmbus.DropDecodeFailed, -75)
	}
	w.RecordT1Symbols(100, 50) // plenty invalid, too few observed
	assert.NotEqual(t, "T1_SYMBOL_ERRORS", w.Hint().Code)
}

func TestHintT1Bitflips(t *testing.T) {
	var w Window
	for i := 0; i < 8; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordOK(wmbus.ModeT1, -75)
	}
	for i := 0; i < 2; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordDrop(wmbus.ModeT1, wmbus.DropCRCFailed, -85)
	}
	w.RecordT1Symbols(1000, 5) // clean symbols, failing CRCs
	assert.Equal(t, "T1_BITFLIPS", w.Hint().Code)
}

func TestHintGood(t *testing.T) {
	var w Window
	for i := 0; i < 20; i++ {
		w.RecordAttempt(wmbus.ModeC1)
		w.RecordOK(wmbus.ModeC1, -70)
	}
	w.RecordAttempt(wmbus.ModeC1)
	w.RecordDrop(wmbus.ModeC1, wmbus.DropTooShort, -90)
	assert.Equal(t, "GOOD", w.Hint().Code)
}

func TestHintFallbackOK(t *testing.T) {
	var w Window
	// Half drops at decent RSSI matches no specific rule.
	for i := 0; i < 4; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordOK(wmbus.ModeT1, -75)
	}
	for i := 0; i < 4; i++ {
		w.RecordAttempt(wmbus.ModeT1)
		w.RecordDrop(wmbus.ModeT1, wmbus.DropTooShort, -85)
	}
	assert.Equal(t, "OK", w.Hint().Code)
}

// First match wins: a window satisfying the C1 weak-signal, C1
// interference and overall weak-signal conditions reports the earliest
// of them, C1_WEAK_SIGNAL.
func TestHintFirstMatchWins(t *testing.T) {
	var w Window
	for i := 0; i < 10; i++ {
		w.RecordAttempt(wmbus.ModeC1)
		w.RecordDrop(wmbus.ModeC1, wmbus.DropCRCFailed, -100)
	}
	// drop_pct = 100, avg_drop_rssi = -100: WEAK_SIGNAL would match too.
	assert.Equal(t, "C1_WEAK_SIGNAL", w.Hint().Code)
}
