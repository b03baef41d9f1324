package wmbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTLWMBusLine(t *testing.T) {
	frame := NewFrame([]byte{0x0E, 0x44}, ModeT1, FormatA, -93)
	at := time.Date(2026, 8, 6, 12, 30, 45, 0, time.UTC)

	want := "T1;1;1;2026-08-06 12:30:45.00Z;-93;;;0x0e44\n"
	assert.Equal(t, want, frame.RTLWMBus(at))
}

func TestHexLowercase(t *testing.T) {
	frame := NewFrame([]byte{0xAB, 0xCD, 0x01}, ModeC1, FormatB, -50)
	assert.Equal(t, "abcd01", frame.Hex())
}

func TestMarkHandled(t *testing.T) {
	frame := NewFrame(nil, ModeT1, FormatA, 0)
	assert.Equal(t, 0, frame.HandledCount())
	frame.MarkHandled()
	frame.MarkHandled()
	assert.Equal(t, 2, frame.HandledCount())
}

func TestAddressInfoBCD(t *testing.T) {
	// L C M(2) ID(4) VER DEV CI, L-field consistent with the length.
	payload := []byte{
		10,         // L
		0x44,       // C
		0xAE, 0x0C, // manufacturer "CEN" (0x0CAE) little-endian
		0x78, 0x56, 0x34, 0x12, // id 12345678 BCD little-endian
		0x01, // version
		0x07, // device type (water)
		0x8D, // CI
	}
	frame := NewFrame(payload, ModeC1, FormatA, -60)

	info, ok := frame.AddressInfo()
	require.True(t, ok)
	assert.Equal(t, "12345678", info.ID)
	assert.EqualValues(t, 0x01, info.Version)
	assert.EqualValues(t, 0x07, info.DeviceType)
	assert.EqualValues(t, 0x8D, info.CI)
	assert.Len(t, info.Manufacturer, 3)
}

func TestAddressInfoHexFallback(t *testing.T) {
	payload := []byte{
		10, 0x44, 0xAE, 0x0C,
		0xFF, 0xEE, 0xDD, 0xCC, // not BCD
		0x01, 0x07, 0x8D,
	}
	info, ok := NewFrame(payload, ModeC1, FormatA, -60).AddressInfo()
	require.True(t, ok)
	assert.Equal(t, "CCDDEEFF", info.ID)
}

func TestAddressInfoTooShort(t *testing.T) {
	_, ok := NewFrame([]byte{1, 2, 3}, ModeT1, FormatA, -60).AddressInfo()
	assert.False(t, ok)
}

func TestDecodeManufacturer(t *testing.T) {
	// "AAA" is 0b00001_00001_00001.
	assert.Equal(t, "AAA", decodeManufacturer(0x0421))
	// Letters outside A-Z collapse to "???".
	assert.Equal(t, "???", decodeManufacturer(0x0001))
}
