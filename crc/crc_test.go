package crc

import (
	"testing"

	"pgregory.net/rapid"
)

// Bitwise reference implementation, independent of the lookup table.
func reference(crc CRC, data []byte) uint16 {
	sum := crc.Init
	for _, b := range data {
		sum ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if sum&0x8000 != 0 {
				sum = sum<<1 ^ crc.Poly
			} else {
				sum <<= 1
			}
		}
	}
	return sum ^ crc.XorOut
}

// The EN 13757-2 reference vector.
func TestEN13757Vector(t *testing.T) {
	vector := []byte{0xFE, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	if sum := NewEN13757().Checksum(vector); sum != 0x42BC {
		t.Fatalf("EN13757 checksum: got 0x%04X, want 0x42BC", sum)
	}
}

func TestTableMatchesReference(t *testing.T) {
	crcs := []CRC{
		NewEN13757(),
		NewCRC("IBM", 0, 0x8005, 0),
		NewCRC("CCITT", 0xFFFF, 0x1021, 0),
	}

	for _, crc := range crcs {
		crc := crc
		t.Run(crc.Name, func(t *testing.T) {
			rapid.Check(t, func(t *rapid.T) {
				data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "data")
				if got, want := crc.Checksum(data), reference(crc, data); got != want {
					t.Fatalf("checksum of % 02X: got 0x%04X, want 0x%04X", data, got, want)
				}
			})
		})
	}
}
