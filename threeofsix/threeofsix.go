// Package threeofsix implements the EN 13757-4 "3 of 6" line code used by
// wM-Bus T-mode. Each 4-bit nibble is transmitted as a 6-bit symbol
// containing exactly three set bits; a byte becomes two symbols, high
// nibble first, serialized MSB-first into the coded stream.
package threeofsix

// encodeTable maps a nibble to its 6-bit symbol.
var encodeTable = [16]byte{
	0x16, 0x0D, 0x0E, 0x0B,
	0x1C, 0x19, 0x1A, 0x13,
	0x2C, 0x25, 0x26, 0x23,
	0x34, 0x31, 0x32, 0x29,
}

// decodeTable maps a 6-bit symbol back to its nibble, -1 for symbols
// outside the code.
var decodeTable [64]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for nibble, symbol := range encodeTable {
		decodeTable[symbol] = int8(nibble)
	}
}

// Stats reports symbol-level quality of a single Decode call.
type Stats struct {
	SymbolsTotal   int
	SymbolsInvalid int
}

// EncodedSize returns the number of coded bytes produced for n cleartext
// bytes: two bytes become three on the wire.
func EncodedSize(n int) int {
	return (n*3 + 1) / 2
}

// DecodedSize returns the number of cleartext bytes recovered from n coded
// bytes. A trailing partial symbol pair is not emitted.
func DecodedSize(n int) int {
	return (n * 8 / 6) / 2
}

// symbolAt extracts the 6-bit symbol starting at the given bit offset.
func symbolAt(coded []byte, bitOff int) byte {
	idx := bitOff >> 3
	v := uint16(coded[idx]) << 8
	if idx+1 < len(coded) {
		v |= uint16(coded[idx+1])
	}
	return byte(v>>(10-bitOff&7)) & 0x3F
}

// Decode recovers cleartext bytes from a 3-of-6 coded buffer.
//
// Symbols outside the code decode as 0 and are counted in
// Stats.SymbolsInvalid; the decode itself never fails on them, the damage
// surfaces later as an L-field or CRC mismatch. ok is false only when the
// input is too short to hold a single symbol pair.
func Decode(coded []byte) (decoded []byte, stats Stats, ok bool) {
	pairs := DecodedSize(len(coded))
	if pairs == 0 {
		return nil, stats, false
	}

	decoded = make([]byte, pairs)
	for i := 0; i < pairs; i++ {
		hi := decodeSymbol(symbolAt(coded, i*12), &stats)
		lo := decodeSymbol(symbolAt(coded, i*12+6), &stats)
		decoded[i] = hi<<4 | lo
	}
	return decoded, stats, true
}

func decodeSymbol(symbol byte, stats *Stats) byte {
	stats.SymbolsTotal++
	v := decodeTable[symbol]
	if v < 0 {
		stats.SymbolsInvalid++
		return 0
	}
	return byte(v)
}

// Encode produces the 3-of-6 coded image of data. For odd input lengths
// the final coded byte is zero-padded in its low nibble; Decode ignores
// the padding.
func Encode(data []byte) []byte {
	coded := make([]byte, EncodedSize(len(data)))
	bitOff := 0
	for _, b := range data {
		bitOff = appendSymbol(coded, bitOff, encodeTable[b>>4])
		bitOff = appendSymbol(coded, bitOff, encodeTable[b&0x0F])
	}
	return coded
}

func appendSymbol(coded []byte, bitOff int, symbol byte) int {
	idx := bitOff >> 3
	shift := 10 - bitOff&7
	v := uint16(symbol) << shift
	coded[idx] |= byte(v >> 8)
	if idx+1 < len(coded) {
		coded[idx+1] |= byte(v)
	}
	return bitOff + 6
}
