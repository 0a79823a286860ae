package packet

import "strconv"

// hexField reads s[start:start+n] as unsigned hex; unparsable or out-of-range input reads as 0.
func hexField(s string, start, n int) uint64 {
	if start < 0 || start+n > len(s) {
		return 0
	}
	v, err := strconv.ParseUint(s[start:start+n], 16, 64)
	if err != nil {
		return 0
	}
	return v
}

// int16Field reads 4 hex characters as a two's-complement signed 16-bit value.
func int16Field(s string, start int) int {
	return int(int16(uint16(hexField(s, start, 4))))
}

// swapped returns a 4-hex-character word with its two bytes exchanged ("ABCD" -> "CDAB").
func swapped(s string, start int) string {
	if start < 0 || start+4 > len(s) {
		return "0000"
	}
	w := s[start : start+4]
	return w[2:] + w[:2]
}

// swappedUint16 reads a byte-swapped 16-bit word as unsigned.
func swappedUint16(s string, start int) int {
	return int(hexField(swapped(s, start), 0, 4))
}

// swappedInt16 reads a byte-swapped 16-bit word as signed.
func swappedInt16(s string, start int) int {
	return int16Field(swapped(s, start), 0)
}
