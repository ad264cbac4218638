package solana

// appendShortvec appends n in the compact-u16 encoding used by the wire
// format for all length prefixes
func appendShortvec(buf []byte, n int) []byte {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
