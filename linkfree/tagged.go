package linkfree

// packNext and unpackNext implement the tagged-successor word. Go cannot
// safely steal bits from a live, GC-traced pointer, so instead of a raw
// pointer we pack an arena ref (see internal/arena) into the high bits and
// the logical-delete mark into bit 0 — the same ref-into-a-stable-table
// indirection production arena-backed skip lists use in place of pointer
// tagging.
func packNext(ref int, marked bool) uint64 {
	v := uint64(ref) << 1
	if marked {
		v |= 1
	}
	return v
}

func unpackNext(word uint64) (ref int, marked bool) {
	return int(word >> 1), word&1 != 0
}
