package ixfr

// SerialCompare compares two zone serial numbers per RFC 1982 serial
// number arithmetic. It returns -1 if a is older than b, 0 if equal,
// and +1 if a is newer than b (including the "newer than current"
// wraparound case used by the up-to-date check in §4.3).
func SerialCompare(a, b uint32) int {
	if a == b {
		return 0
	}
	if (a < b && b-a < 1<<31) || (a > b && a-b > 1<<31) {
		return -1
	}
	return 1
}

// SerialLess reports whether a is strictly older than b under RFC 1982
// arithmetic.
func SerialLess(a, b uint32) bool {
	return SerialCompare(a, b) < 0
}
