package ixfr

import "testing"

func TestSerialCompare(t *testing.T) {
	cases := []struct {
		a, b uint32
		want int
	}{
		{1, 1, 0},
		{1, 2, -1},
		{2, 1, 1},
		{0, 0xFFFFFFFF, 1},  // 0 is "newer" than the max serial (wraps forward)
		{0xFFFFFFFF, 0, -1}, // and vice versa
		{10, 20, -1},
		{20, 10, 1},
	}
	for _, c := range cases {
		if got := SerialCompare(c.a, c.b); got != c.want {
			t.Errorf("SerialCompare(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSerialLess(t *testing.T) {
	if !SerialLess(10, 11) {
		t.Errorf("expected 10 < 11")
	}
	if SerialLess(11, 10) {
		t.Errorf("expected 11 not < 10")
	}
	if SerialLess(5, 5) {
		t.Errorf("expected 5 not < 5")
	}
}
