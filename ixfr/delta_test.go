package ixfr

import "testing"

func TestGrowBufDoublesFromInitialCap(t *testing.T) {
	var buf []byte
	buf = appendRR(buf, make([]byte, 10))
	if cap(buf) != initialBufCap {
		t.Errorf("first growth cap = %d, want %d", cap(buf), initialBufCap)
	}

	buf = appendRR(buf, make([]byte, initialBufCap))
	if cap(buf) < initialBufCap*2 {
		t.Errorf("second growth cap = %d, want at least %d", cap(buf), initialBufCap*2)
	}
}

func TestGrowBufTakesMaxOfDoubledAndNeeded(t *testing.T) {
	buf := make([]byte, initialBufCap, initialBufCap)
	huge := make([]byte, initialBufCap*5)
	buf = appendRR(buf, huge)
	want := len(buf)
	if cap(buf) < want {
		t.Fatalf("cap %d smaller than length %d", cap(buf), want)
	}
}

func TestTrimBuf(t *testing.T) {
	buf := growBuf(nil, 10)
	buf = append(buf, make([]byte, 10)...)
	if cap(buf) == len(buf) {
		t.Fatalf("test setup: expected slack capacity before trim")
	}
	trimmed := trimBuf(buf)
	if cap(trimmed) != len(trimmed) {
		t.Errorf("trimBuf left slack: len=%d cap=%d", len(trimmed), cap(trimmed))
	}
	if len(trimmed) != len(buf) {
		t.Errorf("trimBuf changed length: got %d, want %d", len(trimmed), len(buf))
	}
}

func TestCountRRs(t *testing.T) {
	a := mustPack(t, "a.example.com. 3600 IN A 192.0.2.1")
	b := mustPack(t, "b.example.com. 3600 IN A 192.0.2.2")
	buf := append(append([]byte{}, a...), b...)
	if n := countRRs(buf); n != 2 {
		t.Errorf("countRRs = %d, want 2", n)
	}
	if n := countRRs(nil); n != 0 {
		t.Errorf("countRRs(nil) = %d, want 0", n)
	}
}

func TestAccountedSizeIncludesOverhead(t *testing.T) {
	d := &IxfrDelta{NewSOA: make([]byte, 10), OldSOA: make([]byte, 10), Del: make([]byte, 5), Add: make([]byte, 5)}
	want := deltaBaseOverhead + 30
	if got := d.accountedSize(); got != want {
		t.Errorf("accountedSize = %d, want %d", got, want)
	}
}
