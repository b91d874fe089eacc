package ixfr

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func commitDelta(t *testing.T, z *ZoneIxfr, old, new_ uint32, adds ...[]byte) {
	t.Helper()
	s := Start(z, Config{StoreIxfr: true, IxfrNumber: 100}, old, new_, nil)
	if err := s.AddNewSOA(soaRaw(t, new_)); err != nil {
		t.Fatalf("AddNewSOA: %v", err)
	}
	if err := s.AddOldSOA(soaRaw(t, old)); err != nil {
		t.Fatalf("AddOldSOA: %v", err)
	}
	for _, a := range adds {
		if err := s.AddRR(1, a); err != nil {
			t.Fatalf("AddRR: %v", err)
		}
	}
	if d := s.Finish(); d == nil {
		t.Fatalf("Finish returned nil")
	}
}

func TestWriteToFileFreshWrite(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "example.com.zone")

	z := NewZoneIxfr()
	b := mustPack(t, "b.example.com. 3600 IN A 192.0.2.2")
	commitDelta(t, z, 10, 11, b)

	p := NewPersister(base, discardLogger())
	if err := p.WriteToFile("example.com.", z, 5); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}
	if _, err := os.Stat(slotPath(base, 1)); err != nil {
		t.Fatalf("expected slot 1 to exist: %v", err)
	}
}

func TestWriteToFileRenamesOnGrowth(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "example.com.zone")
	p := NewPersister(base, discardLogger())

	z := NewZoneIxfr()
	a := mustPack(t, "a.example.com. 3600 IN A 192.0.2.1")
	commitDelta(t, z, 10, 11, a)
	if err := p.WriteToFile("example.com.", z, 5); err != nil {
		t.Fatalf("first WriteToFile: %v", err)
	}

	b := mustPack(t, "b.example.com. 3600 IN A 192.0.2.2")
	commitDelta(t, z, 11, 12, b)
	if err := p.WriteToFile("example.com.", z, 5); err != nil {
		t.Fatalf("second WriteToFile: %v", err)
	}

	if _, err := os.Stat(slotPath(base, 1)); err != nil {
		t.Errorf("expected newest delta in slot 1: %v", err)
	}
	if _, err := os.Stat(slotPath(base, 2)); err != nil {
		t.Errorf("expected older delta renamed into slot 2: %v", err)
	}
}

func TestWriteToFileDeletesBeyondTarget(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "example.com.zone")
	p := NewPersister(base, discardLogger())

	z := NewZoneIxfr()
	for i := uint32(10); i < 13; i++ {
		commitDelta(t, z, i, i+1, mustPack(t, "a.example.com. 3600 IN A 192.0.2.1"))
	}
	if err := p.WriteToFile("example.com.", z, 3); err != nil {
		t.Fatalf("WriteToFile with target 3: %v", err)
	}
	if _, err := os.Stat(slotPath(base, 3)); err != nil {
		t.Fatalf("expected slot 3 to exist after first write: %v", err)
	}

	if err := p.WriteToFile("example.com.", z, 1); err != nil {
		t.Fatalf("WriteToFile with target 1: %v", err)
	}
	if _, err := os.Stat(slotPath(base, 2)); !os.IsNotExist(err) {
		t.Errorf("slot 2 should have been deleted when target shrank to 1, stat err = %v", err)
	}
	if _, err := os.Stat(slotPath(base, 3)); !os.IsNotExist(err) {
		t.Errorf("slot 3 should have been deleted when target shrank to 1, stat err = %v", err)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "example.com.zone")
	p := NewPersister(base, discardLogger())

	z := NewZoneIxfr()
	commitDelta(t, z, 10, 11, mustPack(t, "a.example.com. 3600 IN A 192.0.2.1"))
	commitDelta(t, z, 11, 12, mustPack(t, "b.example.com. 3600 IN A 192.0.2.2"))
	if err := p.WriteToFile("example.com.", z, 5); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}

	loaded := NewZoneIxfr()
	if err := p.ReadFromFile("example.com.", "example.com.", loaded, 12, 0); err != nil {
		t.Fatalf("ReadFromFile: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("loaded chain Len() = %d, want 2", loaded.Len())
	}
	first, ok := loaded.First()
	if !ok || first.OldSerial != 10 || first.NewSerial != 11 {
		t.Errorf("loaded.First() = %+v, %v, want old=10 new=11", first, ok)
	}
	last, ok := loaded.Last()
	if !ok || last.OldSerial != 11 || last.NewSerial != 12 {
		t.Errorf("loaded.Last() = %+v, %v, want old=11 new=12", last, ok)
	}
	connected, end := loaded.Connected(first)
	if !connected || end != 12 {
		t.Errorf("loaded.Connected = %v, %d, want true, 12", connected, end)
	}
}

func TestReadFromFileStopsAtCorruptSlot(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "example.com.zone")
	p := NewPersister(base, discardLogger())

	z := NewZoneIxfr()
	commitDelta(t, z, 10, 11, mustPack(t, "a.example.com. 3600 IN A 192.0.2.1"))
	commitDelta(t, z, 11, 12, mustPack(t, "b.example.com. 3600 IN A 192.0.2.2"))
	if err := p.WriteToFile("example.com.", z, 5); err != nil {
		t.Fatalf("WriteToFile: %v", err)
	}

	// Corrupt slot 2 (the older delta, 10->11) so it fails to parse.
	if err := os.WriteFile(slotPath(base, 2), []byte("; garbage\nnot a resource record\n"), 0o644); err != nil {
		t.Fatalf("corrupting slot 2: %v", err)
	}

	loaded := NewZoneIxfr()
	if err := p.ReadFromFile("example.com.", "example.com.", loaded, 12, 0); err != nil {
		t.Fatalf("ReadFromFile: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("loaded chain Len() = %d, want 1 (stopping before the corrupt slot)", loaded.Len())
	}
	if _, ok := loaded.Find(11); !ok {
		t.Errorf("expected the valid 11->12 delta from slot 1 to have loaded")
	}
}

func TestReadFromFileMissingFirstSlot(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "example.com.zone")
	p := NewPersister(base, discardLogger())

	loaded := NewZoneIxfr()
	if err := p.ReadFromFile("example.com.", "example.com.", loaded, 12, 0); err != nil {
		t.Fatalf("ReadFromFile with no files on disk: %v", err)
	}
	if loaded.Len() != 0 {
		t.Errorf("loaded.Len() = %d, want 0", loaded.Len())
	}
}
