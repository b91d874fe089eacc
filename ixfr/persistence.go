package ixfr

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gookit/goutil/dump"
	"github.com/miekg/dns"
)

// Persister reads and writes a zone's delta chain as numbered sibling
// files next to the zone's own file on disk, per §4.6: slot 1 holds the
// newest delta, slot 2 the next-newest, and so on.
type Persister struct {
	ZoneFilePath string
	Logger       *log.Logger
	Debug        bool
}

func NewPersister(zoneFilePath string, logger *log.Logger) *Persister {
	return &Persister{ZoneFilePath: zoneFilePath, Logger: logger}
}

func slotPath(base string, slot int) string {
	if slot <= 1 {
		return base + ".ixfr"
	}
	return fmt.Sprintf("%s.ixfr.%d", base, slot)
}

// WriteToFile persists chain to disk under ixfrNumber's cap, per §4.6:
// delete any slot beyond the target count, rename existing files into
// their new slot (newest always lands in slot 1), then write out
// whichever deltas have never touched disk (file_num == 0).
func (p *Persister) WriteToFile(zoneName string, chain *ZoneIxfr, ixfrNumber uint32) error {
	target := int(ixfrNumber)
	if chain.Len() < target {
		target = chain.Len()
	}

	for slot := target + 1; ; slot++ {
		path := slotPath(p.ZoneFilePath, slot)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return wrapErr(KindPersistenceIOFailure, fmt.Sprintf("stat %s", path), err)
		}
		if err := os.Remove(path); err != nil {
			return wrapErr(KindPersistenceIOFailure, fmt.Sprintf("remove %s", path), err)
		}
	}

	for chain.Len() > target {
		chain.RemoveOldest()
	}

	deltas := chain.Ordered() // oldest -> newest
	n := len(deltas)

	if p.Debug {
		dump.P(deltas)
	}

	type rename struct{ from, to string }
	var renamed []rename
	for i, d := range deltas {
		destSlot := n - i // newest (last in deltas) -> slot 1
		if d.FileNum == destSlot {
			continue
		}
		if d.FileNum == 0 {
			// Never written to disk; the write phase below creates it
			// straight into destSlot, so it needs no rename here.
			continue
		}
		from := slotPath(p.ZoneFilePath, d.FileNum)
		to := slotPath(p.ZoneFilePath, destSlot)
		os.Remove(to) // destination slot was vacated above or never existed
		if err := os.Rename(from, to); err != nil {
			for _, r := range renamed {
				os.Remove(r.to)
			}
			return wrapErr(KindPersistenceIOFailure, fmt.Sprintf("rename %s to %s", from, to), err)
		}
		renamed = append(renamed, rename{from, to})
		d.FileNum = destSlot
	}

	usedSlots := make(map[int]bool, n)
	for _, d := range deltas {
		usedSlots[d.FileNum] = true
	}
	var written []string
	nextSlot := 1
	for i := n - 1; i >= 0; i-- {
		d := deltas[i]
		if d.FileNum != 0 {
			continue
		}
		for usedSlots[nextSlot] {
			nextSlot++
		}
		slot := nextSlot
		usedSlots[slot] = true
		path := slotPath(p.ZoneFilePath, slot)
		if err := p.writeDeltaFile(path, zoneName, d); err != nil {
			os.Remove(path)
			for _, w := range written {
				os.Remove(w)
			}
			return wrapErr(KindPersistenceIOFailure, fmt.Sprintf("write %s", path), err)
		}
		d.FileNum = slot
		written = append(written, path)
	}
	return nil
}

func (p *Persister) writeDeltaFile(path, zoneName string, d *IxfrDelta) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "; IXFR data file\n; zone %s\n; from_serial %d\n; to_serial %d\n",
		zoneName, d.OldSerial, d.NewSerial)
	if d.LogStr != "" {
		fmt.Fprintf(w, "; %s\n", d.LogStr)
	}
	if err := writeRRLine(w, d.NewSOA); err != nil {
		return err
	}
	if err := writeRRLine(w, d.OldSOA); err != nil {
		return err
	}
	if err := writeRRStream(w, d.Del); err != nil {
		return err
	}
	if err := writeRRStream(w, d.Add); err != nil {
		return err
	}
	return w.Flush()
}

func writeRRLine(w *bufio.Writer, raw []byte) error {
	rr, err := unpackRR(raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rr.String())
	return err
}

func writeRRStream(w *bufio.Writer, buf []byte) error {
	off := 0
	for off < len(buf) {
		n := RRLength(buf, off)
		if n == 0 {
			return fmt.Errorf("corrupt RR stream at offset %d", off)
		}
		if err := writeRRLine(w, buf[off:off+n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// ReadFromFile replays a zone's on-disk delta chain at startup, per
// §4.6: walk slot 1, 2, 3, ... until a slot is missing, verifying each
// file's to_serial chains to the previous file's from_serial starting
// from currentSerial. A parse failure on slot k keeps everything loaded
// from slots 1..k-1 and stops — it does not propagate as a fatal error.
func (p *Persister) ReadFromFile(zoneName, apex string, chain *ZoneIxfr, currentSerial uint32, ixfrSize uint64) error {
	chain.Clear()
	expected := currentSerial
	for slot := 1; ; slot++ {
		path := slotPath(p.ZoneFilePath, slot)
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			p.Logger.Printf("ReadFromFile: %s: stopping at slot %d: %v", zoneName, slot, err)
			return nil
		}
		d, oldSerial, perr := p.parseDeltaFile(f, apex, expected)
		f.Close()
		if perr != nil {
			p.Logger.Printf("ReadFromFile: %s: slot %d: %v", zoneName, slot, perr)
			return nil
		}
		if ixfrSize > 0 && uint64(chain.TotalSize())+uint64(d.accountedSize()) > ixfrSize {
			p.Logger.Printf("ReadFromFile: %s: slot %d would exceed ixfr_size, stopping", zoneName, slot)
			return nil
		}
		d.FileNum = slot
		chain.Add(d)
		expected = oldSerial
	}
}

func (p *Persister) parseDeltaFile(f *os.File, apex string, expectedNewSerial uint32) (*IxfrDelta, uint32, error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	nextRR := func() (dns.RR, bool, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, ";") {
				continue
			}
			rr, err := dns.NewRR(line)
			if err != nil {
				return nil, false, err
			}
			return rr, true, nil
		}
		if err := scanner.Err(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	rr, ok, err := nextRR()
	if err != nil {
		return nil, 0, wrapErr(KindPersistenceParseFailure, "reading new-serial SOA", err)
	}
	if !ok {
		return nil, 0, newErr(KindPersistenceParseFailure, "empty delta file")
	}
	newSOA, ok := rr.(*dns.SOA)
	if !ok || dns.Fqdn(newSOA.Hdr.Name) != dns.Fqdn(apex) || newSOA.Hdr.Class != dns.ClassINET {
		return nil, 0, newErr(KindPersistenceParseFailure, "first record is not the zone's SOA")
	}
	if newSOA.Serial != expectedNewSerial {
		return nil, 0, newErr(KindPersistenceParseFailure,
			fmt.Sprintf("serial %d does not chain to expected %d", newSOA.Serial, expectedNewSerial))
	}
	newSerial := newSOA.Serial
	newSOARaw, err := packRR(newSOA)
	if err != nil {
		return nil, 0, wrapErr(KindPersistenceParseFailure, "repacking new-serial SOA", err)
	}

	rr, ok, err = nextRR()
	if err != nil {
		return nil, 0, wrapErr(KindPersistenceParseFailure, "reading old-serial SOA", err)
	}
	oldSOA, ok2 := rr.(*dns.SOA)
	if !ok || !ok2 {
		return nil, 0, newErr(KindPersistenceParseFailure, "second record is not an SOA")
	}
	oldSerial := oldSOA.Serial
	oldSOARaw, err := packRR(oldSOA)
	if err != nil {
		return nil, 0, wrapErr(KindPersistenceParseFailure, "repacking old-serial SOA", err)
	}

	readSection := func(name string) ([]byte, error) {
		var buf []byte
		for {
			rr, ok, err := nextRR()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("truncated %s section", name)
			}
			raw, err := packRR(rr)
			if err != nil {
				return nil, err
			}
			buf = append(buf, raw...)
			if soa, ok := rr.(*dns.SOA); ok && soa.Serial == newSerial {
				break
			}
		}
		return buf, nil
	}

	delBuf, err := readSection("del")
	if err != nil {
		return nil, 0, wrapErr(KindPersistenceParseFailure, "reading del section", err)
	}
	addBuf, err := readSection("add")
	if err != nil {
		return nil, 0, wrapErr(KindPersistenceParseFailure, "reading add section", err)
	}

	return &IxfrDelta{
		OldSerial: oldSerial,
		NewSerial: newSerial,
		NewSOA:    newSOARaw,
		OldSOA:    oldSOARaw,
		Del:       delBuf,
		Add:       addBuf,
	}, oldSerial, nil
}
