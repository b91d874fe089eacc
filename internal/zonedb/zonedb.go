// Package zonedb is a minimal reference ZoneDatabase, adapted from the
// host server's ZoneData/OwnerData. It exists so the ixfr package's test
// suite can exercise admission and AXFR fallback end-to-end instead of
// only against mocks; it is not part of the IXFR engine itself.
package zonedb

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/miekg/dns"
)

// Zone holds one zone's current RRset and serial. Records is a flat,
// unordered list — enough for the reference AXFR responder to stream,
// nothing more.
type Zone struct {
	mu            sync.Mutex
	Name          string
	CurrentSerial uint32
	Records       []dns.RR
	soa           *dns.SOA
}

// NewZone creates a zone whose apex SOA is soa. soa.Serial becomes the
// zone's current serial.
func NewZone(name string, soa *dns.SOA) *Zone {
	z := &Zone{Name: dns.Fqdn(name), CurrentSerial: soa.Serial, soa: soa}
	z.Records = []dns.RR{soa}
	return z
}

// AddRR appends rr to the zone's record set.
func (z *Zone) AddRR(rr dns.RR) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.Records = append(z.Records, rr)
}

// BumpSerial updates both the zone's SOA and its tracked current serial.
func (z *Zone) BumpSerial(newSerial uint32) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.soa.Serial = newSerial
	z.CurrentSerial = newSerial
}

// SnapshotRecords returns a copy of the zone's record set, safe for a
// caller to stream without holding the zone's lock.
func (z *Zone) SnapshotRecords() []dns.RR {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make([]dns.RR, len(z.Records))
	copy(out, z.Records)
	return out
}

// DB is a registry of zones keyed by name, the same cmap-backed pattern
// the host uses for its global Zones registry.
type DB struct {
	zones cmap.ConcurrentMap[string, *Zone]
}

func NewDB() *DB {
	return &DB{zones: cmap.New[*Zone]()}
}

func (db *DB) Add(z *Zone) {
	db.zones.Set(z.Name, z)
}

func (db *DB) Zone(name string) (*Zone, bool) {
	return db.zones.Get(dns.Fqdn(name))
}

// HasZone implements ixfr.ZoneDatabase.
func (db *DB) HasZone(name string) bool {
	_, ok := db.zones.Get(dns.Fqdn(name))
	return ok
}

// HasSOA implements ixfr.ZoneDatabase.
func (db *DB) HasSOA(name string) bool {
	z, ok := db.zones.Get(dns.Fqdn(name))
	return ok && z.soa != nil
}

// CurrentSerial implements ixfr.ZoneDatabase.
func (db *DB) CurrentSerial(name string) uint32 {
	z, ok := db.zones.Get(dns.Fqdn(name))
	if !ok {
		return 0
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.CurrentSerial
}

// CurrentSOARR implements ixfr.ZoneDatabase.
func (db *DB) CurrentSOARR(name string) dns.RR {
	z, ok := db.zones.Get(dns.Fqdn(name))
	if !ok {
		return nil
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	soa := dns.Copy(z.soa).(*dns.SOA)
	soa.Serial = z.CurrentSerial
	return soa
}

// ApexName implements ixfr.ZoneDatabase.
func (db *DB) ApexName(name string) string {
	return dns.Fqdn(name)
}
