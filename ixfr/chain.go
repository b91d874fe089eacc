package ixfr

import (
	"sort"
	"sync"

	"github.com/twotwotwo/sorts"
)

// ZoneIxfr is the ordered version chain for one zone: a run of deltas
// keyed by old_serial, oldest first. Add does not reject gaps; Connected
// reports whether the run is gap-free. All mutation goes through
// its own mutex; callers (IxfrStore, the persistence reader, the
// response streamer) never manipulate the backing slice directly.
type ZoneIxfr struct {
	mu     sync.Mutex
	deltas []*IxfrDelta
	index  map[uint32]int // old_serial -> position in deltas
	total  int
}

func NewZoneIxfr() *ZoneIxfr {
	return &ZoneIxfr{index: make(map[uint32]int)}
}

func (z *ZoneIxfr) Len() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return len(z.deltas)
}

func (z *ZoneIxfr) TotalSize() int {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.total
}

// Find returns the delta whose old_serial matches, if present.
func (z *ZoneIxfr) Find(oldSerial uint32) (*IxfrDelta, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	i, ok := z.index[oldSerial]
	if !ok {
		return nil, false
	}
	return z.deltas[i], true
}

func (z *ZoneIxfr) First() (*IxfrDelta, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if len(z.deltas) == 0 {
		return nil, false
	}
	return z.deltas[0], true
}

func (z *ZoneIxfr) Last() (*IxfrDelta, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if len(z.deltas) == 0 {
		return nil, false
	}
	return z.deltas[len(z.deltas)-1], true
}

// Next returns the delta whose old_serial equals d's new_serial, i.e.
// the next link in the chain after d.
func (z *ZoneIxfr) Next(d *IxfrDelta) (*IxfrDelta, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	i, ok := z.index[d.NewSerial]
	if !ok {
		return nil, false
	}
	return z.deltas[i], true
}

// Connected walks the chain forward from start and reports whether every
// link's new_serial matches the next link's old_serial all the way to
// the newest delta, returning that delta's new_serial.
func (z *ZoneIxfr) Connected(start *IxfrDelta) (bool, uint32) {
	z.mu.Lock()
	defer z.mu.Unlock()
	i, ok := z.index[start.OldSerial]
	if !ok {
		return false, 0
	}
	for j := i; j+1 < len(z.deltas); j++ {
		if z.deltas[j].NewSerial != z.deltas[j+1].OldSerial {
			return false, 0
		}
	}
	return true, z.deltas[len(z.deltas)-1].NewSerial
}

// Ordered returns a snapshot of the chain, oldest first. The caller must
// not mutate the returned delta pointers' chain membership directly.
func (z *ZoneIxfr) Ordered() []*IxfrDelta {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make([]*IxfrDelta, len(z.deltas))
	copy(out, z.deltas)
	return out
}

// Add appends d to the chain, re-sorting and re-indexing afterward.
func (z *ZoneIxfr) Add(d *IxfrDelta) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.deltas = append(z.deltas, d)
	z.total += d.accountedSize()
	z.resync()
}

// RemoveOldest evicts the chain's oldest delta and returns it.
func (z *ZoneIxfr) RemoveOldest() (*IxfrDelta, bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	if len(z.deltas) == 0 {
		return nil, false
	}
	d := z.deltas[0]
	z.deltas = append(z.deltas[:0], z.deltas[1:]...)
	z.total -= d.accountedSize()
	z.resync()
	return d, true
}

// Clear empties the chain, e.g. before a persistence reload.
func (z *ZoneIxfr) Clear() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.deltas = nil
	z.index = make(map[uint32]int)
	z.total = 0
}

// resync re-sorts the backing slice oldest-to-newest under RFC 1982
// arithmetic and rebuilds the old_serial index. Called while z.mu is
// held; the chain is small (bounded by ixfr_number) so a full re-sort
// per mutation is cheap.
func (z *ZoneIxfr) resync() {
	sorts.Quicksort(deltasByOldSerial(z.deltas))
	z.index = make(map[uint32]int, len(z.deltas))
	for i, d := range z.deltas {
		z.index[d.OldSerial] = i
	}
}

type deltasByOldSerial []*IxfrDelta

func (d deltasByOldSerial) Len() int      { return len(d) }
func (d deltasByOldSerial) Swap(i, j int) { d[i], d[j] = d[j], d[i] }
func (d deltasByOldSerial) Less(i, j int) bool {
	return SerialLess(d[i].OldSerial, d[j].OldSerial)
}

var _ sort.Interface = deltasByOldSerial(nil)
