package ixfr

import (
	"fmt"
	"log"

	"github.com/miekg/dns"
)

// Config carries the per-zone IXFR tunables resolved once at zone setup
// (see config.ZoneIxfrConfig) and handed to the engine as a plain value.
type Config struct {
	StoreIxfr  bool
	IxfrNumber uint32
	IxfrSize   uint64
}

// IxfrStore accumulates one in-progress delta during a zone reload or
// incoming IXFR/UPDATE, then commits it to a ZoneIxfr chain. Once
// cancelled — by policy, by budget exhaustion, or by an explicit Cancel
// — it sticks: every later call is a no-op until a fresh Start.
type IxfrStore struct {
	chain     *ZoneIxfr
	cfg       Config
	delta     *IxfrDelta
	cancelled bool
	logger    *log.Logger
}

// Start begins building the delta from oldSerial to newSerial against
// chain. If store_ixfr is off or ixfr_number is 0, the returned store is
// already cancelled and every subsequent call is a no-op — nothing is
// allocated for a zone that never keeps history.
func Start(chain *ZoneIxfr, cfg Config, oldSerial, newSerial uint32, logger *log.Logger) *IxfrStore {
	s := &IxfrStore{chain: chain, cfg: cfg, logger: logger}
	if !cfg.StoreIxfr || cfg.IxfrNumber == 0 {
		s.cancelled = true
		return s
	}
	s.delta = &IxfrDelta{OldSerial: oldSerial, NewSerial: newSerial}
	return s
}

func (s *IxfrStore) Cancelled() bool { return s.cancelled }

// Cancel abandons the in-progress delta. Idempotent.
func (s *IxfrStore) Cancel() {
	s.cancelled = true
	s.delta = nil
}

func (s *IxfrStore) AddNewSOA(soa []byte) error {
	if s.cancelled {
		return nil
	}
	s.delta.NewSOA = append([]byte(nil), soa...)
	return nil
}

// AddOldSOA records the pre-version SOA and runs a budget check, since
// receiving the pre-version SOA marks the transfer as incremental.
func (s *IxfrStore) AddOldSOA(soa []byte) error {
	if s.cancelled {
		return nil
	}
	if err := s.makeSpace(len(soa)); err != nil {
		return err
	}
	s.delta.OldSOA = append([]byte(nil), soa...)
	return nil
}

// DelRR appends one uncompressed RR to the delta's del buffer.
func (s *IxfrStore) DelRR(rr []byte) error {
	if s.cancelled {
		return nil
	}
	if err := s.makeSpace(len(rr)); err != nil {
		return err
	}
	s.delta.Del = appendRR(s.delta.Del, rr)
	return nil
}

// AddRR appends one uncompressed RR to the delta's add buffer. A bare
// SOA is silently dropped — the zone's new SOA is tracked separately via
// AddNewSOA and stitched onto both buffers at Finish.
func (s *IxfrStore) AddRR(rrType uint16, rr []byte) error {
	if s.cancelled {
		return nil
	}
	if rrType == dns.TypeSOA {
		return nil
	}
	if err := s.makeSpace(len(rr)); err != nil {
		return err
	}
	s.delta.Add = appendRR(s.delta.Add, rr)
	return nil
}

// SetLogString overrides the one-line summary Finish would otherwise
// compute.
func (s *IxfrStore) SetLogString(logStr string) {
	if s.cancelled {
		return
	}
	s.delta.LogStr = logStr
}

// Finish appends a trailing copy of newsoa to both del and add (the
// RFC 1995 del/add section terminator — see persistence.go's reader,
// which looks for exactly this to know where each section ends), trims
// both buffers to their exact size, fills in log_str if the caller never
// set one, and hands the delta to the chain. Cancellation is sticky: a
// second call, or any call after Cancel, returns nil.
func (s *IxfrStore) Finish() *IxfrDelta {
	if s.cancelled || s.delta == nil {
		return nil
	}
	d := s.delta
	nAdd, nDel := countRRs(d.Add), countRRs(d.Del)
	d.Del = appendRR(d.Del, d.NewSOA)
	d.Add = appendRR(d.Add, d.NewSOA)
	d.Del = trimBuf(d.Del)
	d.Add = trimBuf(d.Add)
	if d.LogStr == "" {
		d.LogStr = fmt.Sprintf("IXFR %d->%d: %d add, %d del",
			d.OldSerial, d.NewSerial, nAdd, nDel)
	}
	if err := s.makeSpace(0); err != nil {
		s.cancelled = true
		s.delta = nil
		return nil
	}
	s.chain.Add(d)
	s.cancelled = true
	s.delta = nil
	return d
}

// makeSpace enforces the ixfr_number and ixfr_size budgets by evicting
// the chain's oldest deltas, making room for the in-progress delta plus
// addedSize more bytes. If no amount of eviction would fit, it cancels
// the store and returns ErrBudgetExceeded.
func (s *IxfrStore) makeSpace(addedSize int) error {
	if s.cfg.IxfrNumber == 0 {
		s.Cancel()
		return ErrBudgetExceeded
	}
	for s.chain.Len() >= int(s.cfg.IxfrNumber) {
		if _, ok := s.chain.RemoveOldest(); !ok {
			break
		}
	}
	if s.cfg.IxfrSize == 0 {
		return nil
	}
	candidate := s.delta.accountedSize() + addedSize
	for uint64(s.chain.TotalSize()+candidate) > s.cfg.IxfrSize && s.chain.Len() > 0 {
		if _, ok := s.chain.RemoveOldest(); !ok {
			break
		}
	}
	if uint64(s.chain.TotalSize()+candidate) > s.cfg.IxfrSize {
		s.Cancel()
		return ErrBudgetExceeded
	}
	return nil
}
