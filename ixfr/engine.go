package ixfr

import (
	"fmt"
	"log"
	"net"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/gookit/goutil/dump"
	"github.com/miekg/dns"
)

// Outcome is the result of one call to Engine.QueryIXFR: either the
// response was fully written in this call, or the caller must keep
// pumping the returned ResponseState across further packets (TCP only).
type Outcome int

const (
	OutcomeProcessed Outcome = iota
	OutcomeInIxfr
)

// Engine owns the per-zone delta chains. Chains are keyed by zone name,
// the same string-keyed concurrent-map pattern the host server uses for
// its global Zones registry.
type Engine struct {
	chains cmap.ConcurrentMap[string, *ZoneIxfr]
	logger *log.Logger
	Debug  bool
}

func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{chains: cmap.New[*ZoneIxfr](), logger: logger}
}

// Chain returns the zone's chain if one has ever been created.
func (e *Engine) Chain(zone string) (*ZoneIxfr, bool) {
	return e.chains.Get(zone)
}

// EnsureChain returns the zone's chain, creating an empty one on first
// use.
func (e *Engine) EnsureChain(zone string) *ZoneIxfr {
	if c, ok := e.chains.Get(zone); ok {
		return c
	}
	c := NewZoneIxfr()
	e.chains.Set(zone, c)
	return c
}

// ClearChain drops every delta held for zone, e.g. on a full AXFR reload
// that invalidates the whole history.
func (e *Engine) ClearChain(zone string) {
	if c, ok := e.chains.Get(zone); ok {
		c.Clear()
	}
}

// StartStore begins building a new delta for zone under the given
// config, creating the chain on first use.
func (e *Engine) StartStore(zone string, cfg Config, oldSerial, newSerial uint32) *IxfrStore {
	chain := e.EnsureChain(zone)
	return Start(chain, cfg, oldSerial, newSerial, e.logger)
}

// QueryIXFR implements the query_ixfr interface named in §6: parse,
// admit, and pack the first packet of the response, writing it to w.
// If no usable delta chain covers the requester's serial, it falls back
// to a full AXFR via axfr. The returned ResponseState is nil after an
// error reply or an AXFR fallback; otherwise it is the admitted stream's
// state, and Outcome == OutcomeInIxfr means further TCP packets remain.
func (e *Engine) QueryIXFR(w dns.ResponseWriter, r *dns.Msg, raw []byte, zonedb ZoneDatabase, axfr AxfrResponder) (Outcome, *ResponseState, error) {
	parsed, err := ParseIxfrQuery(r, raw)
	if err != nil {
		writeRcode(w, r, dns.RcodeFormatError)
		return OutcomeProcessed, nil, err
	}

	if !zonedb.HasZone(parsed.Zone) {
		writeRcode(w, r, dns.RcodeNotAuth)
		return OutcomeProcessed, nil, ErrZoneNotAuthoritative
	}
	if !zonedb.HasSOA(parsed.Zone) {
		writeRcode(w, r, dns.RcodeServerFailure)
		return OutcomeProcessed, nil, ErrZoneCorrupt
	}

	transport := TransportTCP
	if _, ok := w.RemoteAddr().(*net.UDPAddr); ok {
		transport = TransportUDP
	}

	chain, _ := e.chains.Get(parsed.Zone)
	rs, err := Admit(parsed, transport, zonedb, chain)
	if err != nil {
		e.logger.Printf("QueryIXFR: %s: %v, falling back to AXFR", parsed.Zone, err)
		if axfrErr := axfr.StartAXFR(w, r); axfrErr != nil {
			return OutcomeProcessed, nil, fmt.Errorf("axfr fallback for %s: %w", parsed.Zone, axfrErr)
		}
		return OutcomeProcessed, nil, nil
	}

	if e.Debug {
		dump.P(rs)
	}

	firstPacket := rs.packetIndex == 0
	pkt, err := rs.PackPacket(MaxMessageLen)
	if err != nil {
		writeRcode(w, r, dns.RcodeServerFailure)
		return OutcomeProcessed, nil, err
	}
	if err := writePacket(w, r, pkt, firstPacket); err != nil {
		return OutcomeProcessed, nil, err
	}
	if rs.Done() {
		return OutcomeProcessed, rs, nil
	}
	return OutcomeInIxfr, rs, nil
}

// ContinueIXFR packs and writes the next packet of an in-progress
// stream started by QueryIXFR.
func (e *Engine) ContinueIXFR(w dns.ResponseWriter, r *dns.Msg, rs *ResponseState) (Outcome, error) {
	firstPacket := rs.packetIndex == 0
	pkt, err := rs.PackPacket(MaxMessageLen)
	if err != nil {
		return OutcomeProcessed, err
	}
	if err := writePacket(w, r, pkt, firstPacket); err != nil {
		return OutcomeProcessed, err
	}
	if rs.Done() {
		return OutcomeProcessed, nil
	}
	return OutcomeInIxfr, nil
}

func writeRcode(w dns.ResponseWriter, r *dns.Msg, rcode int) {
	m := new(dns.Msg)
	m.SetRcode(r, rcode)
	w.WriteMsg(m)
}

// writePacket builds and writes one reply message for pkt. Per §4.3,
// only the first packet of a stream carries the question (QDCOUNT=1);
// every later packet on the same TCP connection writes QDCOUNT=0.
func writePacket(w dns.ResponseWriter, r *dns.Msg, pkt *Packet, firstPacket bool) error {
	m := new(dns.Msg)
	m.SetReply(r)
	if !firstPacket {
		m.Question = nil
	}
	m.Authoritative = true
	m.Answer = pkt.Answer
	m.Truncated = pkt.TC
	return w.WriteMsg(m)
}
