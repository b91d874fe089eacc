package ixfr

import (
	"fmt"

	"github.com/miekg/dns"
)

// TransportKind distinguishes DNS/TCP from DNS/UDP, since §4.3's
// truncation rule only applies to the latter.
type TransportKind int

const (
	TransportTCP TransportKind = iota
	TransportUDP
)

// MaxMessageLen is the default cap on the RR payload packed into one
// response packet, independent of whatever EDNS0/UDP size the transport
// itself allows — callers may pass a smaller value (e.g. the client's
// negotiated UDP buffer size) to PackPacket.
const MaxMessageLen = 16384

func clampMaxLen(maxlen int) int {
	if maxlen <= 0 || maxlen > MaxMessageLen {
		return MaxMessageLen
	}
	return maxlen
}

// tsigSignEveryNth controls how often an interior packet of a multi-packet
// TCP stream gets its own TSIG signature. 0 means every packet; NSD-style
// deployments that want to economize on signature cost would bump this.
var tsigSignEveryNth = 0

// Packet is one wire-ready slice of an IXFR response: the RRs to place
// in the answer section plus the header bits the caller needs to set.
type Packet struct {
	Answer  []dns.RR
	ANCOUNT int
	TC      bool
	Done    bool

	SignIt    bool
	PrepareIt bool
	UpdateIt  bool
}

// ResponseState is the per-request streaming cursor for one IXFR
// response, held across packets on a TCP connection. It's produced by
// Admit and driven to completion by repeated calls to PackPacket.
type ResponseState struct {
	zone      string
	transport TransportKind

	upToDate bool
	soaRR    dns.RR

	chain    *ZoneIxfr
	delta    *IxfrDelta
	endDelta *IxfrDelta

	countNewSOA int
	countOldSOA int
	countDel    int
	countAdd    int

	packetIndex int
	done        bool
}

func (rs *ResponseState) Done() bool { return rs.done }

// Admit is the admission check of §4.3: reject an up-to-date or newer
// requester with a single current SOA, fall back to AXFR (by returning
// ErrNoDeltaAvailable) if no connected chain covers the requested
// serial, or hand back a streaming ResponseState positioned at the
// matching delta.
func Admit(q ParsedQuery, transport TransportKind, zonedb ZoneDatabase, chain *ZoneIxfr) (*ResponseState, error) {
	current := zonedb.CurrentSerial(q.Zone)
	if SerialCompare(q.QSerial, current) >= 0 {
		return &ResponseState{zone: q.Zone, transport: transport, upToDate: true, soaRR: zonedb.CurrentSOARR(q.Zone), done: true}, nil
	}
	if chain == nil {
		return nil, ErrNoDeltaAvailable
	}
	delta, ok := chain.Find(q.QSerial)
	if !ok {
		return nil, ErrNoDeltaAvailable
	}
	first, ok := chain.First()
	if !ok {
		return nil, ErrNoDeltaAvailable
	}
	connected, endSerial := chain.Connected(first)
	if !connected || endSerial != current {
		return nil, ErrNoDeltaAvailable
	}
	end, _ := chain.Last()
	return &ResponseState{
		zone:      q.Zone,
		transport: transport,
		chain:     chain,
		delta:     delta,
		endDelta:  end,
	}, nil
}

// PackPacket fills one packet's worth of the response, advancing the
// cursor across del/add sections and across stitched deltas, and
// honoring the maxlen byte budget for del/add records (the two leading
// SOAs of the first packet are always emitted, whatever their size). It
// is safe to call repeatedly on a
// TCP stream until Done reports true; for UDP the first call always
// finishes the exchange (truncated to the final SOA if the full
// transfer wouldn't fit).
func (rs *ResponseState) PackPacket(maxlen int) (*Packet, error) {
	if rs.upToDate {
		rs.done = true
		return &Packet{Answer: []dns.RR{rs.soaRR}, ANCOUNT: 1, Done: true, SignIt: true, PrepareIt: true}, nil
	}

	maxlen = clampMaxLen(maxlen)
	pkt := &Packet{}
	used := 0

	emit := func(raw []byte) error {
		rr, err := unpackRR(raw)
		if err != nil {
			return err
		}
		pkt.Answer = append(pkt.Answer, rr)
		used += len(raw)
		return nil
	}

	walkSection := func(buf []byte, cursor *int) (bool, error) {
		for *cursor < len(buf) {
			n := RRLength(buf, *cursor)
			if n == 0 {
				return false, wrapErr(KindPersistenceParseFailure, fmt.Sprintf("corrupt stored RR at offset %d", *cursor), nil)
			}
			if used+n > maxlen {
				return false, nil
			}
			if err := emit(buf[*cursor : *cursor+n]); err != nil {
				return false, err
			}
			*cursor += n
		}
		return true, nil
	}

	if rs.countNewSOA == 0 {
		if err := emit(rs.endDelta.NewSOA); err != nil {
			return nil, err
		}
		rs.countNewSOA = len(rs.endDelta.NewSOA)
	}
	if rs.countOldSOA == 0 {
		if err := emit(rs.delta.OldSOA); err != nil {
			return nil, err
		}
		rs.countOldSOA = len(rs.delta.OldSOA)
	}

loop:
	for {
		delDone, err := walkSection(rs.delta.Del, &rs.countDel)
		if err != nil {
			return nil, err
		}
		if !delDone {
			break loop
		}
		addDone, err := walkSection(rs.delta.Add, &rs.countAdd)
		if err != nil {
			return nil, err
		}
		if !addDone {
			break loop
		}
		next, ok := rs.chain.Next(rs.delta)
		if !ok {
			rs.done = true
			break loop
		}
		rs.delta = next
		rs.countOldSOA = len(next.OldSOA)
		rs.countDel = 0
		rs.countAdd = 0
	}

	pkt.ANCOUNT = len(pkt.Answer)
	pkt.Done = rs.done

	if rs.transport == TransportUDP && !rs.done {
		pkt.TC = true
		if len(pkt.Answer) > 0 {
			pkt.Answer = pkt.Answer[:1]
		}
		pkt.ANCOUNT = 1
		rs.done = true
		pkt.Done = true
	}

	rs.setTSIGIntent(pkt)
	rs.packetIndex++
	return pkt, nil
}

// setTSIGIntent fills in the sign/prepare/update flags per §5: the first
// and last packet of a stream are always signed; interior packets follow
// tsigSignEveryNth.
func (rs *ResponseState) setTSIGIntent(pkt *Packet) {
	pkt.PrepareIt = rs.packetIndex == 0
	pkt.UpdateIt = !pkt.PrepareIt
	switch {
	case rs.packetIndex == 0, pkt.Done, tsigSignEveryNth == 0:
		pkt.SignIt = true
	case rs.packetIndex%tsigSignEveryNth == 0:
		pkt.SignIt = true
	default:
		pkt.SignIt = false
	}
}
