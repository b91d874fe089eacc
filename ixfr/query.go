package ixfr

import "github.com/miekg/dns"

// ParsedQuery is the decoded form of an incoming IXFR query: the zone
// being asked about and the serial the requester last saw.
type ParsedQuery struct {
	Zone    string
	QSerial uint32
	// SnipPos is the byte offset, in the raw wire message, of the end of
	// the question section (equivalently, the start of the authority
	// section carrying the requester's SOA). Kept for parity with §4.2's
	// wire-offset bookkeeping even though this implementation otherwise
	// works from the parsed dns.Msg.
	SnipPos int
}

// ParseIxfrQuery validates and decodes an IXFR query per §4.2: exactly
// one question, at least one record in the authority section, and the
// first SOA found there giving the requester's last-seen serial.
func ParseIxfrQuery(r *dns.Msg, raw []byte) (ParsedQuery, error) {
	if len(r.Question) != 1 {
		return ParsedQuery{}, ErrRequestMalformed
	}
	if r.Question[0].Qtype != dns.TypeIXFR {
		return ParsedQuery{}, ErrRequestMalformed
	}
	if len(r.Ns) < 1 {
		return ParsedQuery{}, ErrRequestMalformed
	}
	var soa *dns.SOA
	for _, rr := range r.Ns {
		if s, ok := rr.(*dns.SOA); ok {
			soa = s
			break
		}
	}
	if soa == nil {
		return ParsedQuery{}, ErrRequestMalformed
	}
	snip, _ := questionSectionEnd(raw)
	return ParsedQuery{
		Zone:    r.Question[0].Name,
		QSerial: soa.Serial,
		SnipPos: snip,
	}, nil
}

// questionSectionEnd walks the 12-byte header and the single question
// name by hand (rejecting compression, same discipline as the delta
// codec) to find where the question section ends in raw.
func questionSectionEnd(raw []byte) (int, bool) {
	off := 12
	for {
		if off >= len(raw) {
			return 0, false
		}
		l := int(raw[off])
		if l&0xC0 != 0 {
			return 0, false
		}
		off++
		if l == 0 {
			break
		}
		off += l
		if off > len(raw) {
			return 0, false
		}
	}
	off += 4 // qtype + qclass
	if off > len(raw) {
		return 0, false
	}
	return off, true
}
