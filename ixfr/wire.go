package ixfr

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// RRLength reports how many bytes the RR starting at buf[start:] occupies,
// or 0 if the record is truncated or its owner name carries a compression
// pointer. Stored delta buffers never contain compressed names (see
// BuildSOA and the persistence reader), so any pointer found here means
// the buffer is corrupt.
//
// The owner name's compression-freedom is checked by hand, byte by byte,
// because dns.UnpackRR would silently follow a pointer rather than reject
// it. Once that's established, the rest of the record (type, class, ttl,
// rdlength, rdata) is handed to the library.
func RRLength(buf []byte, start int) int {
	if start < 0 || start >= len(buf) {
		return 0
	}
	if !ownerNameUncompressed(buf, start) {
		return 0
	}
	_, off1, err := dns.UnpackRR(buf, start)
	if err != nil || off1 <= start || off1 > len(buf) {
		return 0
	}
	return off1 - start
}

func ownerNameUncompressed(buf []byte, start int) bool {
	i := start
	for {
		if i >= len(buf) {
			return false
		}
		l := int(buf[i])
		if l&0xC0 != 0 {
			return false
		}
		i++
		if l == 0 {
			return true
		}
		i += l
		if i > len(buf) {
			return false
		}
	}
}

// SOAFields is the decoded RDATA of a SOA record, per §4.1.
type SOAFields struct {
	PrimaryNS string
	RName     string
	Serial    uint32
	Refresh   uint32
	Retry     uint32
	Expire    uint32
	Minimum   uint32
}

// ParseSOARdata decodes the RDATA of a SOA record (not the full RR — no
// owner name, type, class, ttl or rdlength precede it). Both embedded
// names are rejected if they carry a compression pointer, matching the
// no-compression invariant on every byte the engine stores.
func ParseSOARdata(buf []byte) (SOAFields, error) {
	mname, off, err := readUncompressedName(buf, 0)
	if err != nil {
		return SOAFields{}, err
	}
	rname, off, err := readUncompressedName(buf, off)
	if err != nil {
		return SOAFields{}, err
	}
	if off+20 > len(buf) {
		return SOAFields{}, fmt.Errorf("ixfr: truncated SOA rdata")
	}
	return SOAFields{
		PrimaryNS: mname,
		RName:     rname,
		Serial:    binary.BigEndian.Uint32(buf[off:]),
		Refresh:   binary.BigEndian.Uint32(buf[off+4:]),
		Retry:     binary.BigEndian.Uint32(buf[off+8:]),
		Expire:    binary.BigEndian.Uint32(buf[off+12:]),
		Minimum:   binary.BigEndian.Uint32(buf[off+16:]),
	}, nil
}

func readUncompressedName(buf []byte, off int) (string, int, error) {
	var sb strings.Builder
	for {
		if off >= len(buf) {
			return "", 0, fmt.Errorf("ixfr: truncated name")
		}
		l := int(buf[off])
		if l&0xC0 != 0 {
			return "", 0, fmt.Errorf("ixfr: compressed name not permitted here")
		}
		off++
		if l == 0 {
			break
		}
		if off+l > len(buf) {
			return "", 0, fmt.Errorf("ixfr: truncated label")
		}
		for _, b := range buf[off : off+l] {
			switch {
			case b == '.' || b == '\\':
				sb.WriteByte('\\')
				sb.WriteByte(b)
			case b < 0x21 || b > 0x7e:
				fmt.Fprintf(&sb, "\\%03d", b)
			default:
				sb.WriteByte(b)
			}
		}
		sb.WriteByte('.')
		off += l
	}
	if sb.Len() == 0 {
		return ".", off, nil
	}
	return sb.String(), off, nil
}

// BuildSOA encodes a full, uncompressed SOA resource record (owner name
// through rdata) for the given apex, reusing the domain library's own RR
// packer with compression disabled so the result satisfies the
// no-compression invariant by construction.
func BuildSOA(apex string, ttl uint32, f SOAFields) ([]byte, error) {
	rr := &dns.SOA{
		Hdr: dns.RR_Header{
			Name:   dns.Fqdn(apex),
			Rrtype: dns.TypeSOA,
			Class:  dns.ClassINET,
			Ttl:    ttl,
		},
		Ns:      dns.Fqdn(f.PrimaryNS),
		Mbox:    dns.Fqdn(f.RName),
		Serial:  f.Serial,
		Refresh: f.Refresh,
		Retry:   f.Retry,
		Expire:  f.Expire,
		Minttl:  f.Minimum,
	}
	return packRR(rr)
}

// packRR serializes rr into a standalone uncompressed wire-format byte
// slice, the storage form every buffer in this package holds.
func packRR(rr dns.RR) ([]byte, error) {
	buf := make([]byte, dns.MaxMsgSize)
	n, err := dns.PackRR(rr, buf, 0, nil, false)
	if err != nil {
		return nil, fmt.Errorf("ixfr: pack %s: %w", dns.TypeToString[rr.Header().Rrtype], err)
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, nil
}

// unpackRR is the read-side counterpart used once a span has already been
// validated by RRLength.
func unpackRR(buf []byte) (dns.RR, error) {
	rr, _, err := dns.UnpackRR(buf, 0)
	if err != nil {
		return nil, fmt.Errorf("ixfr: unpack stored RR: %w", err)
	}
	return rr, nil
}
