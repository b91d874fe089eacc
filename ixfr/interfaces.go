package ixfr

import "github.com/miekg/dns"

// ZoneDatabase is everything the engine needs from the zone store it
// runs alongside — kept external per §1 (the zone database and the AXFR
// responder are not part of this engine). internal/zonedb provides a
// minimal reference implementation.
type ZoneDatabase interface {
	HasZone(name string) bool
	HasSOA(name string) bool
	CurrentSerial(name string) uint32
	CurrentSOARR(name string) dns.RR
	ApexName(name string) string
}

// AxfrResponder is the fallback path taken when no usable delta chain
// covers the requester's serial (§4.3, NoDeltaAvailable). internal/axfr
// provides a minimal reference implementation built on dns.Transfer.
type AxfrResponder interface {
	StartAXFR(w dns.ResponseWriter, r *dns.Msg) error
}
