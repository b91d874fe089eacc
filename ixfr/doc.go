// Package ixfr implements an authoritative server's IXFR engine: the
// ordered per-zone version chains, the wire codec that stores and
// replays RFC 1995 delta payloads, budget-bounded accumulation of new
// deltas, cross-packet response streaming, and on-disk persistence of
// the chain across restarts.
//
// The zone database and the AXFR fallback path are not part of this
// package — see ZoneDatabase and AxfrResponder.
package ixfr
