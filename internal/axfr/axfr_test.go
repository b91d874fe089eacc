package axfr

import (
	"io"
	"log"
	"net"
	"testing"

	"github.com/miekg/dns"

	"github.com/johanix/ixfrd/internal/zonedb"
)

// fakeWriter is a minimal dns.ResponseWriter that records every message
// written to it instead of touching the network.
type fakeWriter struct {
	written []*dns.Msg
	closed  bool
}

func (f *fakeWriter) LocalAddr() net.Addr         { return &net.TCPAddr{} }
func (f *fakeWriter) RemoteAddr() net.Addr        { return &net.TCPAddr{} }
func (f *fakeWriter) Write(b []byte) (int, error) { return len(b), nil }
func (f *fakeWriter) Close() error                { f.closed = true; return nil }
func (f *fakeWriter) TsigStatus() error           { return nil }
func (f *fakeWriter) TsigTimersOnly(bool)         {}
func (f *fakeWriter) Hijack()                     {}
func (f *fakeWriter) WriteMsg(m *dns.Msg) error {
	f.written = append(f.written, m.Copy())
	return nil
}

func newTestSOA(t *testing.T, serial uint32) *dns.SOA {
	t.Helper()
	rr, err := dns.NewRR("example.com. 3600 IN SOA ns1.example.com. host.example.com. " +
		"0 3600 900 604800 3600")
	if err != nil {
		t.Fatalf("dns.NewRR: %v", err)
	}
	soa := rr.(*dns.SOA)
	soa.Serial = serial
	return soa
}

func TestStartAXFRStreamsZone(t *testing.T) {
	db := zonedb.NewDB()
	z := zonedb.NewZone("example.com.", newTestSOA(t, 10))
	for i := 0; i < 900; i++ { // force several envelope batches at batchSize=400
		rr, err := dns.NewRR("www.example.com. 3600 IN TXT \"r\"")
		if err != nil {
			t.Fatalf("dns.NewRR: %v", err)
		}
		z.AddRR(rr)
	}
	db.Add(z)

	r := &Responder{DB: db, Logger: log.New(io.Discard, "", 0)}
	req := new(dns.Msg)
	req.SetAxfr("example.com.")

	w := &fakeWriter{}
	if err := r.StartAXFR(w, req); err != nil {
		t.Fatalf("StartAXFR: %v", err)
	}
	if !w.closed {
		t.Errorf("StartAXFR did not close the response writer")
	}

	var total int
	for _, m := range w.written {
		total += len(m.Answer)
	}
	if total != 901 { // SOA + 900 TXT records
		t.Errorf("total RRs written = %d, want 901", total)
	}
	if len(w.written) < 3 {
		t.Errorf("expected multiple envelopes at batchSize=%d for 901 RRs, got %d message(s)", batchSize, len(w.written))
	}
}

func TestStartAXFRUnknownZone(t *testing.T) {
	db := zonedb.NewDB()
	r := &Responder{DB: db, Logger: log.New(io.Discard, "", 0)}
	req := new(dns.Msg)
	req.SetAxfr("nope.example.com.")

	w := &fakeWriter{}
	if err := r.StartAXFR(w, req); err == nil {
		t.Errorf("StartAXFR on an unknown zone should return an error")
	}
}
