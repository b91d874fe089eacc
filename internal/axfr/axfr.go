// Package axfr is a minimal reference AxfrResponder, adapted from the
// host server's ZoneTransferOut. It exists as the fallback path the
// engine's tests exercise when a requester's serial isn't covered by
// any delta chain; the real AXFR responder is not part of this engine.
package axfr

import (
	"fmt"
	"log"
	"sync"

	"github.com/miekg/dns"

	"github.com/johanix/ixfrd/internal/zonedb"
)

// batchSize mirrors the host's 400-RR envelope batching in
// ZoneTransferOut.
const batchSize = 400

// Responder streams a full zone out over dns.Transfer.
type Responder struct {
	DB     *zonedb.DB
	Logger *log.Logger
}

func NewResponder(db *zonedb.DB, logger *log.Logger) *Responder {
	return &Responder{DB: db, Logger: logger}
}

// StartAXFR implements ixfr.AxfrResponder.
func (r *Responder) StartAXFR(w dns.ResponseWriter, req *dns.Msg) error {
	qname := req.Question[0].Name
	z, ok := r.DB.Zone(qname)
	if !ok {
		return fmt.Errorf("axfr: unknown zone %s", qname)
	}

	ch := make(chan *dns.Envelope)
	tr := new(dns.Transfer)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tr.Out(w, req, ch); err != nil {
			r.Logger.Printf("StartAXFR: %s: %v", qname, err)
		}
	}()

	records := z.SnapshotRecords()
	sent := 0
	for len(records) > 0 {
		n := batchSize
		if n > len(records) {
			n = len(records)
		}
		batch := make([]dns.RR, n)
		copy(batch, records[:n])
		ch <- &dns.Envelope{RR: batch}
		sent += n
		records = records[n:]
	}
	close(ch)
	wg.Wait()
	w.Close()

	r.Logger.Printf("StartAXFR: %s: sent %d RRs", qname, sent)
	return nil
}
