// File: port/port.go
// Package port
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ethernet port abstraction: a configured device plus one RX/TX queue pair
// per assigned core. The engine is run-to-completion, so the receive and
// transmit queues are modeled as a pair pinned to the core that runs the
// pipeline.

package port

import (
	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/nethdr"
)

// Port is one started Ethernet device with its per-core queues.
type Port struct {
	id     api.PortID
	name   string
	dev    driver.Device
	queues map[api.CoreID]*Queue
	log    *zap.Logger
}

// ID returns the port id.
func (p *Port) ID() api.PortID { return p.id }

// Name returns the configured port name.
func (p *Port) Name() string { return p.name }

// MAC returns the device hardware address.
func (p *Port) MAC() nethdr.MacAddr { return nethdr.MacAddr(p.dev.MAC()) }

// Queue returns the queue pair assigned to core, if any.
func (p *Port) Queue(core api.CoreID) (*Queue, bool) {
	q, ok := p.queues[core]
	return q, ok
}

// Queues returns all queue pairs keyed by core.
func (p *Port) Queues() map[api.CoreID]*Queue { return p.queues }

// Start enables the device and switches it to promiscuous mode.
func (p *Port) Start() error {
	if err := p.dev.Start(); err != nil {
		return err
	}
	if err := p.dev.SetPromiscuous(true); err != nil {
		return err
	}
	p.log.Info("port started", zap.Stringer("port", p.id), zap.String("device", p.name))
	return nil
}

// Stop disables the device.
func (p *Port) Stop() error {
	p.log.Info("port stopped", zap.Stringer("port", p.id))
	return p.dev.Stop()
}

// Close stops and closes the device.
func (p *Port) Close() error {
	if err := p.dev.Stop(); err != nil {
		return err
	}
	return p.dev.Close()
}

// Queue is a (port, rx queue, tx queue) triple pinned to one core.
type Queue struct {
	portID api.PortID
	rxq    api.QueueID
	txq    api.QueueID
	dev    driver.Device

	// scratch for burst receive, reused across calls; safe because a queue
	// pair belongs to exactly one core.
	rxScratch [api.BurstSize]*driver.Seg
}

// PortID returns the owning port id.
func (q *Queue) PortID() api.PortID { return q.portID }

// Receive returns a burst of up to 32 packets from the receive queue.
func (q *Queue) Receive() []*mbuf.Buffer {
	n := q.dev.RxBurst(q.rxq, q.rxScratch[:])
	if n == 0 {
		return nil
	}
	out := make([]*mbuf.Buffer, n)
	for i := 0; i < n; i++ {
		out[i] = mbuf.FromSeg(q.rxScratch[i])
		q.rxScratch[i] = nil
	}
	return out
}

// Transmit sends packets to the transmit queue, retrying until all are sent
// and draining the sent prefix after each partial send. When a send makes
// zero progress the queue has stalled: the remaining packets are freed
// (tail-drop) and their count is returned as dropped.
func (q *Queue) Transmit(packets []*mbuf.Buffer) (sent, dropped int) {
	segs := make([]*driver.Seg, len(packets))
	for i, b := range packets {
		segs[i] = b.IntoSeg()
	}
	for len(segs) > 0 {
		n := q.dev.TxBurst(q.txq, segs)
		if n == 0 {
			for _, s := range segs {
				if p := s.Pool(); p != nil {
					p.Free(s)
				}
			}
			dropped = len(segs)
			return sent, dropped
		}
		sent += n
		segs = segs[n:]
	}
	return sent, 0
}
