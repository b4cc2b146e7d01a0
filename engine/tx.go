// File: engine/tx.go
// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-core transmit task. Builds batches through the work-stealing fabric
// and drains them into client rings; then gives each ready client's return
// ring a chance to egress through this core's queue on the first port.

package engine

import (
	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/port"
	"github.com/momentics/hioload-fwd/registry"
	"github.com/momentics/hioload-fwd/ring"
)

type txTask struct {
	slot    int
	fabric  *Fabric
	rings   *ring.RingMap
	reg     *registry.Registry
	egress  *port.Queue // this core's queue on the first port, nil without ports
	metrics *Metrics
}

func newTxTask(slot int, fabric *Fabric, rings *ring.RingMap, reg *registry.Registry,
	egress *port.Queue, m *Metrics) *txTask {
	return &txTask{
		slot:    slot,
		fabric:  fabric,
		rings:   rings,
		reg:     reg,
		egress:  egress,
		metrics: m,
	}
}

func (t *txTask) Name() string { return "tx-fabric" }

func (t *txTask) Done() bool { return false }

func (t *txTask) Step() bool {
	progress := false

	batch := t.fabric.FindBatch(t.slot)
	if len(batch) > 0 {
		t.fabric.Flush(batch, t.rings, t.metrics)
		progress = true
	}

	if t.egress != nil && t.drainClients() {
		progress = true
	}
	return progress
}

// drainClients moves client-produced packets out the wire, one burst per
// pass.
func (t *txTask) drainClients() bool {
	moved := false
	for _, id := range t.rings.ClientIDs() {
		if !t.reg.IsReady(id) {
			continue
		}
		var out []*mbuf.Buffer
		for len(out) < api.BurstSize {
			b, err := t.rings.Receive(id)
			if err != nil || b == nil {
				break
			}
			out = append(out, b)
		}
		if len(out) == 0 {
			continue
		}
		sent, dropped := t.egress.Transmit(out)
		t.metrics.Egress.Add(float64(sent))
		if dropped > 0 {
			t.metrics.Drops.WithLabelValues(DropTxStalled).Add(float64(dropped))
		}
		moved = true
	}
	return moved
}
