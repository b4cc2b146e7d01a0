// File: engine/classify.go
// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Classify task: drain the core's work array, extract the five-tuple of
// each packet, learn routes from it, pick the owning client, and hand the
// packet to the transmit fabric.
//
// Owner selection: destination MAC resolves through the routing table to
// the destination IPv4 address; the low 16 bits of that address select the
// client id. Packets with no known owner are dropped.

package engine

import (
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/nethdr"
	"github.com/momentics/hioload-fwd/registry"
	"github.com/momentics/hioload-fwd/route"
)

type classifyTask struct {
	slot    int
	work    *workQueue
	routes  *route.RoutingTable
	flows   *route.PortFlowMap
	reg     *registry.Registry
	fabric  *Fabric
	metrics *Metrics
	log     *zap.Logger
}

func newClassifyTask(slot int, work *workQueue, routes *route.RoutingTable,
	flows *route.PortFlowMap, reg *registry.Registry, fabric *Fabric,
	m *Metrics, log *zap.Logger) *classifyTask {
	return &classifyTask{
		slot:    slot,
		work:    work,
		routes:  routes,
		flows:   flows,
		reg:     reg,
		fabric:  fabric,
		metrics: m,
		log:     log,
	}
}

func (t *classifyTask) Name() string { return "classify" }

func (t *classifyTask) Done() bool { return false }

func (t *classifyTask) Step() bool {
	batch, ok := t.work.Pop()
	if !ok {
		return false
	}
	for _, b := range batch.Bufs {
		t.classify(batch.Port, b)
	}
	return true
}

func (t *classifyTask) classify(portID api.PortID, b *mbuf.Buffer) {
	eth, err := mbuf.Read[nethdr.EtherHdr](b, 0)
	if err != nil || eth.Type() != nethdr.EtherTypeIPv4 {
		b.Release()
		t.metrics.Drops.WithLabelValues(DropParseError).Inc()
		return
	}
	ip, err := mbuf.Read[nethdr.IPv4Hdr](b, nethdr.EtherHdrLen)
	if err != nil {
		b.Release()
		t.metrics.Drops.WithLabelValues(DropParseError).Inc()
		return
	}

	tuple := nethdr.TupleFromHeaders(eth, ip)
	t.flows.Insert(portID, tuple)

	// Learn the destination pair. A conflicting observation leaves the
	// table untouched; forwarding proceeds on the established entry.
	if err := t.routes.Add(tuple.DstMAC, tuple.DstIP); err != nil {
		t.log.Debug("routing entry conflict",
			zap.Stringer("mac", tuple.DstMAC), zap.Stringer("ip", tuple.DstIP))
	}
	t.metrics.Classified.Inc()

	owner, ok := t.ownerOf(tuple.DstMAC)
	if !ok {
		b.Release()
		t.metrics.Drops.WithLabelValues(DropUnknownOwner).Inc()
		return
	}
	if !t.reg.IsReady(owner) {
		// Unknown or Starting clients receive nothing.
		b.Release()
		t.metrics.Drops.WithLabelValues(DropClientNotReady).Inc()
		return
	}
	t.fabric.SubmitLocal(t.slot, owner, b)
}

// ownerOf maps a destination MAC to the owning client id.
func (t *classifyTask) ownerOf(mac nethdr.MacAddr) (api.ClientID, bool) {
	ip, ok := t.routes.LookupIP(mac)
	if !ok {
		return 0, false
	}
	raw := ip.As4()
	return api.ClientID(binary.BigEndian.Uint16(raw[2:4])), true
}
