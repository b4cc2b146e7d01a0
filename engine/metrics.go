// File: engine/metrics.go
// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Data-plane counters. Every tail-drop in the engine lands here with a
// reason label; forwarding counts are kept per client.

package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-fwd/api"
)

// Drop reasons.
const (
	DropPoolExhausted  = "pool_exhausted"
	DropRingFull       = "ring_full"
	DropTxStalled      = "tx_stalled"
	DropUnknownOwner   = "unknown_owner"
	DropClientNotReady = "client_not_ready"
	DropParseError     = "parse_error"
	DropBackpressure   = "backpressure"
)

// Metrics aggregates the engine's counters.
type Metrics struct {
	Received   prometheus.Counter
	Classified prometheus.Counter
	Forwarded  *prometheus.CounterVec // by client
	Egress     prometheus.Counter
	Drops      *prometheus.CounterVec // by reason
	ClientDrop *prometheus.CounterVec // by client
}

// NewMetrics registers the counter set on reg. Pass nil to register on a
// fresh private registry (tests spin up several engines in one process).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fwd_packets_received_total",
			Help: "Packets received from NIC queues",
		}),
		Classified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fwd_packets_classified_total",
			Help: "Packets classified and routed",
		}),
		Forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fwd_packets_forwarded_total",
			Help: "Packets enqueued to client rings",
		}, []string{"client"}),
		Egress: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fwd_packets_egress_total",
			Help: "Client packets transmitted out ports",
		}),
		Drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fwd_drops_total",
			Help: "Tail-dropped packets by reason",
		}, []string{"reason"}),
		ClientDrop: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fwd_client_drops_total",
			Help: "Packets dropped on a full client ring",
		}, []string{"client"}),
	}
	reg.MustRegister(m.Received, m.Classified, m.Forwarded, m.Egress, m.Drops, m.ClientDrop)
	return m
}

// DropClient records a full-ring drop for one client.
func (m *Metrics) DropClient(id api.ClientID) {
	m.Drops.WithLabelValues(DropRingFull).Inc()
	m.ClientDrop.WithLabelValues(id.String()).Inc()
}
