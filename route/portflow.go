// File: route/portflow.go
// Package route
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PortFlowMap records the most recent five-tuple observed per port. Inserts
// happen on every classified packet from any core, so the map is sharded for
// wait-free inserts on distinct shards.

package route

import (
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/nethdr"
)

// PortFlowMap maps a port id to the last FiveTuple seen on it.
type PortFlowMap struct {
	m cmap.ConcurrentMap[string, nethdr.FiveTuple]
}

// NewPortFlowMap returns an empty map.
func NewPortFlowMap() *PortFlowMap {
	return &PortFlowMap{m: cmap.New[nethdr.FiveTuple]()}
}

// Insert records tuple as the latest flow on port.
func (p *PortFlowMap) Insert(port api.PortID, tuple nethdr.FiveTuple) {
	p.m.Set(port.String(), tuple)
}

// Lookup returns the latest flow observed on port.
func (p *PortFlowMap) Lookup(port api.PortID) (nethdr.FiveTuple, bool) {
	return p.m.Get(port.String())
}

// Len returns the number of ports with a recorded flow.
func (p *PortFlowMap) Len() int { return p.m.Count() }

// Clear drops all entries; used on reconfiguration.
func (p *PortFlowMap) Clear() { p.m.Clear() }
