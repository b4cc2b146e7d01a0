// File: ring/ringmap.go
// Package ring
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RingMap owns every client Channel in the engine. Lookups happen on the
// data path from any core; structural mutation (insert/remove) happens only
// on the master thread, driven by the control task.

package ring

import (
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/mbuf"
)

// RingMap maps client ids to their Channels.
type RingMap struct {
	m cmap.ConcurrentMap[api.ClientID, *Channel]
}

// NewRingMap returns an empty map.
func NewRingMap() *RingMap {
	return &RingMap{m: cmap.NewStringer[api.ClientID, *Channel]()}
}

// Insert registers a channel for id.
func (rm *RingMap) Insert(id api.ClientID, ch *Channel) {
	rm.m.Set(id, ch)
}

// Lookup returns the channel for id.
func (rm *RingMap) Lookup(id api.ClientID) (*Channel, bool) {
	return rm.m.Get(id)
}

// Remove drops the channel for id and destroys both rings.
func (rm *RingMap) Remove(id api.ClientID) error {
	ch, ok := rm.m.Get(id)
	if !ok {
		return api.ErrUnknownClient
	}
	rm.m.Remove(id)
	return ch.Close()
}

// Send enqueues a packet toward client id. Fails with api.ErrUnknownClient
// when the client has no channel and api.ErrRingFull when its ring has no
// space; in both cases the caller still owns the packet.
func (rm *RingMap) Send(id api.ClientID, b *mbuf.Buffer) error {
	ch, ok := rm.m.Get(id)
	if !ok {
		return api.ErrUnknownClient
	}
	return ch.Send(b)
}

// Receive dequeues a packet produced by client id. Returns
// api.ErrUnknownClient when the client has no channel; (nil, nil) when the
// ring is empty.
func (rm *RingMap) Receive(id api.ClientID) (*mbuf.Buffer, error) {
	ch, ok := rm.m.Get(id)
	if !ok {
		return nil, api.ErrUnknownClient
	}
	b, ok := ch.Receive()
	if !ok {
		return nil, nil
	}
	return b, nil
}

// Len returns the number of registered channels.
func (rm *RingMap) Len() int { return rm.m.Count() }

// ClientIDs returns a snapshot of registered client ids.
func (rm *RingMap) ClientIDs() []api.ClientID {
	keys := rm.m.Keys()
	return keys
}
