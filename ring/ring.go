// File: ring/ring.go
// Package ring
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Named packet rings for engine<->client exchange. A ring is intended to
// connect exactly two parties: at most one producer and one consumer task
// may reference each ring.

package ring

import (
	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
)

// Name derives the ring name from client id and direction: "RX-<id>" for
// engine-to-client, "TX-<id>" for client-to-engine.
func Name(id api.ClientID, dir api.Direction) string {
	return dir.Prefix() + id.String()
}

// Ring is a named lock-free queue of packet buffers.
type Ring struct {
	clientID api.ClientID
	dir      api.Direction
	raw      driver.Ring
	drv      driver.Driver
}

// Create creates the named ring on the given socket.
func Create(d driver.Driver, id api.ClientID, dir api.Direction, capacity int, socket api.SocketID) (*Ring, error) {
	raw, err := d.CreateRing(Name(id, dir), capacity, socket)
	if err != nil {
		return nil, err
	}
	return &Ring{clientID: id, dir: dir, raw: raw, drv: d}, nil
}

// Lookup resolves an already created ring by its derived name.
func Lookup(d driver.Driver, id api.ClientID, dir api.Direction) (*Ring, bool) {
	raw, ok := d.LookupRing(Name(id, dir))
	if !ok {
		return nil, false
	}
	return &Ring{clientID: id, dir: dir, raw: raw, drv: d}, true
}

// ClientID returns the owning client id.
func (r *Ring) ClientID() api.ClientID { return r.clientID }

// Direction returns the ring direction.
func (r *Ring) Direction() api.Direction { return r.dir }

// Name returns the derived ring name.
func (r *Ring) Name() string { return Name(r.clientID, r.dir) }

// Len returns the number of queued packets.
func (r *Ring) Len() int { return r.raw.Len() }

// Cap returns the usable ring capacity.
func (r *Ring) Cap() int { return r.raw.Cap() }

// Enqueue hands one buffer to the ring. On success the ring owns the
// packet; on api.ErrRingFull ownership stays with the caller.
func (r *Ring) Enqueue(b *mbuf.Buffer) error {
	if !r.raw.Enqueue(b.Seg()) {
		return api.ErrRingFull
	}
	b.IntoSeg()
	return nil
}

// Dequeue takes one buffer off the ring; the caller owns the result.
func (r *Ring) Dequeue() (*mbuf.Buffer, bool) {
	s, ok := r.raw.Dequeue()
	if !ok {
		return nil, false
	}
	return mbuf.FromSeg(s), true
}

// Destroy frees the ring. Queued packets are returned to their pools by the
// driver.
func (r *Ring) Destroy() error {
	return r.drv.DestroyRing(r.Name())
}
