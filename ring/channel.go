// File: ring/channel.go
// Package ring
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Channel is the pair of rings that forms one client's bidirectional data
// path with the engine.

package ring

import (
	"go.uber.org/multierr"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
)

// Channel owns one client's ring pair.
type Channel struct {
	toClient   *Ring // "RX-<id>": engine produces, client consumes
	fromClient *Ring // "TX-<id>": client produces, engine consumes
}

// OpenChannel creates both rings for a client on the given socket.
// On failure neither ring is left behind.
func OpenChannel(d driver.Driver, id api.ClientID, capacity int, socket api.SocketID) (*Channel, error) {
	rx, err := Create(d, id, api.RxToClient, capacity, socket)
	if err != nil {
		return nil, err
	}
	tx, err := Create(d, id, api.TxFromClient, capacity, socket)
	if err != nil {
		derr := rx.Destroy()
		return nil, multierr.Append(err, derr)
	}
	return &Channel{toClient: rx, fromClient: tx}, nil
}

// ToClient returns the engine-to-client ring.
func (c *Channel) ToClient() *Ring { return c.toClient }

// FromClient returns the client-to-engine ring.
func (c *Channel) FromClient() *Ring { return c.fromClient }

// Send enqueues a packet toward the client.
func (c *Channel) Send(b *mbuf.Buffer) error {
	return c.toClient.Enqueue(b)
}

// Receive dequeues a packet the client produced, if any.
func (c *Channel) Receive() (*mbuf.Buffer, bool) {
	return c.fromClient.Dequeue()
}

// Close destroys both rings.
func (c *Channel) Close() error {
	return multierr.Combine(c.toClient.Destroy(), c.fromClient.Destroy())
}
