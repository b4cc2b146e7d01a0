// File: registry/client.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client-side helper for sibling processes. A client allocates its id from
// the process-wide counter, registers over the request socket, looks up its
// rings once the engine replies, and signals ready/stopping around its own
// lifecycle.

package registry

import (
	"context"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/ring"
)

// Process-wide monotonic client id counter, taken under a mutex so
// concurrently starting clients never share an id.
var (
	clientIDMu sync.Mutex
	clientID   uint16
)

// AllocClientID returns the next client id.
func AllocClientID() api.ClientID {
	clientIDMu.Lock()
	defer clientIDMu.Unlock()
	id := clientID
	clientID++
	return api.ClientID(id)
}

// Client is one sibling process's handle on the engine.
type Client struct {
	id       api.ClientID
	endpoint string
	sock     zmq4.Socket
	dialed   bool
	drv      driver.Driver

	rx *ring.Ring // engine -> client
	tx *ring.Ring // client -> engine
}

// NewClient creates a request socket and allocates a client id.
func NewClient(ctx context.Context, endpoint string, d driver.Driver) *Client {
	return &Client{
		id:       AllocClientID(),
		endpoint: endpoint,
		sock:     zmq4.NewReq(ctx),
		drv:      d,
	}
}

// ID returns the client id.
func (c *Client) ID() api.ClientID { return c.id }

// dial connects the request socket once, retrying twice before giving up.
func (c *Client) dial() error {
	if c.dialed {
		return nil
	}
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = c.sock.Dial(c.endpoint); err == nil {
			c.dialed = true
			return nil
		}
	}
	return errors.Wrapf(err, "client %s: connect %s", c.id, c.endpoint)
}

// send delivers one lifecycle message, retrying the connect and the send
// twice each before giving up, and returns the engine's reply frame.
func (c *Client) send(t MsgType) (string, error) {
	if err := c.dial(); err != nil {
		return "", err
	}

	msg := Msg{ID: c.id, Type: t}
	var err error
	sent := false
	for attempt := 0; attempt < 3; attempt++ {
		if err = c.sock.Send(zmq4.NewMsg(msg.Encode())); err == nil {
			sent = true
			break
		}
	}
	if !sent {
		return "", errors.Wrapf(err, "client %s: send %s", c.id, t)
	}

	reply, err := c.sock.Recv()
	if err != nil {
		return "", errors.Wrapf(err, "client %s: reply for %s", c.id, t)
	}
	return string(reply.Bytes()), nil
}

// SendRaw delivers an arbitrary frame and returns the reply. Diagnostic
// surface; the engine treats unparseable frames as discarded events.
func (c *Client) SendRaw(frame []byte) (string, error) {
	if err := c.dial(); err != nil {
		return "", err
	}
	if err := c.sock.Send(zmq4.NewMsg(frame)); err != nil {
		return "", errors.Wrapf(err, "client %s: send raw", c.id)
	}
	reply, err := c.sock.Recv()
	if err != nil {
		return "", errors.Wrapf(err, "client %s: raw reply", c.id)
	}
	return string(reply.Bytes()), nil
}

// Register announces the client and resolves its rings once the engine has
// allocated them.
func (c *Client) Register() error {
	reply, err := c.send(PodStarting)
	if err != nil {
		return err
	}
	if reply != ReplyOK {
		return errors.Wrapf(api.ErrDriver, "client %s: registration rejected (%q)", c.id, reply)
	}
	rx, ok := ring.Lookup(c.drv, c.id, api.RxToClient)
	if !ok {
		return errors.Wrapf(api.ErrNotFound, "client %s: ring RX-%s", c.id, c.id)
	}
	tx, ok := ring.Lookup(c.drv, c.id, api.TxFromClient)
	if !ok {
		return errors.Wrapf(api.ErrNotFound, "client %s: ring TX-%s", c.id, c.id)
	}
	c.rx, c.tx = rx, tx
	return nil
}

// Ready tells the engine to start forwarding to this client.
func (c *Client) Ready() error {
	_, err := c.send(PodReady)
	return err
}

// Stop deregisters the client. Its rings are reclaimed by the engine; the
// client must not touch them afterwards.
func (c *Client) Stop() error {
	_, err := c.send(PodStopping)
	c.rx, c.tx = nil, nil
	return err
}

// Receive takes one forwarded packet, if any.
func (c *Client) Receive() (*mbuf.Buffer, bool) {
	if c.rx == nil {
		return nil, false
	}
	return c.rx.Dequeue()
}

// Send hands one packet to the engine.
func (c *Client) Send(b *mbuf.Buffer) error {
	if c.tx == nil {
		return api.ErrUnknownClient
	}
	return c.tx.Enqueue(b)
}

// Close releases the socket.
func (c *Client) Close() error { return c.sock.Close() }
