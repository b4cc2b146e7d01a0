// File: registry/control.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine side of the control channel: a reply socket polled by a
// cooperative task on the master core. Socket I/O lives in one goroutine so
// the REQ/REP lockstep is never violated; the cooperative task exchanges
// frames with it through channels and never blocks.

package registry

import (
	"context"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"
)

// DefaultEndpoint is where the engine listens for client lifecycle
// messages.
const DefaultEndpoint = "tcp://localhost:5555"

// PollInterval is the cadence of the control task's socket poll.
const PollInterval = 10 * time.Millisecond

// DispatchInterval is the cadence of the registration dispatch tick.
const DispatchInterval = 10 * time.Microsecond

// Control is the engine's control-channel endpoint.
type Control struct {
	sock zmq4.Socket
	reg  *Registry
	log  *zap.Logger

	recvCh  chan []byte
	replyCh chan string
	done    chan struct{}

	lastPoll time.Time
	// awaiting is set between consuming a registration request and the
	// dispatcher completing ring allocation.
	awaiting bool
}

// NewControl binds the reply socket on endpoint.
func NewControl(ctx context.Context, endpoint string, reg *Registry, log *zap.Logger) (*Control, error) {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(listenEndpoint(endpoint)); err != nil {
		return nil, err
	}
	c := &Control{
		sock:    sock,
		reg:     reg,
		log:     log,
		recvCh:  make(chan []byte, 1),
		replyCh: make(chan string, 1),
		done:    make(chan struct{}),
	}
	go c.ioLoop()
	return c, nil
}

// listenEndpoint rewrites the client-facing endpoint into a bind address.
func listenEndpoint(ep string) string {
	const prefix = "tcp://localhost"
	if len(ep) >= len(prefix) && ep[:len(prefix)] == prefix {
		return "tcp://127.0.0.1" + ep[len(prefix):]
	}
	return ep
}

// ioLoop owns the socket: receive one request, wait for the task to decide
// the reply, send it, repeat.
func (c *Control) ioLoop() {
	for {
		msg, err := c.sock.Recv()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.log.Warn("control recv", zap.Error(err))
			continue
		}
		select {
		case c.recvCh <- msg.Bytes():
		case <-c.done:
			return
		}
		select {
		case reply := <-c.replyCh:
			if err := c.sock.Send(zmq4.NewMsgString(reply)); err != nil {
				c.log.Warn("control send", zap.Error(err))
			}
		case <-c.done:
			return
		}
	}
}

// Step is the cooperative poll, run on the master executor. Returns true
// when it made progress.
func (c *Control) Step() bool {
	if c.awaiting {
		// Reply owed to a registering client; the dispatcher will settle it
		// through CompleteStarting.
		return false
	}
	if time.Since(c.lastPoll) < PollInterval {
		return false
	}
	c.lastPoll = time.Now()

	select {
	case raw := <-c.recvCh:
		c.handle(raw)
		return true
	default:
		return false
	}
}

func (c *Control) handle(raw []byte) {
	msg, err := ParseMsg(raw)
	if err != nil {
		// Malformed frame: discard the event, balance the socket.
		c.log.Warn("control message discarded",
			zap.ByteString("raw", raw), zap.Error(err))
		c.replyCh <- ReplyError
		return
	}

	c.reg.PostEvent(Event{ID: msg.ID, Type: msg.Type})
	if msg.Type == PodStarting {
		// The registration reply carries the ring-allocation outcome; hold
		// it until the dispatcher has run.
		c.awaiting = true
		return
	}
	c.replyCh <- ReplyAck
}

// CompleteStarting settles the registration reply once the dispatcher has
// allocated (or failed to allocate) the client's rings.
func (c *Control) CompleteStarting(err error) {
	if !c.awaiting {
		return
	}
	c.awaiting = false
	if err != nil {
		c.replyCh <- ReplyError
		return
	}
	c.replyCh <- ReplyOK
}

// Close tears the socket down.
func (c *Control) Close() error {
	close(c.done)
	return c.sock.Close()
}
