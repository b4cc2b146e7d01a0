// File: registry/registry.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Client lifecycle registry. Status reads happen from any core; all
// mutation runs on the master thread through Dispatch, driven by the
// control task. The pending event slot decouples socket polling from ring
// allocation.

package registry

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/ring"
)

// Event is one consumed control message awaiting dispatch.
type Event struct {
	ID   api.ClientID
	Type MsgType
}

// Registry tracks each client's lifecycle state and owns the ring map.
type Registry struct {
	status cmap.ConcurrentMap[api.ClientID, api.ClientStatus]
	rings  *ring.RingMap
	drv    driver.Driver
	log    *zap.Logger

	mu      sync.Mutex
	pending *Event
	nextID  uint16
}

// New creates a registry over the given driver.
func New(d driver.Driver, rings *ring.RingMap, log *zap.Logger) *Registry {
	return &Registry{
		status: cmap.NewStringer[api.ClientID, api.ClientStatus](),
		rings:  rings,
		drv:    d,
		log:    log,
	}
}

// Rings returns the ring map the registry owns.
func (r *Registry) Rings() *ring.RingMap { return r.rings }

// Status returns the lifecycle state of a client. A missing entry means the
// client is unknown or terminated.
func (r *Registry) Status(id api.ClientID) (api.ClientStatus, bool) {
	return r.status.Get(id)
}

// IsReady reports whether packets may flow to the client.
func (r *Registry) IsReady(id api.ClientID) bool {
	st, ok := r.status.Get(id)
	return ok && st == api.Ready
}

// NextClientID hands out the next id from the process-wide monotonic
// counter. Wrap-around is undefined behavior and out of scope.
func (r *Registry) NextClientID() api.ClientID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return api.ClientID(id)
}

// PostEvent stores ev in the single pending slot, replacing any event the
// dispatcher has not consumed yet.
func (r *Registry) PostEvent(ev Event) {
	r.mu.Lock()
	r.pending = &ev
	r.mu.Unlock()
}

// TakeEvent consumes the pending event, if any.
func (r *Registry) TakeEvent() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return Event{}, false
	}
	ev := *r.pending
	r.pending = nil
	return ev, true
}

// Dispatch applies one lifecycle event. socket is the NUMA socket rings are
// allocated on (the dispatching core's socket).
//
// State machine per client: Unknown -> Starting on a successful
// registration (failure tears both rings down and stays Unknown);
// Starting -> Ready on ready; any state -> Unknown on stopping.
func (r *Registry) Dispatch(ev Event, socket api.SocketID) error {
	switch ev.Type {
	case PodStarting:
		ch, err := ring.OpenChannel(r.drv, ev.ID, api.ClientRingCapacity, socket)
		if err != nil {
			r.log.Error("ring allocation failed",
				zap.Stringer("client", ev.ID), zap.Error(err))
			return err
		}
		r.rings.Insert(ev.ID, ch)
		r.status.Set(ev.ID, api.Starting)
		r.log.Info("client registered",
			zap.Stringer("client", ev.ID),
			zap.String("rx", api.RxToClient.Prefix()+ev.ID.String()),
			zap.String("tx", api.TxFromClient.Prefix()+ev.ID.String()))
		return nil

	case PodReady:
		if _, ok := r.status.Get(ev.ID); !ok {
			return api.ErrUnknownClient
		}
		r.status.Set(ev.ID, api.Ready)
		r.log.Info("client ready", zap.Stringer("client", ev.ID))
		return nil

	case PodStopping:
		if _, ok := r.status.Get(ev.ID); !ok {
			return api.ErrUnknownClient
		}
		r.status.Remove(ev.ID)
		err := r.rings.Remove(ev.ID)
		r.log.Info("client stopped", zap.Stringer("client", ev.ID))
		return err

	default:
		return api.ErrUnknownClientStatus
	}
}

// Teardown removes every client: statuses dropped, rings destroyed.
func (r *Registry) Teardown() {
	for _, id := range r.rings.ClientIDs() {
		r.status.Remove(id)
		if err := r.rings.Remove(id); err != nil {
			r.log.Warn("ring teardown", zap.Stringer("client", id), zap.Error(err))
		}
	}
}
