// File: engine/fabric.go
// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Work-stealing transmit fabric. Each core owns a local transmit deque; a
// global injector accepts work from outside the worker set; every core
// holds a stealer on every other core's deque. Batches of up to 32 buffers
// are drained into the target client rings. Ownership of a buffered packet
// stays with the deque holding it until the batch flush hands it to a ring
// or frees it.

package engine

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/ring"
)

// txItem is one packet bound for one client.
type txItem struct {
	client api.ClientID
	buf    *mbuf.Buffer
}

// fabricWorker is one core's transmit queue. Items are appended at the back;
// the owner's PopUpTo and a peer's StealOne both take from the front. The
// mutex is uncontended on the owner path and taken briefly on steals.
type fabricWorker struct {
	mu    sync.Mutex
	items *queue.Queue
}

func newFabricWorker() *fabricWorker {
	return &fabricWorker{items: queue.New()}
}

// Push adds an item to the owner's deque.
func (w *fabricWorker) Push(it txItem) {
	w.mu.Lock()
	w.items.Add(it)
	w.mu.Unlock()
}

// Len returns the current deque length.
func (w *fabricWorker) Len() int {
	w.mu.Lock()
	n := w.items.Length()
	w.mu.Unlock()
	return n
}

// PopUpTo removes up to n items from the front.
func (w *fabricWorker) PopUpTo(n int, out []txItem) []txItem {
	w.mu.Lock()
	for len(out) < n && w.items.Length() > 0 {
		out = append(out, w.items.Remove().(txItem))
	}
	w.mu.Unlock()
	return out
}

// StealOne takes a single item from the deque, if any.
func (w *fabricWorker) StealOne() (txItem, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.items.Length() == 0 {
		return txItem{}, false
	}
	return w.items.Remove().(txItem), true
}

// Fabric is the engine-wide transmit fabric.
type Fabric struct {
	workers  []*fabricWorker
	injector *fabricWorker
}

// NewFabric creates a fabric with one deque per worker core.
func NewFabric(workers int) *Fabric {
	f := &Fabric{injector: newFabricWorker()}
	for i := 0; i < workers; i++ {
		f.workers = append(f.workers, newFabricWorker())
	}
	return f
}

// SubmitLocal queues a packet on the given core's deque. The fabric owns
// the buffer from here on.
func (f *Fabric) SubmitLocal(slot int, client api.ClientID, b *mbuf.Buffer) {
	f.workers[slot].Push(txItem{client: client, buf: b})
}

// Inject queues a packet through the global injector, for producers outside
// the worker set.
func (f *Fabric) Inject(client api.ClientID, b *mbuf.Buffer) {
	f.injector.Push(txItem{client: client, buf: b})
}

// Pending reports queued items across all deques and the injector.
func (f *Fabric) Pending() int {
	n := f.injector.Len()
	for _, w := range f.workers {
		n += w.Len()
	}
	return n
}

// FindBatch builds a transmit batch of up to 32 buffers for the given core:
// top up a short local deque from the injector, pop locally, and if still
// short make round-robin passes over the peers taking at most one item from
// each per pass until the batch fills or a full pass yields nothing.
func (f *Fabric) FindBatch(slot int) []txItem {
	local := f.workers[slot]

	if local.Len() < api.BurstSize {
		for local.Len() < api.BurstSize {
			it, ok := f.injector.StealOne()
			if !ok {
				break
			}
			local.Push(it)
		}
	}

	batch := local.PopUpTo(api.BurstSize, make([]txItem, 0, api.BurstSize))

	for len(batch) < api.BurstSize {
		progress := false
		for i, peer := range f.workers {
			if i == slot {
				continue
			}
			it, ok := peer.StealOne()
			if !ok {
				continue
			}
			batch = append(batch, it)
			progress = true
			if len(batch) == api.BurstSize {
				break
			}
		}
		if !progress {
			break
		}
	}
	return batch
}

// Flush enqueues a batch into the target client rings. A full or missing
// ring tail-drops the packet and records it.
func (f *Fabric) Flush(batch []txItem, rings *ring.RingMap, m *Metrics) (sent int) {
	for _, it := range batch {
		err := rings.Send(it.client, it.buf)
		switch err {
		case nil:
			sent++
			m.Forwarded.WithLabelValues(it.client.String()).Inc()
		case api.ErrRingFull:
			it.buf.Release()
			m.DropClient(it.client)
		default:
			it.buf.Release()
			m.Drops.WithLabelValues(DropUnknownOwner).Inc()
		}
	}
	return sent
}

// Drain releases every queued packet; used at shutdown.
func (f *Fabric) Drain() {
	all := append([]*fabricWorker{f.injector}, f.workers...)
	for _, w := range all {
		for {
			it, ok := w.StealOne()
			if !ok {
				break
			}
			it.buf.Release()
		}
	}
}
