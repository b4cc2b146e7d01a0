// File: engine/workqueue.go
// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded work array between the receive and classify tasks of one core.
// CAS slot reservation on both ends; the receive task stops polling its
// ports for a tick when the array fills (backpressure).

package engine

import (
	"sync/atomic"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/mbuf"
)

// PortBatch is one received burst tagged with its ingress port.
type PortBatch struct {
	Port api.PortID
	Bufs []*mbuf.Buffer
}

// workQueue is a bounded MPMC queue of port batches.
type workQueue struct {
	mask    uint64
	entries []atomic.Pointer[PortBatch]
	head    atomic.Uint64
	_       [64]byte // padding against false sharing
	tail    atomic.Uint64
	_       [64]byte
}

// newWorkQueue rounds capacity up to a power of two.
func newWorkQueue(capacity int) *workQueue {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &workQueue{
		mask:    uint64(size - 1),
		entries: make([]atomic.Pointer[PortBatch], size),
	}
}

func (q *workQueue) Len() int {
	return int(q.tail.Load() - q.head.Load())
}

func (q *workQueue) Full() bool {
	return q.Len() >= len(q.entries)
}

// Push adds a batch; returns false if full.
func (q *workQueue) Push(b *PortBatch) bool {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		if tail-head >= uint64(len(q.entries)) {
			return false
		}
		if q.tail.CompareAndSwap(tail, tail+1) {
			q.entries[tail&q.mask].Store(b)
			return true
		}
	}
}

// Pop removes the oldest batch; ok false if empty.
func (q *workQueue) Pop() (*PortBatch, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		if head >= tail {
			return nil, false
		}
		slot := &q.entries[head&q.mask]
		b := slot.Load()
		if b == nil {
			// Producer reserved the slot but has not stored yet.
			continue
		}
		if q.head.CompareAndSwap(head, head+1) {
			slot.Store(nil)
			return b, true
		}
	}
}
