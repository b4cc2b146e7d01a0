// File: driver/memring.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free MPMC ring of packet segments. Bounded circular buffer with CAS
// slot reservation on both ends, padded to prevent false sharing.

package driver

import (
	"sync/atomic"

	"github.com/momentics/hioload-fwd/api"
)

// Ensure compile-time interface compliance.
var _ api.Ring[*Seg] = (*memRing)(nil)

// memRing is a lock-free ring buffer of *Seg. The slot array is a power of
// two for cheap masking; the usable capacity is exactly the requested one.
type memRing struct {
	name     string
	mask     uint64
	capacity uint64
	data     []atomic.Pointer[Seg]
	head     atomic.Uint64
	_        [64]byte // Padding for hot/cold separation
	tail     atomic.Uint64
	_        [64]byte
}

// newMemRing allocates a ring holding exactly capacity elements. The slot
// array is the next power of two above it, so producers and consumers mask
// instead of dividing.
func newMemRing(name string, capacity int) *memRing {
	size := 1
	for size < capacity+1 {
		size <<= 1
	}
	return &memRing{
		name:     name,
		mask:     uint64(size - 1),
		capacity: uint64(capacity),
		data:     make([]atomic.Pointer[Seg], size),
	}
}

func (r *memRing) Name() string { return r.name }

func (r *memRing) Cap() int { return int(r.capacity) }

func (r *memRing) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int(tail - head)
}

// Enqueue adds a segment; returns false if full.
func (r *memRing) Enqueue(s *Seg) bool {
	for {
		head := r.head.Load()
		tail := r.tail.Load()
		if tail-head >= r.capacity {
			return false
		}
		// Attempt to reserve the tail slot atomically.
		if r.tail.CompareAndSwap(tail, tail+1) {
			r.data[tail&r.mask].Store(s)
			return true
		}
		// CAS failed: another producer claimed the slot, retry.
	}
}

// Dequeue removes and returns a segment; ok false if empty.
func (r *memRing) Dequeue() (*Seg, bool) {
	for {
		head := r.head.Load()
		tail := r.tail.Load()
		if head >= tail {
			return nil, false
		}
		slot := &r.data[head&r.mask]
		s := slot.Load()
		if s == nil {
			// The producer reserved the slot but has not stored yet.
			continue
		}
		if r.head.CompareAndSwap(head, head+1) {
			slot.Store(nil)
			return s, true
		}
		// CAS failed: another consumer claimed the slot, retry.
	}
}
