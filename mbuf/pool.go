// File: mbuf/pool.go
// Package mbuf
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool wraps a driver segment pool and carries the per-core binding. Each
// worker thread binds the pool for its NUMA socket once, right after CPU
// pinning, and never rebinds.

package mbuf

import (
	"sync"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
)

// Pool is a named, fixed-capacity allocator of Buffers bound to one socket.
type Pool struct {
	raw driver.Pool
}

// CreatePool creates a named pool through the driver.
func CreatePool(d driver.Driver, name string, capacity, cacheSize int, socket api.SocketID) (*Pool, error) {
	raw, err := d.CreatePool(name, capacity, cacheSize, socket)
	if err != nil {
		return nil, err
	}
	return &Pool{raw: raw}, nil
}

// LookupPool resolves a pool by name.
func LookupPool(d driver.Driver, name string) (*Pool, bool) {
	raw, ok := d.LookupPool(name)
	if !ok {
		return nil, false
	}
	return &Pool{raw: raw}, true
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.raw.Name() }

// Socket returns the NUMA socket the pool is bound to.
func (p *Pool) Socket() api.SocketID { return p.raw.Socket() }

// FreeCount reports the number of free buffers.
func (p *Pool) FreeCount() int { return p.raw.FreeCount() }

// Raw returns the underlying driver pool.
func (p *Pool) Raw() driver.Pool { return p.raw }

// Alloc returns one owned buffer or api.ErrPoolExhausted.
func (p *Pool) Alloc() (*Buffer, error) {
	s, err := p.raw.Alloc()
	if err != nil {
		return nil, err
	}
	return FromSeg(s), nil
}

// Destroy releases the pool.
func (p *Pool) Destroy() { p.raw.Destroy() }

// Per-core pool binding. The original keeps the mempool pointer in
// thread-local storage; here the key is the OS thread id, valid because
// worker goroutines are locked to their threads before binding.
var (
	bindMu sync.RWMutex
	bound  = make(map[int]*Pool)
)

// Bind installs p as the calling thread's pool.
func Bind(p *Pool) {
	tid := threadID()
	bindMu.Lock()
	bound[tid] = p
	bindMu.Unlock()
}

// Unbind clears the calling thread's pool binding.
func Unbind() {
	tid := threadID()
	bindMu.Lock()
	delete(bound, tid)
	bindMu.Unlock()
}

// Bound returns the calling thread's pool. Allocating without a bound pool
// is a programmer error surfaced as api.ErrPoolNotBound.
func Bound() (*Pool, error) {
	tid := threadID()
	bindMu.RLock()
	p, ok := bound[tid]
	bindMu.RUnlock()
	if !ok {
		return nil, api.ErrPoolNotBound
	}
	return p, nil
}
