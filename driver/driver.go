// File: driver/driver.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Contracts consumed by the engine. Mirrors the capability surface of a
// DPDK-style poll-mode driver: pools, rings, ethernet devices.

package driver

import (
	"github.com/momentics/hioload-fwd/api"
)

const (
	// DefaultHeadroom is the reserved region before the data in each segment.
	DefaultHeadroom = 128
	// DefaultDataroom is the payload capacity of a single segment. The engine
	// expects the device MTU to fit a single segment; multi-segment packets
	// are rejected by construction.
	DefaultDataroom = 2048
)

// Pool is a named, fixed-capacity allocator of packet segments bound to one
// NUMA socket.
type Pool interface {
	Name() string
	Socket() api.SocketID
	Capacity() int
	CacheSize() int

	// Alloc returns one free segment or api.ErrPoolExhausted.
	Alloc() (*Seg, error)
	// AllocBulk returns exactly n segments or api.ErrPoolExhausted and none.
	AllocBulk(n int) ([]*Seg, error)
	// Free returns a segment to the pool.
	Free(s *Seg)
	// FreeBulk returns segments to the pool in one call. All segments must
	// belong to this pool.
	FreeBulk(segs []*Seg)

	// FreeCount reports the number of segments currently available.
	FreeCount() int

	// Destroy releases the pool. Outstanding segments become invalid.
	Destroy()
}

// Ring is a named lock-free FIFO of packet segments shared between processes
// or threads.
type Ring interface {
	Name() string
	Cap() int
	Len() int
	Enqueue(s *Seg) bool
	Dequeue() (*Seg, bool)
}

// Caps describes device capabilities discovered at configure time.
type Caps struct {
	MaxRxQueues uint16
	MaxTxQueues uint16
	// FastFree: the device may return transmitted segments directly to their
	// pool without per-segment bookkeeping.
	FastFree bool
}

// DeviceConfig carries the configuration applied to a device before start.
type DeviceConfig struct {
	RxQueues uint16
	TxQueues uint16
	// RSS spreads ip|tcp|udp|sctp flows across receive queues. Meaningful
	// only when RxQueues > 1.
	RSS      bool
	FastFree bool
}

// Device is one Ethernet port.
type Device interface {
	ID() api.PortID
	Socket() api.SocketID
	MAC() [6]byte
	Caps() Caps

	Configure(cfg DeviceConfig) error
	SetupRxQueue(q api.QueueID, descriptors uint16, socket api.SocketID, pool Pool) error
	SetupTxQueue(q api.QueueID, descriptors uint16, socket api.SocketID) error

	Start() error
	Stop() error
	Close() error

	SetPromiscuous(on bool) error
	SetAllMulticast(on bool) error

	// RxBurst fills segs with up to len(segs) received packets and returns
	// the count. Never blocks.
	RxBurst(q api.QueueID, segs []*Seg) int
	// TxBurst consumes up to len(segs) packets and returns how many the
	// queue accepted. Accepted segments belong to the device. Never blocks.
	TxBurst(q api.QueueID, segs []*Seg) int
}

// Driver is the top-level factory surface.
type Driver interface {
	// CreatePool creates a named segment pool on the given socket.
	CreatePool(name string, capacity, cacheSize int, socket api.SocketID) (Pool, error)
	LookupPool(name string) (Pool, bool)

	// CreateRing creates a named ring that holds exactly capacity elements.
	CreateRing(name string, capacity int, socket api.SocketID) (Ring, error)
	LookupRing(name string) (Ring, bool)
	DestroyRing(name string) error

	// OpenDevice resolves a device name to a port.
	OpenDevice(name string) (Device, error)

	// SocketOfThread reports the NUMA node of the calling thread, or
	// api.SocketAny when unknown.
	SocketOfThread() api.SocketID
}
