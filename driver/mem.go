// File: driver/mem.go
// Package driver
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory driver backend. Pools are freelist-backed slab allocators, rings
// live in a process-wide name registry, devices are software loopbacks with
// an injectable receive feed and a captured transmit sink.

package driver

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-fwd/api"
)

// Mem is the software Driver implementation.
type Mem struct {
	mu      sync.RWMutex
	pools   map[string]*memPool
	rings   map[string]*memRing
	devices map[string]*MemDevice
	nextID  api.PortID
}

// NewMem creates an empty in-memory driver.
func NewMem() *Mem {
	return &Mem{
		pools:   make(map[string]*memPool),
		rings:   make(map[string]*memRing),
		devices: make(map[string]*MemDevice),
	}
}

// CreatePool creates a named segment pool.
func (m *Mem) CreatePool(name string, capacity, cacheSize int, socket api.SocketID) (Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pools[name]; ok {
		return nil, errors.Wrapf(api.ErrAlreadyExists, "pool %q", name)
	}
	if capacity <= 0 {
		return nil, errors.Errorf("pool %q: capacity must be positive", name)
	}
	p := newMemPool(name, capacity, cacheSize, socket)
	m.pools[name] = p
	return p, nil
}

// LookupPool resolves a pool by name.
func (m *Mem) LookupPool(name string) (Pool, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[name]
	if !ok {
		return nil, false
	}
	return p, true
}

// CreateRing creates a named ring.
func (m *Mem) CreateRing(name string, capacity int, socket api.SocketID) (Ring, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rings[name]; ok {
		return nil, errors.Wrapf(api.ErrAlreadyExists, "ring %q", name)
	}
	r := newMemRing(name, capacity)
	m.rings[name] = r
	return r, nil
}

// LookupRing resolves an already created ring by name.
func (m *Mem) LookupRing(name string) (Ring, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rings[name]
	if !ok {
		return nil, false
	}
	return r, true
}

// DestroyRing frees a named ring. Segments still queued are freed to their
// pools so teardown never leaks.
func (m *Mem) DestroyRing(name string) error {
	m.mu.Lock()
	r, ok := m.rings[name]
	delete(m.rings, name)
	m.mu.Unlock()
	if !ok {
		return errors.Wrapf(api.ErrNotFound, "ring %q", name)
	}
	for {
		s, ok := r.Dequeue()
		if !ok {
			break
		}
		if s.pool != nil {
			s.pool.Free(s)
		}
	}
	return nil
}

// OpenDevice resolves a device name, creating a loopback on first open.
func (m *Mem) OpenDevice(name string) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.devices[name]; ok {
		return d, nil
	}
	d := newMemDevice(m.nextID, name)
	m.nextID++
	m.devices[name] = d
	return d, nil
}

// SocketOfThread reports no placement constraint; the in-memory backend has
// no NUMA locality to exploit.
func (m *Mem) SocketOfThread() api.SocketID { return api.SocketAny }

// memPool is a freelist-backed slab allocator.
type memPool struct {
	name      string
	capacity  int
	cacheSize int
	socket    api.SocketID
	free      chan *Seg
	destroyed sync.Once
}

func newMemPool(name string, capacity, cacheSize int, socket api.SocketID) *memPool {
	p := &memPool{
		name:      name,
		capacity:  capacity,
		cacheSize: cacheSize,
		socket:    socket,
		free:      make(chan *Seg, capacity),
	}
	for i := 0; i < capacity; i++ {
		s := &Seg{
			Buf:  make([]byte, DefaultHeadroom+DefaultDataroom),
			pool: p,
		}
		s.Reset()
		p.free <- s
	}
	return p
}

func (p *memPool) Name() string { return p.name }
func (p *memPool) Socket() api.SocketID { return p.socket }
func (p *memPool) Capacity() int { return p.capacity }
func (p *memPool) CacheSize() int { return p.cacheSize }
func (p *memPool) FreeCount() int { return len(p.free) }

func (p *memPool) Alloc() (*Seg, error) {
	select {
	case s := <-p.free:
		s.Reset()
		return s, nil
	default:
		return nil, errors.Wrapf(api.ErrPoolExhausted, "pool %q", p.name)
	}
}

func (p *memPool) AllocBulk(n int) ([]*Seg, error) {
	segs := make([]*Seg, 0, n)
	for i := 0; i < n; i++ {
		s, err := p.Alloc()
		if err != nil {
			p.FreeBulk(segs)
			return nil, err
		}
		segs = append(segs, s)
	}
	return segs, nil
}

func (p *memPool) Free(s *Seg) {
	if s == nil || s.pool != p {
		return
	}
	select {
	case p.free <- s:
	default:
		// Double free; drop on the floor rather than corrupt the freelist.
	}
}

func (p *memPool) FreeBulk(segs []*Seg) {
	for _, s := range segs {
		p.Free(s)
	}
}

func (p *memPool) Destroy() {
	p.destroyed.Do(func() {
		for {
			select {
			case <-p.free:
			default:
				return
			}
		}
	})
}

// MemDevice is a software loopback port. Tests and dev mode feed it frames
// with InjectRx and observe transmissions through Transmitted.
type MemDevice struct {
	id   api.PortID
	name string
	mac  [6]byte

	mu        sync.Mutex
	cfg       DeviceConfig
	rxQueues  []*memRing
	rxPools   []Pool
	txQueues  []*memRing
	started   bool
	closed    bool
	promisc   bool
	allMulti  bool
	txStall   bool
	txSink    [][]byte
}

func newMemDevice(id api.PortID, name string) *MemDevice {
	d := &MemDevice{id: id, name: name}
	// Locally administered unicast MAC derived from the port id.
	d.mac = [6]byte{0x02, 0x00, 0x00, 0x00, byte(id >> 8), byte(id)}
	return d
}

func (d *MemDevice) ID() api.PortID { return d.id }
func (d *MemDevice) Socket() api.SocketID { return api.SocketAny }
func (d *MemDevice) MAC() [6]byte { return d.mac }

func (d *MemDevice) Caps() Caps {
	return Caps{MaxRxQueues: 16, MaxTxQueues: 16, FastFree: true}
}

func (d *MemDevice) Configure(cfg DeviceConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.Wrapf(api.ErrDriver, "device %q closed", d.name)
	}
	caps := d.Caps()
	if cfg.RxQueues > caps.MaxRxQueues || cfg.TxQueues > caps.MaxTxQueues {
		return errors.Wrapf(api.ErrDriver, "device %q: queue count exceeds capabilities", d.name)
	}
	d.cfg = cfg
	d.rxQueues = make([]*memRing, cfg.RxQueues)
	d.rxPools = make([]Pool, cfg.RxQueues)
	d.txQueues = make([]*memRing, cfg.TxQueues)
	return nil
}

func (d *MemDevice) SetupRxQueue(q api.QueueID, descriptors uint16, socket api.SocketID, pool Pool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(q) >= len(d.rxQueues) {
		return errors.Wrapf(api.ErrDriver, "device %q: rx queue %d not configured", d.name, q)
	}
	d.rxQueues[q] = newMemRing(d.name+"-rxq", int(descriptors))
	d.rxPools[q] = pool
	return nil
}

func (d *MemDevice) SetupTxQueue(q api.QueueID, descriptors uint16, socket api.SocketID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(q) >= len(d.txQueues) {
		return errors.Wrapf(api.ErrDriver, "device %q: tx queue %d not configured", d.name, q)
	}
	d.txQueues[q] = newMemRing(d.name+"-txq", int(descriptors))
	return nil
}

func (d *MemDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.Wrapf(api.ErrDriver, "device %q closed", d.name)
	}
	d.started = true
	return nil
}

func (d *MemDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

func (d *MemDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.closed = true
	return nil
}

func (d *MemDevice) SetPromiscuous(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.promisc = on
	return nil
}

func (d *MemDevice) SetAllMulticast(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allMulti = on
	return nil
}

// InjectRx copies a frame into a pool segment and queues it on rx queue q.
// Returns false when the queue or pool is exhausted.
func (d *MemDevice) InjectRx(q api.QueueID, frame []byte) bool {
	d.mu.Lock()
	if int(q) >= len(d.rxQueues) || d.rxQueues[q] == nil {
		d.mu.Unlock()
		return false
	}
	ring := d.rxQueues[q]
	pool := d.rxPools[q]
	d.mu.Unlock()

	s, err := pool.Alloc()
	if err != nil {
		return false
	}
	if len(frame) > s.Tailroom() {
		pool.Free(s)
		return false
	}
	copy(s.Buf[s.DataOff:], frame)
	s.DataLen = uint16(len(frame))
	s.PktLen = uint32(len(frame))
	if !ring.Enqueue(s) {
		pool.Free(s)
		return false
	}
	return true
}

// SetTxStall makes TxBurst report zero progress; used to exercise tail-drop.
func (d *MemDevice) SetTxStall(on bool) {
	d.mu.Lock()
	d.txStall = on
	d.mu.Unlock()
}

// Transmitted returns copies of all frames sent so far.
func (d *MemDevice) Transmitted() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.txSink))
	copy(out, d.txSink)
	return out
}

func (d *MemDevice) RxBurst(q api.QueueID, segs []*Seg) int {
	d.mu.Lock()
	if !d.started || int(q) >= len(d.rxQueues) || d.rxQueues[q] == nil {
		d.mu.Unlock()
		return 0
	}
	ring := d.rxQueues[q]
	d.mu.Unlock()

	n := 0
	for n < len(segs) {
		s, ok := ring.Dequeue()
		if !ok {
			break
		}
		segs[n] = s
		n++
	}
	return n
}

func (d *MemDevice) TxBurst(q api.QueueID, segs []*Seg) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.txStall {
		return 0
	}
	for _, s := range segs {
		frame := make([]byte, s.DataLen)
		copy(frame, s.Data())
		d.txSink = append(d.txSink, frame)
		if s.pool != nil {
			s.pool.Free(s)
		}
	}
	return len(segs)
}
