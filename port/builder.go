// File: port/builder.go
// Package port
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Port construction. The builder resolves the device, queries capabilities,
// spreads flows across cores with RSS, and sets up one RX/TX queue pair per
// assigned core using the packet pool of that core's socket.

package port

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/affinity"
	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
)

// Builder accumulates port configuration.
type Builder struct {
	name         string
	device       string
	cores        []api.CoreID
	rxCapacity   uint16
	txCapacity   uint16
	pools        map[api.SocketID]*mbuf.Pool
	allMulticast bool
	log          *zap.Logger
}

// NewBuilder starts a port definition.
func NewBuilder(name, device string) *Builder {
	return &Builder{
		name:       name,
		device:     device,
		rxCapacity: 512,
		txCapacity: 512,
		pools:      make(map[api.SocketID]*mbuf.Pool),
		log:        zap.NewNop(),
	}
}

// Cores assigns the worker cores that poll this port.
func (b *Builder) Cores(cores []api.CoreID) *Builder {
	b.cores = cores
	return b
}

// RxCapacity sets the receive descriptor count per queue.
func (b *Builder) RxCapacity(n uint16) *Builder {
	b.rxCapacity = n
	return b
}

// TxCapacity sets the transmit descriptor count per queue.
func (b *Builder) TxCapacity(n uint16) *Builder {
	b.txCapacity = n
	return b
}

// Pools provides the per-socket packet pools for queue setup.
func (b *Builder) Pools(pools map[api.SocketID]*mbuf.Pool) *Builder {
	b.pools = pools
	return b
}

// AllMulticast enables reception of all multicast frames.
func (b *Builder) AllMulticast(on bool) *Builder {
	b.allMulticast = on
	return b
}

// Logger sets the build and runtime logger.
func (b *Builder) Logger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// Build resolves the device and yields a configured Port with one queue
// pair per assigned core.
func (b *Builder) Build(d driver.Driver) (*Port, error) {
	if len(b.cores) == 0 {
		return nil, errors.Errorf("port %q: no cores assigned", b.name)
	}

	dev, err := d.OpenDevice(b.device)
	if err != nil {
		return nil, errors.Wrapf(err, "port %q: open device %q", b.name, b.device)
	}

	caps := dev.Caps()
	nq := uint16(len(b.cores))
	if nq > caps.MaxRxQueues || nq > caps.MaxTxQueues {
		return nil, errors.Wrapf(api.ErrDriver,
			"port %q: %d cores but device supports %d rx / %d tx queues",
			b.name, nq, caps.MaxRxQueues, caps.MaxTxQueues)
	}

	cfg := driver.DeviceConfig{
		RxQueues: nq,
		TxQueues: nq,
		// Spread ip|tcp|udp|sctp flows across queues when more than one
		// core polls the port.
		RSS:      nq > 1,
		FastFree: caps.FastFree,
	}
	if err := dev.Configure(cfg); err != nil {
		return nil, errors.Wrapf(err, "port %q: configure", b.name)
	}

	queues := make(map[api.CoreID]*Queue, len(b.cores))
	for i, core := range b.cores {
		q := api.QueueID(i)
		socket := api.SocketID(affinity.SocketOfCPU(int(core)))
		pool, ok := b.pools[socket]
		if !ok {
			pool, ok = b.pools[api.SocketAny]
		}
		if !ok {
			return nil, errors.Errorf("port %q: no pool for %s", b.name, socket)
		}
		if pool.Socket() != socket && pool.Socket() != api.SocketAny {
			b.log.Warn("queue pool on remote socket",
				zap.String("port", b.name),
				zap.Stringer("core", core),
				zap.Stringer("coreSocket", socket),
				zap.Stringer("poolSocket", pool.Socket()))
		}
		if err := dev.SetupRxQueue(q, b.rxCapacity, socket, pool.Raw()); err != nil {
			return nil, errors.Wrapf(err, "port %q: rx queue %d", b.name, q)
		}
		if err := dev.SetupTxQueue(q, b.txCapacity, socket); err != nil {
			return nil, errors.Wrapf(err, "port %q: tx queue %d", b.name, q)
		}
		queues[core] = &Queue{portID: dev.ID(), rxq: q, txq: q, dev: dev}
	}

	if err := dev.SetAllMulticast(b.allMulticast); err != nil {
		return nil, errors.Wrapf(err, "port %q: all-multicast", b.name)
	}

	return &Port{
		id:     dev.ID(),
		name:   b.name,
		dev:    dev,
		queues: queues,
		log:    b.log,
	}, nil
}
