// File: sched/coremap.go
// Package sched
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CoreMap owns the mapping from configured cores to worker threads. One
// pool is allocated per distinct NUMA socket across the core set; each
// worker thread locks itself to its OS thread, pins to its core, binds the
// socket's pool, and runs a cooperative executor until shutdown.

package sched

import (
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-fwd/affinity"
	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
)

// InstallFunc builds a worker's task set on its own thread, after pinning
// and pool binding. It returns the primary task; the executor runs until
// the primary completes.
type InstallFunc func(w *Worker, ex *Executor) (Task, error)

// Worker is the handle to one spawned core thread.
type Worker struct {
	Core   api.CoreID
	Socket api.SocketID

	shutdown chan struct{}
}

// Shutdown returns the worker's one-shot shutdown channel. Closed exactly
// once by CoreMap.StopAll.
func (w *Worker) Shutdown() <-chan struct{} { return w.shutdown }

// ShuttingDown reports whether the signal has fired.
func (w *Worker) ShuttingDown() bool {
	select {
	case <-w.shutdown:
		return true
	default:
		return false
	}
}

// CoreMap binds worker tasks to physical cores.
type CoreMap struct {
	master  api.CoreID
	workers []api.CoreID
	pools   map[api.SocketID]*mbuf.Pool
	parking *Parking
	log     *zap.Logger

	g       errgroup.Group
	handles []*Worker
}

// NewCoreMap enumerates the core set and allocates one packet pool per
// distinct socket it spans.
func NewCoreMap(d driver.Driver, master api.CoreID, workers []api.CoreID,
	poolCapacity, poolCache int, log *zap.Logger) (*CoreMap, error) {

	cm := &CoreMap{
		master:  master,
		workers: workers,
		pools:   make(map[api.SocketID]*mbuf.Pool),
		parking: NewParking(len(workers)),
		log:     log,
	}

	cores := append([]api.CoreID{master}, workers...)
	cpuIDs := make([]int, len(cores))
	for i, c := range cores {
		cpuIDs[i] = int(c)
	}
	for _, node := range affinity.Sockets(cpuIDs) {
		socket := api.SocketID(node)
		name := "pkt-" + socket.String()
		pool, err := mbuf.CreatePool(d, name, poolCapacity, poolCache, socket)
		if err != nil {
			return nil, errors.Wrapf(err, "coremap: pool for %s", socket)
		}
		cm.pools[socket] = pool
		log.Info("allocated packet pool",
			zap.String("pool", name),
			zap.Stringer("socket", socket),
			zap.Int("capacity", poolCapacity))
	}
	return cm, nil
}

// Master returns the master core id.
func (cm *CoreMap) Master() api.CoreID { return cm.master }

// WorkerCores returns the worker core set.
func (cm *CoreMap) WorkerCores() []api.CoreID { return cm.workers }

// Pools returns the per-socket pools.
func (cm *CoreMap) Pools() map[api.SocketID]*mbuf.Pool { return cm.pools }

// PoolFor returns the pool for a socket, falling back to the any-socket
// pool.
func (cm *CoreMap) PoolFor(socket api.SocketID) (*mbuf.Pool, bool) {
	if p, ok := cm.pools[socket]; ok {
		return p, true
	}
	p, ok := cm.pools[api.SocketAny]
	return p, ok
}

// SocketOf resolves a core's NUMA socket.
func (cm *CoreMap) SocketOf(core api.CoreID) api.SocketID {
	return api.SocketID(affinity.SocketOfCPU(int(core)))
}

// Spawn launches one worker thread on core. The thread pins itself, binds
// its socket's pool, installs tasks, parks until the master's broadcast,
// and then runs its executor until the primary task completes.
//
// An affinity failure is fatal to the worker thread: it still arrives at
// the barrier so AwaitWorkers cannot hang, and once released it exits with
// the error, which Wait returns.
func (cm *CoreMap) Spawn(core api.CoreID, install InstallFunc) *Worker {
	socket := cm.SocketOf(core)
	w := &Worker{
		Core:     core,
		Socket:   socket,
		shutdown: make(chan struct{}),
	}
	cm.handles = append(cm.handles, w)

	cm.g.Go(func() error {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := affinity.SetAffinity(int(core)); err != nil {
			// Still arrive so the master barrier cannot hang; the thread
			// dies right after.
			cm.parking.Arrive()
			return errors.Wrapf(api.ErrAffinity, "core %s: %v", core, err)
		}

		pool, ok := cm.PoolFor(socket)
		if !ok {
			cm.parking.Arrive()
			return errors.Errorf("core %s: no pool for %s", core, socket)
		}
		mbuf.Bind(pool)
		defer mbuf.Unbind()

		ex := NewExecutor()
		primary, err := install(w, ex)
		if err != nil {
			cm.parking.Arrive()
			return errors.Wrapf(err, "core %s: task install", core)
		}

		cm.log.Debug("worker initialized",
			zap.Stringer("core", core), zap.Stringer("socket", socket))
		cm.parking.Arrive()

		ex.RunUntil(primary)
		return nil
	})
	return w
}

// AwaitWorkers blocks until every spawned worker finished thread-local
// initialization, then releases them all.
func (cm *CoreMap) AwaitWorkers() {
	cm.parking.AwaitAll(len(cm.handles))
	cm.parking.Unpark()
	cm.log.Info("workers released", zap.Int("count", len(cm.handles)))
}

// StopAll fires every worker's shutdown signal.
func (cm *CoreMap) StopAll() {
	for _, w := range cm.handles {
		select {
		case <-w.shutdown:
		default:
			close(w.shutdown)
		}
	}
}

// Wait joins every worker thread and returns the first error.
func (cm *CoreMap) Wait() error {
	return cm.g.Wait()
}

// DestroyPools releases every per-socket pool.
func (cm *CoreMap) DestroyPools() {
	for _, p := range cm.pools {
		p.Destroy()
	}
}
