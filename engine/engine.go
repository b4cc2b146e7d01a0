// File: engine/engine.go
// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Top-level coordinator. Wires the control channel, ring map, routing
// table, port queues and the per-core cooperative task sets, then runs the
// master loop on the calling thread.
//
// Worker cores each host three cooperative tasks: receive, classify, and
// the transmit fabric. The master core hosts the control-channel poll and
// the registration dispatcher.

package engine

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-fwd/affinity"
	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/config"
	"github.com/momentics/hioload-fwd/driver"
	"github.com/momentics/hioload-fwd/mbuf"
	"github.com/momentics/hioload-fwd/port"
	"github.com/momentics/hioload-fwd/registry"
	"github.com/momentics/hioload-fwd/ring"
	"github.com/momentics/hioload-fwd/route"
	"github.com/momentics/hioload-fwd/sched"
)

// Engine is the L2/L3 forwarding plane.
type Engine struct {
	cfg *config.Config
	drv driver.Driver
	log *zap.Logger

	promReg *prometheus.Registry
	metrics *Metrics

	routes *route.RoutingTable
	flows  *route.PortFlowMap
	rings  *ring.RingMap
	reg    *registry.Registry
	cm     *sched.CoreMap
	fabric *Fabric
	ports  []*port.Port

	stop chan struct{}
}

// New wires an engine over the given driver. Ports are built and
// configured here; nothing is started until Run.
func New(cfg *config.Config, drv driver.Driver, log *zap.Logger) (*Engine, error) {
	workers := make([]api.CoreID, len(cfg.WorkerCores))
	for i, c := range cfg.WorkerCores {
		workers[i] = api.CoreID(c)
	}

	cm, err := sched.NewCoreMap(drv, api.CoreID(cfg.MasterCore), workers,
		cfg.PoolCapacity, cfg.PoolCacheSize, log)
	if err != nil {
		return nil, err
	}

	rings := ring.NewRingMap()
	e := &Engine{
		cfg:     cfg,
		drv:     drv,
		log:     log,
		promReg: prometheus.NewRegistry(),
		routes:  route.NewRoutingTable(),
		flows:   route.NewPortFlowMap(),
		rings:   rings,
		cm:      cm,
		fabric:  NewFabric(len(workers)),
		stop:    make(chan struct{}),
	}
	e.metrics = NewMetrics(e.promReg)
	e.reg = registry.New(drv, rings, log)

	for _, pc := range cfg.Ports {
		p, err := port.NewBuilder(pc.Name, pc.Device).
			Cores(workers).
			RxCapacity(cfg.RxDescriptors).
			TxCapacity(cfg.TxDescriptors).
			Pools(cm.Pools()).
			AllMulticast(cfg.AllMulticast).
			Logger(log).
			Build(drv)
		if err != nil {
			return nil, errors.Wrapf(err, "engine: port %q", pc.Name)
		}
		e.ports = append(e.ports, p)
	}
	return e, nil
}

// Registry exposes the client registry.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Rings exposes the ring map.
func (e *Engine) Rings() *ring.RingMap { return e.rings }

// Routes exposes the routing table.
func (e *Engine) Routes() *route.RoutingTable { return e.routes }

// Flows exposes the port-flow map.
func (e *Engine) Flows() *route.PortFlowMap { return e.flows }

// Metrics exposes the counter set.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Fabric exposes the transmit fabric.
func (e *Engine) Fabric() *Fabric { return e.fabric }

// Ports exposes the built ports.
func (e *Engine) Ports() []*port.Port { return e.ports }

// Stop signals shutdown. Run returns after the cores drain.
func (e *Engine) Stop() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

// Run starts the ports and cores and blocks on the master loop until the
// context is canceled or Stop is called.
func (e *Engine) Run(ctx context.Context) error {
	ctrl, err := registry.NewControl(ctx, e.cfg.ControlEndpoint, e.reg, e.log)
	if err != nil {
		return errors.Wrap(err, "engine: control channel")
	}

	if e.cfg.MetricsAddr != "" {
		go e.serveMetrics()
	}

	// Bring up workers. Each core: rx (primary) -> classify -> tx fabric.
	for i, core := range e.cm.WorkerCores() {
		slot := i
		e.cm.Spawn(core, func(w *sched.Worker, ex *sched.Executor) (sched.Task, error) {
			work := newWorkQueue(64)

			var queues []*port.Queue
			var egress *port.Queue
			for _, p := range e.ports {
				if q, ok := p.Queue(w.Core); ok {
					queues = append(queues, q)
					if egress == nil {
						egress = q
					}
				}
			}

			rx := newRxTask(w, queues, work, e.metrics)
			ex.Spawn(rx)
			ex.Spawn(newClassifyTask(slot, work, e.routes, e.flows, e.reg,
				e.fabric, e.metrics, e.log))
			ex.Spawn(newTxTask(slot, e.fabric, e.rings, e.reg, egress, e.metrics))
			return rx, nil
		})
	}

	e.cm.AwaitWorkers()

	for _, p := range e.ports {
		if err := p.Start(); err != nil {
			e.Stop()
			e.cm.StopAll()
			return multierr.Append(errors.Wrap(err, "engine: port start"), e.cm.Wait())
		}
	}
	e.log.Info("engine running",
		zap.Int("workers", len(e.cm.WorkerCores())),
		zap.Int("ports", len(e.ports)),
		zap.String("control", e.cfg.ControlEndpoint))

	// Master loop on the calling thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := affinity.SetAffinity(e.cfg.MasterCore); err != nil {
		e.log.Warn("master affinity", zap.Error(err))
	}
	if pool, ok := e.cm.PoolFor(e.cm.SocketOf(e.cm.Master())); ok {
		mbuf.Bind(pool)
		defer mbuf.Unbind()
	}

	masterSocket := e.cm.SocketOf(e.cm.Master())
	ex := sched.NewExecutor()
	primary := &masterTask{ctx: ctx, stop: e.stop}
	ex.Spawn(primary)
	ex.Spawn(sched.NewTask("control", ctrl.Step, nil))
	ex.Spawn(newDispatchTask(e.reg, ctrl, masterSocket, e.log))
	ex.RunUntil(primary)

	// Shutdown: stop workers, join threads, quiesce the data plane.
	e.cm.StopAll()
	err = e.cm.Wait()
	for _, p := range e.ports {
		err = multierr.Append(err, p.Close())
	}
	e.fabric.Drain()
	e.reg.Teardown()
	err = multierr.Append(err, ctrl.Close())
	e.cm.DestroyPools()
	e.log.Info("engine stopped")
	return err
}

func (e *Engine) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.promReg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(e.cfg.MetricsAddr, mux); err != nil {
		e.log.Warn("metrics listener", zap.Error(err))
	}
}

// masterTask completes when the context is canceled or Stop fires.
type masterTask struct {
	ctx  context.Context
	stop chan struct{}
	done bool
}

func (t *masterTask) Name() string { return "master" }
func (t *masterTask) Done() bool   { return t.done }

func (t *masterTask) Step() bool {
	select {
	case <-t.ctx.Done():
		t.done = true
		return true
	case <-t.stop:
		t.done = true
		return true
	default:
		return false
	}
}

// dispatchTask consumes the registry's pending event on a cooperative tick
// and applies the client state machine. Registration outcomes settle the
// control channel's held reply.
type dispatchTask struct {
	reg    *registry.Registry
	ctrl   *registry.Control
	socket api.SocketID
	log    *zap.Logger
	last   time.Time
}

func newDispatchTask(reg *registry.Registry, ctrl *registry.Control,
	socket api.SocketID, log *zap.Logger) *dispatchTask {
	return &dispatchTask{reg: reg, ctrl: ctrl, socket: socket, log: log}
}

func (t *dispatchTask) Name() string { return "dispatch" }
func (t *dispatchTask) Done() bool   { return false }

func (t *dispatchTask) Step() bool {
	if time.Since(t.last) < registry.DispatchInterval {
		return false
	}
	t.last = time.Now()

	ev, ok := t.reg.TakeEvent()
	if !ok {
		return false
	}
	err := t.reg.Dispatch(ev, t.socket)
	if ev.Type == registry.PodStarting {
		t.ctrl.CompleteStarting(err)
	}
	if err != nil {
		t.log.Warn("control event discarded",
			zap.Stringer("client", ev.ID),
			zap.Stringer("event", ev.Type),
			zap.Error(err))
	}
	return true
}
