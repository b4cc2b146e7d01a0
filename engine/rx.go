// File: engine/rx.go
// Package engine
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Receive task: poll every port queue assigned to this core and hand the
// bursts to the classify task through the core's work array.

package engine

import (
	"github.com/momentics/hioload-fwd/port"
	"github.com/momentics/hioload-fwd/sched"
)

// rxTask is the primary task of each worker core: when it observes the
// shutdown signal and returns done, the executor drops the core's other
// tasks with it.
type rxTask struct {
	worker  *sched.Worker
	queues  []*port.Queue
	work    *workQueue
	metrics *Metrics
	stopped bool
}

func newRxTask(w *sched.Worker, queues []*port.Queue, work *workQueue, m *Metrics) *rxTask {
	return &rxTask{worker: w, queues: queues, work: work, metrics: m}
}

func (t *rxTask) Name() string { return "rx" }

func (t *rxTask) Done() bool { return t.stopped }

func (t *rxTask) Step() bool {
	if t.worker.ShuttingDown() {
		t.stopped = true
		return true
	}
	// Backpressure: a full work array parks RX for one tick so classify
	// can catch up.
	if t.work.Full() {
		return false
	}

	progress := false
	for _, q := range t.queues {
		bufs := q.Receive()
		if len(bufs) == 0 {
			continue
		}
		t.metrics.Received.Add(float64(len(bufs)))
		batch := &PortBatch{Port: q.PortID(), Bufs: bufs}
		if !t.work.Push(batch) {
			// Filled up mid-burst; free the burst and let the next tick
			// retry the port.
			for _, b := range bufs {
				b.Release()
			}
			t.metrics.Drops.WithLabelValues(DropBackpressure).Add(float64(len(bufs)))
			return progress
		}
		progress = true
	}
	return progress
}
