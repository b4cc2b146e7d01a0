// File: sched/executor.go
// Package sched
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-threaded cooperative executor. Tasks are step functions polled
// round-robin on one pinned OS thread; a task yields by returning from its
// step. Idle passes back off with an adaptive spin, then defer to the Go
// scheduler, mirroring the hot-path/backoff split of a poll-mode loop.

package sched

import (
	"runtime"
)

// Task is one cooperative task hosted by an executor.
type Task interface {
	Name() string
	// Step runs one slice of work and returns true if progress was made.
	// Suspension happens only here: returning is the yield point.
	Step() bool
	// Done reports task completion. The executor never steps a done task.
	Done() bool
}

// taskFunc adapts plain functions to Task.
type taskFunc struct {
	name string
	step func() bool
	done func() bool
}

func (t *taskFunc) Name() string { return t.name }
func (t *taskFunc) Step() bool   { return t.step() }
func (t *taskFunc) Done() bool {
	if t.done == nil {
		return false
	}
	return t.done()
}

// NewTask builds a Task from a step function. done may be nil for tasks
// that never complete on their own.
func NewTask(name string, step func() bool, done func() bool) Task {
	return &taskFunc{name: name, step: step, done: done}
}

// Executor hosts a set of cooperative tasks on the calling thread.
type Executor struct {
	tasks []Task
}

// NewExecutor returns an empty executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Spawn adds a task. Not safe after RunUntil starts; install everything first.
func (e *Executor) Spawn(t Task) {
	e.tasks = append(e.tasks, t)
}

// RunUntil steps every task until primary completes, then returns and
// abandons the remaining tasks. This is the whole cancellation story: the
// primary observes the shutdown signal, finishes, and the others are
// dropped with it.
func (e *Executor) RunUntil(primary Task) {
	const maxBackoff = 1 << 20
	backoff := int64(1)
	for {
		progress := false
		if primary.Step() {
			progress = true
		}
		if primary.Done() {
			return
		}
		for _, t := range e.tasks {
			if t == primary || t.Done() {
				continue
			}
			if t.Step() {
				progress = true
			}
		}
		if progress {
			backoff = 1
			continue
		}
		// Idle: spin briefly, yield, widen the spin. Capped so a quiet
		// engine still reacts within a millisecond-scale tick.
		for i := int64(0); i < backoff; i++ {
			_ = i
		}
		runtime.Gosched()
		if backoff < maxBackoff {
			backoff <<= 1
		}
	}
}
