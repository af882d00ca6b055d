// File: internal/concurrency/executor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across worker goroutines from a single unbounded
// FIFO. Workers park on a condition variable while the queue is empty.
// Resize grows the pool immediately and shrinks it as surplus workers wake.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/go-logr/logr"

	"github.com/momentics/hioload-nio/api"
)

type TaskFunc = func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  *queue.Queue
	target int
	live   int
	closed bool
	wg     sync.WaitGroup
	log    logr.Logger

	executed atomic.Uint64
	panics   atomic.Uint64
}

var _ api.Executor = (*Executor)(nil)

// NewExecutor creates a new Executor with the given number of workers.
// numWorkers <= 0 selects runtime.NumCPU().
func NewExecutor(numWorkers int, log logr.Logger) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	e := &Executor{
		tasks: queue.New(),
		log:   log.WithName("executor"),
	}
	e.cond = sync.NewCond(&e.mu)

	e.mu.Lock()
	e.target = numWorkers
	for e.live < e.target {
		e.spawnLocked()
	}
	e.mu.Unlock()
	return e
}

// Submit enqueues a task. Returns api.ErrExecutorClosed after Close.
func (e *Executor) Submit(task TaskFunc) error {
	if task == nil {
		return api.ErrInvalidArgument
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return api.ErrExecutorClosed
	}
	e.tasks.Add(task)
	e.mu.Unlock()
	e.cond.Signal()
	return nil
}

// Resize dynamically scales the worker pool. Counts below one are raised to one.
func (e *Executor) Resize(newCount int) {
	if newCount <= 0 {
		newCount = 1
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.target = newCount
	for e.live < e.target {
		e.spawnLocked()
	}
	e.mu.Unlock()
	// Wake idle workers so surplus ones can retire.
	e.cond.Broadcast()
}

// Close stops accepting tasks, lets the workers drain what is queued and
// waits for them to exit. Safe to call more than once.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}

// NumWorkers returns active worker count.
func (e *Executor) NumWorkers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

// Pending returns the number of queued tasks not yet picked up.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tasks.Length()
}

// Executed returns the number of tasks run to completion or panic.
func (e *Executor) Executed() uint64 { return e.executed.Load() }

// Panics returns the number of recovered task panics.
func (e *Executor) Panics() uint64 { return e.panics.Load() }

func (e *Executor) spawnLocked() {
	e.live++
	e.wg.Add(1)
	go e.worker()
}

func (e *Executor) worker() {
	defer e.wg.Done()

	e.mu.Lock()
	for {
		for e.tasks.Length() == 0 && !e.closed && e.live <= e.target {
			e.cond.Wait()
		}
		if e.live > e.target || (e.closed && e.tasks.Length() == 0) {
			e.live--
			e.mu.Unlock()
			return
		}
		task := e.tasks.Remove().(TaskFunc)
		e.mu.Unlock()
		e.safeExecute(task)
		e.mu.Lock()
	}
}

func (e *Executor) safeExecute(task TaskFunc) {
	defer func() {
		e.executed.Add(1)
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.log.Error(nil, "Task panicked", "panic", r)
		}
	}()
	task()
}
