// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor: one epoll selector driven by one locked OS thread. Interest
// changes requested from other goroutines travel through the change queue
// and are applied by the reactor thread before it blocks again.

package reactor

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/momentics/hioload-nio/affinity"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/core/lifecycle"
	"github.com/momentics/hioload-nio/internal/logging"
)

// Selectable is attached to a key and receives its readiness.
type Selectable interface {
	// OnOpened runs on the reactor thread right after registration.
	OnOpened()
	// OnSelected runs on the reactor thread with the ready subset of the
	// key's interest.
	OnSelected(ready api.Interest)
	// Close releases the connection. It may be called from any goroutine.
	Close()
}

// EndpointFactory builds the attachment for a newly registered socket.
// It runs on the reactor thread.
type EndpointFactory func(r *Reactor, key *Key, sock api.Socket) (Selectable, error)

// ReactorOptions configures a Reactor.
type ReactorOptions struct {
	// Running reports whether the owner still wants the loop to run.
	// Nil means only the reactor's own state is consulted.
	Running func() bool
	Factory EndpointFactory
	// PinCPU pins the loop thread to CPU.
	PinCPU    bool
	CPU       int
	MaxEvents int
	Logger    logr.Logger
	Metrics   *control.Metrics
}

// Reactor multiplexes many connections on one thread.
type Reactor struct {
	*lifecycle.Lifecycle

	id      int
	opts    ReactorOptions
	log     logr.Logger
	metrics *control.ReactorMetrics

	poller Poller
	events []Event

	changes        *changeQueue
	needsWakeup    atomic.Bool
	runningChanges bool

	owner   atomic.Int64
	looping atomic.Bool

	runMu    sync.Mutex
	entered  bool
	loopDone chan struct{}

	// Owned by the reactor thread.
	keys     map[int]*Key
	keyCount atomic.Int64

	// beforeWait is a test seam, set only by tests in this package. It runs
	// on the reactor thread between draining the change queue and blocking
	// in the poller.
	beforeWait func()
}

// NewReactor creates a stopped reactor.
func NewReactor(id int, opts ReactorOptions) (*Reactor, error) {
	if opts.Factory == nil {
		return nil, ErrNoFactory
	}
	if opts.MaxEvents <= 0 {
		opts.MaxEvents = DefaultMaxEvents
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	r := &Reactor{
		id:       id,
		opts:     opts,
		log:      opts.Logger.WithName("reactor").WithValues("reactor", id),
		metrics:  opts.Metrics.ForReactor(id),
		changes:  newChangeQueue(),
		loopDone: make(chan struct{}),
		keys:     make(map[int]*Key),
	}
	r.needsWakeup.Store(true)
	r.Lifecycle = lifecycle.New(lifecycle.Hooks{Start: r.doStart, Stop: r.doStop})
	return r, nil
}

// ID returns the reactor index within its pool.
func (r *Reactor) ID() int { return r.id }

// KeyCount returns the number of registered connections.
func (r *Reactor) KeyCount() int { return int(r.keyCount.Load()) }

// Pending returns the number of queued change tasks.
func (r *Reactor) Pending() int { return r.changes.Len() }

func (r *Reactor) doStart() error {
	p, err := NewPoller(r.opts.MaxEvents)
	if err != nil {
		return fmt.Errorf("reactor %d: %w", r.id, err)
	}
	r.poller = p
	r.events = make([]Event, r.opts.MaxEvents)

	r.runMu.Lock()
	r.entered = false
	r.loopDone = make(chan struct{})
	r.runMu.Unlock()
	r.owner.Store(0)
	return nil
}

func (r *Reactor) doStop() error {
	if r.poller == nil {
		return nil
	}
	r.wakeup()

	r.runMu.Lock()
	entered := r.entered
	r.runMu.Unlock()
	if entered {
		<-r.loopDone
	}
	if n := r.changes.Discard(); n > 0 {
		r.log.V(logging.DEBUG).Info("Discarded change tasks after loop exit", "count", n)
	}
	if err := r.poller.Close(); err != nil {
		return fmt.Errorf("reactor %d: %w", r.id, err)
	}
	return nil
}

func (r *Reactor) running() bool {
	if !r.IsRunning() {
		return false
	}
	return r.opts.Running == nil || r.opts.Running()
}

// Run drives the loop on the calling goroutine until the reactor or its
// owner stops. The goroutine is locked to its OS thread, which becomes the
// only thread allowed to touch the reactor's keys.
func (r *Reactor) Run() error {
	runtime.LockOSThread()

	r.runMu.Lock()
	if !r.IsRunning() || r.poller == nil {
		r.runMu.Unlock()
		runtime.UnlockOSThread()
		return nil
	}
	if !r.owner.CompareAndSwap(0, currentThreadID()) {
		r.runMu.Unlock()
		runtime.UnlockOSThread()
		panic(ErrAlreadyBound)
	}
	r.entered = true
	r.runMu.Unlock()
	defer close(r.loopDone)

	pinned := false
	if r.opts.PinCPU {
		if err := affinity.SetAffinity(r.opts.CPU); err != nil {
			r.log.Error(err, "Failed to pin reactor thread", "cpu", r.opts.CPU)
		} else {
			pinned = true
		}
	}
	if !pinned {
		// A pinned thread exits with the goroutine instead of returning to
		// the scheduler.
		defer runtime.UnlockOSThread()
	}

	r.looping.Store(true)
	defer r.looping.Store(false)
	r.log.V(logging.VERBOSE).Info("Reactor loop started", "tid", r.owner.Load())

	var err error
	for r.running() {
		if err = r.selectOnce(); err != nil {
			r.log.Error(err, "Reactor loop failed")
			break
		}
	}

	r.closeAll()
	r.runChanges()
	r.log.V(logging.VERBOSE).Info("Reactor loop stopped")
	return err
}

func (r *Reactor) selectOnce() error {
	r.processChanges()
	if r.beforeWait != nil {
		r.beforeWait()
	}

	n, err := r.poller.Wait(r.events, -1)
	if err != nil {
		return fmt.Errorf("reactor %d: %w", r.id, err)
	}

	selected := 0
	for _, ev := range r.events[:n] {
		k, ok := r.keys[ev.FD]
		if !ok || !k.Valid() {
			continue
		}
		ready := ev.Ready & k.interest
		if ready == 0 {
			continue
		}
		k.ready = ready
		k.attachment.OnSelected(ready)
		k.ready = 0
		selected++
	}
	r.metrics.RecordSelected(selected)
	return nil
}

func (r *Reactor) processChanges() {
	r.runChanges()
	r.needsWakeup.Store(true)
	r.runChanges()
}

func (r *Reactor) runChanges() {
	if r.runningChanges {
		panic(ErrReentrantDrain)
	}
	r.runningChanges = true
	defer func() { r.runningChanges = false }()

	for {
		task, ok := r.changes.Pop()
		if !ok {
			return
		}
		r.runChange(task)
	}
}

func (r *Reactor) runChange(task func()) {
	r.metrics.RecordChangeTask()
	task()
}

// Submit runs task on the reactor thread. Called on that thread outside a
// drain, queued tasks run first and then task runs inline. Called during a
// drain, task is queued behind the tasks already waiting. From any other
// goroutine, task is queued and the reactor woken up.
func (r *Reactor) Submit(task func()) {
	if r.inLoop() {
		if r.runningChanges {
			r.changes.Push(task)
			return
		}
		r.runChanges()
		r.runChange(task)
		return
	}
	r.changes.Push(task)
	if r.needsWakeup.Load() {
		r.wakeup()
	}
}

func (r *Reactor) wakeup() {
	if r.poller == nil {
		return
	}
	r.metrics.RecordWakeup()
	if err := r.poller.Wakeup(); err != nil && !errors.Is(err, ErrPollerClosed) {
		r.log.Error(err, "Failed to wake reactor")
	}
}

func (r *Reactor) inLoop() bool {
	return r.looping.Load() && r.owner.Load() == currentThreadID()
}

func (r *Reactor) assertInLoop() {
	if !r.inLoop() {
		panic(ErrNotOwner)
	}
}

// Register hands sock to this reactor. Registration happens on the reactor
// thread; the socket is closed if it fails.
func (r *Reactor) Register(sock api.Socket) {
	r.Submit(func() { r.register(sock) })
}

func (r *Reactor) register(sock api.Socket) {
	if !r.running() {
		_ = sock.Close()
		return
	}
	fd := sock.FD()
	k := &Key{r: r, fd: fd, sock: sock}
	att, err := r.opts.Factory(r, k, sock)
	if err != nil {
		r.opts.Metrics.RecordIOError("register")
		r.log.Error(err, "Failed to create endpoint", "fd", fd, "remote", sock.RemoteAddr())
		_ = sock.Close()
		return
	}
	k.attachment = att
	if old, ok := r.keys[fd]; ok {
		r.log.V(logging.DEBUG).Info("Replacing stale key", "fd", fd)
		old.canceled.Store(true)
		r.dropKey(old)
	}
	r.keys[fd] = k
	r.keyCount.Add(1)
	r.metrics.RecordRegistered()
	r.log.V(logging.TRACE).Info("Registered connection", "fd", fd, "remote", sock.RemoteAddr())
	att.OnOpened()
}

func (r *Reactor) deregister(k *Key) {
	if r.keys[k.fd] != k {
		return
	}
	if k.interest != 0 {
		// The socket is usually closed already, which removes it from epoll.
		_ = r.poller.Delete(k.fd)
		k.interest = 0
	}
	r.dropKey(k)
}

func (r *Reactor) dropKey(k *Key) {
	delete(r.keys, k.fd)
	r.keyCount.Add(-1)
	r.metrics.RecordDeregistered()
}

// closeAll closes every attachment still registered.
func (r *Reactor) closeAll() {
	if len(r.keys) == 0 {
		return
	}
	r.log.V(logging.DEBUG).Info("Closing remaining connections", "count", len(r.keys))
	atts := make([]Selectable, 0, len(r.keys))
	for _, k := range r.keys {
		atts = append(atts, k.attachment)
	}
	for _, a := range atts {
		a.Close()
	}
	// Attachments that did not cancel their key.
	for _, k := range r.keys {
		k.canceled.Store(true)
		r.deregister(k)
	}
}
