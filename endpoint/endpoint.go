// File: endpoint/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/logging"
	"github.com/momentics/hioload-nio/pool"
	"github.com/momentics/hioload-nio/reactor"
)

// Options are shared by every endpoint a factory creates.
type Options struct {
	// Executor runs read and write callbacks. Required.
	Executor api.Executor
	// Handler produces the reply for each read; nil answers with the
	// default canned HTTP response.
	Handler api.ConnHandler
	// Buffers supplies read scratch buffers; nil allocates a 1 KiB pool.
	Buffers *pool.BytePool
	Logger  logr.Logger
	Metrics *control.Metrics
}

// Endpoint is one connection bound to one reactor.
type Endpoint struct {
	id      uuid.UUID
	sock    api.Socket
	key     *reactor.Key
	reactor *reactor.Reactor

	exec    api.Executor
	handler api.ConnHandler
	buffers *pool.BytePool
	log     logr.Logger
	metrics *control.Metrics

	interest atomic.Uint32
	open     atomic.Bool

	mu              sync.Mutex
	out             []byte
	closeAfterFlush bool

	readTask, writeTask, reconcileTask func()
}

var _ reactor.Selectable = (*Endpoint)(nil)

// Factory returns a reactor.EndpointFactory creating endpoints with opts.
func Factory(opts Options) (reactor.EndpointFactory, error) {
	if opts.Executor == nil {
		return nil, fmt.Errorf("endpoint executor: %w", api.ErrInvalidArgument)
	}
	if opts.Handler == nil {
		opts.Handler = NewCannedResponse(DefaultBody)
	}
	if opts.Buffers == nil {
		opts.Buffers = pool.NewBytePool(1024, 0)
	}
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	return func(r *reactor.Reactor, key *reactor.Key, sock api.Socket) (reactor.Selectable, error) {
		return New(r, key, sock, opts), nil
	}, nil
}

// New creates an open endpoint. opts must carry an Executor, a Handler and
// Buffers.
func New(r *reactor.Reactor, key *reactor.Key, sock api.Socket, opts Options) *Endpoint {
	id := uuid.New()
	e := &Endpoint{
		id:      id,
		sock:    sock,
		key:     key,
		reactor: r,
		exec:    opts.Executor,
		handler: opts.Handler,
		buffers: opts.Buffers,
		log:     opts.Logger.WithName("endpoint").WithValues("conn", id.String(), "remote", sock.RemoteAddr()),
		metrics: opts.Metrics,
	}
	e.readTask = e.onReadable
	e.writeTask = e.onWritable
	e.reconcileTask = e.reconcile
	e.open.Store(true)
	e.metrics.RecordOpened()
	return e
}

// ID returns the endpoint id used in log context.
func (e *Endpoint) ID() uuid.UUID { return e.id }

// IsOpen reports whether Close has not been called.
func (e *Endpoint) IsOpen() bool { return e.open.Load() }

// Interest returns the desired interest set.
func (e *Endpoint) Interest() api.Interest { return api.Interest(e.interest.Load()) }

// OnOpened asks for read interest.
func (e *Endpoint) OnOpened() {
	e.log.V(logging.TRACE).Info("Connection opened")
	e.reactor.Submit(func() { e.updateLocalInterest(api.OpRead, true) })
}

// OnSelected runs on the reactor thread. The ready operations are removed
// from the OS interest and handed to the worker pool, which re-arms them
// when it needs more readiness.
func (e *Endpoint) OnSelected(ready api.Interest) {
	old := e.key.Interest()
	if err := e.key.SetInterest(old &^ ready); err != nil {
		e.fail("interest", err)
		return
	}
	e.updateLocalInterest(ready, false)

	if ready&api.OpRead != 0 {
		e.dispatch(e.readTask)
	}
	if ready&api.OpWrite != 0 {
		e.dispatch(e.writeTask)
	}
}

func (e *Endpoint) dispatch(task func()) {
	if err := e.exec.Submit(task); err != nil {
		e.log.V(logging.DEBUG).Info("Dropping connection, executor refused task", "err", err.Error())
		e.Close()
	}
}

// updateLocalInterest sets or clears op in the desired interest and, when
// that changed the set, queues a reconciliation on the reactor thread.
func (e *Endpoint) updateLocalInterest(op api.Interest, add bool) {
	for {
		old := e.interest.Load()
		next := old &^ uint32(op)
		if add {
			next = old | uint32(op)
		}
		if next == old {
			return
		}
		if e.interest.CompareAndSwap(old, next) {
			break
		}
	}
	e.reactor.Submit(e.reconcileTask)
}

// reconcile runs on the reactor thread.
func (e *Endpoint) reconcile() {
	if !e.open.Load() {
		return
	}
	desired := api.Interest(e.interest.Load())
	if e.key.Interest() == desired {
		return
	}
	if err := e.key.SetInterest(desired); err != nil {
		if errors.Is(err, reactor.ErrKeyCanceled) {
			return
		}
		e.fail("interest", err)
	}
}

func (e *Endpoint) onReadable() {
	if !e.open.Load() {
		return
	}
	buf := e.buffers.Get()
	defer e.buffers.Put(buf)

	n, err := e.sock.Read(buf)
	switch {
	case errors.Is(err, api.ErrWouldBlock):
		e.updateLocalInterest(api.OpRead, true)
		return
	case err != nil:
		e.fail("read", err)
		return
	case n == 0:
		e.log.V(logging.TRACE).Info("Peer closed connection")
		e.Close()
		return
	}
	e.metrics.RecordRead(n)

	out, next := e.handler.OnData(buf[:n])
	e.mu.Lock()
	e.out = append(e.out, out...)
	if next == api.ActionClose {
		e.closeAfterFlush = true
	}
	e.mu.Unlock()

	e.onWritable()
}

func (e *Endpoint) onWritable() {
	if !e.open.Load() {
		return
	}
	e.mu.Lock()
	for len(e.out) > 0 {
		n, err := e.sock.Write(e.out)
		if n > 0 {
			e.out = e.out[n:]
			e.metrics.RecordWritten(n)
		}
		if errors.Is(err, api.ErrWouldBlock) {
			e.mu.Unlock()
			e.updateLocalInterest(api.OpWrite, true)
			return
		}
		if err != nil {
			e.mu.Unlock()
			e.fail("write", err)
			return
		}
	}
	e.out = nil
	closeNow := e.closeAfterFlush
	e.mu.Unlock()

	if closeNow {
		e.Close()
		return
	}
	e.updateLocalInterest(api.OpRead, true)
}

// fail abandons the connection after an I/O error.
func (e *Endpoint) fail(op string, err error) {
	if !e.open.Load() || errors.Is(err, api.ErrSocketClosed) {
		return
	}
	e.metrics.RecordIOError(op)
	e.log.Error(err, "I/O error, closing connection", "op", op)
	e.Close()
}

// Close cancels the key and closes the socket. Callbacks already handed to
// the worker pool observe the closed flag and return. Errors are logged.
func (e *Endpoint) Close() {
	if !e.open.CompareAndSwap(true, false) {
		return
	}
	e.key.Cancel()
	if err := e.sock.Close(); err != nil {
		e.metrics.RecordIOError("close")
		e.log.Error(err, "Failed to close socket")
	}
	e.metrics.RecordClosed()
	e.log.V(logging.TRACE).Info("Connection closed")
}
