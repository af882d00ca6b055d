// File: server/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor goroutines blocked on the shared listening socket.

package server

import (
	"errors"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/internal/logging"
	"github.com/momentics/hioload-nio/internal/transport"
)

// AcceptorPool runs n accept loops feeding assign.
type AcceptorPool struct {
	n        int
	listener *transport.Listener
	assign   func(api.Socket) error
	running  func() bool
	log      logr.Logger
	metrics  *control.Metrics
	group    errgroup.Group
}

func newAcceptorPool(n int, l *transport.Listener, assign func(api.Socket) error,
	running func() bool, log logr.Logger, metrics *control.Metrics) *AcceptorPool {
	return &AcceptorPool{
		n:        n,
		listener: l,
		assign:   assign,
		running:  running,
		log:      log.WithName("acceptor"),
		metrics:  metrics,
	}
}

// Start launches the accept loops.
func (a *AcceptorPool) Start() {
	for i := 0; i < a.n; i++ {
		id := i
		a.group.Go(func() error {
			a.loop(id)
			return nil
		})
	}
}

// Wait blocks until every accept loop has exited.
func (a *AcceptorPool) Wait() error { return a.group.Wait() }

func (a *AcceptorPool) loop(id int) {
	log := a.log.WithValues("acceptor", id)
	log.V(logging.VERBOSE).Info("Acceptor started")
	for a.running() {
		sock, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, api.ErrListenerClosed) || !a.running() {
				log.V(logging.DEBUG).Info("Acceptor stopped by shutdown", "err", err.Error())
				return
			}
			a.metrics.RecordAcceptError()
			log.Error(err, "Accept failed, acceptor exiting")
			return
		}
		a.metrics.RecordAccepted()
		if err := a.assign(sock); err != nil {
			log.V(logging.DEBUG).Info("Connection refused by reactor pool", "err", err.Error())
		}
	}
	log.V(logging.VERBOSE).Info("Acceptor stopped")
}
