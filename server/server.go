// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Server wires the listening socket, acceptors, reactor pool and worker
// pool together under one lifecycle.

package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"

	"github.com/momentics/hioload-nio/adapters"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/core/lifecycle"
	"github.com/momentics/hioload-nio/endpoint"
	"github.com/momentics/hioload-nio/internal/transport"
	"github.com/momentics/hioload-nio/pool"
	"github.com/momentics/hioload-nio/reactor"
)

// Server is a multi-reactor TCP server.
type Server struct {
	*lifecycle.Lifecycle

	cfg     *Config
	log     logr.Logger
	metrics *control.Metrics
	probes  *control.DebugProbes
	buffers *pool.BytePool
	canned  *endpoint.CannedResponse
	handler api.ConnHandler

	execMu    sync.RWMutex
	exec      api.Executor
	ownedExec *adapters.ExecutorAdapter
	listener  *transport.Listener
	reactors  *reactor.Pool
	acceptors *AcceptorPool
	watcher   *control.FileWatcher

	addr atomic.Pointer[net.TCPAddr]
}

// New builds a stopped server. A nil cfg selects DefaultConfig.
func New(cfg *Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		c := *cfg
		cfg = &c
	}
	for _, o := range opts {
		o(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}

	metrics, err := control.NewMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger.WithName("server"),
		metrics: metrics,
		probes:  control.NewDebugProbes(),
		buffers: pool.NewBytePool(cfg.ReadBufferSize, 0),
		handler: cfg.Handler,
	}
	if s.handler == nil {
		s.canned = endpoint.NewCannedResponse([]byte(cfg.ResponseBody))
		s.handler = s.canned
	}
	s.Lifecycle = lifecycle.New(lifecycle.Hooks{Start: s.doStart, Stop: s.doStop})
	s.registerProbes()
	return s, nil
}

func (s *Server) registerProbes() {
	s.probes.RegisterProbe("server.state", func() any { return s.State().String() })
	s.probes.RegisterProbe("executor.workers", func() any {
		if exec := s.executor(); exec != nil {
			return exec.NumWorkers()
		}
		return 0
	})
	s.probes.RegisterProbe("buffers", func() any { return s.buffers.Stats() })
}

func (s *Server) executor() api.Executor {
	s.execMu.RLock()
	defer s.execMu.RUnlock()
	return s.exec
}

func (s *Server) setExecutor(exec api.Executor) {
	s.execMu.Lock()
	s.exec = exec
	s.execMu.Unlock()
}

func (s *Server) doStart() error {
	exec := s.cfg.Executor
	if exec == nil {
		s.ownedExec = adapters.NewExecutorAdapter(s.cfg.Workers, s.cfg.Logger)
		exec = s.ownedExec
	}
	s.setExecutor(exec)

	factory, err := endpoint.Factory(endpoint.Options{
		Executor: exec,
		Handler:  s.handler,
		Buffers:  s.buffers,
		Logger:   s.cfg.Logger,
		Metrics:  s.metrics,
	})
	if err != nil {
		return multierr.Append(err, s.teardown())
	}

	if s.canned != nil && s.cfg.ResponseFile != "" {
		s.watcher, err = control.WatchFile(s.cfg.ResponseFile, s.canned.SetBody, s.cfg.Logger)
		if err != nil {
			return multierr.Append(fmt.Errorf("response file: %w", err), s.teardown())
		}
	}

	s.listener, err = transport.Listen(s.cfg.ListenAddr, s.cfg.Backlog)
	if err != nil {
		return multierr.Append(err, s.teardown())
	}
	s.addr.Store(s.listener.Addr())

	s.reactors, err = reactor.NewPool(reactor.PoolConfig{
		Size:    s.cfg.Reactors,
		Factory: factory,
		PinCPUs: s.cfg.PinReactors,
		Logger:  s.cfg.Logger,
		Metrics: s.metrics,
	})
	if err != nil {
		return multierr.Append(err, s.teardown())
	}
	if err := s.reactors.Start(); err != nil {
		return multierr.Append(fmt.Errorf("reactor pool: %w", err), s.teardown())
	}
	for _, r := range s.reactors.Reactors() {
		r := r
		s.probes.RegisterProbe(fmt.Sprintf("reactor.%d.keys", r.ID()), func() any { return r.KeyCount() })
		s.probes.RegisterProbe(fmt.Sprintf("reactor.%d.pending", r.ID()), func() any { return r.Pending() })
	}

	s.acceptors = newAcceptorPool(s.cfg.Acceptors, s.listener, s.reactors.Assign, s.IsRunning, s.cfg.Logger, s.metrics)
	s.acceptors.Start()

	s.log.Info("Server started",
		"addr", s.listener.Addr().String(),
		"acceptors", s.cfg.Acceptors,
		"reactors", s.cfg.Reactors,
		"workers", exec.NumWorkers())
	return nil
}

func (s *Server) doStop() error {
	err := s.teardown()
	s.log.Info("Server stopped")
	return err
}

// teardown releases whatever doStart created. The listener fd is closed
// only after every acceptor has returned from accept.
func (s *Server) teardown() error {
	var err error
	if s.listener != nil {
		if e := s.listener.Shutdown(); e != nil {
			err = multierr.Append(err, fmt.Errorf("listener shutdown: %w", e))
		}
	}
	if s.acceptors != nil {
		err = multierr.Append(err, s.acceptors.Wait())
		s.acceptors = nil
	}
	if s.listener != nil {
		err = multierr.Append(err, s.listener.Close())
		s.listener = nil
	}
	if s.reactors != nil {
		for _, r := range s.reactors.Reactors() {
			s.probes.UnregisterProbe(fmt.Sprintf("reactor.%d.keys", r.ID()))
			s.probes.UnregisterProbe(fmt.Sprintf("reactor.%d.pending", r.ID()))
		}
		err = multierr.Append(err, s.reactors.Stop())
		s.reactors = nil
	}
	if s.watcher != nil {
		err = multierr.Append(err, s.watcher.Close())
		s.watcher = nil
	}
	if s.ownedExec != nil {
		s.ownedExec.Close()
		s.ownedExec = nil
	}
	s.setExecutor(nil)
	return err
}

// Addr returns the bound listening address, or nil before the first start.
func (s *Server) Addr() net.Addr {
	if a := s.addr.Load(); a != nil {
		return a
	}
	return nil
}

// Metrics returns the server collectors.
func (s *Server) Metrics() *control.Metrics { return s.metrics }

// Probes returns the debug probe registry.
func (s *Server) Probes() *control.DebugProbes { return s.probes }

// DumpState returns the output of every debug probe.
func (s *Server) DumpState() map[string]any { return s.probes.DumpState() }

// SetResponseBody swaps the canned response body. It fails when a custom
// handler is installed.
func (s *Server) SetResponseBody(body []byte) error {
	if s.canned == nil {
		return api.ErrNotSupported
	}
	s.canned.SetBody(body)
	return nil
}

// Executor returns the worker pool in use while the server runs.
func (s *Server) Executor() api.Executor { return s.executor() }
