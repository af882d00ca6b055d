// File: reactor/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pool of reactors fed in round-robin order.

package reactor

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/hioload-nio/affinity"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/control"
	"github.com/momentics/hioload-nio/core/lifecycle"
)

// PoolConfig configures a reactor pool.
type PoolConfig struct {
	// Size is the number of reactors; <= 0 selects runtime.NumCPU().
	Size    int
	Factory EndpointFactory
	// PinCPUs pins reactor i to CPU i mod NumCPU.
	PinCPUs   bool
	MaxEvents int
	Logger    logr.Logger
	Metrics   *control.Metrics
}

// Pool owns the reactors and the goroutines running their loops.
type Pool struct {
	*lifecycle.Lifecycle

	cfg PoolConfig
	log logr.Logger

	reactors atomic.Pointer[[]*Reactor]
	counter  atomic.Uint64
	group    *errgroup.Group
}

// NewPool creates a stopped pool.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Factory == nil {
		return nil, ErrNoFactory
	}
	if cfg.Size <= 0 {
		cfg.Size = runtime.NumCPU()
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	p := &Pool{cfg: cfg, log: cfg.Logger.WithName("reactor-pool")}
	p.Lifecycle = lifecycle.New(lifecycle.Hooks{Start: p.doStart, Stop: p.doStop})
	return p, nil
}

func (p *Pool) doStart() error {
	reactors := make([]*Reactor, 0, p.cfg.Size)
	stopAll := func() error {
		var err error
		for _, r := range reactors {
			err = multierr.Append(err, r.Stop())
		}
		return err
	}

	for i := 0; i < p.cfg.Size; i++ {
		r, err := NewReactor(i, ReactorOptions{
			Running:   p.IsRunning,
			Factory:   p.cfg.Factory,
			PinCPU:    p.cfg.PinCPUs,
			CPU:       affinity.CPUFor(i),
			MaxEvents: p.cfg.MaxEvents,
			Logger:    p.cfg.Logger,
			Metrics:   p.cfg.Metrics,
		})
		if err != nil {
			return multierr.Append(err, stopAll())
		}
		if err := r.Start(); err != nil {
			return multierr.Append(fmt.Errorf("start reactor %d: %w", i, err), stopAll())
		}
		reactors = append(reactors, r)
	}

	p.group = new(errgroup.Group)
	for _, r := range reactors {
		p.group.Go(r.Run)
	}
	p.reactors.Store(&reactors)
	p.log.Info("Reactor pool started", "reactors", len(reactors), "pinned", p.cfg.PinCPUs)
	return nil
}

func (p *Pool) doStop() error {
	rs := p.reactors.Swap(nil)
	if rs == nil {
		return nil
	}
	var err error
	for _, r := range *rs {
		err = multierr.Append(err, r.Stop())
	}
	if p.group != nil {
		err = multierr.Append(err, p.group.Wait())
	}
	p.log.Info("Reactor pool stopped")
	return err
}

// Reactors returns the running reactors, or nil when the pool is stopped.
func (p *Pool) Reactors() []*Reactor {
	rs := p.reactors.Load()
	if rs == nil {
		return nil
	}
	return *rs
}

// Assign hands sock to the next reactor in round-robin order. On a pool
// that is not running the socket is closed and ErrPoolNotRunning returned.
func (p *Pool) Assign(sock api.Socket) error {
	rs := p.reactors.Load()
	if rs == nil || !p.IsRunning() {
		_ = sock.Close()
		return ErrPoolNotRunning
	}
	(*rs)[p.choose(len(*rs))].Register(sock)
	return nil
}

func (p *Pool) choose(n int) int {
	s := p.counter.Add(1) - 1
	return int(s % uint64(n))
}
