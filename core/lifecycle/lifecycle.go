// File: core/lifecycle/lifecycle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Generic start/stop/fail state tracker embedded by every long-lived
// component (server, reactor pool, reactor).

package lifecycle

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-nio/api"
)

// State is the lifecycle state of a component.
type State int32

const (
	Failed   State = -1
	Stopped  State = 0
	Starting State = 1
	Started  State = 2
	Stopping State = 3
)

// String returns the upper-case state name.
func (s State) String() string {
	switch s {
	case Failed:
		return "FAILED"
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Started:
		return "STARTED"
	case Stopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// Hooks are the extension points run inside Start and Stop.
// A nil hook is treated as a no-op.
type Hooks struct {
	Start func() error
	Stop  func() error
}

// Lifecycle serialises Start and Stop under one mutex and publishes the
// current state atomically so queries never block.
//
// Failed is not special-cased: Start from Failed runs the start hook again
// and Stop from Failed runs the stop hook.
type Lifecycle struct {
	mu    sync.Mutex
	state atomic.Int32
	hooks Hooks
}

var _ api.LifeCycle = (*Lifecycle)(nil)

// New returns a Lifecycle in the Stopped state.
func New(hooks Hooks) *Lifecycle {
	return &Lifecycle{hooks: hooks}
}

// Start transitions Stopped (or Failed) to Started via Starting. A hook
// error or panic leaves the instance Failed; the error is returned and the
// panic re-raised.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st := l.State(); st == Started || st == Starting {
		return nil
	}
	l.set(Starting)
	if err := l.run(l.hooks.Start); err != nil {
		return err
	}
	l.set(Started)
	return nil
}

// Stop is the mirror image of Start over Stopped/Stopping.
func (l *Lifecycle) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if st := l.State(); st == Stopped || st == Stopping {
		return nil
	}
	l.set(Stopping)
	if err := l.run(l.hooks.Stop); err != nil {
		return err
	}
	l.set(Stopped)
	return nil
}

func (l *Lifecycle) run(hook func() error) (err error) {
	if hook == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			l.set(Failed)
			panic(r)
		}
	}()
	if err = hook(); err != nil {
		l.set(Failed)
	}
	return err
}

func (l *Lifecycle) set(s State) { l.state.Store(int32(s)) }

// State returns the current state.
func (l *Lifecycle) State() State { return State(l.state.Load()) }

// IsRunning reports Started or Starting.
func (l *Lifecycle) IsRunning() bool {
	st := l.State()
	return st == Started || st == Starting
}

func (l *Lifecycle) IsStarted() bool  { return l.State() == Started }
func (l *Lifecycle) IsStarting() bool { return l.State() == Starting }
func (l *Lifecycle) IsStopping() bool { return l.State() == Stopping }
func (l *Lifecycle) IsStopped() bool  { return l.State() == Stopped }
func (l *Lifecycle) IsFailed() bool   { return l.State() == Failed }
