// File: reactor/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package reactor

import "errors"

var (
	// ErrReentrantDrain is the panic value when the change queue is drained
	// from inside a change task.
	ErrReentrantDrain = errors.New("reactor: change queue drained re-entrantly")
	// ErrNotOwner is the panic value when a key is mutated off its reactor thread.
	ErrNotOwner = errors.New("reactor: key mutated outside the reactor thread")
	// ErrAlreadyBound is the panic value when Run is called twice on one reactor.
	ErrAlreadyBound = errors.New("reactor: loop already bound to a thread")
	// ErrKeyCanceled is returned when updating the interest of a canceled key.
	ErrKeyCanceled = errors.New("reactor: key canceled")
	// ErrPoolNotRunning is returned by Assign when the pool is not running.
	ErrPoolNotRunning = errors.New("reactor: pool not running")
	// ErrPollerClosed is returned by poller operations after Close.
	ErrPollerClosed = errors.New("reactor: poller closed")
	// ErrNoFactory is returned by NewReactor without an endpoint factory.
	ErrNoFactory = errors.New("reactor: endpoint factory is required")
)
