//go:build linux

package reactor

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/logging"
)

type fakeEndpoint struct {
	key        *Key
	sock       api.Socket
	onOpened   func(e *fakeEndpoint)
	onSelected func(e *fakeEndpoint, ready api.Interest)
	closed     atomic.Bool
}

func (e *fakeEndpoint) OnOpened() {
	if e.onOpened != nil {
		e.onOpened(e)
	}
}

func (e *fakeEndpoint) OnSelected(ready api.Interest) {
	if e.onSelected != nil {
		e.onSelected(e, ready)
	}
}

func (e *fakeEndpoint) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.key.Cancel()
	_ = e.sock.Close()
}

// fakeFactory records every endpoint it creates on created.
func fakeFactory(created chan<- *fakeEndpoint, setup func(e *fakeEndpoint)) EndpointFactory {
	return func(r *Reactor, key *Key, sock api.Socket) (Selectable, error) {
		e := &fakeEndpoint{key: key, sock: sock}
		if setup != nil {
			setup(e)
		}
		if created != nil {
			created <- e
		}
		return e, nil
	}
}

// startReactor starts r and runs its loop until the test ends.
func startReactor(t *testing.T, factory EndpointFactory, beforeWait func()) *Reactor {
	t.Helper()
	r, err := NewReactor(0, ReactorOptions{
		Factory: factory,
		Logger:  logging.NewTestLogger(),
	})
	require.NoError(t, err)
	r.beforeWait = beforeWait
	require.NoError(t, r.Start())

	done := make(chan error, 1)
	go func() { done <- r.Run() }()
	t.Cleanup(func() {
		require.NoError(t, r.Stop())
		require.NoError(t, <-done)
	})
	return r
}

func noopFactory() EndpointFactory { return fakeFactory(nil, nil) }
