//go:build linux

package reactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/transport"
)

const waitTimeout = 5 * time.Second

func TestCrossThreadSubmitRunsBeforeNextWait(t *testing.T) {
	var waits atomic.Int64
	r := startReactor(t, noopFactory(), func() { waits.Add(1) })

	for i := 0; i < 20; i++ {
		observed := make(chan int64, 1)
		r.Submit(func() { observed <- waits.Load() })
		after := waits.Load()
		select {
		case w := <-observed:
			// The wait that was already entered is woken, no later one runs first.
			assert.LessOrEqual(t, w, after+1)
		case <-time.After(waitTimeout):
			t.Fatalf("task %d never ran: reactor was not woken", i)
		}
	}
}

func TestSubmitInWakeupWindowIsNotLost(t *testing.T) {
	inWindow := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	r := startReactor(t, noopFactory(), func() {
		once.Do(func() {
			close(inWindow)
			<-release
		})
	})

	<-inWindow
	ran := make(chan struct{})
	r.Submit(func() { close(ran) })
	close(release)

	select {
	case <-ran:
	case <-time.After(waitTimeout):
		t.Fatal("task submitted between drain and wait was lost")
	}
}

func TestChangeTasksRunInOrderAndNeverConcurrently(t *testing.T) {
	r := startReactor(t, noopFactory(), nil)

	const producers, perProducer = 4, 200
	seen := make([][]int, producers)
	var active atomic.Int32
	var overlaps atomic.Int32
	var wg sync.WaitGroup
	done := make(chan struct{})
	var total atomic.Int32

	for p := 0; p < producers; p++ {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				i := i
				r.Submit(func() {
					if active.Add(1) != 1 {
						overlaps.Add(1)
					}
					seen[p] = append(seen[p], i)
					active.Add(-1)
					if total.Add(1) == producers*perProducer {
						close(done)
					}
				})
			}
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("tasks did not complete")
	}
	assert.Zero(t, overlaps.Load())

	// Read the per-producer logs on the reactor thread.
	check := make(chan struct{})
	r.Submit(func() {
		for p := 0; p < producers; p++ {
			assert.Len(t, seen[p], perProducer)
			for i, v := range seen[p] {
				assert.Equal(t, i, v)
			}
		}
		close(check)
	})
	<-check
}

func TestSubmitDuringDrainIsQueuedBehind(t *testing.T) {
	inWindow := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	r := startReactor(t, noopFactory(), func() {
		once.Do(func() {
			close(inWindow)
			<-release
		})
	})
	<-inWindow

	var order []string
	done := make(chan struct{})
	r.Submit(func() {
		order = append(order, "A")
		r.Submit(func() {
			order = append(order, "B")
			close(done)
		})
		// B is queued, not run inline, while the drain is active.
		order = append(order, "A-end")
	})
	r.Submit(func() { order = append(order, "C") })
	close(release)

	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("tasks did not run")
	}
	assert.Equal(t, []string{"A", "A-end", "C", "B"}, order)
}

func TestSubmitOnReactorThreadRunsInline(t *testing.T) {
	created := make(chan *fakeEndpoint, 1)
	result := make(chan bool, 1)
	factory := fakeFactory(created, func(e *fakeEndpoint) {
		e.onOpened = func(e *fakeEndpoint) {
			assert.NoError(t, e.key.SetInterest(api.OpRead))
		}
		e.onSelected = func(e *fakeEndpoint, ready api.Interest) {
			assert.Equal(t, api.OpRead, ready)
			assert.Equal(t, api.OpRead, e.key.Ready())
			assert.NoError(t, e.key.SetInterest(0))
			ran := false
			e.key.Reactor().Submit(func() { ran = true })
			result <- ran
		}
	})
	r := startReactor(t, factory, nil)

	a, b, err := transport.NewSocketPair()
	require.NoError(t, err)
	defer b.Close()

	r.Register(a)
	var ep *fakeEndpoint
	select {
	case ep = <-created:
	case <-time.After(waitTimeout):
		t.Fatal("socket was not registered")
	}
	_, err = b.Write([]byte("x"))
	require.NoError(t, err)

	select {
	case ran := <-result:
		assert.True(t, ran, "task submitted from the reactor thread must run before Submit returns")
	case <-time.After(waitTimeout):
		t.Fatal("readiness was not dispatched")
	}

	assert.Panics(t, func() { _ = ep.key.SetInterest(api.OpWrite) })
	assert.PanicsWithValue(t, ErrNotOwner, func() { ep.key.Interest() })
	assert.Eventually(t, func() bool { return r.KeyCount() == 1 }, waitTimeout, 10*time.Millisecond)

	ep.Close()
	assert.Eventually(t, func() bool { return r.KeyCount() == 0 }, waitTimeout, 10*time.Millisecond)
	assert.False(t, ep.key.Valid())
}

func TestStopClosesRegisteredEndpoints(t *testing.T) {
	created := make(chan *fakeEndpoint, 4)
	r, err := NewReactor(1, ReactorOptions{Factory: fakeFactory(created, nil)})
	require.NoError(t, err)
	require.NoError(t, r.Start())
	done := make(chan error, 1)
	go func() { done <- r.Run() }()

	var peers []*transport.Socket
	for i := 0; i < 3; i++ {
		a, b, err := transport.NewSocketPair()
		require.NoError(t, err)
		peers = append(peers, b)
		r.Register(a)
	}
	var eps []*fakeEndpoint
	for i := 0; i < 3; i++ {
		eps = append(eps, <-created)
	}

	require.NoError(t, r.Stop())
	require.NoError(t, <-done)
	for _, e := range eps {
		assert.True(t, e.closed.Load())
	}
	assert.Zero(t, r.KeyCount())
	for _, b := range peers {
		_ = b.Close()
	}
}

func TestRegisterAfterStopClosesSocket(t *testing.T) {
	r, err := NewReactor(0, ReactorOptions{Factory: noopFactory()})
	require.NoError(t, err)

	a, b, err := transport.NewSocketPair()
	require.NoError(t, err)
	defer b.Close()

	// A reactor that is not running refuses registrations.
	r.register(a)
	assert.True(t, a.IsClosed())
}

func TestReentrantDrainPanics(t *testing.T) {
	r, err := NewReactor(0, ReactorOptions{Factory: noopFactory()})
	require.NoError(t, err)

	r.runningChanges = true
	assert.PanicsWithValue(t, ErrReentrantDrain, func() { r.runChanges() })
	assert.True(t, r.runningChanges)

	r.runningChanges = false
	r.changes.Push(func() { panic("task failed") })
	assert.PanicsWithValue(t, "task failed", func() { r.runChanges() })
	assert.False(t, r.runningChanges)
}

func TestRunTwicePanics(t *testing.T) {
	r := startReactor(t, noopFactory(), nil)
	assert.Eventually(t, func() bool { return r.owner.Load() != 0 }, waitTimeout, 10*time.Millisecond)
	assert.PanicsWithValue(t, ErrAlreadyBound, func() { _ = r.Run() })
}

func TestNewReactorRequiresFactory(t *testing.T) {
	_, err := NewReactor(0, ReactorOptions{})
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestReactorRestart(t *testing.T) {
	r, err := NewReactor(0, ReactorOptions{Factory: noopFactory()})
	require.NoError(t, err)

	for round := 0; round < 2; round++ {
		require.NoError(t, r.Start())
		done := make(chan error, 1)
		go func() { done <- r.Run() }()

		ran := make(chan struct{})
		r.Submit(func() { close(ran) })
		select {
		case <-ran:
		case <-time.After(waitTimeout):
			t.Fatalf("round %d: task never ran", round)
		}

		require.NoError(t, r.Stop())
		require.NoError(t, <-done)
	}
}
