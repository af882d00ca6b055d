package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/api"
)

func TestExecutor_RunsAllTasks(t *testing.T) {
	ex := NewExecutor(4, logr.Discard())
	defer ex.Close()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		require.NoError(t, ex.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(1000), counter.Load())
}

func TestExecutor_SubmitNeverBlocks(t *testing.T) {
	ex := NewExecutor(1, logr.Discard())
	defer ex.Close()

	release := make(chan struct{})
	require.NoError(t, ex.Submit(func() { <-release }))

	// The only worker is parked; the queue must still take everything.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			_ = ex.Submit(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked with a busy worker")
	}
	assert.GreaterOrEqual(t, ex.Pending(), 1)
	close(release)
}

func TestExecutor_Resize(t *testing.T) {
	ex := NewExecutor(4, logr.Discard())
	defer ex.Close()
	assert.Equal(t, 4, ex.NumWorkers())

	var counter atomic.Int64
	task := func() { counter.Add(1) }

	ex.Resize(8)
	assert.Equal(t, 8, ex.NumWorkers())
	for i := 0; i < 100; i++ {
		require.NoError(t, ex.Submit(task))
	}
	ex.Resize(2)
	assert.Eventually(t, func() bool { return ex.NumWorkers() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return counter.Load() == 100 }, 5*time.Second, 10*time.Millisecond,
		"tasks lost during resize")

	ex.Resize(0)
	assert.Eventually(t, func() bool { return ex.NumWorkers() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestExecutor_CloseDrainsQueue(t *testing.T) {
	ex := NewExecutor(2, logr.Discard())
	var counter atomic.Int64
	for i := 0; i < 500; i++ {
		require.NoError(t, ex.Submit(func() { counter.Add(1) }))
	}
	ex.Close()
	assert.Equal(t, int64(500), counter.Load())
	assert.Equal(t, 0, ex.NumWorkers())

	assert.ErrorIs(t, ex.Submit(func() {}), api.ErrExecutorClosed)
	ex.Close()
}

func TestExecutor_RecoversPanics(t *testing.T) {
	ex := NewExecutor(1, logr.Discard())
	defer ex.Close()

	require.NoError(t, ex.Submit(func() { panic("task failure") }))
	ran := make(chan struct{})
	require.NoError(t, ex.Submit(func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("worker died after a task panic")
	}
	assert.Equal(t, uint64(1), ex.Panics())
	assert.Eventually(t, func() bool { return ex.Executed() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestExecutor_RejectsNilTask(t *testing.T) {
	ex := NewExecutor(1, logr.Discard())
	defer ex.Close()
	assert.ErrorIs(t, ex.Submit(nil), api.ErrInvalidArgument)
}
