// File: adapters/executor_adapter.go
// Package adapters provides glue between internal concurrency and api.Executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter exposes the internal worker pool to callers outside the
// module, who cannot import internal/concurrency directly.

package adapters

import (
	"github.com/go-logr/logr"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/concurrency"
)

// ExecutorAdapter wraps an internal concurrency.Executor to satisfy the api.Executor contract.
type ExecutorAdapter struct {
	exec *concurrency.Executor
}

var _ api.Executor = (*ExecutorAdapter)(nil)

// NewExecutorAdapter constructs an api.Executor with the given number of worker goroutines.
func NewExecutorAdapter(workers int, log logr.Logger) *ExecutorAdapter {
	return &ExecutorAdapter{exec: concurrency.NewExecutor(workers, log)}
}

// Submit dispatches a task function to be executed asynchronously.
// Returns an error if the executor has been closed.
func (ea *ExecutorAdapter) Submit(task func()) error {
	return ea.exec.Submit(task)
}

// NumWorkers returns the current number of active worker goroutines.
func (ea *ExecutorAdapter) NumWorkers() int {
	return ea.exec.NumWorkers()
}

// Resize dynamically adjusts the size of the worker pool.
func (ea *ExecutorAdapter) Resize(newCount int) {
	ea.exec.Resize(newCount)
}

// Pending returns the number of tasks waiting for a worker.
func (ea *ExecutorAdapter) Pending() int {
	return ea.exec.Pending()
}

// Close shuts down the executor. Queued tasks run before it returns.
func (ea *ExecutorAdapter) Close() {
	ea.exec.Close()
}
