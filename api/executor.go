// Package api
// Author: momentics
//
// Executor contract for the worker pool that runs connection callbacks
// off the reactor threads.

package api

// Executor accepts fire-and-forget units of work.
// Submissions are queued without bound and run asynchronously.
type Executor interface {
	// Submit schedules task for execution.
	Submit(task func()) error

	// NumWorkers returns current number of active worker routines.
	NumWorkers() int

	// Resize adjusts the concurrency at runtime.
	Resize(newCount int)
}
