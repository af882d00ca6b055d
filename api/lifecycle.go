// File: api/lifecycle.go
// Package api defines the LifeCycle contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// LifeCycle is the start/stop surface exposed by every long-lived component:
// server, reactor pool and each reactor.
type LifeCycle interface {
	// Start is a no-op when the component is Started or Starting.
	Start() error
	// Stop is a no-op when the component is Stopped or Stopping.
	Stop() error

	// IsRunning reports Started or Starting.
	IsRunning() bool
	IsStarted() bool
	IsStarting() bool
	IsStopping() bool
	IsStopped() bool
	IsFailed() bool
}
