// File: reactor/poller.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness wait used by the reactor loop.

package reactor

import "github.com/momentics/hioload-nio/api"

// DefaultMaxEvents bounds the events returned by one Wait call.
const DefaultMaxEvents = 256

// Event is one readiness notification returned by Wait.
type Event struct {
	FD    int
	Ready api.Interest
}

// Poller is the OS readiness multiplexer. Add, Modify, Delete and Wait are
// called only from the owning reactor thread; Wakeup may be called from any
// goroutine.
type Poller interface {
	// Add starts watching fd for the given interest.
	Add(fd int, interest api.Interest) error
	// Modify replaces the interest of a watched fd.
	Modify(fd int, interest api.Interest) error
	// Delete stops watching fd.
	Delete(fd int) error
	// Wait blocks until at least one fd is ready, Wakeup is called or the
	// timeout expires. timeoutMs < 0 blocks indefinitely. Error and hang-up
	// conditions are reported as every interest bit.
	Wait(events []Event, timeoutMs int) (int, error)
	// Wakeup interrupts a blocked or the next Wait.
	Wakeup() error
	// Close releases the poller. It is idempotent.
	Close() error
}
