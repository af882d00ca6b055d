// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_stub.go) guarded by build tags.

package affinity

import (
	"errors"
	"runtime"
)

// ErrNotSupported is returned on platforms without thread affinity support.
var ErrNotSupported = errors.New("affinity: not supported on this platform")

// SetAffinity pins the current OS thread to a given logical CPU.
// The caller must hold runtime.LockOSThread, otherwise the goroutine may
// migrate away from the pinned thread.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// CPUFor maps a worker index onto the available logical CPUs.
func CPUFor(index int) int {
	n := runtime.NumCPU()
	if index < 0 {
		index = -index
	}
	return index % n
}
