//go:build !linux
// +build !linux

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub poller for platforms without epoll.

package reactor

import "github.com/momentics/hioload-nio/api"

// NewPoller returns api.ErrNotSupported on this platform.
func NewPoller(maxEvents int) (Poller, error) {
	return nil, api.ErrNotSupported
}
