// internal/transport/socket.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"sync"

	"github.com/momentics/hioload-nio/api"
)

// Socket is a connection descriptor owned by exactly one endpoint.
type Socket struct {
	fd     int
	remote string

	mu     sync.RWMutex
	closed bool
}

var _ api.Socket = (*Socket)(nil)

// FD returns the OS descriptor.
func (s *Socket) FD() int { return s.fd }

// RemoteAddr returns the peer address captured at accept time.
func (s *Socket) RemoteAddr() string { return s.remote }

// IsClosed reports whether Close has been called.
func (s *Socket) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
