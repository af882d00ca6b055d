//go:build linux
// +build linux

// internal/transport/socket_linux.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking connection socket driven by a reactor.

package transport

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/api"
)

// NewSocket wraps an already non-blocking descriptor.
func NewSocket(fd int, remote string) *Socket {
	return &Socket{fd: fd, remote: remote}
}

// NewSocketPair returns two connected non-blocking stream sockets.
func NewSocketPair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	return NewSocket(fds[0], "pair"), NewSocket(fds[1], "pair"), nil
}

// Read reads into buf. It returns api.ErrWouldBlock when no data is
// available and (0, nil) at end of stream.
func (s *Socket) Read(buf []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, api.ErrSocketClosed
	}
	for {
		n, err := unix.Read(s.fd, buf)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, api.ErrWouldBlock
		default:
			return 0, fmt.Errorf("read: %w", err)
		}
	}
}

// Write writes as much of buf as the socket accepts. A short count with
// api.ErrWouldBlock means the send buffer is full.
func (s *Socket) Write(buf []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, api.ErrSocketClosed
	}
	for {
		n, err := unix.Write(s.fd, buf)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, api.ErrWouldBlock
		default:
			return 0, fmt.Errorf("write: %w", err)
		}
	}
}

// Close releases the descriptor. It waits for in-flight Read/Write calls so
// the descriptor number cannot be reused underneath them.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := unix.Close(s.fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
