//go:build !linux
// +build !linux

// internal/transport/transport_stub.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stub implementation for unsupported platforms.

package transport

import (
	"net"

	"github.com/momentics/hioload-nio/api"
)

// Listener is unavailable on this platform.
type Listener struct{}

func Listen(address string, backlog int) (*Listener, error) { return nil, api.ErrNotSupported }

func (l *Listener) Accept() (*Socket, error) { return nil, api.ErrNotSupported }
func (l *Listener) Shutdown() error          { return api.ErrNotSupported }
func (l *Listener) Close() error             { return api.ErrNotSupported }
func (l *Listener) Addr() *net.TCPAddr       { return &net.TCPAddr{} }
func (l *Listener) FD() int                  { return -1 }

func NewSocket(fd int, remote string) *Socket { return &Socket{fd: fd, remote: remote} }

func NewSocketPair() (*Socket, *Socket, error) { return nil, nil, api.ErrNotSupported }

func (s *Socket) Read(buf []byte) (int, error)  { return 0, api.ErrNotSupported }
func (s *Socket) Write(buf []byte) (int, error) { return 0, api.ErrNotSupported }
func (s *Socket) Close() error                  { return nil }
