//go:build linux
// +build linux

// internal/transport/listener_linux.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking TCP listening socket shared by the acceptor goroutines.

package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-nio/api"
)

// Listener is a blocking listening socket. Accept is safe for concurrent
// callers; the kernel hands each connection to exactly one of them.
type Listener struct {
	fd        int
	addr      *net.TCPAddr
	shut      atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Listen binds address ("host:port", port 0 picks a free port) and starts
// listening with the given backlog (<= 0 selects SOMAXCONN).
func Listen(address string, backlog int) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", address, err)
	}
	family, sa := sockaddrOf(tcpAddr)

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if family == unix.AF_INET6 {
		// Dual-stack when bound to the unspecified address.
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind %s: %w", address, err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen %s: %w", address, err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("getsockname: %w", err)
	}
	return &Listener{fd: fd, addr: tcpAddrOf(bound)}, nil
}

// Accept blocks until a connection arrives and returns it in non-blocking
// mode. After Shutdown it returns an error wrapping api.ErrListenerClosed.
func (l *Listener) Accept() (*Socket, error) {
	for {
		if l.shut.Load() {
			return nil, api.ErrListenerClosed
		}
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if l.shut.Load() {
				return nil, fmt.Errorf("accept: %w (%v)", api.ErrListenerClosed, err)
			}
			return nil, fmt.Errorf("accept: %w", err)
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		return NewSocket(nfd, addrString(sa)), nil
	}
}

// Shutdown wakes every goroutine blocked in Accept without releasing the
// descriptor. Close must still be called once the acceptors are gone.
func (l *Listener) Shutdown() error {
	if !l.shut.CompareAndSwap(false, true) {
		return nil
	}
	if err := unix.Shutdown(l.fd, unix.SHUT_RDWR); err != nil && !errors.Is(err, unix.ENOTCONN) {
		return fmt.Errorf("shutdown listener: %w", err)
	}
	return nil
}

// Close shuts the listener down and releases the descriptor.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		shutErr := l.Shutdown()
		if err := unix.Close(l.fd); err != nil {
			l.closeErr = fmt.Errorf("close listener: %w", err)
			return
		}
		l.closeErr = shutErr
	})
	return l.closeErr
}

// Addr returns the bound address, with the real port when 0 was requested.
func (l *Listener) Addr() *net.TCPAddr { return l.addr }

// FD returns the listening descriptor.
func (l *Listener) FD() int { return l.fd }

func sockaddrOf(a *net.TCPAddr) (int, unix.Sockaddr) {
	if a.IP == nil || a.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		if a.IP != nil {
			copy(sa.Addr[:], a.IP.To4())
		}
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	return unix.AF_INET6, sa
}

func tcpAddrOf(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(v.Addr[0], v.Addr[1], v.Addr[2], v.Addr[3]), Port: v.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, v.Addr[:])
		return &net.TCPAddr{IP: ip, Port: v.Port}
	default:
		return &net.TCPAddr{}
	}
}

func addrString(sa unix.Sockaddr) string {
	if sa == nil {
		return ""
	}
	return tcpAddrOf(sa).String()
}
