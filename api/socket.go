// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

// Socket is a non-blocking connection handle owned by one endpoint.
// Read and Write return ErrWouldBlock when the operation would block.
type Socket interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
	// FD returns the OS descriptor registered with the reactor.
	FD() int
	// RemoteAddr returns the peer address, or "" when unknown.
	RemoteAddr() string
}
