// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared across hioload-nio packages.

package api

import "errors"

// Common errors used across the library.
var (
	ErrSocketClosed    = errors.New("socket is closed")
	ErrExecutorClosed  = errors.New("executor is closed")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotSupported    = errors.New("operation not supported")
	ErrListenerClosed  = errors.New("listener is closed")
)

// ErrWouldBlock is returned by non-blocking socket operations that cannot
// proceed without waiting for readiness.
var ErrWouldBlock = errors.New("operation would block")
