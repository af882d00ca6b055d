// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw socket layer for hioload-nio. The listening socket stays in blocking
// mode so acceptor goroutines park inside accept(2); accepted sockets are
// created non-blocking and are driven by a reactor's epoll set instead of the
// Go runtime netpoller. Linux only; other platforms return ErrNotSupported.

package transport
