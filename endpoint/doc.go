// Package endpoint
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection endpoints attached to reactor keys. An endpoint keeps the
// desired interest in an atomic bitmask that any goroutine may update and
// reconciles it with the OS registration through its reactor's change
// queue. Reads and writes run on the worker pool.
package endpoint
