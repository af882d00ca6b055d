// Package pool
// Author: momentics <momentics@gmail.com>
//
// Memory layer for hioload-nio: fixed-size scratch buffers recycled through
// a lock-free free list, shared by every worker that reads from a connection.
package pool
