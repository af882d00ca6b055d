// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed-size scratch buffers for connection reads. Free buffers sit in a
// lock-free bounded queue; when it is empty a fresh buffer is allocated and
// when it is full a returned buffer is left to the garbage collector.

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-nio/core/concurrency"
)

const defaultFreeListCapacity = 1024

// BytePool hands out scratch buffers of one size class.
type BytePool struct {
	size   int
	free   *concurrency.BoundedQueue[[]byte]
	allocs atomic.Uint64
	reuses atomic.Uint64
}

// BytePoolStats aggregates buffer allocation/reuse counters.
type BytePoolStats struct {
	Size   int
	Allocs uint64
	Reuses uint64
	Free   int
}

// NewBytePool creates a pool of size-byte buffers keeping at most
// capacity idle buffers. capacity <= 0 selects a default.
func NewBytePool(size, capacity int) *BytePool {
	if size <= 0 {
		size = 1024
	}
	if capacity <= 0 {
		capacity = defaultFreeListCapacity
	}
	return &BytePool{
		size: size,
		free: concurrency.NewBoundedQueue[[]byte](capacity),
	}
}

// Get returns a buffer of exactly Size() bytes.
func (p *BytePool) Get() []byte {
	if b, ok := p.free.Dequeue(); ok {
		p.reuses.Add(1)
		return b[:p.size]
	}
	p.allocs.Add(1)
	return make([]byte, p.size)
}

// Put returns a buffer; it must not be used afterwards.
// Buffers smaller than the size class are dropped.
func (p *BytePool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	p.free.Enqueue(b[:p.size])
}

// Size returns the buffer size class.
func (p *BytePool) Size() int { return p.size }

// Stats exposes accounting counters for observability.
func (p *BytePool) Stats() BytePoolStats {
	return BytePoolStats{
		Size:   p.size,
		Allocs: p.allocs.Load(),
		Reuses: p.reuses.Load(),
		Free:   p.free.Len(),
	}
}
