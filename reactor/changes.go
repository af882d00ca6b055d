// File: reactor/changes.go
// Author: momentics <momentics@gmail.com>
//
// FIFO of change tasks: many producers, one consumer (the reactor thread).

package reactor

import (
	"sync"

	"github.com/eapache/queue"
)

type changeQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newChangeQueue() *changeQueue {
	return &changeQueue{q: queue.New()}
}

func (c *changeQueue) Push(task func()) {
	c.mu.Lock()
	c.q.Add(task)
	c.mu.Unlock()
}

// Pop removes the oldest task.
func (c *changeQueue) Pop() (func(), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.q.Length() == 0 {
		return nil, false
	}
	return c.q.Remove().(func()), true
}

func (c *changeQueue) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Length()
}

// Discard drops every queued task and returns how many were dropped.
func (c *changeQueue) Discard() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.q.Length()
	c.q = queue.New()
	return n
}
