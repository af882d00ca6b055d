// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the poll-mode event reactor: an epoll-backed
// selector per OS thread with a single-consumer change queue, and a pool
// that spreads accepted connections over the reactors in round-robin order.
package reactor
