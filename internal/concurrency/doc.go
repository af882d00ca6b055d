// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker pool used to run connection callbacks off the reactor threads.
// Submissions never block the caller: the task queue is unbounded, so a
// reactor goroutine can hand off work without stalling its readiness loop.
package concurrency
