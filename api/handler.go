// File: api/handler.go
// Package api defines the pluggable connection handler.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Action tells the endpoint what to do once the handler output is flushed.
type Action int

const (
	// ActionContinue re-arms read interest after the output is written.
	ActionContinue Action = iota
	// ActionClose closes the connection after the output is written.
	ActionClose
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionClose:
		return "close"
	default:
		return "unknown"
	}
}

// ConnHandler turns bytes read from a connection into bytes to write back.
// It runs on a worker goroutine. The input slice is a pooled scratch buffer
// and must not be retained after OnData returns.
type ConnHandler interface {
	OnData(in []byte) (out []byte, next Action)
}

// ConnHandlerFunc adapts a function to ConnHandler.
type ConnHandlerFunc func(in []byte) ([]byte, Action)

// OnData calls f(in).
func (f ConnHandlerFunc) OnData(in []byte) ([]byte, Action) { return f(in) }
