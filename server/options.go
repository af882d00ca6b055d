// File: server/options.go
// Package server defines functional options for the Server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-nio/api"
)

// ServerOption customizes server initialization.
type ServerOption func(*Config)

// WithLogger sets the structured logger.
func WithLogger(log logr.Logger) ServerOption {
	return func(c *Config) { c.Logger = log }
}

// WithRegisterer registers the server metrics with reg.
func WithRegisterer(reg prometheus.Registerer) ServerOption {
	return func(c *Config) { c.Registerer = reg }
}

// WithExecutor injects the worker pool. The caller keeps ownership.
func WithExecutor(exec api.Executor) ServerOption {
	return func(c *Config) { c.Executor = exec }
}

// WithHandler replaces the canned response with a custom protocol.
func WithHandler(h api.ConnHandler) ServerOption {
	return func(c *Config) { c.Handler = h }
}

// WithExecutorWorkers sets the number of background worker goroutines.
func WithExecutorWorkers(n int) ServerOption {
	return func(c *Config) { c.Workers = n }
}
