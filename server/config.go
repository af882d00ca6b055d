// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-nio/api"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr     string // TCP bind address, e.g. ":8080"
	Backlog        int    // listen backlog, <= 0 selects SOMAXCONN
	Acceptors      int    // goroutines blocked in accept
	Reactors       int    // reactor loops, one OS thread each
	Workers        int    // worker pool size when Executor is nil
	ReadBufferSize int    // scratch buffer per read
	PinReactors    bool   // pin reactor i to CPU i mod NumCPU

	ResponseBody string // body of the canned response
	ResponseFile string // hot-reloaded body; overrides ResponseBody

	Logger     logr.Logger
	Registerer prometheus.Registerer // nil disables metric registration
	Executor   api.Executor          // injected worker pool, not closed by the server
	Handler    api.ConnHandler       // nil serves the canned response
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	acceptors := runtime.NumCPU() / 2
	if acceptors < 1 {
		acceptors = 1
	}
	return &Config{
		ListenAddr:     ":8080",
		Acceptors:      acceptors,
		Reactors:       runtime.NumCPU(),
		Workers:        50,
		ReadBufferSize: 1024,
		ResponseBody:   "Hello",
		Logger:         logr.Discard(),
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("listen address is empty: %w", api.ErrInvalidArgument)
	case c.Acceptors < 1:
		return fmt.Errorf("acceptors %d: %w", c.Acceptors, api.ErrInvalidArgument)
	case c.Reactors < 1:
		return fmt.Errorf("reactors %d: %w", c.Reactors, api.ErrInvalidArgument)
	case c.Executor == nil && c.Workers < 1:
		return fmt.Errorf("workers %d: %w", c.Workers, api.ErrInvalidArgument)
	case c.ReadBufferSize < 1:
		return fmt.Errorf("read buffer size %d: %w", c.ReadBufferSize, api.ErrInvalidArgument)
	case c.ResponseFile != "" && c.Handler != nil:
		return fmt.Errorf("response file requires the canned handler: %w", api.ErrInvalidArgument)
	}
	return nil
}
