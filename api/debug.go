// Package api
// Author: momentics
//
// Live introspection of running components.

package api

// Debug exposes named probes whose values are collected on demand.
type Debug interface {
	// DumpState emits a snapshot of every probe, keyed by probe name.
	DumpState() map[string]any

	// RegisterProbe inserts or replaces a named probe.
	RegisterProbe(name string, fn func() any)
}
