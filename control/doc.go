// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics, debug introspection and hot reload for hioload-nio.
//
// Provides concurrent-safe primitives including:
//   - Prometheus collectors for acceptors, reactors and endpoints
//   - Debug probe registration and state export
//   - File watching for hot-reloaded response payloads
package control
