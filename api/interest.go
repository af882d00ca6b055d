// File: api/interest.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Interest set bits shared by the reactor, its poller and endpoints.

package api

import "strings"

// Interest is a bitmask of readiness operations.
type Interest uint32

const (
	// OpRead asks to be notified when the connection is readable.
	OpRead Interest = 1 << iota
	// OpWrite asks to be notified when the connection is writable.
	OpWrite
)

// OpAll is every defined interest bit.
const OpAll = OpRead | OpWrite

// Has reports whether every bit of op is set in i.
func (i Interest) Has(op Interest) bool { return i&op == op && op != 0 }

// String renders the set as "read|write", "read", "write" or "none".
func (i Interest) String() string {
	if i == 0 {
		return "none"
	}
	var parts []string
	if i&OpRead != 0 {
		parts = append(parts, "read")
	}
	if i&OpWrite != 0 {
		parts = append(parts, "write")
	}
	if rest := i &^ OpAll; rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}
