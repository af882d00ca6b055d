// File: endpoint/canned.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package endpoint

import (
	"strconv"
	"sync/atomic"

	"github.com/momentics/hioload-nio/api"
)

// DefaultBody is the body of the default canned response.
var DefaultBody = []byte("Hello")

// CannedResponse answers every read with one fixed HTTP/1.1 200 response
// and closes the connection. The body can be swapped at runtime.
type CannedResponse struct {
	resp atomic.Pointer[[]byte]
}

var _ api.ConnHandler = (*CannedResponse)(nil)

// NewCannedResponse creates a handler serving body.
func NewCannedResponse(body []byte) *CannedResponse {
	c := &CannedResponse{}
	c.SetBody(body)
	return c
}

// SetBody replaces the served body for subsequent reads.
func (c *CannedResponse) SetBody(body []byte) {
	resp := HTTPResponse(body)
	c.resp.Store(&resp)
}

// Response returns the full response bytes currently served.
func (c *CannedResponse) Response() []byte { return *c.resp.Load() }

// OnData ignores the request bytes.
func (c *CannedResponse) OnData([]byte) ([]byte, api.Action) {
	return *c.resp.Load(), api.ActionClose
}

// HTTPResponse builds a minimal HTTP/1.1 200 response carrying body.
func HTTPResponse(body []byte) []byte {
	b := make([]byte, 0, 96+len(body))
	b = append(b, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\nContent-Length: "...)
	b = strconv.AppendInt(b, int64(len(body)), 10)
	b = append(b, "\r\nConnection: close\r\n\r\n"...)
	return append(b, body...)
}
