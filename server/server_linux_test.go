//go:build linux

package server

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/adapters"
	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/endpoint"
	"github.com/momentics/hioload-nio/internal/logging"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Acceptors = 2
	cfg.Reactors = 2
	cfg.Workers = 4
	cfg.Logger = logging.NewTestLogger()
	return cfg
}

func startServer(t *testing.T, cfg *Config, opts ...ServerOption) *Server {
	t.Helper()
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { assert.NoError(t, s.Stop()) })
	return s
}

func get(t *testing.T, addr string) *http.Response {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: test\r\n\r\n"))
	require.NoError(t, err)

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body = io.NopCloser(strings.NewReader(string(body)))

	// The server closes after the response without writing anything else.
	rest, err := io.ReadAll(br)
	require.NoError(t, err)
	assert.Empty(t, rest)
	return resp
}

// fetchBody is get without test assertions, for use in polled conditions.
func fetchBody(addr string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return "", err
	}
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		return "", err
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestCannedResponseEndToEnd(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := startServer(t, testConfig(), WithRegisterer(reg))

	resp := get(t, s.Addr().String())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// ReadResponse moves "Connection: close" into resp.Close.
	assert.True(t, resp.Close)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(len("Hello")), resp.ContentLength)
	assert.Equal(t, "Hello", readBody(t, resp))

	expected := `
# HELP hioload_connections_accepted_total Count of connections accepted from the listening socket.
# TYPE hioload_connections_accepted_total counter
hioload_connections_accepted_total 1
`
	assert.Eventually(t, func() bool {
		return testutil.GatherAndCompare(reg, strings.NewReader(expected), "hioload_connections_accepted_total") == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManyConcurrentClients(t *testing.T) {
	s := startServer(t, testConfig())
	addr := s.Addr().String()

	const clients = 64
	var wg sync.WaitGroup
	bodies := make(chan string, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
			if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n\r\n")); !assert.NoError(t, err) {
				return
			}
			b, err := io.ReadAll(conn)
			if assert.NoError(t, err) {
				bodies <- string(b)
			}
		}()
	}
	wg.Wait()
	close(bodies)

	want := string(endpoint.HTTPResponse([]byte("Hello")))
	n := 0
	for b := range bodies {
		assert.Equal(t, want, b)
		n++
	}
	assert.Equal(t, clients, n)

	state := s.DumpState()
	assert.Contains(t, state, "reactor.0.keys")
	assert.Contains(t, state, "reactor.1.pending")
	assert.Equal(t, 4, state["executor.workers"])
}

func TestEchoHandlerKeepsConnectionOpen(t *testing.T) {
	exec := adapters.NewExecutorAdapter(2, logging.NewTestLogger())
	t.Cleanup(exec.Close)

	echo := api.ConnHandlerFunc(func(in []byte) ([]byte, api.Action) {
		return append([]byte(nil), in...), api.ActionContinue
	})
	s := startServer(t, testConfig(), WithHandler(echo), WithExecutor(exec))

	conn, err := net.DialTimeout("tcp", s.Addr().String(), 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	for _, msg := range []string{"ping", "pong", "again"} {
		_, err := conn.Write([]byte(msg))
		require.NoError(t, err)
		buf := make([]byte, len(msg))
		_, err = io.ReadFull(conn, buf)
		require.NoError(t, err)
		assert.Equal(t, msg, string(buf))
	}
	assert.ErrorIs(t, s.SetResponseBody([]byte("x")), api.ErrNotSupported)
}

func TestResponseBodyHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(path, []byte("from file"), 0o644))

	cfg := testConfig()
	cfg.ResponseFile = path
	s := startServer(t, cfg)
	addr := s.Addr().String()

	assert.Equal(t, "from file", readBody(t, get(t, addr)))

	require.NoError(t, os.WriteFile(path, []byte("reloaded"), 0o644))
	assert.Eventually(t, func() bool {
		body, err := fetchBody(addr)
		return err == nil && body == "reloaded"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, s.SetResponseBody([]byte("manual")))
	assert.Equal(t, "manual", readBody(t, get(t, addr)))
}

func TestStopIsIdempotentAndRestartable(t *testing.T) {
	s, err := New(testConfig())
	require.NoError(t, err)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsStarted())
	addr := s.Addr().String()

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.True(t, s.IsStopped())
	assert.Nil(t, s.Executor())

	_, err = net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)

	require.NoError(t, s.Start())
	assert.Equal(t, "Hello", readBody(t, get(t, s.Addr().String())))
	require.NoError(t, s.Stop())
}

func TestStartFailsOnBusyAddress(t *testing.T) {
	first := startServer(t, testConfig())

	cfg := testConfig()
	cfg.ListenAddr = first.Addr().String()
	s, err := New(cfg)
	require.NoError(t, err)
	assert.Error(t, s.Start())
	assert.True(t, s.IsFailed())
	require.NoError(t, s.Stop())
}
