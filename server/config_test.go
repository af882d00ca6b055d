package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-nio/api"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.GreaterOrEqual(t, cfg.Acceptors, 1)
	assert.Equal(t, 50, cfg.Workers)
	assert.Equal(t, 1024, cfg.ReadBufferSize)
	assert.Equal(t, "Hello", cfg.ResponseBody)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"empty address":   func(c *Config) { c.ListenAddr = "" },
		"no acceptors":    func(c *Config) { c.Acceptors = 0 },
		"no reactors":     func(c *Config) { c.Reactors = 0 },
		"no workers":      func(c *Config) { c.Workers = 0 },
		"no read buffer":  func(c *Config) { c.ReadBufferSize = 0 },
		"file and custom": func(c *Config) { c.ResponseFile = "x"; c.Handler = api.ConnHandlerFunc(nil) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), api.ErrInvalidArgument)
		})
	}
}

func TestOptionsApplyToCopy(t *testing.T) {
	cfg := DefaultConfig()
	s, err := New(cfg, WithExecutorWorkers(3))
	require.NoError(t, err)
	assert.Equal(t, 3, s.cfg.Workers)
	assert.Equal(t, 50, cfg.Workers)
	assert.True(t, s.IsStopped())
	assert.Nil(t, s.Addr())
}
