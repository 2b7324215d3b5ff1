package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.7, cfg.Render.MaxLatitudeDelta)
	assert.Equal(t, 0.0922, cfg.Render.InitialLatitudeDelta)
	assert.Equal(t, 0.0421, cfg.Render.InitialLongitudeDelta)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turf.yaml")
	body := `
server:
  base_url: http://game.example:3000
  websocket_url: ws://game.example:3000/ws
transport: nats
nats:
  url: nats://bus:4222
reconnect:
  initial_backoff: 2s
  max_backoff: 30s
render:
  max_latitude_delta: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("TURF_BRIDGE_ADDR", "127.0.0.1:9999")
	t.Setenv("TURF_INBOX_SIZE", "32")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://game.example:3000", cfg.Server.BaseURL)
	assert.Equal(t, TransportNATS, cfg.Transport)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	assert.Equal(t, "turf.events", cfg.NATS.EventSubject, "unset keys keep their defaults")
	assert.Equal(t, 2*time.Second, cfg.Reconnect.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.MaxBackoff)
	assert.Equal(t, 0.5, cfg.Render.MaxLatitudeDelta)
	assert.Equal(t, 0.7, cfg.Render.MaxLongitudeDelta)
	assert.Equal(t, "127.0.0.1:9999", cfg.Bridge.Addr)
	assert.Equal(t, 32, cfg.InboxSize)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "carrier-pigeon" }},
		{name: "zero threshold", mutate: func(c *Config) { c.Render.MaxLongitudeDelta = 0 }},
		{name: "backoff inverted", mutate: func(c *Config) { c.Reconnect.MaxBackoff = time.Millisecond }},
		{name: "empty inbox", mutate: func(c *Config) { c.InboxSize = 0 }},
		{name: "missing base url", mutate: func(c *Config) { c.Server.BaseURL = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
