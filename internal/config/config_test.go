// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "observability", cfg.Agents.Primary.Name)
	assert.Equal(t, "http://localhost:9999", cfg.Agents.Primary.URL)
	assert.Equal(t, "generic", cfg.Agents.Secondary.Name)
	assert.Equal(t, "http://localhost:9998", cfg.Agents.Secondary.URL)
	assert.Equal(t, 300*time.Second, cfg.A2A.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.A2A.CardTimeout)
	assert.Equal(t, 4<<20, cfg.A2A.MaxLineBytes)
	assert.Equal(t, "LS", cfg.Routing.Marker)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "agentbridge", cfg.Telemetry.ServiceName)
	assert.Equal(t, "INFO", cfg.Log.Levels["a2a"])
}

func TestNewConfig_FileOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8080
  allowed_origins: ["http://localhost:3000"]
agents:
  primary:
    name: obs
    url: http://obs.internal:9000
    path: /a2a
a2a:
  request_timeout: 45s
routing:
  marker: "@ls"
log:
  level: debug
  levels:
    bridge: trace
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "obs", cfg.Agents.Primary.Name)
	assert.Equal(t, "http://obs.internal:9000/a2a", cfg.Agents.Primary.Endpoint())
	assert.Equal(t, 45*time.Second, cfg.A2A.RequestTimeout)
	assert.Equal(t, "@ls", cfg.Routing.Marker)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "trace", cfg.Log.Levels["bridge"])

	// Untouched sections keep their defaults.
	assert.Equal(t, "http://localhost:9998", cfg.Agents.Secondary.URL)
	assert.Equal(t, 30*time.Second, cfg.A2A.CardTimeout)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTBRIDGE_SERVER_PORT", "6060")
	t.Setenv("AGENTBRIDGE_AGENTS_SECONDARY_URL", "https://generic.example.com")
	t.Setenv("AGENTBRIDGE_A2A_REQUEST_TIMEOUT", "2m")
	t.Setenv("AGENTBRIDGE_SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 6060, cfg.Server.Port)
	assert.Equal(t, "https://generic.example.com", cfg.Agents.Secondary.URL)
	assert.Equal(t, 2*time.Minute, cfg.A2A.RequestTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestNewConfig_InvalidFile(t *testing.T) {
	path := writeConfigFile(t, "server: [not, a, map")

	_, err := NewConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *AppConfig) { c.Log.Level = "LOUD" },
			wantErr: "invalid log level",
		},
		{
			name:    "port out of range",
			mutate:  func(c *AppConfig) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "missing primary url",
			mutate:  func(c *AppConfig) { c.Agents.Primary.URL = "" },
			wantErr: "agents.primary.url is required",
		},
		{
			name:    "relative secondary url",
			mutate:  func(c *AppConfig) { c.Agents.Secondary.URL = "localhost:9998" },
			wantErr: "agents.secondary.url must be an absolute http(s) URL",
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *AppConfig) { c.A2A.RequestTimeout = 0 },
			wantErr: "a2a.request_timeout must be positive",
		},
		{
			name:    "tiny line buffer",
			mutate:  func(c *AppConfig) { c.A2A.MaxLineBytes = 10 },
			wantErr: "a2a.max_line_bytes",
		},
		{
			name:    "blank marker",
			mutate:  func(c *AppConfig) { c.Routing.Marker = "  " },
			wantErr: "routing.marker is required",
		},
		{
			name:    "sample ratio above one",
			mutate:  func(c *AppConfig) { c.Telemetry.SampleRatio = 1.5 },
			wantErr: "telemetry.sample_ratio",
		},
		{
			name: "telemetry enabled without endpoint",
			mutate: func(c *AppConfig) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			wantErr: "telemetry.endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAgentConfigEndpoint(t *testing.T) {
	tests := []struct {
		url, path, want string
	}{
		{"http://localhost:9999", "/", "http://localhost:9999"},
		{"http://localhost:9999/", "", "http://localhost:9999"},
		{"http://localhost:9999", "/rpc", "http://localhost:9999/rpc"},
		{"http://localhost:9999/", "rpc/", "http://localhost:9999/rpc"},
	}
	for _, tt := range tests {
		got := AgentConfig{URL: tt.url, Path: tt.path}.Endpoint()
		assert.Equal(t, tt.want, got, "url=%q path=%q", tt.url, tt.path)
	}
}
