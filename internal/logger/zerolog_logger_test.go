// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/noldarim/agentbridge/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileConfig(t *testing.T, level string) (*config.LogConfig, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentbridge.log")
	return &config.LogConfig{
		Level:  level,
		Format: "json",
		Output: []config.LogOutputConfig{
			{Type: "file", Enabled: true, Path: path},
		},
		Context: config.LogContextConfig{IncludeTimestamp: true},
	}, path
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name     string
		config   *config.LogConfig
		errorMsg string
	}{
		{
			name: "console_json",
			config: &config.LogConfig{
				Level:  "info",
				Format: "json",
				Output: []config.LogOutputConfig{{Type: "console", Enabled: true}},
			},
		},
		{
			name: "console_pretty",
			config: &config.LogConfig{
				Level:  "warn",
				Format: "console",
				Output: []config.LogOutputConfig{{Type: "console", Enabled: true}},
			},
		},
		{
			name: "rotating_file",
			config: &config.LogConfig{
				Level:  "error",
				Format: "json",
				Output: []config.LogOutputConfig{{
					Type:    "file",
					Enabled: true,
					Path:    filepath.Join(t.TempDir(), "rotating.log"),
					Rotate:  config.LogRotateConfig{MaxSizeMB: 1, MaxBackups: 3, MaxAgeDays: 7},
				}},
			},
		},
		{
			name: "all_outputs_disabled",
			config: &config.LogConfig{
				Level:  "info",
				Output: []config.LogOutputConfig{{Type: "console", Enabled: false}},
			},
		},
		{
			name: "sampling",
			config: &config.LogConfig{
				Level:    "info",
				Output:   []config.LogOutputConfig{{Type: "console", Enabled: true}},
				Sampling: config.LogSamplingConfig{Enabled: true, Initial: 10, Thereafter: 5, Tick: time.Second},
			},
		},
		{
			name: "unknown_output_type",
			config: &config.LogConfig{
				Level:  "info",
				Output: []config.LogOutputConfig{{Type: "syslog", Enabled: true}},
			},
			errorMsg: "unsupported output type: syslog",
		},
		{
			name: "file_without_path",
			config: &config.LogConfig{
				Level:  "info",
				Output: []config.LogOutputConfig{{Type: "file", Enabled: true}},
			},
			errorMsg: "file output requires a path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewManager(tt.config)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, m)
			assert.NoError(t, m.Close())
		})
	}
}

func TestManager_PackageLoggerWritesPkgField(t *testing.T) {
	cfg, path := fileConfig(t, "info")
	m, err := NewManager(cfg)
	require.NoError(t, err)

	l := m.GetLogger("bridge")
	l.Info().Str("run_id", "r1").Msg("run started")
	require.NoError(t, m.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "bridge", lines[0]["pkg"])
	assert.Equal(t, "r1", lines[0]["run_id"])
	assert.Equal(t, "run started", lines[0]["message"])
	assert.Contains(t, lines[0], "time")
}

func TestManager_PackageLevels(t *testing.T) {
	cfg, path := fileConfig(t, "trace")
	cfg.Levels = map[string]string{"a2a": "warn"}
	m, err := NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	a2a := m.GetLogger("a2a")
	bridge := m.GetLogger("bridge")

	assert.Equal(t, zerolog.WarnLevel, a2a.GetLevel())
	assert.Equal(t, zerolog.TraceLevel, bridge.GetLevel())

	a2a.Info().Msg("dropped")
	a2a.Warn().Msg("kept")
	bridge.Debug().Msg("kept too")
	require.NoError(t, m.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "kept", lines[0]["message"])
	assert.Equal(t, "kept too", lines[1]["message"])
}

func TestManager_SetPackageLevel(t *testing.T) {
	cfg, _ := fileConfig(t, "info")
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, zerolog.InfoLevel, m.GetLogger("api").GetLevel())

	m.SetPackageLevel("api", "debug")
	assert.Equal(t, zerolog.DebugLevel, m.GetLogger("api").GetLevel())
	assert.Equal(t, "debug", cfg.Levels["api"])

	// Packages not created yet pick the new level up on first use.
	m.SetPackageLevel("cli", "error")
	assert.Equal(t, zerolog.ErrorLevel, m.GetLogger("cli").GetLevel())
}

func TestManager_ConcurrentGetLogger(t *testing.T) {
	cfg, _ := fileConfig(t, "info")
	m, err := NewManager(cfg)
	require.NoError(t, err)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := m.GetLogger("translator")
			l.Info().Msg("hello")
		}()
	}
	wg.Wait()

	assert.Len(t, m.packageLoggers, 1)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		"Info":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"WARN":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"panic":   zerolog.PanicLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}
