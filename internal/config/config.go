// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	A2A       A2AConfig       `mapstructure:"a2a"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level"`
	Format   string            `mapstructure:"format"`
	Output   []LogOutputConfig `mapstructure:"output"`
	Levels   map[string]string `mapstructure:"levels"`
	Context  LogContextConfig  `mapstructure:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp"`
	IncludeLevel      bool   `mapstructure:"include_level"`
	IncludeStackTrace string `mapstructure:"include_stack_trace"` // Level at which to include stack trace
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Initial    uint32        `mapstructure:"initial"`
	Thereafter uint32        `mapstructure:"thereafter"`
	Tick       time.Duration `mapstructure:"tick"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // Empty = allow all (development); set for production
}

// AgentsConfig names the two A2A backends a run can be routed to.
type AgentsConfig struct {
	Primary   AgentConfig `mapstructure:"primary"`
	Secondary AgentConfig `mapstructure:"secondary"`
}

// AgentConfig locates one A2A agent.
type AgentConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
	Path string `mapstructure:"path"` // JSON-RPC endpoint relative to URL; "/" means the URL itself
}

// Endpoint returns the URL the streaming request is posted to.
func (a AgentConfig) Endpoint() string {
	base := strings.TrimRight(a.URL, "/")
	path := strings.TrimRight(a.Path, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// A2AConfig holds upstream client settings shared by all agents.
type A2AConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // Wall-clock budget for one streaming request
	CardTimeout    time.Duration `mapstructure:"card_timeout"`
	MaxLineBytes   int           `mapstructure:"max_line_bytes"`
}

// RoutingConfig holds the message routing settings.
type RoutingConfig struct {
	Marker string `mapstructure:"marker"` // Prefix that sends a message to the secondary agent
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"` // host:port of the OTLP/HTTP collector
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	// Create a new config struct with default values
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/agentbridge/")
		v.AddConfigPath("$HOME/.agentbridge")
	}

	// Configure viper to use environment variables
	v.SetEnvPrefix("AGENTBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingExplicitFile(configPath, err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal the viper configuration into our config struct.
	// Values found in the config file or env vars overwrite the defaults.
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeys lists the scalar keys that may be set from the environment without
// appearing in a config file. AutomaticEnv only resolves keys viper already knows.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.allowed_origins",
	"log.level",
	"log.format",
	"agents.primary.name",
	"agents.primary.url",
	"agents.primary.path",
	"agents.secondary.name",
	"agents.secondary.url",
	"agents.secondary.path",
	"a2a.request_timeout",
	"a2a.card_timeout",
	"a2a.max_line_bytes",
	"routing.marker",
	"telemetry.enabled",
	"telemetry.endpoint",
	"telemetry.insecure",
	"telemetry.service_name",
	"telemetry.sample_ratio",
}

func bindEnvKeys(v *viper.Viper) {
	for _, key := range envKeys {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(key)
	}
}

// isMissingExplicitFile reports whether an explicitly requested config file
// simply does not exist, which is treated the same as no file at all.
func isMissingExplicitFile(configPath string, err error) bool {
	if configPath == "" {
		return false
	}
	return errors.Is(err, fs.ErrNotExist)
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5050,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
			Output: []LogOutputConfig{
				{
					Type:    "console",
					Enabled: true,
				},
				{
					Type:    "file",
					Enabled: false,
					Path:    "./logs/agentbridge.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
			},
			Levels: map[string]string{
				"a2a":        "INFO",
				"bridge":     "INFO",
				"translator": "INFO",
				"api":        "INFO",
				"telemetry":  "WARN",
				"cli":        "WARN",
			},
			Context: LogContextConfig{
				IncludeCaller:     false,
				IncludeTimestamp:  true,
				IncludeLevel:      true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Agents: AgentsConfig{
			Primary: AgentConfig{
				Name: "observability",
				URL:  "http://localhost:9999",
				Path: "/",
			},
			Secondary: AgentConfig{
				Name: "generic",
				URL:  "http://localhost:9998",
				Path: "/",
			},
		},
		A2A: A2AConfig{
			RequestTimeout: 300 * time.Second,
			CardTimeout:    30 * time.Second,
			MaxLineBytes:   4 << 20,
		},
		Routing: RoutingConfig{
			Marker: "LS",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "agentbridge",
			SampleRatio: 1.0,
		},
	}
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if err := validateAgent("agents.primary", c.Agents.Primary); err != nil {
		return err
	}
	if err := validateAgent("agents.secondary", c.Agents.Secondary); err != nil {
		return err
	}

	if c.A2A.RequestTimeout <= 0 {
		return fmt.Errorf("a2a.request_timeout must be positive, got: %s", c.A2A.RequestTimeout)
	}
	if c.A2A.CardTimeout <= 0 {
		return fmt.Errorf("a2a.card_timeout must be positive, got: %s", c.A2A.CardTimeout)
	}
	if c.A2A.MaxLineBytes < 1024 {
		return fmt.Errorf("a2a.max_line_bytes must be at least 1024, got: %d", c.A2A.MaxLineBytes)
	}

	if strings.TrimSpace(c.Routing.Marker) == "" {
		return errors.New("routing.marker is required")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1], got: %v", c.Telemetry.SampleRatio)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	return nil
}

func validateAgent(key string, a AgentConfig) error {
	if a.URL == "" {
		return fmt.Errorf("%s.url is required", key)
	}
	u, err := url.Parse(a.URL)
	if err != nil {
		return fmt.Errorf("%s.url is invalid: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s.url must be an absolute http(s) URL, got: %s", key, a.URL)
	}
	return nil
}
