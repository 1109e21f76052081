// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Package names used as keys in log.levels. Getters below keep them consistent.
const (
	PkgA2A        = "a2a"
	PkgBridge     = "bridge"
	PkgTranslator = "translator"
	PkgAPI        = "api"
	PkgTelemetry  = "telemetry"
	PkgCLI        = "cli"
)

// GetA2ALogger returns a logger for the upstream A2A client
func GetA2ALogger() zerolog.Logger {
	return GetLogger(PkgA2A)
}

// GetBridgeLogger returns a logger for the run orchestrator
func GetBridgeLogger() zerolog.Logger {
	return GetLogger(PkgBridge)
}

// GetTranslatorLogger returns a logger for event translation
func GetTranslatorLogger() zerolog.Logger {
	return GetLogger(PkgTranslator)
}

// GetAPILogger returns a logger for HTTP ingress
func GetAPILogger() zerolog.Logger {
	return GetLogger(PkgAPI)
}

// GetTelemetryLogger returns a logger for tracing setup
func GetTelemetryLogger() zerolog.Logger {
	return GetLogger(PkgTelemetry)
}

// GetCLILogger returns a logger for the command line client
func GetCLILogger() zerolog.Logger {
	return GetLogger(PkgCLI)
}
