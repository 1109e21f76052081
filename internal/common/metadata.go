// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package common provides build metadata shared by the binaries.
package common

import "runtime/debug"

// ServiceName identifies the bridge in responses and traces.
const ServiceName = "agentbridge"

// Version is set at build time with
// -ldflags "-X github.com/noldarim/agentbridge/internal/common.Version=v1.2.3".
var Version = "dev"

// Metadata describes the running build.
type Metadata struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version,omitempty"`
	Revision  string `json:"revision,omitempty"`
}

// BuildMetadata returns the metadata of the current binary. Revision comes
// from the VCS stamp when the module was built from a checkout.
func BuildMetadata() Metadata {
	m := Metadata{Name: ServiceName, Version: Version}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return m
	}
	m.GoVersion = info.GoVersion
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			m.Revision = s.Value
			if len(m.Revision) > 12 {
				m.Revision = m.Revision[:12]
			}
		}
	}
	return m
}
