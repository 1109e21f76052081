// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"testing"

	"github.com/noldarim/agentbridge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_EnabledShutsDownCleanly(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		ServiceName: "agentbridge-test",
		SampleRatio: 1,
	})
	require.NoError(t, err)

	// No spans were recorded, so shutdown does not need the collector.
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewProvider_SampleRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  int
	}{
		{"always", 1, 5},
		{"never", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tracetest.NewSpanRecorder()
			tp := NewProvider(tt.ratio, nil, sdktrace.WithSpanProcessor(rec))
			defer tp.Shutdown(context.Background())

			tr := tp.Tracer("test")
			for i := 0; i < 5; i++ {
				_, span := tr.Start(context.Background(), "op")
				span.End()
			}
			assert.Len(t, rec.Ended(), tt.want)
		})
	}
}
