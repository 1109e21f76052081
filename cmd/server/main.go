// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noldarim/agentbridge/internal/a2a"
	"github.com/noldarim/agentbridge/internal/bridge"
	"github.com/noldarim/agentbridge/internal/common"
	"github.com/noldarim/agentbridge/internal/config"
	"github.com/noldarim/agentbridge/internal/logger"
	"github.com/noldarim/agentbridge/internal/server"
	"github.com/noldarim/agentbridge/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (searches ./, ./config, /etc/agentbridge, ~/.agentbridge when empty)")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Str("version", common.Version).Msg("Starting agentbridge server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		mainLog.Error().Err(err).Msg("Error setting up tracing")
		fmt.Fprintf(os.Stderr, "Error setting up tracing: %v\n", err)
		os.Exit(1)
	}

	clientOpts := []a2a.ClientOption{
		a2a.WithCardTimeout(cfg.A2A.CardTimeout),
		a2a.WithMaxLineBytes(cfg.A2A.MaxLineBytes),
	}
	primary := a2a.NewClient(cfg.Agents.Primary.URL, cfg.Agents.Primary.Path, cfg.A2A.RequestTimeout, clientOpts...)
	secondary := a2a.NewClient(cfg.Agents.Secondary.URL, cfg.Agents.Secondary.Path, cfg.A2A.RequestTimeout, clientOpts...)

	mainLog.Info().
		Str("primary", cfg.Agents.Primary.Endpoint()).
		Str("secondary", cfg.Agents.Secondary.Endpoint()).
		Str("marker", cfg.Routing.Marker).
		Dur("request_timeout", cfg.A2A.RequestTimeout).
		Msg("Agents configured")

	handler := bridge.NewHandler(bridge.Agents{
		Primary:   primary,
		Secondary: secondary,
		Marker:    cfg.Routing.Marker,
	})

	srv := server.New(&cfg.Server, handler, []server.Agent{
		{Role: "primary", Name: cfg.Agents.Primary.Name, Source: primary},
		{Role: "secondary", Name: cfg.Agents.Secondary.Name, Source: secondary},
	})

	// Serve returns once ctx ends and in-flight requests have drained.
	if err := srv.Run(ctx); err != nil {
		mainLog.Error().Err(err).Msg("Server error")
	}

	// Flush spans with a fresh context; ctx is already done.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error flushing traces")
	}

	mainLog.Info().Msg("agentbridge server shut down")
}
