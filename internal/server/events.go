// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes runs over HTTP. A chat request is answered with a
// Server-Sent Events stream of AG-UI events; the WebSocket endpoint carries
// the same events as one text frame each.
package server

import (
	"context"
	"iter"
	"sync"

	"github.com/noldarim/agentbridge/internal/a2a"
	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/noldarim/agentbridge/internal/logger"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// Runner produces the events of one run. *bridge.Handler implements it.
type Runner interface {
	Run(ctx context.Context, in agui.RunAgentInput) iter.Seq[agui.Event]
}

// CardSource is an agent whose descriptor can be listed. *a2a.Client
// implements it.
type CardSource interface {
	BaseURL() string
	Endpoint() string
	AgentCard(ctx context.Context) (*a2a.AgentCard, error)
}

var _ CardSource = (*a2a.Client)(nil)

// Agent is one configured upstream as listed by GET /api/agents.
type Agent struct {
	Role   string // "primary" or "secondary"
	Name   string
	Source CardSource
}

// Error codes of runs rejected before they start.
const (
	CodeInvalidInput   = "INVALID_INPUT"
	CodeTooManyRuns    = "TOO_MANY_RUNS"
	CodeEncodingFailed = agui.DefaultErrorCode
)
