// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package a2a

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/noldarim/agentbridge/internal/logger"
	"github.com/noldarim/agentbridge/internal/sse"
	"github.com/noldarim/agentbridge/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	opStream = "message/stream"
	opCard   = "agent card"

	// DefaultCardTimeout bounds the agent card fetch.
	DefaultCardTimeout = 30 * time.Second

	agentCardPath = "/.well-known/agent.json"
	jsonRPCVer    = "2.0"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
	tracer  = telemetry.Tracer("github.com/noldarim/agentbridge/internal/a2a")
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetA2ALogger()
		log = &l
	})
	return log
}

// Client talks to one A2A agent. It is safe for concurrent use; each call to
// SendMessageStreaming opens its own request.
type Client struct {
	baseURL      string
	endpoint     string
	timeout      time.Duration
	cardTimeout  time.Duration
	maxLineBytes int
	httpClient   *http.Client
	newID        func() string

	card cardCell
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the transport. Its own Timeout should be zero: the
// client applies the per-request budget itself.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCardTimeout sets the budget of the agent card fetch.
func WithCardTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.cardTimeout = d
		}
	}
}

// WithIDGenerator replaces the UUID source for request, task, message and
// artifact ids.
func WithIDGenerator(gen func() string) ClientOption {
	return func(c *Client) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithMaxLineBytes bounds a single SSE line.
func WithMaxLineBytes(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxLineBytes = n
		}
	}
}

// NewClient returns a client for the agent at baseURL. Streaming requests are
// posted to baseURL+path; a path of "/" posts to baseURL itself. timeout is the
// wall-clock budget of one streaming request, body included.
func NewClient(baseURL, path string, timeout time.Duration, opts ...ClientOption) *Client {
	base := strings.TrimRight(baseURL, "/")
	p := strings.TrimRight(path, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	c := &Client{
		baseURL:      base,
		endpoint:     base + p,
		timeout:      timeout,
		cardTimeout:  DefaultCardTimeout,
		maxLineBytes: sse.DefaultMaxLineBytes,
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the agent's base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Endpoint returns the URL streaming requests are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// StreamRequest is the input of one streaming call.
type StreamRequest struct {
	ContextID string
	Messages  []agui.Message
	TaskID    string // new UUID when empty
}

// SendMessageStreaming prepares a message/stream call carrying the last of
// req.Messages. Nothing is sent until the first call to Next on the result.
func (c *Client) SendMessageStreaming(ctx context.Context, req StreamRequest) EventStream {
	return &messageStream{
		client: c,
		parent: ctx,
		req:    req,
		dec:    &decoder{newID: c.newID},
	}
}

// ConvertMessages maps conversation messages to the upstream shape: "user"
// stays user, every other role becomes agent, content becomes one text part.
func ConvertMessages(msgs []agui.Message) []Message {
	return lo.Map(msgs, func(m agui.Message, _ int) Message {
		role := RoleAgent
		if m.Role == agui.RoleUser {
			role = RoleUser
		}
		return Message{
			Role:      role,
			Parts:     []Part{&TextPart{Text: m.Content}},
			MessageID: m.ID,
		}
	})
}

type rpcRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      string       `json:"id"`
	Method  string       `json:"method"`
	Params  streamParams `json:"params"`
}

type streamParams struct {
	Message   Message `json:"message"`
	ContextID string  `json:"contextId"`
	TaskID    string  `json:"taskId"`
}
