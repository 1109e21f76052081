// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxCardBytes = 1 << 20

// AgentCard is the agent's self-description served at /.well-known/agent.json.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description,omitempty"`
	URL                string            `json:"url,omitempty"`
	Version            string            `json:"version,omitempty"`
	ProtocolVersion    string            `json:"protocolVersion,omitempty"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills,omitempty"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`

	// Raw is the card exactly as served.
	Raw json.RawMessage `json:"-"`
}

// AgentCapabilities lists the optional protocol features an agent supports.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory,omitempty"`
}

// AgentSkill is one advertised capability of the agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// cardCell holds the card once fetched. There is no invalidation: a card is
// assumed stable for the lifetime of the client. Failed fetches are not
// stored, so the next caller tries again.
type cardCell struct {
	mu   sync.Mutex
	card *AgentCard
}

// AgentCard returns the agent card, fetching it on first use. Concurrent
// callers wait for a single in-flight fetch.
func (c *Client) AgentCard(ctx context.Context) (*AgentCard, error) {
	c.card.mu.Lock()
	defer c.card.mu.Unlock()

	if c.card.card != nil {
		return c.card.card, nil
	}

	card, err := c.fetchAgentCard(ctx)
	if err != nil {
		return nil, err
	}
	c.card.card = card
	return card, nil
}

func (c *Client) fetchAgentCard(ctx context.Context) (card *AgentCard, err error) {
	url := c.baseURL + agentCardPath

	ctx, cancel := context.WithTimeout(ctx, c.cardTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "a2a.agent_card", trace.WithAttributes(attribute.String("a2a.url", url)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindUnexpected, Op: opCard, URL: url, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || isNetTimeout(err) {
			return nil, timeoutError(opCard, url, c.cardTimeout, err)
		}
		return nil, connectionError(opCard, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := protocolError(opCard, url, fmt.Sprintf("A2A agent returned error: %d", resp.StatusCode))
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxCardBytes))
	if err != nil {
		return nil, connectionError(opCard, url, err)
	}

	card = &AgentCard{}
	if err := json.Unmarshal(raw, card); err != nil {
		e := protocolError(opCard, url, "agent card is not valid JSON")
		e.Err = err
		return nil, e
	}
	card.Raw = raw

	getLog().Info().
		Str("url", url).
		Str("agent", card.Name).
		Str("version", card.Version).
		Bool("streaming", card.Capabilities.Streaming).
		Msg("[A2A] Agent card fetched")
	return card, nil
}
