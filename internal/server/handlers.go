// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/noldarim/agentbridge/internal/common"
	"github.com/samber/lo"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	runner  Runner
	agents  []Agent
	encoder agui.Encoder
}

// NewHandlers creates the handler set.
func NewHandlers(runner Runner, agents []Agent, encoder agui.Encoder) *Handlers {
	return &Handlers{runner: runner, agents: agents, encoder: encoder}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// AgentInfo is one entry of GET /api/agents.
type AgentInfo struct {
	Role     string          `json:"role"`
	Name     string          `json:"name"`
	URL      string          `json:"url"`
	Endpoint string          `json:"endpoint"`
	Card     json.RawMessage `json:"card,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type rootResponse struct {
	common.Metadata
	Endpoints map[string]string `json:"endpoints"`
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// decodeRunInput reads a request body as a RunAgentInput and writes the
// error response itself when that fails.
func decodeRunInput(w http.ResponseWriter, r *http.Request) (agui.RunAgentInput, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return agui.RunAgentInput{}, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return agui.RunAgentInput{}, false
	}

	in, err := agui.DecodeRunAgentInput(body)
	if err != nil {
		var invalid *agui.ValidationError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid run input", Details: invalid.Problems})
			return agui.RunAgentInput{}, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON", Details: []string{err.Error()}})
		return agui.RunAgentInput{}, false
	}
	return in, true
}

// --- handlers ---

// Chat handles POST /api/agui/chat. The response is an event stream that
// always ends with a [DONE] record, even when the run fails.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeRunInput(w, r)
	if !ok {
		return
	}

	l := requestLog(r.Context()).With().
		Str("thread_id", in.ThreadID).
		Str("run_id", in.RunID).
		Logger()

	flusher, _ := w.(http.Flusher)
	hdr := w.Header()
	hdr.Set("Content-Type", h.encoder.ContentType())
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(frame []byte) bool {
		if _, err := w.Write(frame); err != nil {
			l.Info().Err(err).Msg("Client went away, stopping run")
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for ev := range h.runner.Run(r.Context(), in) {
		frame, err := h.encoder.Encode(ev)
		if err != nil {
			l.Error().Err(err).Msg("Failed to encode event")
			send(h.encoder.EncodeError(err.Error(), CodeEncodingFailed))
			break
		}
		if !send(frame) {
			return
		}
	}
	send(h.encoder.EncodeDone())
}

// ListAgents handles GET /api/agents. Card fetch failures are reported per
// agent.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	infos := make([]AgentInfo, len(h.agents))
	var wg sync.WaitGroup
	for i, a := range h.agents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			infos[i] = describeAgent(r, a)
		}()
	}
	wg.Wait()

	writeJSON(w, http.StatusOK, map[string]any{
		"agents": infos,
		"count":  len(lo.Filter(infos, func(a AgentInfo, _ int) bool { return a.Error == "" })),
	})
}

func describeAgent(r *http.Request, a Agent) AgentInfo {
	info := AgentInfo{
		Role:     a.Role,
		Name:     a.Name,
		URL:      a.Source.BaseURL(),
		Endpoint: a.Source.Endpoint(),
	}
	card, err := a.Source.AgentCard(r.Context())
	if err != nil {
		getLog().Warn().Err(err).Str("agent", a.Name).Msg("Agent card unavailable")
		info.Error = err.Error()
		return info
	}
	info.Card = card.Raw
	if info.Name == "" {
		info.Name = card.Name
	}
	return info
}

// Live handles GET /health/live.
func (h *Handlers) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Ready handles GET /health/ready. The bridge keeps no connections open
// between runs, so being up is being ready.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Root handles GET /.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Metadata: common.BuildMetadata(),
		Endpoints: map[string]string{
			"chat":      "POST " + chatPath,
			"websocket": "GET " + wsPath,
			"agents":    "GET " + agentsPath,
			"live":      "GET " + livePath,
			"ready":     "GET " + readyPath,
		},
	})
}
