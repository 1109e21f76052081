// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agui

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// Message is one entry of the conversation history.
type Message struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
}

// Tool describes a client-side tool offered to the agent.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// RunAgentInput starts one run.
type RunAgentInput struct {
	ThreadID       string          `json:"threadId"`
	RunID          string          `json:"runId"`
	Messages       []Message       `json:"messages"`
	State          map[string]any  `json:"state,omitempty"`
	Tools          []Tool          `json:"tools,omitempty"`
	Context        []any           `json:"context,omitempty"`
	ForwardedProps json.RawMessage `json:"forwardedProps,omitempty"`
}

// ValidationError lists every problem found in a RunAgentInput.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid run input: " + strings.Join(e.Problems, "; ")
}

// Validate checks the fields a run cannot proceed without. It reports all
// problems at once as a *ValidationError.
func (in *RunAgentInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.ThreadID) == "" {
		problems = append(problems, "threadId is required")
	}
	if strings.TrimSpace(in.RunID) == "" {
		problems = append(problems, "runId is required")
	}
	if in.Messages == nil {
		problems = append(problems, "messages is required")
	}
	for i, m := range in.Messages {
		if !m.Role.Valid() {
			problems = append(problems, fmt.Sprintf("messages[%d].role %q is not one of user, assistant, system, tool", i, m.Role))
		}
	}
	for i, t := range in.Tools {
		if t.Name == "" {
			problems = append(problems, fmt.Sprintf("tools[%d].name is required", i))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Normalize fills in message ids the client left out.
func (in *RunAgentInput) Normalize() {
	for i := range in.Messages {
		if in.Messages[i].ID == "" {
			in.Messages[i].ID = uuid.NewString()
		}
	}
}

// DecodeRunAgentInput parses, normalizes and validates a request body.
// Syntax errors are returned as-is; semantic problems as *ValidationError.
func DecodeRunAgentInput(data []byte) (RunAgentInput, error) {
	var in RunAgentInput
	if err := json.Unmarshal(data, &in); err != nil {
		return RunAgentInput{}, fmt.Errorf("decode run input: %w", err)
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return RunAgentInput{}, err
	}
	return in, nil
}

