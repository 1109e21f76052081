// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/noldarim/agentbridge/internal/agui"
	"gopkg.in/yaml.v3"
)

// Conversation is a recorded chat history in YAML:
//
//	thread_id: incident-42
//	messages:
//	  - role: user
//	    content: Why did the error rate spike?
//	  - role: assistant
//	    content: The payments service started timing out.
//	  - role: user
//	    content: Which deploy caused it?
type Conversation struct {
	ThreadID string                `yaml:"thread_id"`
	RunID    string                `yaml:"run_id"`
	Messages []ConversationMessage `yaml:"messages"`
}

// ConversationMessage is one turn of a Conversation.
type ConversationMessage struct {
	ID      string `yaml:"id"`
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// LoadConversationFile loads and validates a conversation YAML file
func LoadConversationFile(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var c Conversation
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse conversation YAML: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation: %w", err)
	}

	return &c, nil
}

// Validate checks the conversation for errors
func (c *Conversation) Validate() error {
	if len(c.Messages) == 0 {
		return errors.New("conversation must have at least one message")
	}

	var problems []string
	hasUser := false
	for i, m := range c.Messages {
		role := agui.Role(strings.ToLower(m.Role))
		if !role.Valid() {
			problems = append(problems, fmt.Sprintf("message %d: unknown role %q", i+1, m.Role))
		}
		if role == agui.RoleUser && strings.TrimSpace(m.Content) != "" {
			hasUser = true
		}
	}
	if !hasUser {
		problems = append(problems, "no user message with content")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// RunInput turns the conversation into the input of one run. Missing thread
// and run ids are generated.
func (c *Conversation) RunInput() agui.RunAgentInput {
	in := agui.RunAgentInput{
		ThreadID: c.ThreadID,
		RunID:    c.RunID,
		Messages: make([]agui.Message, 0, len(c.Messages)),
	}
	if in.ThreadID == "" {
		in.ThreadID = uuid.NewString()
	}
	if in.RunID == "" {
		in.RunID = uuid.NewString()
	}
	for _, m := range c.Messages {
		in.Messages = append(in.Messages, agui.Message{
			ID:      m.ID,
			Role:    agui.Role(strings.ToLower(m.Role)),
			Content: m.Content,
		})
	}
	in.Normalize()
	return in
}
