// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package routing decides which agent serves a run from the conversation alone.
package routing

import (
	"strings"
	"unicode"

	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/samber/lo"
)

// DefaultMarker prefixes messages meant for the secondary agent.
const DefaultMarker = "LS"

// Target identifies the agent a run is sent to.
type Target int

const (
	Primary Target = iota
	Secondary
)

func (t Target) String() string {
	if t == Secondary {
		return "secondary"
	}
	return "primary"
}

// Decision is the outcome of Route. When Suppressed is set no agent is
// called and Target is meaningless.
type Decision struct {
	Target     Target
	Messages   []agui.Message
	Suppressed bool
}

// Route looks at the latest user message with content. If its trimmed text
// starts with marker (case-insensitive) the run goes to the secondary agent
// with the marker and following whitespace removed from that message; a
// message that is only the marker suppresses the call. Anything else goes to
// the primary agent unchanged.
//
// The input slice is never modified; a rewrite returns a copy.
func Route(messages []agui.Message, marker string) Decision {
	primary := Decision{Target: Primary, Messages: messages}
	if marker == "" {
		return primary
	}

	_, idx, ok := lo.FindLastIndexOf(messages, func(m agui.Message) bool {
		return m.Role == agui.RoleUser && m.Content != ""
	})
	if !ok {
		return primary
	}

	remainder, matched := stripMarker(messages[idx].Content, marker)
	if !matched {
		return primary
	}
	if remainder == "" {
		return Decision{Suppressed: true}
	}

	rewritten := make([]agui.Message, len(messages))
	copy(rewritten, messages)
	rewritten[idx].Content = remainder
	return Decision{Target: Secondary, Messages: rewritten}
}

// stripMarker reports whether content, once trimmed, begins with marker and
// returns what follows it without leading whitespace.
func stripMarker(content, marker string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) < len(marker) || !strings.EqualFold(trimmed[:len(marker)], marker) {
		return "", false
	}
	return strings.TrimLeftFunc(trimmed[len(marker):], unicode.IsSpace), true
}
