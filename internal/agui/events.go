// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agui models the downstream AG-UI run protocol: the events a run
// emits, the RunAgentInput that starts a run, and their wire encoding. The
// event types are those of the AG-UI Go SDK; this package fixes the subset a
// run emits and stamps them with a caller-supplied clock.
package agui

import (
	"time"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
)

type (
	Event     = events.Event
	EventType = events.EventType

	RunStartedEvent         = events.RunStartedEvent
	RunFinishedEvent        = events.RunFinishedEvent
	RunErrorEvent           = events.RunErrorEvent
	TextMessageStartEvent   = events.TextMessageStartEvent
	TextMessageContentEvent = events.TextMessageContentEvent
	TextMessageEndEvent     = events.TextMessageEndEvent
)

const (
	EventRunStarted         = events.EventTypeRunStarted
	EventRunFinished        = events.EventTypeRunFinished
	EventRunError           = events.EventTypeRunError
	EventTextMessageStart   = events.EventTypeTextMessageStart
	EventTextMessageContent = events.EventTypeTextMessageContent
	EventTextMessageEnd     = events.EventTypeTextMessageEnd
)

// Now returns the current time in Unix milliseconds, the timestamp unit of
// every event.
func Now() int64 {
	return time.Now().UnixMilli()
}

func stamp[E Event](ev E, ts int64) E {
	ev.SetTimestamp(ts)
	return ev
}

func NewRunStarted(threadID, runID string, ts int64) *RunStartedEvent {
	return stamp(events.NewRunStartedEvent(threadID, runID), ts)
}

func NewRunFinished(threadID, runID string, ts int64) *RunFinishedEvent {
	return stamp(events.NewRunFinishedEvent(threadID, runID), ts)
}

// NewRunError builds a RUN_ERROR event. An empty code is left off the wire.
func NewRunError(message, code string, ts int64) *RunErrorEvent {
	var opts []events.RunErrorOption
	if code != "" {
		opts = append(opts, events.WithErrorCode(code))
	}
	return stamp(events.NewRunErrorEvent(message, opts...), ts)
}

func NewTextMessageStart(messageID string, role Role, ts int64) *TextMessageStartEvent {
	return stamp(events.NewTextMessageStartEvent(messageID, events.WithRole(string(role))), ts)
}

func NewTextMessageContent(messageID, delta string, ts int64) *TextMessageContentEvent {
	return stamp(events.NewTextMessageContentEvent(messageID, delta), ts)
}

func NewTextMessageEnd(messageID string, ts int64) *TextMessageEndEvent {
	return stamp(events.NewTextMessageEndEvent(messageID), ts)
}

// NewMessageID returns a fresh id for an output text message.
func NewMessageID() string {
	return events.GenerateMessageID()
}

// IsTerminal reports whether ev ends a run.
func IsTerminal(ev Event) bool {
	switch ev.Type() {
	case EventRunFinished, EventRunError:
		return true
	default:
		return false
	}
}

// MessageIDOf returns the message id an event refers to, or "" for run
// lifecycle events.
func MessageIDOf(ev Event) string {
	switch e := ev.(type) {
	case *TextMessageStartEvent:
		return e.MessageID
	case *TextMessageContentEvent:
		return e.MessageID
	case *TextMessageEndEvent:
		return e.MessageID
	default:
		return ""
	}
}

// TimestampOf returns the event time in Unix milliseconds, or 0 when unset.
func TimestampOf(ev Event) int64 {
	if ts := ev.Timestamp(); ts != nil {
		return *ts
	}
	return 0
}

// ErrorCode returns the code of a RUN_ERROR event, or "".
func ErrorCode(e *RunErrorEvent) string {
	if e == nil || e.Code == nil {
		return ""
	}
	return *e.Code
}

// RoleOf returns the role a TEXT_MESSAGE_START announces, or "".
func RoleOf(e *TextMessageStartEvent) Role {
	if e == nil || e.Role == nil {
		return ""
	}
	return Role(*e.Role)
}
