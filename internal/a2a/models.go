// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package a2a is the upstream side of the bridge: the A2A task event model,
// a streaming JSON-RPC client over Server-Sent Events, and the agent card.
package a2a

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// TaskState is the lifecycle state of an upstream task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateFailed        TaskState = "failed"
	TaskStateCancelled     TaskState = "cancelled"
	TaskStateRejected      TaskState = "rejected"
)

// ParseTaskState accepts only the seven protocol states.
func ParseTaskState(s string) (TaskState, error) {
	switch st := TaskState(s); st {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired,
		TaskStateCompleted, TaskStateFailed, TaskStateCancelled, TaskStateRejected:
		return st, nil
	default:
		return "", fmt.Errorf("invalid task state %q", s)
	}
}

// IsTerminal reports whether no further updates are expected for a task in s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCancelled, TaskStateRejected:
		return true
	default:
		return false
	}
}

// MessageRole is the author of an upstream message.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

// ParseMessageRole accepts only "user" and "agent".
func ParseMessageRole(s string) (MessageRole, error) {
	switch r := MessageRole(s); r {
	case RoleUser, RoleAgent:
		return r, nil
	default:
		return "", fmt.Errorf("invalid message role %q", s)
	}
}

// Part is one piece of message or artifact content. The set of
// implementations is closed: *TextPart, *FilePart, *DataPart.
type Part interface {
	PartType() string
	isPart()
}

// TextPart carries plain text, the only part translated downstream.
type TextPart struct {
	Text string
}

// FilePart references or inlines a file.
type FilePart struct {
	MimeType string
	Data     string // base64 content, when inlined
	URI      string
	Name     string
}

// DataPart carries structured JSON.
type DataPart struct {
	Data map[string]any
}

func (*TextPart) PartType() string { return "text" }
func (*FilePart) PartType() string { return "file" }
func (*DataPart) PartType() string { return "data" }

func (*TextPart) isPart() {}
func (*FilePart) isPart() {}
func (*DataPart) isPart() {}

func (p *TextPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", p.Text})
}

func (p *FilePart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
		URI      string `json:"uri,omitempty"`
		Name     string `json:"name,omitempty"`
	}{"file", p.MimeType, p.Data, p.URI, p.Name})
}

func (p *DataPart) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}{"data", p.Data})
}

// Message is an upstream conversation message.
type Message struct {
	Role      MessageRole `json:"role"`
	Parts     []Part      `json:"parts"`
	MessageID string      `json:"messageId"`
}

// TaskStatus is the status block shared by Task and TaskStatusUpdateEvent.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// Artifact is an output produced by a task, possibly streamed in chunks.
type Artifact struct {
	ArtifactID string         `json:"artifactId"`
	Name       string         `json:"name,omitempty"`
	Parts      []Part         `json:"parts"`
	Index      int            `json:"index"`
	Append     bool           `json:"append"`
	LastChunk  bool           `json:"lastChunk"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Event is one upstream stream event. The set of implementations is closed:
// *Task, *TaskStatusUpdateEvent, *TaskArtifactUpdateEvent.
type Event interface {
	GetTaskID() string
	GetContextID() string
	isEvent()
}

// Task is a full task snapshot, usually the first event of a stream.
type Task struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskStatusUpdateEvent reports a status change, optionally with a message.
type TaskStatusUpdateEvent struct {
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TaskArtifactUpdateEvent delivers an artifact or one chunk of it.
type TaskArtifactUpdateEvent struct {
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId"`
	Artifact  Artifact `json:"artifact"`
}

func (t *Task) GetTaskID() string                       { return t.TaskID }
func (t *Task) GetContextID() string                    { return t.ContextID }
func (e *TaskStatusUpdateEvent) GetTaskID() string      { return e.TaskID }
func (e *TaskStatusUpdateEvent) GetContextID() string   { return e.ContextID }
func (e *TaskArtifactUpdateEvent) GetTaskID() string    { return e.TaskID }
func (e *TaskArtifactUpdateEvent) GetContextID() string { return e.ContextID }

func (*Task) isEvent()                    {}
func (*TaskStatusUpdateEvent) isEvent()   {}
func (*TaskArtifactUpdateEvent) isEvent() {}

// KindOfEvent returns the wire discriminator of ev, used in logs.
func KindOfEvent(ev Event) string {
	switch ev.(type) {
	case *Task:
		return "task"
	case *TaskStatusUpdateEvent:
		return "status-update"
	case *TaskArtifactUpdateEvent:
		return "artifact-update"
	default:
		return "unknown"
	}
}

// TextParts returns the text parts of parts, in order.
func TextParts(parts []Part) []*TextPart {
	return lo.FilterMap(parts, func(p Part, _ int) (*TextPart, bool) {
		tp, ok := p.(*TextPart)
		return tp, ok
	})
}

// FirstText returns the text of the first text part of m, if any.
func (m *Message) FirstText() (string, bool) {
	if m == nil {
		return "", false
	}
	if texts := TextParts(m.Parts); len(texts) > 0 {
		return texts[0].Text, true
	}
	return "", false
}
