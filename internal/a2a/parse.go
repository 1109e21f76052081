// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package a2a

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Outcomes of decodeRecord that skip the record without failing the stream.
var (
	errMalformedRecord    = errors.New("malformed record")
	errUnrecognizedRecord = errors.New("unrecognized record")
)

const (
	kindStatusUpdate   = "status-update"
	kindArtifactUpdate = "artifact-update"
	kindTask           = "task"
)

// decoder turns SSE record payloads into events. newID fills identifiers the
// agent left out.
type decoder struct {
	newID func() string
	// skippedParts counts parts dropped for an unknown type, for logging.
	skippedParts int
}

// decodeRecord classifies one record. It returns errMalformedRecord or
// errUnrecognizedRecord (wrapped) for records to skip, and a *Error of
// KindProtocol for records that end the stream.
func (d *decoder) decodeRecord(data []byte) (Event, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedRecord, err)
	}

	if raw, ok := envelope["error"]; ok && !isNull(raw) {
		var rpcErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &rpcErr); err != nil {
			return nil, protocolError(opStream, "", "A2A agent returned a malformed JSON-RPC error")
		}
		return nil, protocolError(opStream, "", fmt.Sprintf("A2A agent returned JSON-RPC error %d: %s", rpcErr.Code, rpcErr.Message))
	}

	obj := envelope
	if raw, ok := envelope["result"]; ok {
		obj = nil
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: result: %v", errMalformedRecord, err)
		}
		if obj == nil {
			return nil, fmt.Errorf("%w: empty result", errUnrecognizedRecord)
		}
	}

	var kind string
	if raw, ok := obj["kind"]; ok {
		// A non-string kind is treated as absent.
		_ = json.Unmarshal(raw, &kind)
	}

	switch {
	case kind == kindStatusUpdate:
		return d.statusUpdate(obj)
	case kind == kindArtifactUpdate:
		return d.artifactUpdate(obj)
	case kind == kindTask || (has(obj, "taskId") && has(obj, "status")):
		return d.task(obj)
	default:
		return nil, fmt.Errorf("%w: kind=%q", errUnrecognizedRecord, kind)
	}
}

type wireStatus struct {
	State     *string         `json:"state"`
	Message   json.RawMessage `json:"message"`
	Timestamp string          `json:"timestamp"`
}

type wireMessage struct {
	Role      *string           `json:"role"`
	Parts     []json.RawMessage `json:"parts"`
	MessageID string            `json:"messageId"`
}

type wireArtifact struct {
	ArtifactID string            `json:"artifactId"`
	Name       string            `json:"name"`
	Parts      []json.RawMessage `json:"parts"`
	Index      int               `json:"index"`
	Append     bool              `json:"append"`
	LastChunk  bool              `json:"lastChunk"`
	Metadata   map[string]any    `json:"metadata"`
}

type wirePart struct {
	Type     string         `json:"type"`
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	MimeType string         `json:"mimeType"`
	Data     any            `json:"data"`
	URI      string         `json:"uri"`
	Name     string         `json:"name"`
	File     *wireFileBlock `json:"file"`
}

// wireFileBlock is the nested form of a file part used by newer agents.
type wireFileBlock struct {
	MimeType string `json:"mimeType"`
	Bytes    string `json:"bytes"`
	URI      string `json:"uri"`
	Name     string `json:"name"`
}

func (d *decoder) statusUpdate(obj map[string]json.RawMessage) (Event, error) {
	var w struct {
		TaskID    string         `json:"taskId"`
		ContextID string         `json:"contextId"`
		Status    *wireStatus    `json:"status"`
		Final     bool           `json:"final"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := remarshal(obj, &w); err != nil {
		return nil, err
	}
	status, err := d.status(w.Status, TaskStateWorking)
	if err != nil {
		return nil, err
	}
	return &TaskStatusUpdateEvent{
		TaskID:    w.TaskID,
		ContextID: w.ContextID,
		Status:    status,
		Final:     w.Final,
		Metadata:  w.Metadata,
	}, nil
}

func (d *decoder) artifactUpdate(obj map[string]json.RawMessage) (Event, error) {
	var w struct {
		TaskID    string       `json:"taskId"`
		ContextID string       `json:"contextId"`
		Artifact  wireArtifact `json:"artifact"`
	}
	if err := remarshal(obj, &w); err != nil {
		return nil, err
	}
	return &TaskArtifactUpdateEvent{
		TaskID:    w.TaskID,
		ContextID: w.ContextID,
		Artifact:  d.artifact(w.Artifact),
	}, nil
}

func (d *decoder) task(obj map[string]json.RawMessage) (Event, error) {
	var w struct {
		TaskID    string            `json:"taskId"`
		ID        string            `json:"id"`
		ContextID string            `json:"contextId"`
		Status    *wireStatus       `json:"status"`
		Artifacts []wireArtifact    `json:"artifacts"`
		History   []json.RawMessage `json:"history"`
		Metadata  map[string]any    `json:"metadata"`
	}
	if err := remarshal(obj, &w); err != nil {
		return nil, err
	}
	status, err := d.status(w.Status, TaskStateSubmitted)
	if err != nil {
		return nil, err
	}

	t := &Task{
		TaskID:    w.TaskID,
		ContextID: w.ContextID,
		Status:    status,
		Metadata:  w.Metadata,
	}
	if t.TaskID == "" {
		t.TaskID = w.ID
	}
	for _, a := range w.Artifacts {
		t.Artifacts = append(t.Artifacts, d.artifact(a))
	}
	for _, raw := range w.History {
		m, err := d.message(raw)
		if err != nil {
			return nil, err
		}
		if m != nil {
			t.History = append(t.History, *m)
		}
	}
	return t, nil
}

func (d *decoder) status(w *wireStatus, defaultState TaskState) (TaskStatus, error) {
	if w == nil {
		return TaskStatus{State: defaultState}, nil
	}

	state := defaultState
	if w.State != nil {
		parsed, err := ParseTaskState(*w.State)
		if err != nil {
			return TaskStatus{}, protocolError(opStream, "", err.Error())
		}
		state = parsed
	}

	msg, err := d.message(w.Message)
	if err != nil {
		return TaskStatus{}, err
	}
	return TaskStatus{State: state, Message: msg, Timestamp: w.Timestamp}, nil
}

// message decodes an optional message. Absent, null and empty objects yield nil.
func (d *decoder) message(raw json.RawMessage) (*Message, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: message: %v", errMalformedRecord, err)
	}
	if w.Role == nil && w.Parts == nil && w.MessageID == "" {
		return nil, nil
	}

	role := RoleAgent
	if w.Role != nil {
		parsed, err := ParseMessageRole(*w.Role)
		if err != nil {
			return nil, protocolError(opStream, "", err.Error())
		}
		role = parsed
	}

	id := w.MessageID
	if id == "" {
		id = d.newID()
	}
	return &Message{Role: role, Parts: d.parts(w.Parts), MessageID: id}, nil
}

func (d *decoder) artifact(w wireArtifact) Artifact {
	id := w.ArtifactID
	if id == "" {
		id = d.newID()
	}
	return Artifact{
		ArtifactID: id,
		Name:       w.Name,
		Parts:      d.parts(w.Parts),
		Index:      w.Index,
		Append:     w.Append,
		LastChunk:  w.LastChunk,
		Metadata:   w.Metadata,
	}
}

// parts decodes content parts. Non-object entries and unknown types are skipped.
func (d *decoder) parts(raws []json.RawMessage) []Part {
	parts := make([]Part, 0, len(raws))
	for _, raw := range raws {
		var w wirePart
		if err := json.Unmarshal(raw, &w); err != nil {
			d.skippedParts++
			continue
		}

		typ := w.Type
		if typ == "" {
			typ = w.Kind
		}
		if typ == "" {
			typ = "text"
		}

		switch typ {
		case "text":
			parts = append(parts, &TextPart{Text: w.Text})
		case "file":
			fp := &FilePart{MimeType: w.MimeType, URI: w.URI, Name: w.Name}
			if s, ok := w.Data.(string); ok {
				fp.Data = s
			}
			if w.File != nil {
				fp.MimeType = firstNonEmpty(fp.MimeType, w.File.MimeType)
				fp.Data = firstNonEmpty(fp.Data, w.File.Bytes)
				fp.URI = firstNonEmpty(fp.URI, w.File.URI)
				fp.Name = firstNonEmpty(fp.Name, w.File.Name)
			}
			parts = append(parts, fp)
		case "data":
			dp := &DataPart{}
			if m, ok := w.Data.(map[string]any); ok {
				dp.Data = m
			}
			parts = append(parts, dp)
		default:
			d.skippedParts++
		}
	}
	return parts
}

// remarshal decodes a field map into a typed struct. Type mismatches make
// the whole record malformed.
func remarshal(obj map[string]json.RawMessage, v any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedRecord, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", errMalformedRecord, err)
	}
	return nil
}

func has(obj map[string]json.RawMessage, key string) bool {
	_, ok := obj[key]
	return ok
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
