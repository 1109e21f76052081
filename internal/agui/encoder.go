// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agui

import "fmt"

// DefaultErrorCode is used by EncodeError when no code is given.
const DefaultErrorCode = "INTERNAL_ERROR"

// Encoder turns output events into wire frames.
type Encoder interface {
	Encode(ev Event) ([]byte, error)
	EncodeError(message, code string) []byte
	EncodeDone() []byte
	ContentType() string
}

// SSEEncoder frames events as Server-Sent Events: one "data: <json>" record
// per event and a final "data: [DONE]".
type SSEEncoder struct{}

var _ Encoder = SSEEncoder{}

func NewSSEEncoder() SSEEncoder {
	return SSEEncoder{}
}

func (SSEEncoder) ContentType() string {
	return "text/event-stream"
}

func (SSEEncoder) Encode(ev Event) ([]byte, error) {
	payload, err := ev.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type(), err)
	}
	return frame(payload), nil
}

// EncodeError builds a RUN_ERROR frame for failures that happen outside a
// run's own event sequence.
func (e SSEEncoder) EncodeError(message, code string) []byte {
	if code == "" {
		code = DefaultErrorCode
	}
	// A RunErrorEvent holds only strings and always marshals.
	payload, _ := NewRunError(message, code, Now()).ToJSON()
	return frame(payload)
}

func (SSEEncoder) EncodeDone() []byte {
	return []byte("data: [DONE]\n\n")
}

func frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out
}
