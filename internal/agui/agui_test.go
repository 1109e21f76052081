// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package agui

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ag-ui-protocol/ag-ui/sdks/community/go/pkg/core/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEEncoder_Encode(t *testing.T) {
	enc := NewSSEEncoder()

	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{
			name: "run started",
			ev:   NewRunStarted("t1", "r1", 1000),
			want: `data: {"type":"RUN_STARTED","timestamp":1000,"threadId":"t1","runId":"r1"}` + "\n\n",
		},
		{
			name: "text start carries role",
			ev:   NewTextMessageStart("m1", RoleAssistant, 1001),
			want: `data: {"type":"TEXT_MESSAGE_START","timestamp":1001,"messageId":"m1","role":"assistant"}` + "\n\n",
		},
		{
			name: "content",
			ev:   NewTextMessageContent("m1", "Hello", 1002),
			want: `data: {"type":"TEXT_MESSAGE_CONTENT","timestamp":1002,"messageId":"m1","delta":"Hello"}` + "\n\n",
		},
		{
			name: "end",
			ev:   NewTextMessageEnd("m1", 1003),
			want: `data: {"type":"TEXT_MESSAGE_END","timestamp":1003,"messageId":"m1"}` + "\n\n",
		},
		{
			name: "error without code omits it",
			ev:   NewRunError("boom", "", 1004),
			want: `data: {"type":"RUN_ERROR","timestamp":1004,"message":"boom"}` + "\n\n",
		},
		{
			name: "finished",
			ev:   NewRunFinished("t1", "r1", 1005),
			want: `data: {"type":"RUN_FINISHED","timestamp":1005,"threadId":"t1","runId":"r1"}` + "\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := enc.Encode(tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			assert.NotContains(t, string(got), "null")
		})
	}
}

func TestSSEEncoder_ErrorDoneAndContentType(t *testing.T) {
	enc := NewSSEEncoder()

	assert.Equal(t, "text/event-stream", enc.ContentType())
	assert.Equal(t, "data: [DONE]\n\n", string(enc.EncodeDone()))

	frame := string(enc.EncodeError("kaput", ""))
	require.True(t, strings.HasPrefix(frame, "data: "))
	require.True(t, strings.HasSuffix(frame, "\n\n"))

	ev, err := DecodeEvent([]byte(strings.TrimSpace(strings.TrimPrefix(frame, "data: "))))
	require.NoError(t, err)
	runErr, ok := ev.(*RunErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "kaput", runErr.Message)
	assert.Equal(t, DefaultErrorCode, ErrorCode(runErr))
	assert.Positive(t, TimestampOf(runErr))

	frame = string(enc.EncodeError("denied", "A2A_PROTOCOL_ERROR"))
	assert.Contains(t, frame, `"code":"A2A_PROTOCOL_ERROR"`)
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"TEXT_MESSAGE_CONTENT","timestamp":5,"messageId":"m9","delta":"hi"}`))
	require.NoError(t, err)
	content, ok := ev.(*TextMessageContentEvent)
	require.True(t, ok)
	assert.Equal(t, "m9", content.MessageID)
	assert.Equal(t, "hi", content.Delta)
	assert.Equal(t, int64(5), TimestampOf(content))
	assert.Equal(t, EventTextMessageContent, content.Type())

	_, err = DecodeEvent([]byte(`{"type":"NOT_AN_EVENT"}`))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = DecodeEvent([]byte(`{"timestamp":1}`))
	assert.ErrorContains(t, err, "unknown event type")

	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}

func TestIsTerminalAndMessageIDOf(t *testing.T) {
	assert.True(t, IsTerminal(NewRunFinished("t", "r", 0)))
	assert.True(t, IsTerminal(NewRunError("x", "y", 0)))
	assert.False(t, IsTerminal(NewRunStarted("t", "r", 0)))
	assert.False(t, IsTerminal(NewTextMessageEnd("m", 0)))

	assert.Equal(t, "m", MessageIDOf(NewTextMessageStart("m", RoleAssistant, 0)))
	assert.Equal(t, "m", MessageIDOf(NewTextMessageContent("m", "d", 0)))
	assert.Equal(t, "m", MessageIDOf(NewTextMessageEnd("m", 0)))
	assert.Empty(t, MessageIDOf(NewRunStarted("t", "r", 0)))
}

func TestConstructorsProduceValidEvents(t *testing.T) {
	run := []Event{
		NewRunStarted("t", "r", 1),
		NewTextMessageStart(NewMessageID(), RoleAssistant, 2),
	}
	id := MessageIDOf(run[1])
	run = append(run,
		NewTextMessageContent(id, "hello", 3),
		NewTextMessageEnd(id, 4),
		NewRunFinished("t", "r", 5),
	)
	require.NoError(t, events.ValidateSequence(run))

	start := run[1].(*TextMessageStartEvent)
	assert.Equal(t, RoleAssistant, RoleOf(start))
	assert.Equal(t, int64(2), TimestampOf(start))

	assert.Empty(t, ErrorCode(NewRunError("x", "", 0)))
	assert.Equal(t, "TASK_FAILED", ErrorCode(NewRunError("x", "TASK_FAILED", 0)))
	assert.Empty(t, ErrorCode(nil))
	assert.Empty(t, RoleOf(nil))
}

func TestDecodeRunAgentInput(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantValidation bool
		wantSyntax     bool
		problems       []string
	}{
		{
			name: "minimal valid",
			body: `{"threadId":"t1","runId":"r1","messages":[{"role":"user","content":"hi"}]}`,
		},
		{
			name: "all optional fields",
			body: `{"threadId":"t1","runId":"r1","messages":[],"state":{"k":1},"tools":[{"name":"x","description":"d","parameters":{}}],"context":[1],"forwardedProps":{"a":true}}`,
		},
		{
			name:       "malformed json",
			body:       `{"threadId":`,
			wantSyntax: true,
		},
		{
			name:           "missing ids and messages",
			body:           `{}`,
			wantValidation: true,
			problems:       []string{"threadId is required", "runId is required", "messages is required"},
		},
		{
			name:           "unknown role",
			body:           `{"threadId":"t","runId":"r","messages":[{"role":"robot","content":"x"}]}`,
			wantValidation: true,
			problems:       []string{`messages[0].role "robot"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeRunAgentInput([]byte(tt.body))
			switch {
			case tt.wantSyntax:
				require.Error(t, err)
				var ve *ValidationError
				assert.False(t, errors.As(err, &ve))
			case tt.wantValidation:
				require.Error(t, err)
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				for _, p := range tt.problems {
					assert.Contains(t, strings.Join(ve.Problems, "; "), p)
				}
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, in.ThreadID)
			}
		})
	}
}

func TestNormalizeFillsMissingIDs(t *testing.T) {
	in, err := DecodeRunAgentInput([]byte(`{"threadId":"t","runId":"r","messages":[{"role":"user","content":"a"},{"id":"keep","role":"assistant","content":"b"}]}`))
	require.NoError(t, err)

	require.Len(t, in.Messages, 2)
	assert.NotEmpty(t, in.Messages[0].ID)
	assert.Equal(t, "keep", in.Messages[1].ID)
}

func TestMessageOmitsEmptyOptionalFields(t *testing.T) {
	data, err := json.Marshal(Message{ID: "1", Role: RoleUser, Content: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","role":"user","content":"x"}`, string(data))
}
