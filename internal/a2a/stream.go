// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/noldarim/agentbridge/internal/sse"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EventStream is a lazy, finite, non-restartable sequence of upstream events.
// The connection is opened by the first Next and released when the stream
// ends, fails, or is closed.
//
//	stream := client.SendMessageStreaming(ctx, req)
//	defer stream.Close()
//	for stream.Next() {
//		handle(stream.Event())
//	}
//	if err := stream.Err(); err != nil { ... }
type EventStream interface {
	// Next advances to the next event. It returns false when the stream is
	// exhausted or failed.
	Next() bool
	// Event returns the event Next advanced to.
	Event() Event
	// Err returns the failure that ended the stream, a *Error, or nil after a
	// clean end. Events yielded before the failure remain valid.
	Err() error
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

const (
	logSnippetBytes    = 100
	statusSnippetBytes = 512
)

type messageStream struct {
	client *Client
	parent context.Context
	req    StreamRequest
	dec    *decoder

	started  bool
	finished bool

	reqCtx context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	reader *sse.Reader
	span   trace.Span

	cur     Event
	err     error
	yielded int
}

func (s *messageStream) Next() bool {
	if s.finished {
		return false
	}
	if !s.started {
		s.started = true
		if !s.open() {
			return false
		}
	}

	for s.reader.Next() {
		data := s.reader.Data()
		ev, err := s.dec.decodeRecord(data)
		s.logSkippedParts()

		switch {
		case err == nil:
			s.cur = ev
			s.yielded++
			getLog().Debug().
				Str("kind", KindOfEvent(ev)).
				Str("task_id", ev.GetTaskID()).
				Msg("[A2A] Event received")
			return true
		case errors.Is(err, errMalformedRecord):
			getLog().Warn().
				Err(err).
				Str("data", snippet(data, logSnippetBytes)).
				Msg("[A2A] Failed to parse event")
		case errors.Is(err, errUnrecognizedRecord):
			getLog().Debug().
				Str("data", snippet(data, logSnippetBytes)).
				Msg("[A2A] Unrecognized event")
		default:
			s.finish(s.withURL(err))
			return false
		}
	}

	if err := s.reader.Err(); err != nil {
		s.finish(s.classifyRead(err))
		return false
	}
	s.finish(nil)
	return false
}

func (s *messageStream) Event() Event {
	return s.cur
}

func (s *messageStream) Err() error {
	return s.err
}

func (s *messageStream) Close() error {
	if s.finished {
		return nil
	}
	s.started = true
	if s.reqCtx != nil {
		getLog().Debug().
			Str("url", s.client.endpoint).
			Int("events", s.yielded).
			Msg("[A2A] Stream closed before completion")
	}
	s.finish(nil)
	return nil
}

// open sends the request. It returns false, with the stream finished, when
// there is nothing to read.
func (s *messageStream) open() bool {
	c := s.client
	if len(s.req.Messages) == 0 {
		getLog().Warn().Str("url", c.endpoint).Msg("[A2A] No messages to send to A2A agent")
		s.finish(nil)
		return false
	}

	history := ConvertMessages(s.req.Messages)
	taskID := s.req.TaskID
	if taskID == "" {
		taskID = c.newID()
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonRPCVer,
		ID:      c.newID(),
		Method:  opStream,
		Params: streamParams{
			Message:   history[len(history)-1],
			ContextID: s.req.ContextID,
			TaskID:    taskID,
		},
	})
	if err != nil {
		s.finish(&Error{Kind: KindUnexpected, Op: opStream, URL: c.endpoint, Message: "failed to encode request", Err: err})
		return false
	}

	s.reqCtx, s.cancel = context.WithTimeout(s.parent, c.timeout)
	s.reqCtx, s.span = tracer.Start(s.reqCtx, "a2a.message_stream", trace.WithAttributes(
		attribute.String("a2a.url", c.endpoint),
		attribute.String("a2a.context_id", s.req.ContextID),
		attribute.String("a2a.task_id", taskID),
		attribute.Int("a2a.history_len", len(history)),
	))

	getLog().Info().
		Str("url", c.endpoint).
		Str("context_id", s.req.ContextID).
		Str("task_id", taskID).
		Int("history", len(history)).
		Msg("[A2A] Sending request")

	httpReq, err := http.NewRequestWithContext(s.reqCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		s.finish(&Error{Kind: KindUnexpected, Op: opStream, URL: c.endpoint, Message: "failed to build request", Err: err})
		return false
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		s.finish(s.classifyTransport(err))
		return false
	}
	s.body = resp.Body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, statusSnippetBytes))
		e := protocolError(opStream, c.endpoint, fmt.Sprintf("A2A agent returned error: %d", resp.StatusCode))
		e.StatusCode = resp.StatusCode
		if len(bytes.TrimSpace(detail)) > 0 {
			e.Message += ": " + snippet(detail, statusSnippetBytes)
		}
		s.finish(e)
		return false
	}

	s.span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	s.reader = sse.NewReader(resp.Body, c.maxLineBytes)
	return true
}

// finish releases the connection and records the outcome. Only the first
// call has an effect.
func (s *messageStream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.cur = nil
	if err != nil {
		s.err = err
	}

	if s.body != nil {
		_ = s.body.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}

	if s.span != nil {
		s.span.SetAttributes(attribute.Int("a2a.events", s.yielded))
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.End()
	}

	if err != nil {
		getLog().Error().
			Err(err).
			Str("url", s.client.endpoint).
			Str("code", CodeOf(err)).
			Int("events", s.yielded).
			Msg("[A2A] Stream failed")
	}
}

// classifyTransport maps a failure of the request itself.
func (s *messageStream) classifyTransport(err error) *Error {
	if s.deadlineExpired(err) {
		return timeoutError(opStream, s.client.endpoint, s.client.timeout, err)
	}
	return connectionError(opStream, s.client.endpoint, err)
}

// classifyRead maps a failure while reading the body.
func (s *messageStream) classifyRead(err error) *Error {
	if errors.Is(err, sse.ErrLineTooLong) {
		e := protocolError(opStream, s.client.endpoint, fmt.Sprintf("event line exceeds %d bytes", s.client.maxLineBytes))
		e.Err = err
		return e
	}
	if s.deadlineExpired(err) {
		return timeoutError(opStream, s.client.endpoint, s.client.timeout, err)
	}
	e := connectionError(opStream, s.client.endpoint, err)
	e.Message = "connection to A2A agent lost"
	return e
}

func (s *messageStream) deadlineExpired(err error) bool {
	if s.reqCtx != nil && errors.Is(s.reqCtx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isNetTimeout(err)
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (s *messageStream) withURL(err error) error {
	var e *Error
	if errors.As(err, &e) && e.URL == "" {
		e.URL = s.client.endpoint
	}
	return err
}

func (s *messageStream) logSkippedParts() {
	if s.dec.skippedParts == 0 {
		return
	}
	getLog().Debug().Int("parts", s.dec.skippedParts).Msg("[A2A] Skipped parts of unknown type")
	s.dec.skippedParts = 0
}

func snippet(data []byte, n int) string {
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}
