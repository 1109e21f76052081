// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package translator maps upstream A2A events onto AG-UI text message events.
//
// Translation is a pure state transition: the caller owns the State of a run
// and threads it through Translate and Finalize. A Translator holds only its
// id and clock sources, so one instance can serve any number of runs.
package translator

import (
	"sync"

	"github.com/noldarim/agentbridge/internal/a2a"
	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/noldarim/agentbridge/internal/logger"
	"github.com/rs/zerolog"
)

// CodeTaskFailed is the run error code for a task the agent reported as failed.
const CodeTaskFailed = "TASK_FAILED"

const defaultFailureMessage = "Task failed"

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetTranslatorLogger()
		log = &l
	})
	return log
}

// State is the message lifecycle of one run. The zero value is Idle.
type State struct {
	// OpenMessageID is set while a text message has been started and not yet
	// ended.
	OpenMessageID string
}

// Open reports whether a message is currently open.
func (s State) Open() bool {
	return s.OpenMessageID != ""
}

// Translator converts events. It is safe for concurrent use.
type Translator struct {
	newID func() string
	now   func() int64
}

// Option configures a Translator.
type Option func(*Translator)

// WithIDGenerator replaces the source of new message ids.
func WithIDGenerator(gen func() string) Option {
	return func(t *Translator) {
		if gen != nil {
			t.newID = gen
		}
	}
}

// WithClock replaces the millisecond clock used for event timestamps.
func WithClock(now func() int64) Option {
	return func(t *Translator) {
		if now != nil {
			t.now = now
		}
	}
}

func New(opts ...Option) *Translator {
	t := &Translator{
		newID: agui.NewMessageID,
		now:   agui.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate applies one upstream event to s and returns the new state with
// the events to emit, in order. It never fails: unknown variants are no-ops.
func (t *Translator) Translate(s State, ev a2a.Event) (State, []agui.Event) {
	ts := t.now()

	switch e := ev.(type) {
	case *a2a.Task:
		return t.task(s, e, ts)
	case *a2a.TaskStatusUpdateEvent:
		var parts []a2a.Part
		if e.Status.Message != nil {
			parts = e.Status.Message.Parts
		}
		return t.chunk(s, parts, e.Final, ts)
	case *a2a.TaskArtifactUpdateEvent:
		return t.chunk(s, e.Artifact.Parts, e.Artifact.LastChunk, ts)
	default:
		getLog().Warn().Msgf("Unknown A2A event type: %T", ev)
		return s, nil
	}
}

// Finalize closes an open message. Calling it again emits nothing.
func (t *Translator) Finalize(s State) (State, []agui.Event) {
	return t.FinalizeAt(s, t.now())
}

// FinalizeAt is Finalize with an explicit timestamp.
func (t *Translator) FinalizeAt(s State, ts int64) (State, []agui.Event) {
	if !s.Open() {
		return s, nil
	}
	return State{}, []agui.Event{agui.NewTextMessageEnd(s.OpenMessageID, ts)}
}

// task handles a full task snapshot. Completion closes an open message;
// failure reports a TASK_FAILED run error and leaves the state alone, so the
// caller must still Finalize before ending the run.
func (t *Translator) task(s State, task *a2a.Task, ts int64) (State, []agui.Event) {
	switch task.Status.State {
	case a2a.TaskStateCompleted:
		return t.FinalizeAt(s, ts)
	case a2a.TaskStateFailed:
		msg, ok := task.Status.Message.FirstText()
		if !ok {
			msg = defaultFailureMessage
		}
		return s, []agui.Event{agui.NewRunError(msg, CodeTaskFailed, ts)}
	default:
		if task.Status.State.IsTerminal() {
			getLog().Debug().Str("state", string(task.Status.State)).Msg("Task ended without output")
		}
		return s, nil
	}
}

// chunk streams the non-empty text parts, opening a message before the first
// one, and closes the message when last is set.
func (t *Translator) chunk(s State, parts []a2a.Part, last bool, ts int64) (State, []agui.Event) {
	var out []agui.Event

	texts := a2a.TextParts(parts)
	if skipped := len(parts) - len(texts); skipped > 0 {
		getLog().Debug().Int("parts", skipped).Msg("Non-text parts not forwarded")
	}

	for _, tp := range texts {
		if tp.Text == "" {
			continue
		}
		if !s.Open() {
			s.OpenMessageID = t.newID()
			out = append(out, agui.NewTextMessageStart(s.OpenMessageID, agui.RoleAssistant, ts))
		}
		out = append(out, agui.NewTextMessageContent(s.OpenMessageID, tp.Text, ts))
	}

	if last && s.Open() {
		out = append(out, agui.NewTextMessageEnd(s.OpenMessageID, ts))
		s = State{}
	}
	return s, out
}
