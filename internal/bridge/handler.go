// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bridge runs one AG-UI run against an upstream A2A agent.
//
// A run is a lazy sequence of output events. It always begins with
// RUN_STARTED and always ends with exactly one of RUN_FINISHED or RUN_ERROR;
// every upstream failure is turned into that single terminal RUN_ERROR.
package bridge

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/noldarim/agentbridge/internal/a2a"
	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/noldarim/agentbridge/internal/logger"
	"github.com/noldarim/agentbridge/internal/routing"
	"github.com/noldarim/agentbridge/internal/telemetry"
	"github.com/noldarim/agentbridge/internal/translator"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/noldarim/agentbridge/internal/bridge"

// Run outcomes recorded on the bridge.run span.
const (
	OutcomeFinished   = "finished"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
	OutcomeAbandoned  = "abandoned"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetBridgeLogger()
		log = &l
	})
	return log
}

// Upstream opens streaming calls to one agent. *a2a.Client implements it.
type Upstream interface {
	SendMessageStreaming(ctx context.Context, req a2a.StreamRequest) a2a.EventStream
}

var _ Upstream = (*a2a.Client)(nil)

// Agents is the registry a Handler routes between.
type Agents struct {
	Primary   Upstream
	Secondary Upstream
	// Marker routes a user message to Secondary. Empty disables routing.
	Marker string
}

// For returns the agent serving target.
func (a Agents) For(target routing.Target) Upstream {
	if target == routing.Secondary {
		return a.Secondary
	}
	return a.Primary
}

// Handler runs AG-UI runs. It holds no per-run state and is safe for
// concurrent use.
type Handler struct {
	agents     Agents
	translator *translator.Translator
	now        func() int64
	tracer     trace.Tracer
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithClock replaces the millisecond clock used for lifecycle events.
func WithClock(now func() int64) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithTranslator replaces the event translator.
func WithTranslator(t *translator.Translator) HandlerOption {
	return func(h *Handler) {
		if t != nil {
			h.translator = t
		}
	}
}

// WithTracerProvider traces runs with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) HandlerOption {
	return func(h *Handler) {
		if tp != nil {
			h.tracer = tp.Tracer(tracerName)
		}
	}
}

func NewHandler(agents Agents, opts ...HandlerOption) *Handler {
	h := &Handler{
		agents: agents,
		now:    agui.Now,
		tracer: telemetry.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.translator == nil {
		h.translator = translator.New(translator.WithClock(h.now))
	}
	return h
}

// Run returns the output events of one run. Nothing happens until the
// sequence is ranged over, and a sequence should be ranged over once.
// Breaking out of the loop releases the upstream connection.
func (h *Handler) Run(ctx context.Context, in agui.RunAgentInput) iter.Seq[agui.Event] {
	return func(yield func(agui.Event) bool) {
		r := &run{h: h, in: in, yield: yield}
		r.execute(ctx)
	}
}

// run carries the state of one execution of a Run sequence.
type run struct {
	h     *Handler
	in    agui.RunAgentInput
	yield func(agui.Event) bool

	state   translator.State
	emitted int
	stopped bool
	outcome string
	code    string
}

func (r *run) emit(ev agui.Event) bool {
	if r.stopped {
		return false
	}
	r.emitted++
	if !r.yield(ev) {
		r.stopped = true
		r.outcome = OutcomeAbandoned
		return false
	}
	return true
}

func (r *run) execute(ctx context.Context) {
	h := r.h
	l := getLog().With().Str("thread_id", r.in.ThreadID).Str("run_id", r.in.RunID).Logger()

	ctx, span := h.tracer.Start(ctx, "bridge.run", trace.WithAttributes(
		attribute.String("agui.thread_id", r.in.ThreadID),
		attribute.String("agui.run_id", r.in.RunID),
		attribute.Int("agui.messages", len(r.in.Messages)),
	))
	defer func() {
		span.SetAttributes(
			attribute.String("bridge.outcome", r.outcome),
			attribute.Int("bridge.events", r.emitted),
		)
		if r.outcome == OutcomeFailed {
			span.SetStatus(codes.Error, r.code)
		}
		span.End()
		l.Info().Str("outcome", r.outcome).Int("events", r.emitted).Msg("[BRIDGE] Run ended")
	}()

	l.Info().Int("messages", len(r.in.Messages)).Msg("[BRIDGE] Run started")

	if !r.emit(agui.NewRunStarted(r.in.ThreadID, r.in.RunID, h.now())) {
		return
	}

	decision := routing.Route(r.in.Messages, h.agents.Marker)
	if decision.Suppressed {
		l.Info().Msg("[BRIDGE] Routing marker without content, no agent called")
		span.SetAttributes(attribute.String("bridge.target", "none"))
		r.finish(OutcomeSuppressed)
		return
	}
	span.SetAttributes(attribute.String("bridge.target", decision.Target.String()))
	l.Debug().Stringer("target", decision.Target).Msg("[BRIDGE] Routed")

	upstream := h.agents.For(decision.Target)
	if upstream == nil {
		r.fail(&a2a.Error{Kind: a2a.KindUnexpected, Message: fmt.Sprintf("no %s agent configured", decision.Target)})
		return
	}

	stream := upstream.SendMessageStreaming(ctx, a2a.StreamRequest{
		ContextID: r.in.ThreadID,
		Messages:  decision.Messages,
	})
	defer stream.Close()

	for {
		ev, ok, err := pull(stream)
		if err != nil {
			r.fail(err)
			return
		}
		if !ok {
			break
		}
		l.Debug().Str("kind", a2a.KindOfEvent(ev)).Msg("[BRIDGE] Upstream event")

		next, out, err := r.translate(ev)
		if err != nil {
			r.fail(err)
			return
		}
		r.state = next

		for _, o := range out {
			if runErr, ok := o.(*agui.RunErrorEvent); ok {
				r.finalize()
				if r.emit(runErr) {
					r.outcome = OutcomeFailed
					r.code = agui.ErrorCode(runErr)
				}
				l.Warn().Str("code", agui.ErrorCode(runErr)).Str("message", runErr.Message).Msg("[BRIDGE] Agent reported failure")
				return
			}
			if !r.emit(o) {
				return
			}
		}
	}
	if err := stream.Err(); err != nil {
		r.fail(err)
		return
	}

	r.finalize()
	r.finish(OutcomeFinished)
}

// pull advances stream and returns its next event. ok is false at the end of
// the stream. A panic inside the stream becomes an unexpected failure.
func pull(stream a2a.EventStream) (ev a2a.Event, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ev, ok = nil, false
			err = &a2a.Error{Kind: a2a.KindUnexpected, Message: fmt.Sprintf("upstream stream failed: %v", p)}
		}
	}()
	if !stream.Next() {
		return nil, false, nil
	}
	return stream.Event(), true, nil
}

// translate applies one upstream event, turning a translator panic into an
// unexpected failure.
func (r *run) translate(ev a2a.Event) (s translator.State, out []agui.Event, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &a2a.Error{Kind: a2a.KindUnexpected, Message: fmt.Sprintf("translation failed: %v", p)}
		}
	}()
	s, out = r.h.translator.Translate(r.state, ev)
	return s, out, nil
}

// finalize closes an open message. A panic here is logged and dropped.
func (r *run) finalize() {
	var out []agui.Event
	func() {
		defer func() {
			if p := recover(); p != nil {
				getLog().Error().Interface("panic", p).Msg("[BRIDGE] Finalize failed")
				out = nil
			}
		}()
		r.state, out = r.h.translator.Finalize(r.state)
	}()
	for _, ev := range out {
		if !r.emit(ev) {
			return
		}
	}
}

func (r *run) finish(outcome string) {
	if r.emit(agui.NewRunFinished(r.in.ThreadID, r.in.RunID, r.h.now())) {
		r.outcome = outcome
	}
}

func (r *run) fail(err error) {
	code := a2a.CodeOf(err)
	getLog().Error().
		Err(err).
		Str("thread_id", r.in.ThreadID).
		Str("run_id", r.in.RunID).
		Str("code", code).
		Bool("timeout", a2a.IsTimeout(err)).
		Msg("[BRIDGE] Run failed")

	r.finalize()
	if r.emit(agui.NewRunError(err.Error(), code, r.h.now())) {
		r.outcome = OutcomeFailed
		r.code = code
	}
}
