// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/noldarim/agentbridge/internal/agui"
)

type styles struct {
	dim     lipgloss.Style
	label   lipgloss.Style
	accent  lipgloss.Style
	success lipgloss.Style
	fail    lipgloss.Style
}

func newStyles(noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{dim: plain, label: plain, accent: plain, success: plain, fail: plain}
	}
	return styles{
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("239")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		accent:  lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("35")),
		fail:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
}

// RunFailedError is returned when a run ends with RUN_ERROR.
type RunFailedError struct {
	Code    string
	Message string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run failed (%s): %s", e.Code, e.Message)
}

// renderer prints the events of one run as they arrive. Assistant text is
// written without buffering so the reply appears as it streams.
type renderer struct {
	out io.Writer
	st  styles

	// openID is the message whose reply line is still open.
	openID   string
	messages int
	err      *RunFailedError
	finished bool
}

func newRenderer(out io.Writer, noColor bool) *renderer {
	return &renderer{out: out, st: newStyles(noColor)}
}

func (r *renderer) render(ev agui.Event) {
	if r.finished {
		getLog().Debug().Str("type", string(ev.Type())).Msg("Ignoring event after run end")
		return
	}
	if agui.IsTerminal(ev) {
		r.closeLine()
		r.finished = true
	}

	switch e := ev.(type) {
	case *agui.RunStartedEvent:
		fmt.Fprintln(r.out, r.st.dim.Render(fmt.Sprintf("▸ run %s (thread %s)", e.RunID(), e.ThreadID())))
	case *agui.TextMessageStartEvent:
		r.closeLine()
		r.openID = agui.MessageIDOf(e)
		r.messages++
		fmt.Fprint(r.out, r.st.accent.Render(string(agui.RoleOf(e))+" › "))
	case *agui.TextMessageContentEvent:
		fmt.Fprint(r.out, e.Delta)
	case *agui.TextMessageEndEvent:
		if agui.MessageIDOf(e) == r.openID {
			r.closeLine()
		}
	case *agui.RunFinishedEvent:
		summary := "✓ run finished"
		if r.messages == 0 {
			summary += " " + r.st.label.Render("(no reply)")
		}
		fmt.Fprintln(r.out, r.st.success.Render(summary))
	case *agui.RunErrorEvent:
		code := agui.ErrorCode(e)
		r.err = &RunFailedError{Code: code, Message: e.Message}
		fmt.Fprintln(r.out, r.st.fail.Render("✗ "+code)+" "+e.Message)
	}
}

// closeLine ends a reply line the stream left open.
func (r *renderer) closeLine() {
	if r.openID != "" {
		fmt.Fprintln(r.out)
		r.openID = ""
	}
}
