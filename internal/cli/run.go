// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/noldarim/agentbridge/internal/agui"
	"github.com/noldarim/agentbridge/internal/sse"
)

const chatPath = "/api/agui/chat"

type runOptions struct {
	server  string
	noColor bool
}

func (o *runOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.server, "server", "", "Bridge base URL")
	fs.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
}

func newFlagSet(name string, e env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func chatCommand(args []string, e env) error {
	opts := &runOptions{}
	var threadID string
	fs := newFlagSet("chat", e)
	opts.register(fs)
	fs.StringVar(&threadID, "thread", "", "Thread id to continue (new thread if empty)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		return fmt.Errorf("message required\n\nUsage:\n  %s chat [--thread ID] \"<message>\"", appName)
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}

	in := agui.RunAgentInput{
		ThreadID: threadID,
		RunID:    uuid.NewString(),
		Messages: []agui.Message{{ID: uuid.NewString(), Role: agui.RoleUser, Content: message}},
	}
	return executeRun(in, opts, e)
}

func replayCommand(args []string, e env) error {
	opts := &runOptions{}
	fs := newFlagSet("replay", e)
	opts.register(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("conversation file required\n\nUsage:\n  %s replay <conversation.yaml>", appName)
	}

	conv, err := LoadConversationFile(fs.Arg(0))
	if err != nil {
		return err
	}
	return executeRun(conv.RunInput(), opts, e)
}

func executeRun(in agui.RunAgentInput, opts *runOptions, e env) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newRenderer(e.stdout, opts.noColor)
	if err := streamRun(ctx, e.http, serverURL(opts.server, e), in, r.render); err != nil {
		r.closeLine()
		return err
	}
	if r.err != nil {
		return r.err
	}
	if !r.finished {
		return errors.New("stream ended before the run finished")
	}
	return nil
}

// streamRun posts one run to the bridge and calls handle for every event
// until the [DONE] record.
func streamRun(ctx context.Context, hc *http.Client, server string, in agui.RunAgentInput, handle func(agui.Event)) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode run input: %w", err)
	}

	url := strings.TrimRight(server, "/") + chatPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	getLog().Debug().Str("url", url).Str("thread_id", in.ThreadID).Str("run_id", in.RunID).Msg("Starting run")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach bridge at %s: %w", server, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	rd := sse.NewReader(resp.Body, 0)
	for rd.Next() {
		ev, err := agui.DecodeEvent(rd.Data())
		if err != nil {
			getLog().Warn().Err(err).Msg("Skipping undecodable event")
			continue
		}
		handle(ev)
	}
	if err := rd.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %w", err)
	}
	if !rd.Done() {
		getLog().Debug().Str("run_id", in.RunID).Msg("Stream closed without [DONE]")
	}
	return nil
}

// responseError turns a non-200 reply into an error carrying the server's
// message.
func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		if len(body.Details) > 0 {
			return fmt.Errorf("bridge returned %d: %s: %s", resp.StatusCode, body.Error, strings.Join(body.Details, "; "))
		}
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
