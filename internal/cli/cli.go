// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the agentbridge command line client. It talks to a
// running bridge over HTTP and renders the AG-UI event stream of a run.
package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/noldarim/agentbridge/internal/common"
	"github.com/noldarim/agentbridge/internal/logger"
	"github.com/rs/zerolog"
)

const (
	appName = "agentbridge"

	defaultServer = "http://localhost:5050"
	serverEnv     = "AGENTBRIDGE_SERVER"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetCLILogger()
		log = &l
	})
	return log
}

// errUsage is returned after usage was printed for a bad invocation.
var errUsage = errors.New("invalid usage")

// env is what a command runs against.
type env struct {
	stdout io.Writer
	stderr io.Writer
	http   *http.Client
	getenv func(string) string
}

// Execute runs the CLI application
func Execute() error {
	return run(os.Args[1:], env{
		stdout: os.Stdout,
		stderr: os.Stderr,
		http:   &http.Client{},
		getenv: os.Getenv,
	})
}

func run(args []string, e env) error {
	if len(args) < 1 {
		printUsage(e.stdout)
		return nil
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "chat":
		return chatCommand(args, e)
	case "replay":
		return replayCommand(args, e)
	case "agents":
		return agentsCommand(args, e)
	case "version":
		m := common.BuildMetadata()
		fmt.Fprintf(e.stdout, "%s version %s", appName, m.Version)
		if m.Revision != "" {
			fmt.Fprintf(e.stdout, " (%s)", m.Revision)
		}
		fmt.Fprintln(e.stdout)
		return nil
	case "help", "-h", "--help":
		printUsage(e.stdout)
		return nil
	default:
		fmt.Fprintf(e.stderr, "Unknown command: %s\n\n", command)
		printUsage(e.stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `%s - AG-UI client for the A2A bridge

Usage:
  %s <command> [arguments]

Commands:
  chat <message>         Send one message and stream the reply
  replay <file.yaml>     Send a recorded conversation and stream the reply
  agents                 List the agents behind the bridge
  version                Print version information
  help                   Show this help message

Common flags:
  --server URL           Bridge base URL (default %s, or $%s)
  --no-color             Disable colored output

Examples:
  %s chat "Why is checkout latency up since noon?"
  %s chat --thread t-42 "LS list the pods in staging"
  %s replay conversation.yaml
  %s agents

`, appName, appName, defaultServer, serverEnv, appName, appName, appName, appName)
}

// serverURL picks the bridge URL: flag, then environment, then default.
func serverURL(flagValue string, e env) string {
	if flagValue != "" {
		return flagValue
	}
	if v := e.getenv(serverEnv); v != "" {
		return v
	}
	return defaultServer
}
