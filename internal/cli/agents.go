// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
)

const agentsPath = "/api/agents"

type agentsOptions struct {
	server  string
	noColor bool
}

// agentEntry mirrors one entry of GET /api/agents.
type agentEntry struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Endpoint string `json:"endpoint"`
	Card     *struct {
		Description string       `json:"description"`
		Version     string       `json:"version"`
		Skills      []agentSkill `json:"skills"`
	} `json:"card"`
	Error string `json:"error"`
}

type agentSkill struct {
	Name string `json:"name"`
}

func agentsCommand(args []string, e env) error {
	opts := &agentsOptions{}
	fs := newFlagSet("agents", e)
	fs.StringVar(&opts.server, "server", "", "Bridge base URL")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	return listAgents(opts, e)
}

func listAgents(opts *agentsOptions, e env) error {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	server := serverURL(opts.server, e)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(server, "/")+agentsPath, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach bridge at %s: %w", server, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}

	var body struct {
		Agents []agentEntry `json:"agents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode agent list: %w", err)
	}

	if len(body.Agents) == 0 {
		fmt.Fprintln(e.stdout, "No agents configured.")
		return nil
	}

	st := newStyles(opts.noColor)
	fmt.Fprintln(e.stdout)
	fmt.Fprintf(e.stdout, "%-10s  %-20s  %-40s  %s\n", "ROLE", "NAME", "ENDPOINT", "STATUS")
	fmt.Fprintln(e.stdout, "──────────  ────────────────────  ────────────────────────────────────────  ──────────────────")
	for _, a := range body.Agents {
		status := st.success.Render("online")
		if a.Error != "" {
			status = st.fail.Render("unreachable")
		} else if a.Card != nil && a.Card.Version != "" {
			status += " " + st.label.Render("v"+a.Card.Version)
		}
		fmt.Fprintf(e.stdout, "%-10s  %-20s  %-40s  %s\n", a.Role, truncate(a.Name, 20), truncate(a.Endpoint, 40), status)

		if a.Card != nil && len(a.Card.Skills) > 0 {
			skills := lo.Map(a.Card.Skills, func(s agentSkill, _ int) string { return s.Name })
			fmt.Fprintln(e.stdout, st.dim.Render("            skills: "+strings.Join(skills, ", ")))
		}
		if a.Error != "" {
			fmt.Fprintln(e.stdout, st.dim.Render("            "+a.Error))
		}
	}
	fmt.Fprintln(e.stdout)

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
