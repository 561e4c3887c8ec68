// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the learnmate command-line interface.
package cli

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/learnmate/learnmate/internal/agents"
	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/config"
	"github.com/learnmate/learnmate/internal/llm"
	"github.com/learnmate/learnmate/internal/resources"
	"github.com/learnmate/learnmate/internal/search"
	"github.com/learnmate/learnmate/internal/session"
	"github.com/learnmate/learnmate/internal/storage"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const usage = `learnmate - turn a task into a learning path

Usage:
  learnmate analyze "task description" [flags]
  learnmate serve [--port N]
  learnmate history [--json]
  learnmate version
  learnmate help

Analyze flags:
  --file, -f PATH    read the task description from a .txt or .md file
  --all              find resources for every prerequisite without prompting
  --save             save the analysis and a markdown report
  --output, -o PATH  write the markdown report to PATH (implies --save)

Environment:
  OPENAI_API_KEY     OpenAI API key (required for analyze and serve)
`

// Run dispatches a CLI invocation and returns the process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		fmt.Print(usage)
		return 1
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "analyze":
		return runAnalyze(rest)
	case "serve":
		return runServe(rest)
	case "history":
		return runHistory(rest)
	case "version", "--version", "-v":
		fmt.Printf("learnmate %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
		return 0
	case "help", "--help", "-h":
		fmt.Print(usage)
		return 0
	default:
		printError("unknown command: %s", cmd)
		fmt.Print(usage)
		return 1
	}
}

// buildManager wires the workflow components from configuration.
func buildManager(cfg *config.Config) *session.Manager {
	var llmOpts []llm.Option
	if cfg.OpenAI.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client := llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, llmOpts...)

	searcher := search.NewClient(
		search.WithBaseURL(cfg.Search.BaseURL),
		search.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	)
	finder := resources.NewFinder(searcher,
		resources.WithMaxPerConcept(cfg.Search.MaxResultsPerConcept),
		resources.WithMaxConcepts(cfg.Search.MaxConcepts),
		resources.WithQueriesPerSecond(cfg.Search.QueriesPerSecond),
	)

	return session.NewManager(
		analyzer.New(client),
		finder,
		agents.NewPlanner(client),
		agents.NewCodeCompanion(client),
		agents.NewTutor(client),
	)
}

// openAnalysisStore opens the saved-analysis store under the config dir.
func openAnalysisStore() (*storage.Store, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	return storage.NewStore(filepath.Join(dir, "analyses"))
}
