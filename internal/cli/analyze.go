// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// analyze.go - The analyze command: decompose a task, find learning
// resources, then drop into an interactive helper loop.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/config"
	"github.com/learnmate/learnmate/internal/export"
	"github.com/learnmate/learnmate/internal/resources"
	"github.com/learnmate/learnmate/internal/session"
)

// cliSessionID scopes all CLI work to one session.
const cliSessionID = "cli"

func runAnalyze(args []string) int {
	parsed := NewArgParser(args)

	task, err := taskDescription(parsed)
	if err != nil {
		printError("%v", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		printError("%v", err)
		return 1
	}
	if err := cfg.RequireAPIKey(); err != nil {
		printError("%v", err)
		return 1
	}

	manager := buildManager(cfg)
	ctx := context.Background()

	fmt.Println(headingStyle.Render("Analyzing task..."))
	breakdown, err := manager.AnalyzeTask(ctx, cliSessionID, task)
	if err != nil {
		printError("analysis failed: %v", err)
		return 1
	}
	printBreakdown(breakdown)

	knownIndices := []int{}
	if !parsed.BoolFlag("all") && IsTTY() {
		knownIndices = promptKnownIndices(len(breakdown.Prerequisites))
	}

	fmt.Println(headingStyle.Render("Finding learning resources..."))
	found, err := manager.FindResources(ctx, cliSessionID, knownIndices)
	if err != nil {
		printError("resource search failed: %v", err)
		return 1
	}
	printResources(breakdown, found)

	output := parsed.Flag("output", "o")
	if parsed.BoolFlag("save", "s") || output != "" {
		if err := saveAnalysis(manager.Snapshot(cliSessionID), output); err != nil {
			printError("save failed: %v", err)
		}
	}

	if IsTTY() {
		interactiveLoop(ctx, manager)
	}
	return 0
}

// taskDescription resolves the task from positional args or --file.
func taskDescription(parsed *ArgParser) (string, error) {
	if path := parsed.Flag("file", "f"); path != "" {
		return readTaskFile(path)
	}
	task := strings.TrimSpace(strings.Join(parsed.Positional(), " "))
	if task == "" {
		return "", errors.New("provide a task description or --file PATH")
	}
	return task, nil
}

// readTaskFile reads a task description from a .txt or .md file.
func readTaskFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" && ext != ".md" {
		return "", fmt.Errorf("unsupported file type %q; use .txt or .md", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	task := strings.TrimSpace(string(data))
	if task == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return task, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func printBreakdown(b *analyzer.TaskBreakdown) {
	fmt.Println()
	fmt.Println(headingStyle.Render("Prerequisites"))
	fmt.Printf("%s %s\n\n", labelStyle.Render("Estimated complexity:"), b.EstimatedComplexity)

	for i, p := range b.Prerequisites {
		fmt.Printf("  %2d. %s %s\n", i+1, nameStyle.Render(p.Name),
			labelStyle.Render("("+p.Category+")"))
		if p.Description != "" {
			fmt.Printf("      %s\n", p.Description)
		}
	}

	if len(b.SuggestedLearningOrder) > 0 {
		fmt.Println()
		fmt.Println(headingStyle.Render("Suggested learning order"))
		for i, item := range b.SuggestedLearningOrder {
			fmt.Printf("  %d. %s\n", i+1, item)
		}
	}
	fmt.Println()
}

func printResources(b *analyzer.TaskBreakdown, found map[string][]resources.Resource) {
	fmt.Println()
	for _, p := range b.Prerequisites {
		rs, ok := found[p.Name]
		if !ok {
			continue
		}
		fmt.Println(headingStyle.Render(p.Name))
		if len(rs) == 0 {
			fmt.Println(labelStyle.Render("  no resources found"))
			continue
		}
		for i, r := range rs {
			fmt.Printf("  %d. %s\n     %s\n", i+1, nameStyle.Render(r.Title), urlStyle.Render(r.URL))
			if r.Description != "" {
				fmt.Printf("     %s\n", r.Description)
			}
		}
		fmt.Println()
	}
}

// =============================================================================
// PROMPTS
// =============================================================================

// promptKnownIndices asks which prerequisites the user already knows.
// Input is 1-based; invalid input means none.
func promptKnownIndices(count int) []int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	input, err := line.Prompt("Numbers of prerequisites you already know (e.g. '1 3'), or Enter for none: ")
	if err != nil {
		return nil
	}

	var indices []int
	for _, field := range strings.FieldsFunc(input, func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > count {
			fmt.Println(labelStyle.Render("ignoring invalid selection: " + field))
			continue
		}
		indices = append(indices, n-1)
	}
	return indices
}

// interactiveLoop runs the helper menu until the user quits.
func interactiveLoop(ctx context.Context, manager *session.Manager) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		fmt.Println()
		fmt.Println(headingStyle.Render("What would you like to do next?"))
		fmt.Println("  [p]lan the project")
		fmt.Println("  [c]ode an example")
		fmt.Println("  [a]sk a question / explain an error")
		fmt.Println("  [s]ave the analysis")
		fmt.Println("  [q]uit")

		choice, err := line.Prompt("> ")
		if err != nil {
			// Ctrl-C or EOF ends the loop.
			fmt.Println()
			return
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "p", "plan":
			reply, err := manager.GeneratePlan(ctx, cliSessionID)
			if err != nil {
				printError("plan failed: %v", err)
				continue
			}
			displayResponse(reply)

		case "c", "code":
			concept, err := line.Prompt("Concept for the code example: ")
			if err != nil || strings.TrimSpace(concept) == "" {
				continue
			}
			reply, err := manager.CodeExample(ctx, cliSessionID, strings.TrimSpace(concept))
			if err != nil {
				printError("code example failed: %v", err)
				continue
			}
			displayResponse(reply)

		case "a", "ask":
			query, err := line.Prompt("Your question or error message: ")
			if err != nil || strings.TrimSpace(query) == "" {
				continue
			}
			reply, err := manager.AskTutor(ctx, cliSessionID, strings.TrimSpace(query))
			if err != nil {
				printError("tutor failed: %v", err)
				continue
			}
			displayResponse(reply)

		case "s", "save":
			if err := saveAnalysis(manager.Snapshot(cliSessionID), ""); err != nil {
				printError("save failed: %v", err)
			}

		case "q", "quit", "exit":
			fmt.Println(successStyle.Render("Happy learning!"))
			return

		default:
			printError("invalid choice, try p, c, a, s, or q")
		}
	}
}

// =============================================================================
// SAVING
// =============================================================================

// saveAnalysis persists the session to the analysis store and writes a
// markdown report. An empty outputPath picks a timestamped path under
// ~/.learnmate/exports.
func saveAnalysis(snap session.Session, outputPath string) error {
	store, err := openAnalysisStore()
	if err != nil {
		return err
	}
	if _, err := store.Save(snap); err != nil {
		return err
	}

	if outputPath == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		exportDir := filepath.Join(dir, "exports")
		if err := os.MkdirAll(exportDir, 0o700); err != nil {
			return err
		}
		outputPath = export.SavePath(exportDir, snap.Breakdown.TaskDescription)
	}

	if err := os.WriteFile(outputPath, []byte(export.Markdown(snap)), 0o600); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("Saved markdown report to " + outputPath))
	return nil
}
