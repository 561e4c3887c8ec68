// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a session's analysis and resources as a markdown
// report.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/session"
)

// titleCase uppercases the first rune of each word; used for category and
// complexity headings.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// priorityLabel maps a numeric priority to a reader-facing badge.
func priorityLabel(priority int) string {
	switch priority {
	case 0:
		return "High"
	case 1:
		return "Medium"
	default:
		return "Low"
	}
}

// Markdown renders the session's breakdown and resources as a report.
// Returns an empty string when the session has no analysis.
func Markdown(s session.Session) string {
	if s.Breakdown == nil {
		return ""
	}
	b := s.Breakdown

	var md strings.Builder
	fmt.Fprintf(&md, "# Learning Resources for: %s\n\n", b.TaskDescription)
	fmt.Fprintf(&md, "**Generated:** %s  \n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&md, "**Estimated Complexity:** %s\n\n", titleCase(b.EstimatedComplexity))

	fmt.Fprintf(&md, "## Task Description\n\n%s\n\n", b.TaskDescription)

	md.WriteString("## Prerequisites\n\n")
	for _, category := range categoriesInOrder(b.Prerequisites) {
		fmt.Fprintf(&md, "### %s\n\n", titleCase(category))
		for _, p := range b.Prerequisites {
			if p.Category != category {
				continue
			}
			fmt.Fprintf(&md, "- **%s** (%s priority)\n", p.Name, priorityLabel(p.Priority))
			if p.Description != "" {
				fmt.Fprintf(&md, "  - %s\n", p.Description)
			}
		}
		md.WriteString("\n")
	}

	if len(b.SuggestedLearningOrder) > 0 {
		md.WriteString("## Suggested Learning Order\n\n")
		for i, item := range b.SuggestedLearningOrder {
			fmt.Fprintf(&md, "%d. %s\n", i+1, item)
		}
		md.WriteString("\n")
	}

	md.WriteString("## Learning Resources\n\n")
	// Resource sections follow prerequisite order, not map order.
	for _, p := range b.Prerequisites {
		found := s.Resources[p.Name]
		if len(found) == 0 {
			continue
		}
		fmt.Fprintf(&md, "### %s\n\n", p.Name)
		for i, r := range found {
			fmt.Fprintf(&md, "%d. [%s](%s)\n", i+1, r.Title, r.URL)
			if r.Description != "" {
				fmt.Fprintf(&md, "   - %s\n", r.Description)
			}
		}
		md.WriteString("\n")
	}

	return md.String()
}

// categoriesInOrder returns the distinct categories in first-seen order.
func categoriesInOrder(prereqs []analyzer.Prerequisite) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range prereqs {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out
}

// DefaultFilename is the filename suggested to API clients.
const DefaultFilename = "learning_resources.md"

// SavePath builds a timestamped export path under dir, deriving a safe
// slug from the task description.
func SavePath(dir, taskDescription string) string {
	slug := slugify(taskDescription, 30)
	stamp := time.Now().Format("20060102_150405")
	return filepath.Join(dir, fmt.Sprintf("learning_resources_%s_%s.md", slug, stamp))
}

// slugify keeps alphanumerics from the first maxLen characters and joins
// words with underscores.
func slugify(s string, maxLen int) string {
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '_', r == '-':
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), "_")
}
