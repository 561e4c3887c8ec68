// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analyzer breaks a task description down into prerequisite
// concepts and technologies.
//
// The decomposition itself is delegated to the LLM; this package owns the
// instruction prompt, the response schema, and the parsing. A malformed
// response falls back to extracting bulleted lines before giving up.
package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// TYPES
// =============================================================================

// Prerequisite categories.
const (
	CategoryConcept    = "concept"
	CategoryTechnology = "technology"
	CategorySkill      = "skill"
	CategoryTool       = "tool"
)

// Complexity levels.
const (
	ComplexityBeginner     = "beginner"
	ComplexityIntermediate = "intermediate"
	ComplexityAdvanced     = "advanced"
)

// MaxPrerequisites caps how many prerequisites a breakdown may carry.
const MaxPrerequisites = 12

// Prerequisite is a concept, technology, skill, or tool needed for a task.
type Prerequisite struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	// Priority: 0 = must learn first, higher numbers = can learn later.
	Priority int `json:"priority"`
}

// TaskBreakdown is the structured decomposition of a task.
//
// Prerequisites are identified by their index in the slice; indices are
// only stable within a single breakdown and become invalid once a new
// breakdown replaces it.
type TaskBreakdown struct {
	TaskDescription        string         `json:"task_description"`
	Prerequisites          []Prerequisite `json:"prerequisites"`
	SuggestedLearningOrder []string       `json:"suggested_learning_order"`
	EstimatedComplexity    string         `json:"estimated_complexity"`
}

// =============================================================================
// ANALYZER
// =============================================================================

// ErrEmptyTask indicates an empty task description was supplied.
var ErrEmptyTask = errors.New("task description must not be empty")

// ErrUnparseable indicates the provider response yielded no prerequisites.
var ErrUnparseable = errors.New("could not parse task analysis from provider response")

// Completer is the LLM operation the analyzer depends on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Analyzer decomposes tasks via the LLM.
type Analyzer struct {
	llm Completer
}

// New creates an Analyzer backed by the given completer.
func New(llm Completer) *Analyzer {
	return &Analyzer{llm: llm}
}

const analysisPrompt = `You are an expert learning advisor. Analyze the following task/assignment and identify the ESSENTIAL prerequisite concepts and technologies needed to complete it. Keep it concise - focus on the most important prerequisites only.

Task: %s

Provide a brief breakdown in the following JSON format (limit to 8-12 most essential prerequisites):
{
  "prerequisites": [
    {
      "name": "concept/technology name",
      "category": "concept|technology|skill|tool",
      "description": "brief description of why this is needed",
      "priority": 0
    }
  ],
  "suggested_learning_order": ["prerequisite1", "prerequisite2", ...],
  "estimated_complexity": "beginner|intermediate|advanced"
}

Priorities: 0 = must learn first, 1 = should learn early, 2 = can learn later
Categories:
- "concept": fundamental concepts/theories
- "technology": specific technologies/frameworks/libraries
- "skill": practical skills/techniques
- "tool": development tools/platforms

IMPORTANT:
- Focus on HIGH-LEVEL prerequisites only (e.g., "React" not "React hooks, React components, React state management" separately)
- Group related concepts together
- Limit to 8-12 most essential prerequisites maximum
- Prioritize technologies and core concepts over detailed sub-skills`

// Analyze decomposes a task description into a TaskBreakdown.
//
// Provider and parse failures surface as errors; no partial breakdown is
// ever returned alongside an error.
func (a *Analyzer) Analyze(ctx context.Context, taskDescription string) (*TaskBreakdown, error) {
	taskDescription = strings.TrimSpace(taskDescription)
	if taskDescription == "" {
		return nil, ErrEmptyTask
	}

	prompt := fmt.Sprintf(analysisPrompt, taskDescription)

	response, err := a.llm.Complete(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("task analysis failed: %w", err)
	}

	breakdown, err := Parse(taskDescription, response)
	if err != nil {
		return nil, err
	}

	log.Printf("TASK_ANALYZED | prerequisites=%d complexity=%s",
		len(breakdown.Prerequisites), breakdown.EstimatedComplexity)
	return breakdown, nil
}

// =============================================================================
// RESPONSE PARSING
// =============================================================================

// jsonBlockRegex extracts the outermost JSON object from a response that
// may wrap it in prose or code fences.
var jsonBlockRegex = regexp.MustCompile(`(?s)\{.*\}`)

// bulletRegex strips leading list markers from a text line.
var bulletRegex = regexp.MustCompile(`^[\d\-\*\.\)\s]+`)

// analysisResponse mirrors the JSON schema requested from the model.
type analysisResponse struct {
	Prerequisites          []Prerequisite `json:"prerequisites"`
	SuggestedLearningOrder []string       `json:"suggested_learning_order"`
	EstimatedComplexity    string         `json:"estimated_complexity"`
}

// Parse converts a raw model response into a TaskBreakdown.
//
// It first tries the JSON schema; if that fails it falls back to scraping
// bulleted or numbered lines. Returns ErrUnparseable when neither path
// yields any prerequisites.
func Parse(taskDescription, response string) (*TaskBreakdown, error) {
	if match := jsonBlockRegex.FindString(response); match != "" {
		var parsed analysisResponse
		if err := json.Unmarshal([]byte(match), &parsed); err == nil && len(parsed.Prerequisites) > 0 {
			return fromResponse(taskDescription, &parsed), nil
		}
	}

	breakdown := fromText(taskDescription, response)
	if len(breakdown.Prerequisites) == 0 {
		return nil, ErrUnparseable
	}
	return breakdown, nil
}

// fromResponse normalizes a parsed JSON response into a breakdown.
func fromResponse(taskDescription string, parsed *analysisResponse) *TaskBreakdown {
	prereqs := parsed.Prerequisites
	if len(prereqs) > MaxPrerequisites {
		prereqs = prereqs[:MaxPrerequisites]
	}

	for i := range prereqs {
		if prereqs[i].Category == "" {
			prereqs[i].Category = CategoryConcept
		}
	}

	// Stable sort keeps model ordering within the same priority band.
	sort.SliceStable(prereqs, func(i, j int) bool {
		return prereqs[i].Priority < prereqs[j].Priority
	})

	complexity := parsed.EstimatedComplexity
	switch complexity {
	case ComplexityBeginner, ComplexityIntermediate, ComplexityAdvanced:
	default:
		complexity = ComplexityIntermediate
	}

	return &TaskBreakdown{
		TaskDescription:        taskDescription,
		Prerequisites:          prereqs,
		SuggestedLearningOrder: parsed.SuggestedLearningOrder,
		EstimatedComplexity:    complexity,
	}
}

// fromText extracts prerequisites from an unstructured text response by
// scraping bulleted or numbered lines.
func fromText(taskDescription, text string) *TaskBreakdown {
	var prereqs []Prerequisite

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 3 {
			continue
		}
		if line[0] != '-' && line[0] != '*' && (line[0] < '0' || line[0] > '9') {
			continue
		}

		// Name is the first segment before a colon or comma, minus markers.
		name := line
		if idx := strings.IndexAny(name, ":,"); idx >= 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(bulletRegex.ReplaceAllString(name, ""))
		if len(name) <= 2 {
			continue
		}

		prereqs = append(prereqs, Prerequisite{
			Name:        name,
			Category:    CategoryConcept,
			Description: line,
			Priority:    len(prereqs),
		})
		if len(prereqs) == MaxPrerequisites {
			break
		}
	}

	order := make([]string, 0, len(prereqs))
	for _, p := range prereqs {
		order = append(order, p.Name)
	}

	return &TaskBreakdown{
		TaskDescription:        taskDescription,
		Prerequisites:          prereqs,
		SuggestedLearningOrder: order,
		EstimatedComplexity:    ComplexityIntermediate,
	}
}
