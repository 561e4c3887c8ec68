// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agents holds the AI helpers layered on top of a task breakdown:
// a project planner, a code companion, and a tutor.
//
// Each helper owns its prompt and returns the model's text verbatim;
// rendering is the caller's concern.
package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/learnmate/learnmate/internal/analyzer"
)

// Completer is the LLM operation the agents depend on.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// =============================================================================
// PROJECT PLANNER
// =============================================================================

// Planner generates step-by-step project plans from a task breakdown.
type Planner struct {
	llm Completer
}

// NewPlanner creates a Planner.
func NewPlanner(llm Completer) *Planner {
	return &Planner{llm: llm}
}

const plannerPrompt = `You are an expert project manager. Based on the following task description and its prerequisites, create a high-level, step-by-step project plan.

The plan should be clear, concise, and actionable for a developer.

**Task Description:**
%s

**Prerequisites:**
%s

**Project Plan:**
Provide a numbered list of steps from project setup to completion. Focus on major milestones.
1. ...
2. ...
3. ...`

// GeneratePlan produces a numbered project plan for the breakdown.
func (p *Planner) GeneratePlan(ctx context.Context, breakdown *analyzer.TaskBreakdown) (string, error) {
	var sb strings.Builder
	for _, pr := range breakdown.Prerequisites {
		fmt.Fprintf(&sb, "- %s: %s\n", pr.Name, pr.Description)
	}

	prompt := fmt.Sprintf(plannerPrompt, breakdown.TaskDescription, sb.String())
	plan, err := p.llm.Complete(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("plan generation failed: %w", err)
	}
	return plan, nil
}

// =============================================================================
// CODE COMPANION
// =============================================================================

// CodeCompanion generates code examples for individual concepts.
type CodeCompanion struct {
	llm Completer
}

// NewCodeCompanion creates a CodeCompanion.
func NewCodeCompanion(llm Completer) *CodeCompanion {
	return &CodeCompanion{llm: llm}
}

const codeExamplePrompt = `You are a helpful code assistant. Provide a clear, simple, and well-commented code example for the following concept.

**Concept:**
%s

**Context:**
The user is working on the task: "%s"

**Code Example:**
Provide a language-appropriate, copy-pasteable code block.
` + "```language\n...\n```"

// CodeExample returns a commented code example for a concept, using the
// task description as context.
func (c *CodeCompanion) CodeExample(ctx context.Context, concept, taskContext string) (string, error) {
	prompt := fmt.Sprintf(codeExamplePrompt, concept, taskContext)
	example, err := c.llm.Complete(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("code example failed: %w", err)
	}
	return example, nil
}

// =============================================================================
// TUTOR
// =============================================================================

// Tutor answers questions and explains error messages.
type Tutor struct {
	llm Completer
}

// NewTutor creates a Tutor.
func NewTutor(llm Completer) *Tutor {
	return &Tutor{llm: llm}
}

const tutorQuestionPrompt = `You are a friendly and knowledgeable tutor. A student has a question related to their task.

**Student's Task:**
%s

**Student's Question:**
%s

**Answer:**
Provide a clear, concise, and helpful answer to the student's question.`

const tutorErrorPrompt = `You are a helpful debugging assistant. A student has encountered an error message and needs help understanding it.

**Student's Task:**
%s

**Error Message / Code:**
%s

**Explanation:**
1.  **What the error means:** Briefly explain the error in simple terms.
2.  **Common causes:** List the most likely reasons for this error in the context of the student's task.
3.  **How to fix it:** Suggest specific steps or code corrections to resolve the error.`

// IsErrorQuery reports whether a query looks like a pasted error message
// rather than a question.
func IsErrorQuery(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(q, "error") || strings.Contains(q, "traceback")
}

// Respond routes a query to the question or error prompt and returns the
// tutor's reply.
func (t *Tutor) Respond(ctx context.Context, query, taskContext string) (string, error) {
	tmpl := tutorQuestionPrompt
	if IsErrorQuery(query) {
		tmpl = tutorErrorPrompt
	}

	reply, err := t.llm.Complete(ctx, "", fmt.Sprintf(tmpl, taskContext, query))
	if err != nil {
		return "", fmt.Errorf("tutor response failed: %w", err)
	}
	return reply, nil
}
