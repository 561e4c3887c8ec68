// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"log"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/resources"
)

// ErrNoAnalysis indicates an operation that needs a breakdown was called
// before the session's task was analyzed.
var ErrNoAnalysis = errors.New("task has not been analyzed yet")

// TaskAnalyzer decomposes a task description.
type TaskAnalyzer interface {
	Analyze(ctx context.Context, taskDescription string) (*analyzer.TaskBreakdown, error)
}

// ResourceFinder finds learning resources for prerequisites.
type ResourceFinder interface {
	FindForPrerequisites(ctx context.Context, prereqs []analyzer.Prerequisite) (map[string][]resources.Resource, error)
}

// PlanGenerator generates a project plan from a breakdown.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, breakdown *analyzer.TaskBreakdown) (string, error)
}

// ExampleProvider produces a code example for a concept.
type ExampleProvider interface {
	CodeExample(ctx context.Context, concept, taskContext string) (string, error)
}

// TutorResponder answers questions and explains errors.
type TutorResponder interface {
	Respond(ctx context.Context, query, taskContext string) (string, error)
}

// Manager drives the learning workflow over the session store. Both the
// HTTP server and the CLI sit on top of it.
type Manager struct {
	store    *Store
	analyzer TaskAnalyzer
	finder   ResourceFinder
	planner  PlanGenerator
	code     ExampleProvider
	tutor    TutorResponder
}

// NewManager wires the workflow components together over a fresh store.
func NewManager(analyzer TaskAnalyzer, finder ResourceFinder, planner PlanGenerator, code ExampleProvider, tutor TutorResponder) *Manager {
	return &Manager{
		store:    NewStore(),
		analyzer: analyzer,
		finder:   finder,
		planner:  planner,
		code:     code,
		tutor:    tutor,
	}
}

// AnalyzeTask decomposes the task and stores the breakdown in the session.
// On failure the session is left untouched.
func (m *Manager) AnalyzeTask(ctx context.Context, sessionID, taskDescription string) (*analyzer.TaskBreakdown, error) {
	breakdown, err := m.analyzer.Analyze(ctx, taskDescription)
	if err != nil {
		return nil, err
	}
	m.store.SetBreakdown(sessionID, breakdown)
	log.Printf("SESSION_ANALYZED | session=%s prerequisites=%d",
		NormalizeID(sessionID), len(breakdown.Prerequisites))
	return breakdown, nil
}

// FindResources finds resources for the session's prerequisites, skipping
// the given known indices, and stores the result.
func (m *Manager) FindResources(ctx context.Context, sessionID string, knownIndices []int) (map[string][]resources.Resource, error) {
	breakdown := m.store.Breakdown(sessionID)
	if breakdown == nil {
		return nil, ErrNoAnalysis
	}

	selected := SelectPrerequisites(breakdown, knownIndices)
	found, err := m.finder.FindForPrerequisites(ctx, selected)
	if err != nil {
		return nil, err
	}

	m.store.SetResources(sessionID, knownIndices, found)
	log.Printf("SESSION_RESOURCES | session=%s concepts=%d known=%d",
		NormalizeID(sessionID), len(found), len(knownIndices))
	return found, nil
}

// GeneratePlan produces a project plan for the session's breakdown.
func (m *Manager) GeneratePlan(ctx context.Context, sessionID string) (string, error) {
	breakdown := m.store.Breakdown(sessionID)
	if breakdown == nil {
		return "", ErrNoAnalysis
	}
	return m.planner.GeneratePlan(ctx, breakdown)
}

// CodeExample produces a code example for a concept in the session's task
// context.
func (m *Manager) CodeExample(ctx context.Context, sessionID, concept string) (string, error) {
	breakdown := m.store.Breakdown(sessionID)
	if breakdown == nil {
		return "", ErrNoAnalysis
	}
	return m.code.CodeExample(ctx, concept, breakdown.TaskDescription)
}

// AskTutor routes a question or error message to the tutor.
func (m *Manager) AskTutor(ctx context.Context, sessionID, query string) (string, error) {
	breakdown := m.store.Breakdown(sessionID)
	if breakdown == nil {
		return "", ErrNoAnalysis
	}
	return m.tutor.Respond(ctx, query, breakdown.TaskDescription)
}

// Snapshot returns a copy of the session state.
func (m *Manager) Snapshot(sessionID string) Session {
	return m.store.Snapshot(sessionID)
}

// Reset clears the session back to the input phase.
func (m *Manager) Reset(sessionID string) {
	m.store.Reset(sessionID)
	log.Printf("SESSION_RESET | session=%s", NormalizeID(sessionID))
}
