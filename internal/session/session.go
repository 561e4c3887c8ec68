// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds per-session learning state and the manager that
// orchestrates the analyzer, resource finder, and AI helpers over it.
//
// Sessions are in-memory only. State survives for the life of the process
// and is scoped by a client-supplied session ID.
package session

import (
	"sync"
	"time"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/resources"
)

// =============================================================================
// PHASES
// =============================================================================

// Phase is a session's position in the learning workflow.
type Phase string

const (
	// PhaseInput: no task analyzed yet.
	PhaseInput Phase = "input"
	// PhaseAnalysis: a breakdown exists, resources not yet found.
	PhaseAnalysis Phase = "analysis"
	// PhaseResources: resources have been found for the breakdown.
	PhaseResources Phase = "resources"
)

// DefaultID is the session used when the client supplies no session ID.
const DefaultID = "default"

// NormalizeID maps an empty session ID to DefaultID.
func NormalizeID(id string) string {
	if id == "" {
		return DefaultID
	}
	return id
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one client's workflow state. The zero Known map means no
// prerequisites have been marked as already known.
type Session struct {
	ID        string
	Phase     Phase
	Breakdown *analyzer.TaskBreakdown
	Known     map[int]struct{}
	Resources map[string][]resources.Resource
	CreatedAt time.Time
	UpdatedAt time.Time
}

// clone returns a copy safe to hand outside the store's lock. Breakdown
// and resource slices are shared but treated as immutable once stored.
func (s *Session) clone() Session {
	out := *s
	out.Known = make(map[int]struct{}, len(s.Known))
	for k := range s.Known {
		out.Known[k] = struct{}{}
	}
	out.Resources = make(map[string][]resources.Resource, len(s.Resources))
	for k, v := range s.Resources {
		out.Resources[k] = v
	}
	return out
}

// SelectPrerequisites returns the prerequisites whose indices are not in
// known. Out-of-range indices are ignored.
func SelectPrerequisites(b *analyzer.TaskBreakdown, known []int) []analyzer.Prerequisite {
	skip := make(map[int]struct{}, len(known))
	for _, i := range known {
		skip[i] = struct{}{}
	}

	out := make([]analyzer.Prerequisite, 0, len(b.Prerequisites))
	for i, p := range b.Prerequisites {
		if _, ok := skip[i]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

// =============================================================================
// STORE
// =============================================================================

// Store is a mutex-guarded session map keyed by session ID.
//
// Concurrent writers to the same session are last-writer-wins; the store
// only guarantees map safety, not per-session serialization.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// get returns the session for id, creating it on first use. Caller must
// hold the write lock.
func (st *Store) get(id string) *Session {
	id = NormalizeID(id)
	s, ok := st.sessions[id]
	if !ok {
		now := time.Now()
		s = &Session{
			ID:        id,
			Phase:     PhaseInput,
			Known:     make(map[int]struct{}),
			Resources: make(map[string][]resources.Resource),
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.sessions[id] = s
	}
	return s
}

// Snapshot returns a copy of the session, creating it on first use.
func (st *Store) Snapshot(id string) Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.get(id).clone()
}

// Breakdown returns the session's breakdown, or nil when the session has
// not been analyzed.
func (st *Store) Breakdown(id string) *analyzer.TaskBreakdown {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[NormalizeID(id)]
	if !ok {
		return nil
	}
	return s.Breakdown
}

// SetBreakdown stores a fresh breakdown. It moves the session to the
// analysis phase and clears any known-set and resources from a prior run.
func (st *Store) SetBreakdown(id string, b *analyzer.TaskBreakdown) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.get(id)
	s.Breakdown = b
	s.Known = make(map[int]struct{})
	s.Resources = make(map[string][]resources.Resource)
	s.Phase = PhaseAnalysis
	s.UpdatedAt = time.Now()
}

// SetResources records found resources and the known-set used to find
// them, moving the session to the resources phase.
func (st *Store) SetResources(id string, known []int, res map[string][]resources.Resource) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.get(id)
	s.Known = make(map[int]struct{}, len(known))
	for _, i := range known {
		s.Known[i] = struct{}{}
	}
	s.Resources = res
	s.Phase = PhaseResources
	s.UpdatedAt = time.Now()
}

// Reset returns the session to the input phase with all state cleared.
func (st *Store) Reset(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.get(id)
	s.Breakdown = nil
	s.Known = make(map[int]struct{})
	s.Resources = make(map[string][]resources.Resource)
	s.Phase = PhaseInput
	s.UpdatedAt = time.Now()
}

// Count reports how many sessions exist.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
