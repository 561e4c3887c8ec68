// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists completed analyses as JSON files on disk.
//
// Each saved analysis is one file under the store directory, named by its
// ID. Writes are atomic so a crash never leaves a torn file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/resources"
	"github.com/learnmate/learnmate/internal/session"
	"github.com/learnmate/learnmate/internal/util"
)

// =============================================================================
// TYPES
// =============================================================================

// SavedAnalysis is one persisted analysis run.
type SavedAnalysis struct {
	ID              string                          `json:"id"`
	TaskDescription string                          `json:"task_description"`
	CreatedAt       time.Time                       `json:"created_at"`
	Breakdown       *analyzer.TaskBreakdown         `json:"breakdown"`
	Resources       map[string][]resources.Resource `json:"resources"`
}

// ErrNotFound indicates no saved analysis exists for the given ID.
var ErrNotFound = errors.New("saved analysis not found")

// ErrNothingToSave indicates the session has no breakdown to persist.
var ErrNothingToSave = errors.New("session has no analysis to save")

// DefaultRetained caps how many analyses the store keeps.
const DefaultRetained = 50

// =============================================================================
// STORE
// =============================================================================

// Store is a directory of saved analyses.
type Store struct {
	dir      string
	retained int
}

// NewStore creates a Store rooted at dir, creating the directory if
// needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating analyses directory: %w", err)
	}
	return &Store{dir: dir, retained: DefaultRetained}, nil
}

// Save persists the session's analysis and returns the saved record.
// Older records past the retention cap are pruned.
func (st *Store) Save(s session.Session) (*SavedAnalysis, error) {
	if s.Breakdown == nil {
		return nil, ErrNothingToSave
	}

	rec := &SavedAnalysis{
		ID:              uuid.NewString(),
		TaskDescription: s.Breakdown.TaskDescription,
		CreatedAt:       time.Now().UTC(),
		Breakdown:       s.Breakdown,
		Resources:       s.Resources,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding analysis: %w", err)
	}
	if err := util.AtomicWriteFile(st.path(rec.ID), data, 0o600); err != nil {
		return nil, fmt.Errorf("writing analysis: %w", err)
	}

	if err := st.prune(); err != nil {
		log.Printf("ANALYSES_PRUNE_FAILED | error=%v", err)
	}
	log.Printf("ANALYSIS_SAVED | id=%s task=%q", rec.ID, util.Truncate(rec.TaskDescription, 60))
	return rec, nil
}

// List returns all saved analyses, most recent first.
func (st *Store) List() ([]*SavedAnalysis, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("reading analyses directory: %w", err)
	}

	var out []*SavedAnalysis
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := st.load(filepath.Join(st.dir, e.Name()))
		if err != nil {
			// A corrupt file should not hide the rest of the history.
			log.Printf("ANALYSIS_LOAD_FAILED | file=%s error=%v", e.Name(), err)
			continue
		}
		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Load returns the saved analysis with the given ID.
func (st *Store) Load(id string) (*SavedAnalysis, error) {
	rec, err := st.load(st.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Delete removes the saved analysis with the given ID.
func (st *Store) Delete(id string) error {
	err := os.Remove(st.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (st *Store) path(id string) string {
	// IDs are UUIDs we generated; the Base call guards against a crafted
	// ID escaping the store directory.
	return filepath.Join(st.dir, filepath.Base(id)+".json")
}

func (st *Store) load(path string) (*SavedAnalysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec SavedAnalysis
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

// prune deletes the oldest analyses beyond the retention cap.
func (st *Store) prune() error {
	all, err := st.List()
	if err != nil {
		return err
	}
	for _, rec := range all[min(len(all), st.retained):] {
		if err := os.Remove(st.path(rec.ID)); err != nil {
			return err
		}
	}
	return nil
}
