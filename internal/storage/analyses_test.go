// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/resources"
	"github.com/learnmate/learnmate/internal/session"
)

func testSession(task string) session.Session {
	return session.Session{
		ID:    "s1",
		Phase: session.PhaseResources,
		Breakdown: &analyzer.TaskBreakdown{
			TaskDescription: task,
			Prerequisites: []analyzer.Prerequisite{
				{Name: "HTTP", Category: analyzer.CategoryConcept},
			},
			EstimatedComplexity: analyzer.ComplexityBeginner,
		},
		Resources: map[string][]resources.Resource{
			"HTTP": {{Title: "HTTP basics", URL: "https://example.com"}},
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return st
}

func TestSaveAndLoad(t *testing.T) {
	st := newTestStore(t)

	rec, err := st.Save(testSession("build a web scraper"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Save() returned empty ID")
	}

	loaded, err := st.Load(rec.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.TaskDescription != "build a web scraper" {
		t.Errorf("TaskDescription = %q", loaded.TaskDescription)
	}
	if loaded.Breakdown == nil || len(loaded.Breakdown.Prerequisites) != 1 {
		t.Errorf("breakdown not round-tripped: %+v", loaded.Breakdown)
	}
	if len(loaded.Resources["HTTP"]) != 1 {
		t.Errorf("resources not round-tripped: %+v", loaded.Resources)
	}
}

func TestSave_NoAnalysis(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Save(session.Session{ID: "s1"}); !errors.Is(err, ErrNothingToSave) {
		t.Errorf("Save() error = %v, want ErrNothingToSave", err)
	}
}

func TestList_MostRecentFirst(t *testing.T) {
	st := newTestStore(t)

	first, err := st.Save(testSession("first task"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	second, err := st.Save(testSession("second task"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	all, err := st.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d analyses, want 2", len(all))
	}
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("List() order = [%s, %s], want most recent first", all[0].ID, all[1].ID)
	}
}

func TestList_SkipsCorruptFiles(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Save(testSession("good")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(st.dir, "broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	all, err := st.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("got %d analyses, want 1 (corrupt file skipped)", len(all))
	}
}

func TestLoadAndDelete_NotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
	if err := st.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	st := newTestStore(t)
	rec, err := st.Save(testSession("task"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Delete(rec.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := st.Load(rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after delete error = %v, want ErrNotFound", err)
	}
}

func TestPrune(t *testing.T) {
	st := newTestStore(t)
	st.retained = 2

	for i := 0; i < 4; i++ {
		if _, err := st.Save(testSession("task")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	all, err := st.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d analyses after prune, want 2", len(all))
	}
}
