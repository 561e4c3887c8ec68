// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/learnmate/learnmate/internal/analyzer"
)

type stubCompleter struct {
	response string
	err      error
	lastUser string
}

func (s *stubCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.lastUser = user
	return s.response, s.err
}

func testBreakdown() *analyzer.TaskBreakdown {
	return &analyzer.TaskBreakdown{
		TaskDescription: "build a chat app",
		Prerequisites: []analyzer.Prerequisite{
			{Name: "WebSockets", Category: analyzer.CategoryConcept, Description: "real-time transport"},
			{Name: "Go", Category: analyzer.CategoryTechnology, Description: "implementation language"},
		},
	}
}

func TestPlanner_GeneratePlan(t *testing.T) {
	stub := &stubCompleter{response: "1. Set up the repo\n2. Build the server"}
	p := NewPlanner(stub)

	plan, err := p.GeneratePlan(context.Background(), testBreakdown())
	if err != nil {
		t.Fatalf("GeneratePlan() error = %v", err)
	}
	if plan != "1. Set up the repo\n2. Build the server" {
		t.Errorf("plan = %q", plan)
	}
	for _, want := range []string{"build a chat app", "- WebSockets: real-time transport", "- Go: implementation language"} {
		if !strings.Contains(stub.lastUser, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestPlanner_ProviderError(t *testing.T) {
	wantErr := errors.New("provider down")
	p := NewPlanner(&stubCompleter{err: wantErr})
	if _, err := p.GeneratePlan(context.Background(), testBreakdown()); !errors.Is(err, wantErr) {
		t.Errorf("GeneratePlan() error = %v, want wrapped %v", err, wantErr)
	}
}

func TestCodeCompanion_CodeExample(t *testing.T) {
	stub := &stubCompleter{response: "```go\nfmt.Println(\"hi\")\n```"}
	c := NewCodeCompanion(stub)

	example, err := c.CodeExample(context.Background(), "goroutines", "build a chat app")
	if err != nil {
		t.Fatalf("CodeExample() error = %v", err)
	}
	if !strings.Contains(example, "fmt.Println") {
		t.Errorf("example = %q", example)
	}
	if !strings.Contains(stub.lastUser, "goroutines") || !strings.Contains(stub.lastUser, "build a chat app") {
		t.Errorf("prompt missing concept or context: %q", stub.lastUser)
	}
}

func TestIsErrorQuery(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"what is a goroutine?", false},
		{"I got this Error: nil pointer dereference", true},
		{"Traceback (most recent call last): ...", true},
		{"how do channels work", false},
	}
	for _, tt := range tests {
		if got := IsErrorQuery(tt.query); got != tt.want {
			t.Errorf("IsErrorQuery(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestTutor_RoutesByQueryKind(t *testing.T) {
	stub := &stubCompleter{response: "answer"}
	tutor := NewTutor(stub)

	if _, err := tutor.Respond(context.Background(), "what is a mutex?", "build a chat app"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(stub.lastUser, "Student's Question") {
		t.Error("question query did not use the question prompt")
	}

	if _, err := tutor.Respond(context.Background(), "error: connection refused", "build a chat app"); err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if !strings.Contains(stub.lastUser, "Error Message / Code") {
		t.Error("error query did not use the error prompt")
	}
}
