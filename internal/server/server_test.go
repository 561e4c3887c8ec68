// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/config"
	"github.com/learnmate/learnmate/internal/resources"
	"github.com/learnmate/learnmate/internal/session"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

type fakeAnalyzer struct {
	err error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, task string) (*analyzer.TaskBreakdown, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &analyzer.TaskBreakdown{
		TaskDescription: task,
		Prerequisites: []analyzer.Prerequisite{
			{Name: "HTTP", Category: analyzer.CategoryConcept, Priority: 0},
			{Name: "Go", Category: analyzer.CategoryTechnology, Priority: 1},
			{Name: "SQL", Category: analyzer.CategoryTechnology, Priority: 2},
		},
		EstimatedComplexity: analyzer.ComplexityIntermediate,
	}, nil
}

type fakeFinder struct {
	err error
}

func (f *fakeFinder) FindForPrerequisites(_ context.Context, prereqs []analyzer.Prerequisite) (map[string][]resources.Resource, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string][]resources.Resource, len(prereqs))
	for _, p := range prereqs {
		out[p.Name] = []resources.Resource{
			{Title: p.Name + " guide", URL: "https://example.com", Source: resources.SourceWeb},
		}
	}
	return out, nil
}

type fakeHelper struct {
	reply string
	err   error
}

func (f *fakeHelper) GeneratePlan(_ context.Context, _ *analyzer.TaskBreakdown) (string, error) {
	return f.reply, f.err
}
func (f *fakeHelper) CodeExample(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}
func (f *fakeHelper) Respond(_ context.Context, _, _ string) (string, error) {
	return f.reply, f.err
}

type serverOptions struct {
	analyzerErr error
	finderErr   error
	helperErr   error
	rateLimit   int
}

func newTestHandler(t *testing.T, opts serverOptions) http.Handler {
	t.Helper()

	cfg := config.Default()
	cfg.Server.RateLimit = 1000
	if opts.rateLimit > 0 {
		cfg.Server.RateLimit = opts.rateLimit
	}

	helper := &fakeHelper{reply: "helper output", err: opts.helperErr}
	manager := session.NewManager(
		&fakeAnalyzer{err: opts.analyzerErr},
		&fakeFinder{err: opts.finderErr},
		helper, helper, helper,
	)
	return New(cfg, manager).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, w.Body.String())
	}
	return out
}

// =============================================================================
// TESTS
// =============================================================================

func TestHealth(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	w := doJSON(t, h, http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decodeMap(t, w)
	if got["status"] != "healthy" || got["service"] != ServiceName {
		t.Errorf("health body = %v", got)
	}
}

func TestAnalyzeTask(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	w := doJSON(t, h, http.MethodPost, "/analyze-task",
		map[string]string{"task_description": "build an API", "session_id": "s1"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var breakdown analyzer.TaskBreakdown
	if err := json.Unmarshal(w.Body.Bytes(), &breakdown); err != nil {
		t.Fatal(err)
	}
	if breakdown.TaskDescription != "build an API" || len(breakdown.Prerequisites) != 3 {
		t.Errorf("breakdown = %+v", breakdown)
	}
}

func TestAnalyzeTask_Validation(t *testing.T) {
	h := newTestHandler(t, serverOptions{})

	w := doJSON(t, h, http.MethodPost, "/analyze-task", map[string]string{"task_description": "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty task status = %d", w.Code)
	}
	if _, ok := decodeMap(t, w)["detail"]; !ok {
		t.Error("error body missing detail field")
	}

	req := httptest.NewRequest(http.MethodPost, "/analyze-task", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d", rec.Code)
	}
}

func TestAnalyzeTask_ProviderFailure(t *testing.T) {
	h := newTestHandler(t, serverOptions{analyzerErr: errors.New("provider exploded")})
	w := doJSON(t, h, http.MethodPost, "/analyze-task",
		map[string]string{"task_description": "task"})

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestFindResources_BeforeAnalyze(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	w := doJSON(t, h, http.MethodPost, "/find-resources", map[string]any{"session_id": "s1"})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestFindResources_SkipsKnownIndices(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	doJSON(t, h, http.MethodPost, "/analyze-task",
		map[string]string{"task_description": "task", "session_id": "s1"})

	w := doJSON(t, h, http.MethodPost, "/find-resources", map[string]any{
		"session_id":                 "s1",
		"known_prerequisite_indices": []int{0},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	got := decodeMap(t, w)
	res, ok := got["resources"].(map[string]any)
	if !ok {
		t.Fatalf("resources missing: %v", got)
	}
	if len(res) != 2 {
		t.Errorf("got %d concepts, want 2", len(res))
	}
	if _, ok := res["HTTP"]; ok {
		t.Error("known prerequisite HTTP present in resources")
	}

	// Every resource carries the full wire shape, source included.
	for concept, v := range res {
		entries, ok := v.([]any)
		if !ok || len(entries) == 0 {
			t.Fatalf("concept %q has no resource entries: %v", concept, v)
		}
		for _, e := range entries {
			entry := e.(map[string]any)
			for _, field := range []string{"title", "url", "description", "source"} {
				if _, ok := entry[field]; !ok {
					t.Errorf("resource for %q missing %s field: %v", concept, field, entry)
				}
			}
			if entry["source"] != "web" {
				t.Errorf("resource for %q source = %v, want web", concept, entry["source"])
			}
		}
	}
}

func TestFindResources_SearchFailure(t *testing.T) {
	h := newTestHandler(t, serverOptions{finderErr: errors.New("search down")})
	doJSON(t, h, http.MethodPost, "/analyze-task",
		map[string]string{"task_description": "task", "session_id": "s1"})

	w := doJSON(t, h, http.MethodPost, "/find-resources", map[string]any{"session_id": "s1"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestHelperEndpoints(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	doJSON(t, h, http.MethodPost, "/analyze-task",
		map[string]string{"task_description": "task", "session_id": "s1"})

	tests := []struct {
		path string
		body map[string]string
		key  string
	}{
		{"/generate-plan", map[string]string{"session_id": "s1"}, "plan"},
		{"/get-code-example", map[string]string{"session_id": "s1", "concept": "goroutines"}, "code"},
		{"/ask-tutor", map[string]string{"session_id": "s1", "query": "what is a mutex?"}, "response"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			if got := decodeMap(t, w)[tt.key]; got != "helper output" {
				t.Errorf("%s = %v", tt.key, got)
			}
		})
	}
}

func TestHelperEndpoints_RequireAnalysis(t *testing.T) {
	h := newTestHandler(t, serverOptions{})

	for _, tt := range []struct {
		path string
		body map[string]string
	}{
		{"/generate-plan", map[string]string{"session_id": "s1"}},
		{"/get-code-example", map[string]string{"session_id": "s1", "concept": "goroutines"}},
		{"/ask-tutor", map[string]string{"session_id": "s1", "query": "why?"}},
		{"/export-markdown", map[string]string{"session_id": "s1"}},
	} {
		w := doJSON(t, h, http.MethodPost, tt.path, tt.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", tt.path, w.Code)
		}
	}
}

func TestGetCodeExample_MissingConcept(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	w := doJSON(t, h, http.MethodPost, "/get-code-example", map[string]string{"session_id": "s1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestExportMarkdown(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	doJSON(t, h, http.MethodPost, "/analyze-task",
		map[string]string{"task_description": "build an API", "session_id": "s1"})

	w := doJSON(t, h, http.MethodPost, "/export-markdown", map[string]string{"session_id": "s1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	got := decodeMap(t, w)
	md, _ := got["markdown"].(string)
	if !strings.Contains(md, "# Learning Resources for: build an API") {
		t.Errorf("markdown = %q", md)
	}
	if got["filename"] != "learning_resources.md" {
		t.Errorf("filename = %v", got["filename"])
	}
}

func TestResetSession(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	doJSON(t, h, http.MethodPost, "/analyze-task",
		map[string]string{"task_description": "task", "session_id": "s1"})

	w := doJSON(t, h, http.MethodDelete, "/reset-session?session_id=s1", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	// The session is back in the input phase: helpers fail again.
	w = doJSON(t, h, http.MethodPost, "/generate-plan", map[string]string{"session_id": "s1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("plan after reset status = %d, want 400", w.Code)
	}
}

func TestUploadFile(t *testing.T) {
	h := newTestHandler(t, serverOptions{})

	upload := func(filename, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/upload-file", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := upload("task.txt", "build a web scraper")
	if w.Code != http.StatusOK {
		t.Fatalf("txt upload status = %d: %s", w.Code, w.Body.String())
	}
	got := decodeMap(t, w)
	if got["content"] != "build a web scraper" || got["filename"] != "task.txt" {
		t.Errorf("upload body = %v", got)
	}

	if w := upload("task.pdf", "content"); w.Code != http.StatusBadRequest {
		t.Errorf("pdf upload status = %d, want 400", w.Code)
	}
	if w := upload("task.txt", "   "); w.Code != http.StatusBadRequest {
		t.Errorf("empty upload status = %d, want 400", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, serverOptions{rateLimit: 2})

	for i := 0; i < 2; i++ {
		if w := doJSON(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := newRateLimiter(2, 10*time.Millisecond)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first request should be allowed")
	}
	time.Sleep(25 * time.Millisecond)
	rl.allow("10.0.0.2")

	rl.mu.Lock()
	_, tracked := rl.requests["10.0.0.1"]
	rl.mu.Unlock()
	if tracked {
		t.Error("idle client still tracked after window elapsed")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panics := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	h := Chain(RecoveryMiddleware())(panics)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options header")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, serverOptions{})
	req := httptest.NewRequest(http.MethodOptions, "/analyze-task", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin header")
	}
}
