// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the learning workflow over an HTTP JSON API.
//
// Endpoints mirror the session manager's operations one-to-one; all state
// lives in the manager's session store. Errors are returned as
// {"detail": "..."} with 400 for validation problems, 502 when an
// upstream provider fails, and 500 otherwise.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/learnmate/learnmate/internal/analyzer"
	"github.com/learnmate/learnmate/internal/config"
	"github.com/learnmate/learnmate/internal/export"
	"github.com/learnmate/learnmate/internal/llm"
	"github.com/learnmate/learnmate/internal/search"
	"github.com/learnmate/learnmate/internal/session"
)

// ServiceName identifies the service in health responses.
const ServiceName = "LearnMate API"

// maxBodySize caps JSON request bodies (64KB).
const maxBodySize = 64 * 1024

// maxUploadSize caps uploaded task files (1MB).
const maxUploadSize = 1 * 1024 * 1024

// =============================================================================
// SERVER
// =============================================================================

// Server is the HTTP front end over a session manager.
type Server struct {
	manager *session.Manager
	httpSrv *http.Server
}

// New builds a Server listening on the configured port.
func New(cfg *config.Config, manager *session.Manager) *Server {
	s := &Server{manager: manager}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /analyze-task", s.handleAnalyzeTask)
	mux.HandleFunc("POST /upload-file", s.handleUploadFile)
	mux.HandleFunc("POST /find-resources", s.handleFindResources)
	mux.HandleFunc("POST /generate-plan", s.handleGeneratePlan)
	mux.HandleFunc("POST /get-code-example", s.handleGetCodeExample)
	mux.HandleFunc("POST /ask-tutor", s.handleAskTutor)
	mux.HandleFunc("POST /export-markdown", s.handleExportMarkdown)
	mux.HandleFunc("DELETE /reset-session", s.handleResetSession)

	chain := Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		CORSMiddleware(),
		LoggingMiddleware(),
		RateLimitMiddleware(cfg.Server.RateLimit,
			time.Duration(cfg.Server.RateWindowSecs)*time.Second),
	)

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the full middleware-wrapped handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe runs the server until it is shut down.
func (s *Server) ListenAndServe() error {
	log.Printf("SERVER_START | addr=%s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("SERVER_SHUTDOWN |")
	return s.httpSrv.Shutdown(ctx)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("RESPONSE_ENCODE_FAILED | error=%v", err)
	}
}

// writeDetail writes an error response in the {"detail": "..."} shape.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps a workflow error to an HTTP status.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoAnalysis),
		errors.Is(err, analyzer.ErrEmptyTask):
		writeDetail(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, llm.ErrNotConfigured):
		writeDetail(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, llm.ErrAuthFailed),
		errors.Is(err, llm.ErrRateLimited),
		errors.Is(err, llm.ErrEmptyResponse),
		errors.Is(err, analyzer.ErrUnparseable),
		errors.Is(err, search.ErrRateLimited),
		errors.Is(err, search.ErrBadStatus):
		writeDetail(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeDetail(w, http.StatusGatewayTimeout, err.Error())
	default:
		// Wrapped provider failures land here too. Anything coming back
		// from an upstream call is a gateway problem, not ours.
		writeDetail(w, http.StatusBadGateway, err.Error())
	}
}

// decodeBody decodes a size-capped JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

type analyzeTaskRequest struct {
	TaskDescription string `json:"task_description"`
	SessionID       string `json:"session_id"`
}

func (s *Server) handleAnalyzeTask(w http.ResponseWriter, r *http.Request) {
	var req analyzeTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.TaskDescription) == "" {
		writeDetail(w, http.StatusBadRequest, "task_description must not be empty")
		return
	}

	breakdown, err := s.manager.AnalyzeTask(r.Context(), req.SessionID, req.TaskDescription)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "missing or oversized file upload")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".txt" && ext != ".md" {
		writeDetail(w, http.StatusBadRequest, "unsupported file type; use .txt or .md")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}
	if strings.TrimSpace(string(content)) == "" {
		writeDetail(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"content":  string(content),
		"filename": header.Filename,
	})
}

type findResourcesRequest struct {
	KnownPrerequisiteIndices []int  `json:"known_prerequisite_indices"`
	SessionID                string `json:"session_id"`
}

func (s *Server) handleFindResources(w http.ResponseWriter, r *http.Request) {
	var req findResourcesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := s.manager.FindResources(r.Context(), req.SessionID, req.KnownPrerequisiteIndices)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resources": found})
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	plan, err := s.manager.GeneratePlan(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"plan": plan})
}

type codeExampleRequest struct {
	Concept   string `json:"concept"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleGetCodeExample(w http.ResponseWriter, r *http.Request) {
	var req codeExampleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Concept) == "" {
		writeDetail(w, http.StatusBadRequest, "concept must not be empty")
		return
	}

	code, err := s.manager.CodeExample(r.Context(), req.SessionID, req.Concept)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"code": code})
}

type askTutorRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleAskTutor(w http.ResponseWriter, r *http.Request) {
	var req askTutorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeDetail(w, http.StatusBadRequest, "query must not be empty")
		return
	}

	reply, err := s.manager.AskTutor(r.Context(), req.SessionID, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) handleExportMarkdown(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.manager.Snapshot(req.SessionID)
	if snap.Breakdown == nil {
		writeError(w, session.ErrNoAnalysis)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"markdown": export.Markdown(snap),
		"filename": export.DefaultFilename,
	})
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	s.manager.Reset(r.URL.Query().Get("session_id"))
	w.WriteHeader(http.StatusNoContent)
}
