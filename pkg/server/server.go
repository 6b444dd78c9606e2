// Copyright 2026 The Conductor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the agent engine over HTTP. Task submission
// streams the visibility-filtered event channel as server-sent events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conductor-ai/conductor/pkg/agent"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

// Options configure the server.
type Options struct {
	Addr string

	// Policy governs event filtering per viewer role.
	Policy visibility.Policy

	// Master routes user messages through delegation and handoffs.
	// Optional; without it tasks go directly to the named agent.
	Master *agent.Master
}

// Server serves the HTTP API.
type Server struct {
	engine *agent.Engine
	master *agent.Master
	policy visibility.Policy
	http   *http.Server
	logger *slog.Logger
}

// New creates a server over the engine.
func New(engine *agent.Engine, opts Options) *Server {
	s := &Server{
		engine: engine,
		master: opts.Master,
		policy: opts.Policy,
		logger: slog.Default(),
	}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/v1/agents", s.handleListAgents)
	r.Post("/v1/agents/{agentID}/tasks", s.handleCreateTask)
	return r
}

// ListenAndServe blocks until the context ends or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.http.Addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	// The ResponseWriter is not wrapped: wrapping breaks http.Flusher
	// for SSE.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.engine.AgentIDs()})
}

// taskRequest is the POST body for task submission.
type taskRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Message  string `json:"message"`

	// ConversationID threads the task into an ongoing conversation so
	// delegation, handoffs, and history apply. Optional.
	ConversationID string `json:"conversation_id,omitempty"`

	// Role selects the viewer class for event filtering. Defaults to
	// end_user.
	Role string `json:"role,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if req.TenantID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenant_id and message are required")
		return
	}
	role := visibility.Role(req.Role)
	switch role {
	case visibility.RoleEndUser, visibility.RoleDeveloper, visibility.RoleAdmin:
	case "":
		role = visibility.RoleEndUser
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("unknown role %q", req.Role))
		return
	}

	var events <-chan agent.Event
	var err error
	if s.master != nil {
		// The master appends the message itself after routing, so the
		// task starts without one.
		task := agent.NewThreadTask(req.TenantID, req.UserID, req.ConversationID)
		events, err = s.master.HandleUserMessage(r.Context(), agentID, task, req.Message)
	} else {
		task := agent.NewTask(req.TenantID, req.UserID, req.Message)
		task.ConversationID = req.ConversationID
		events, err = s.engine.ProcessTask(r.Context(), agentID, task)
	}
	if err != nil {
		writeError(w, http.StatusNotFound, "agent_not_found", err.Error())
		return
	}

	s.streamEvents(w, r, agent.FilterStream(role, s.policy, events))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
