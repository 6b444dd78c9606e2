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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/agent"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

type echoAgent struct{ id string }

func (a *echoAgent) ID() string { return a.id }

func (a *echoAgent) Run(_ context.Context, task *agent.Task, emit func(agent.Event)) error {
	emit(agent.NewMessageEvent(task.ID, "echo: "+lastUserText(task), false, visibility.LevelSummary))
	return nil
}

func lastUserText(task *agent.Task) string {
	for i := len(task.Messages) - 1; i >= 0; i-- {
		for _, part := range task.Messages[i].Parts {
			if tp, ok := part.(a2a.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}

type sseEvent struct {
	kind string
	data map[string]any
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			if rest, ok := strings.CutPrefix(line, "event: "); ok {
				ev.kind = rest
			}
			if rest, ok := strings.CutPrefix(line, "data: "); ok {
				require.NoError(t, json.Unmarshal([]byte(rest), &ev.data))
			}
		}
		if ev.kind != "" {
			events = append(events, ev)
		}
	}
	return events
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine := agent.NewEngine()
	require.NoError(t, engine.RegisterAgent(&echoAgent{id: "echo"}))
	return New(engine, Options{Policy: visibility.DefaultPolicy()})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListAgents(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/agents", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "echo")
}

func TestCreateTask_StreamsSSE(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/agents/echo/tasks",
		strings.NewReader(`{"tenant_id":"tenant-a","user_id":"u1","message":"hello"}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, events)
	assert.Equal(t, "status", events[0].kind)
	assert.Equal(t, "working", events[0].data["state"])

	last := events[len(events)-1]
	assert.Equal(t, "done", last.kind)
	assert.Equal(t, "completed", last.data["state"])

	var sawEcho bool
	for _, ev := range events {
		if ev.kind == "message" && ev.data["text"] == "echo: hello" {
			sawEcho = true
		}
		assert.NotEmpty(t, ev.data["task_id"])
		assert.NotEmpty(t, ev.data["timestamp"])
	}
	assert.True(t, sawEcho, "expected the agent's message event")
}

func TestCreateTask_UnknownAgent(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/agents/ghost/tasks",
		strings.NewReader(`{"tenant_id":"tenant-a","message":"hi"}`))
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "agent_not_found")
}

func TestCreateTask_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing tenant", `{"message":"hi"}`},
		{"missing message", `{"tenant_id":"t"}`},
		{"unknown role", `{"tenant_id":"t","message":"hi","role":"superuser"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/agents/echo/tasks", strings.NewReader(tt.body))
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

type countingAgent struct {
	id           string
	handled      *string
	userMessages *int
}

func (a *countingAgent) ID() string { return a.id }

func (a *countingAgent) Run(_ context.Context, task *agent.Task, emit func(agent.Event)) error {
	*a.handled = a.id
	*a.userMessages = 0
	for _, msg := range task.Messages {
		if msg.Role == a2a.MessageRoleUser {
			*a.userMessages++
		}
	}
	emit(agent.NewMessageEvent(task.ID, "handled by "+a.id, false, visibility.LevelSummary))
	return nil
}

func TestCreateTask_MasterHonorsAddressedAgent(t *testing.T) {
	engine := agent.NewEngine()
	var handled string
	var userMessages int
	require.NoError(t, engine.RegisterAgent(&countingAgent{id: "main", handled: &handled, userMessages: &userMessages}))
	require.NoError(t, engine.RegisterAgent(&countingAgent{id: "specialist", handled: &handled, userMessages: &userMessages}))
	master := agent.NewMaster(engine, "main", nil, nil)
	s := New(engine, Options{Policy: visibility.DefaultPolicy(), Master: master})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/agents/specialist/tasks",
		strings.NewReader(`{"tenant_id":"tenant-a","user_id":"u1","message":"billing question","conversation_id":"conv-1"}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "specialist", handled, "the addressed agent handles the task")
	assert.Equal(t, 1, userMessages, "the user message reaches the agent exactly once")
}

func TestCreateTask_MasterRoutesDefaultThroughThread(t *testing.T) {
	engine := agent.NewEngine()
	var handled string
	var userMessages int
	require.NoError(t, engine.RegisterAgent(&countingAgent{id: "main", handled: &handled, userMessages: &userMessages}))
	require.NoError(t, engine.RegisterAgent(&countingAgent{id: "specialist", handled: &handled, userMessages: &userMessages}))
	master := agent.NewMaster(engine, "main", nil, nil)
	master.Delegate("tenant-a", "conv-1", "specialist")
	s := New(engine, Options{Policy: visibility.DefaultPolicy(), Master: master})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/agents/main/tasks",
		strings.NewReader(`{"tenant_id":"tenant-a","user_id":"u1","message":"continue","conversation_id":"conv-1"}`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "specialist", handled, "an addressed default agent defers to thread routing")
	assert.Equal(t, 1, userMessages)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
