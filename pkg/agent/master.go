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

package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

var defaultCancelWords = []string{"cancel", "exit", "quit", "stop", "reset"}

// HandoffRouter reports the active handoff target for a thread, if any.
// Implemented by the handoff manager.
type HandoffRouter interface {
	ActiveTarget(ctx context.Context, threadID, tenantID string) (string, bool)
}

// Master routes user messages on a thread: while a delegation or an
// active handoff is in place, input flows to the target agent; a cancel
// word clears delegation and confirms.
type Master struct {
	engine       *Engine
	defaultAgent string
	handoffs     HandoffRouter
	cancelWords  []string

	mu        sync.Mutex
	delegated map[string]string // tenant-scoped thread key -> agent id
}

// threadKey scopes delegation state by tenant so two tenants reusing
// the same conversation id never observe each other's routing.
func threadKey(tenantID, threadID string) string {
	return tenantID + "/" + threadID
}

// NewMaster creates a master router. handoffs may be nil; cancelWords
// nil means the default set.
func NewMaster(engine *Engine, defaultAgent string, handoffs HandoffRouter, cancelWords []string) *Master {
	if len(cancelWords) == 0 {
		cancelWords = defaultCancelWords
	}
	return &Master{
		engine:       engine,
		defaultAgent: defaultAgent,
		handoffs:     handoffs,
		cancelWords:  cancelWords,
		delegated:    make(map[string]string),
	}
}

// Delegate routes subsequent messages on the tenant's thread to the
// agent.
func (m *Master) Delegate(tenantID, threadID, agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegated[threadKey(tenantID, threadID)] = agentID
}

// DelegatedAgent returns the thread's delegation target, if any.
func (m *Master) DelegatedAgent(tenantID, threadID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agentID, ok := m.delegated[threadKey(tenantID, threadID)]
	return agentID, ok
}

// ClearDelegation removes the thread's delegation.
func (m *Master) ClearDelegation(tenantID, threadID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.delegated, threadKey(tenantID, threadID))
}

// HandleUserMessage routes one user message on the task's thread and
// returns the resulting event stream. agentID is the explicitly
// addressed agent: naming any agent other than the default bypasses
// thread routing and goes straight to it. The task must not carry the
// message yet; the master appends it after routing.
func (m *Master) HandleUserMessage(ctx context.Context, agentID string, task *Task, text string) (<-chan Event, error) {
	tenantID := task.TenantID
	threadID := task.ConversationID

	if m.isCancelWord(text) {
		m.ClearDelegation(tenantID, threadID)
		return m.confirmationStream(task.ID, "Delegation cancelled. You are talking to the main agent again."), nil
	}

	target := agentID
	if target == "" || target == m.defaultAgent {
		target = m.routeTarget(ctx, threadID, tenantID)
	}
	task.AddMessage(userMessage(text))

	stream, err := m.engine.ProcessTask(ctx, target, task)
	if err != nil {
		return nil, err
	}
	if target == m.defaultAgent {
		return stream, nil
	}
	return m.watchDelegation(tenantID, threadID, stream), nil
}

func (m *Master) routeTarget(ctx context.Context, threadID, tenantID string) string {
	// Tasks without a conversation have no thread to route on.
	if threadID == "" {
		return m.defaultAgent
	}
	if agentID, ok := m.DelegatedAgent(tenantID, threadID); ok {
		return agentID
	}
	if m.handoffs != nil {
		if agentID, ok := m.handoffs.ActiveTarget(ctx, threadID, tenantID); ok {
			return agentID
		}
	}
	return m.defaultAgent
}

// watchDelegation forwards the delegated stream while tracking its
// outcome: a completed task ends delegation, input_required keeps it.
func (m *Master) watchDelegation(tenantID, threadID string, in <-chan Event) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Kind == EventDone && ev.State == a2a.TaskStateCompleted {
				m.ClearDelegation(tenantID, threadID)
			}
			out <- ev
		}
	}()
	return out
}

func (m *Master) isCancelWord(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, word := range m.cancelWords {
		if normalized == word {
			return true
		}
	}
	return false
}

func (m *Master) confirmationStream(taskID, text string) <-chan Event {
	out := make(chan Event, 2)
	out <- NewMessageEvent(taskID, text, false, visibility.LevelSummary)
	out <- NewDoneEvent(taskID, a2a.TaskStateCompleted)
	close(out)
	return out
}
