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

package handoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/conductor-ai/conductor/pkg/store"
)

// Manager owns handoff sessions. The conversation store is the source
// of truth; the cache keyed by thread id only short-circuits reads and
// always validates the tenant.
type Manager struct {
	store  store.ConversationStore
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Session
}

// NewManager creates a manager over the conversation store.
func NewManager(conversations store.ConversationStore) *Manager {
	return &Manager{
		store:  conversations,
		logger: slog.Default(),
		cache:  make(map[string]*Session),
	}
}

// Initiate starts a handoff on the thread. The target accepts
// automatically; the session is persisted as active. An existing active
// handoff on the thread rejects the request without mutating anything.
func (m *Manager) Initiate(ctx context.Context, req Request) (*Session, error) {
	if err := req.validate(); err != nil {
		return nil, &Error{Message: "invalid handoff request", Err: err}
	}

	if existing, err := m.GetActive(ctx, req.ThreadID, req.TenantID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, NewError(fmt.Sprintf(
			"thread %s already has an active handoff to %s", req.ThreadID, existing.TargetAgent))
	}

	session := newSession(req)
	if err := m.persist(ctx, session); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[session.ThreadID] = session
	m.mu.Unlock()

	m.logger.Info("handoff initiated",
		"thread_id", session.ThreadID, "source", session.SourceAgent, "target", session.TargetAgent)
	return session, nil
}

// GetActive returns the thread's active session, or nil when there is
// none. Non-active cache entries are evicted on sight.
func (m *Manager) GetActive(ctx context.Context, threadID, tenantID string) (*Session, error) {
	m.mu.Lock()
	if cached, ok := m.cache[threadID]; ok {
		if cached.TenantID == tenantID && cached.State == StateActive {
			session := *cached
			m.mu.Unlock()
			return &session, nil
		}
		delete(m.cache, threadID)
	}
	m.mu.Unlock()

	conv, err := m.store.GetConversation(ctx, tenantID, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Message: "failed to load conversation", Err: err}
	}

	raw, ok := conv.StateMetadata[MetadataKey]
	if !ok {
		return nil, nil
	}
	session, err := sessionFromMetadata(raw)
	if err != nil {
		return nil, &Error{Message: "corrupt handoff session metadata", Err: err}
	}
	if session.State != StateActive {
		return nil, nil
	}

	m.mu.Lock()
	m.cache[threadID] = session
	m.mu.Unlock()

	copied := *session
	return &copied, nil
}

// ActiveTarget reports the agent currently holding the thread, if any.
func (m *Manager) ActiveTarget(ctx context.Context, threadID, tenantID string) (string, bool) {
	session, err := m.GetActive(ctx, threadID, tenantID)
	if err != nil || session == nil {
		return "", false
	}
	return session.TargetAgent, true
}

// Complete moves the thread's active session to a terminal state and
// returns control to the initiator.
func (m *Manager) Complete(ctx context.Context, threadID, tenantID string, status CompletionStatus, resultSummary string, artifacts []string) (*Return, error) {
	terminal, err := status.terminalState()
	if err != nil {
		return nil, &Error{Message: "invalid completion", Err: err}
	}

	session, err := m.GetActive(ctx, threadID, tenantID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, NewError(fmt.Sprintf("thread %s has no active handoff", threadID))
	}

	now := time.Now().UTC()
	session.State = terminal
	session.CompletedAt = &now
	session.ResultSummary = resultSummary
	session.ArtifactsCreated = artifacts

	if err := m.persist(ctx, session); err != nil {
		return nil, err
	}

	m.mu.Lock()
	delete(m.cache, threadID)
	m.mu.Unlock()

	m.logger.Info("handoff completed",
		"thread_id", threadID, "state", session.State, "target", session.TargetAgent)

	return &Return{
		SessionID:     session.ID,
		SourceAgent:   session.TargetAgent,
		TargetAgent:   session.SourceAgent,
		ResultSummary: resultSummary,
		Artifacts:     artifacts,
	}, nil
}

// persist writes the session into the conversation's state metadata.
func (m *Manager) persist(ctx context.Context, session *Session) error {
	conv, err := m.store.GetConversation(ctx, session.TenantID, session.ThreadID)
	if err != nil {
		return &Error{Message: fmt.Sprintf("conversation %s not found", session.ThreadID), Err: err}
	}

	encoded, err := sessionToMetadata(session)
	if err != nil {
		return &Error{Message: "failed to encode handoff session", Err: err}
	}

	metadata := conv.StateMetadata
	if metadata == nil {
		metadata = make(map[string]any)
	}
	metadata[MetadataKey] = encoded

	if err := m.store.UpdateStateMetadata(ctx, session.TenantID, session.ThreadID, metadata); err != nil {
		return &Error{Message: "failed to persist handoff session", Err: err}
	}
	return nil
}
