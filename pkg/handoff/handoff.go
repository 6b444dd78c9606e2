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

// Package handoff transfers conversation control between agents. The
// canonical session lives in the conversation's state metadata; an
// in-memory cache keyed by thread fronts the store.
package handoff

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MetadataKey is the conversation state-metadata key carrying the
// canonical session.
const MetadataKey = "handoff_session"

// State is a handoff session's lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateActive    State = "active"
	StateReturning State = "returning"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateError     State = "error"
)

// Terminal reports whether the state is final. A terminal session never
// re-opens; a fresh initiation is required instead.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateError:
		return true
	}
	return false
}

// CompletionStatus selects the terminal state a completion moves to.
type CompletionStatus string

const (
	CompletionSuccess   CompletionStatus = "success"
	CompletionCancelled CompletionStatus = "cancelled"
	CompletionError     CompletionStatus = "error"
)

func (c CompletionStatus) terminalState() (State, error) {
	switch c {
	case CompletionSuccess:
		return StateCompleted, nil
	case CompletionCancelled:
		return StateCancelled, nil
	case CompletionError:
		return StateError, nil
	}
	return "", fmt.Errorf("unknown completion status %q", c)
}

// Session is one conversation-control transfer.
type Session struct {
	ID               string     `json:"id"`
	ThreadID         string     `json:"thread_id"`
	TenantID         string     `json:"tenant_id"`
	UserID           string     `json:"user_id"`
	SourceAgent      string     `json:"source_agent"`
	TargetAgent      string     `json:"target_agent"`
	State            State      `json:"state"`
	ContextSummary   string     `json:"context_summary,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ResultSummary    string     `json:"result_summary,omitempty"`
	ArtifactsCreated []string   `json:"artifacts_created,omitempty"`
}

// Request carries everything needed to initiate a handoff.
type Request struct {
	ThreadID       string
	TenantID       string
	UserID         string
	SourceAgent    string
	TargetAgent    string
	ContextSummary string
	Reason         string
}

func (r Request) validate() error {
	switch {
	case r.ThreadID == "":
		return fmt.Errorf("thread id is required")
	case r.TenantID == "":
		return fmt.Errorf("tenant id is required")
	case r.SourceAgent == "":
		return fmt.Errorf("source agent is required")
	case r.TargetAgent == "":
		return fmt.Errorf("target agent is required")
	}
	return nil
}

func newSession(req Request) *Session {
	return &Session{
		ID:             uuid.NewString(),
		ThreadID:       req.ThreadID,
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		SourceAgent:    req.SourceAgent,
		TargetAgent:    req.TargetAgent,
		State:          StateActive,
		ContextSummary: req.ContextSummary,
		Reason:         req.Reason,
		StartedAt:      time.Now().UTC(),
	}
}

// Return reports control flowing back to the initiator: source and
// target are swapped relative to the completed session.
type Return struct {
	SessionID     string   `json:"session_id"`
	SourceAgent   string   `json:"source_agent"`
	TargetAgent   string   `json:"target_agent"`
	ResultSummary string   `json:"result_summary,omitempty"`
	Artifacts     []string `json:"artifacts,omitempty"`
}

// sessionToMetadata encodes the session as plain JSON types for the
// conversation's state metadata.
func sessionToMetadata(session *Session) (map[string]any, error) {
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// sessionFromMetadata decodes the session stored under MetadataKey.
func sessionFromMetadata(value any) (*Session, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, fmt.Errorf("metadata does not carry a handoff session")
	}
	return &session, nil
}
