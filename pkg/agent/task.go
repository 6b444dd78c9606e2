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
	"fmt"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// maxChildContextMessages bounds the history a child task inherits.
const maxChildContextMessages = 5

// Task is a tenant-scoped unit of work producing a finite event stream.
type Task struct {
	ID             string        `json:"id"`
	TenantID       string        `json:"tenant_id"`
	UserID         string        `json:"user_id"`
	ParentTaskID   string        `json:"parent_task_id,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Messages       []a2a.Message `json:"messages"`
	State          a2a.TaskState `json:"state"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewTask creates a submitted task carrying the user's message.
func NewTask(tenantID, userID, text string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Messages:  []a2a.Message{userMessage(text)},
		State:     a2a.TaskStateSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewThreadTask creates a submitted task bound to a conversation with
// no messages yet. The master router appends the user message after
// deciding where it goes, so the history carries it exactly once.
func NewThreadTask(tenantID, userID, conversationID string) *Task {
	task := NewTask(tenantID, userID, "")
	task.Messages = nil
	task.ConversationID = conversationID
	return task
}

// NewChildTask derives a sub-task from a parent: same tenant, user, and
// conversation, the parent's id as lineage, and up to the five most
// recent parent messages as context followed by the new request.
func NewChildTask(parent *Task, text string) *Task {
	child := NewTask(parent.TenantID, parent.UserID, text)
	child.ParentTaskID = parent.ID
	child.ConversationID = parent.ConversationID

	history := parent.Messages
	if len(history) > maxChildContextMessages {
		history = history[len(history)-maxChildContextMessages:]
	}
	child.Messages = append(append([]a2a.Message(nil), history...), userMessage(text))
	return child
}

// Transition advances the task state. Terminal states are absorbing and
// only the documented edges are legal.
func (t *Task) Transition(next a2a.TaskState) error {
	if TerminalState(t.State) {
		return fmt.Errorf("task %s: state %s is terminal", t.ID, t.State)
	}
	if !legalTransition(t.State, next) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.State, next)
	}
	t.State = next
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// AddMessage appends a message to the task's ordered history.
func (t *Task) AddMessage(msg a2a.Message) {
	t.Messages = append(t.Messages, msg)
	t.UpdatedAt = time.Now().UTC()
}

// TerminalState reports whether a state is absorbing.
func TerminalState(state a2a.TaskState) bool {
	switch state {
	case a2a.TaskStateCompleted, a2a.TaskStateFailed, a2a.TaskStateCanceled:
		return true
	}
	return false
}

func legalTransition(from, to a2a.TaskState) bool {
	switch from {
	case a2a.TaskStateSubmitted:
		return to == a2a.TaskStateWorking || to == a2a.TaskStateCanceled
	case a2a.TaskStateWorking:
		return to == a2a.TaskStateInputRequired || TerminalState(to)
	case a2a.TaskStateInputRequired:
		return to == a2a.TaskStateWorking || TerminalState(to)
	}
	return false
}

func userMessage(text string) a2a.Message {
	return a2a.Message{
		Role:  a2a.MessageRoleUser,
		Parts: []a2a.Part{a2a.TextPart{Text: text}},
	}
}

func agentMessage(text string) a2a.Message {
	return a2a.Message{
		Role:  a2a.MessageRoleAgent,
		Parts: []a2a.Part{a2a.TextPart{Text: text}},
	}
}
