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

// Package store persists conversations, messages, cost records, and
// model usage. Every read is tenant-scoped: a lookup with the wrong
// tenant behaves as not found, never as a permission error.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for missing rows and wrong-tenant reads alike.
var ErrNotFound = errors.New("store: not found")

// Conversation is a tenant-scoped message thread. StateMetadata carries
// free-form state such as the active handoff session.
type Conversation struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	UserID        string         `json:"user_id"`
	Title         string         `json:"title,omitempty"`
	State         string         `json:"state,omitempty"`
	StateMetadata map[string]any `json:"state_metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewConversation creates a conversation with a fresh id.
func NewConversation(tenantID, userID, title string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		UserID:        userID,
		Title:         title,
		StateMetadata: make(map[string]any),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Message is one entry in a conversation's ordered history.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewMessage creates a message with a fresh id.
func NewMessage(conversationID, role, content string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now().UTC(),
	}
}

// ConversationStore is the persistence boundary used by the task engine
// for history and by the handoff manager for session state.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, tenantID, conversationID string) (*Conversation, error)
	UpdateStateMetadata(ctx context.Context, tenantID, conversationID string, metadata map[string]any) error
	AddMessage(ctx context.Context, tenantID string, msg *Message) error
	ListMessages(ctx context.Context, tenantID, conversationID string) ([]*Message, error)
}

// ModelUsage is a per-tenant, per-model, per-day aggregate.
type ModelUsage struct {
	TenantID     string    `json:"tenant_id"`
	Model        string    `json:"model"`
	Date         time.Time `json:"date"`
	CallCount    int       `json:"call_count"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalCostUSD float64   `json:"total_cost_usd"`
}

// ModelUsageRepository accumulates usage, keyed uniquely by
// (tenant, model, date).
type ModelUsageRepository interface {
	RecordUsage(ctx context.Context, usage ModelUsage) error
	GetUsage(ctx context.Context, tenantID, model string, date time.Time) (*ModelUsage, error)
}
