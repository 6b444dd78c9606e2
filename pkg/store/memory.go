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

package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process ConversationStore for tests and
// single-node development.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]*Message
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
	}
}

func (s *MemoryStore) CreateConversation(_ context.Context, conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *conv
	copied.StateMetadata = copyMetadata(conv.StateMetadata)
	s.conversations[conv.ID] = &copied
	return nil
}

func (s *MemoryStore) GetConversation(_ context.Context, tenantID, conversationID string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.TenantID != tenantID {
		return nil, ErrNotFound
	}
	copied := *conv
	copied.StateMetadata = copyMetadata(conv.StateMetadata)
	return &copied, nil
}

func (s *MemoryStore) UpdateStateMetadata(_ context.Context, tenantID, conversationID string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.TenantID != tenantID {
		return ErrNotFound
	}
	conv.StateMetadata = copyMetadata(metadata)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AddMessage(_ context.Context, tenantID string, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok || conv.TenantID != tenantID {
		return ErrNotFound
	}
	copied := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &copied)
	conv.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, tenantID, conversationID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.TenantID != tenantID {
		return nil, ErrNotFound
	}

	stored := s.messages[conversationID]
	out := make([]*Message, len(stored))
	for i, msg := range stored {
		copied := *msg
		out[i] = &copied
	}
	return out, nil
}

func copyMetadata(metadata map[string]any) map[string]any {
	copied := make(map[string]any, len(metadata))
	for k, v := range metadata {
		copied[k] = v
	}
	return copied
}

var _ ConversationStore = (*MemoryStore)(nil)
