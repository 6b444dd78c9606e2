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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Conversation, store.ConversationStore) {
	t.Helper()
	conversations := store.NewMemoryStore()
	conv := store.NewConversation("tenant-a", "user-1", "support thread")
	require.NoError(t, conversations.CreateConversation(context.Background(), conv))
	return NewManager(conversations), conv, conversations
}

func testRequest(threadID string) Request {
	return Request{
		ThreadID:       threadID,
		TenantID:       "tenant-a",
		UserID:         "user-1",
		SourceAgent:    "master",
		TargetAgent:    "billing-specialist",
		ContextSummary: "customer disputes an invoice",
		Reason:         "needs billing expertise",
	}
}

func TestManager_InitiateAndGetActive(t *testing.T) {
	m, conv, conversations := newTestManager(t)
	ctx := context.Background()

	session, err := m.Initiate(ctx, testRequest(conv.ID))
	require.NoError(t, err)
	assert.Equal(t, StateActive, session.State)
	assert.Equal(t, "billing-specialist", session.TargetAgent)
	assert.NotEmpty(t, session.ID)

	active, err := m.GetActive(ctx, conv.ID, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, session.ID, active.ID)

	target, ok := m.ActiveTarget(ctx, conv.ID, "tenant-a")
	assert.True(t, ok)
	assert.Equal(t, "billing-specialist", target)

	// The canonical copy lives in conversation state metadata.
	got, err := conversations.GetConversation(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	raw, ok := got.StateMetadata[MetadataKey].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, session.ID, raw["id"])
	assert.Equal(t, "active", raw["state"])
}

func TestManager_InitiateConflictLeavesStateUntouched(t *testing.T) {
	m, conv, conversations := newTestManager(t)
	ctx := context.Background()

	first, err := m.Initiate(ctx, testRequest(conv.ID))
	require.NoError(t, err)

	second := testRequest(conv.ID)
	second.TargetAgent = "shipping-specialist"
	_, err = m.Initiate(ctx, second)
	require.Error(t, err)
	var herr *Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, CodeHandoffError, herr.ErrorCode())

	// The original session is still the active one, in cache and store.
	active, err := m.GetActive(ctx, conv.ID, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, "billing-specialist", active.TargetAgent)

	got, err := conversations.GetConversation(ctx, "tenant-a", conv.ID)
	require.NoError(t, err)
	raw := got.StateMetadata[MetadataKey].(map[string]any)
	assert.Equal(t, first.ID, raw["id"])
}

func TestManager_InitiateValidation(t *testing.T) {
	m, conv, _ := newTestManager(t)

	req := testRequest(conv.ID)
	req.TargetAgent = ""
	_, err := m.Initiate(context.Background(), req)
	require.Error(t, err)
	var herr *Error
	assert.ErrorAs(t, err, &herr)
}

func TestManager_InitiateUnknownConversation(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Initiate(context.Background(), testRequest("no-such-thread"))
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestManager_CompleteReturnsControl(t *testing.T) {
	m, conv, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.Initiate(ctx, testRequest(conv.ID))
	require.NoError(t, err)

	ret, err := m.Complete(ctx, conv.ID, "tenant-a", CompletionSuccess,
		"invoice corrected", []string{"credit-memo-17"})
	require.NoError(t, err)
	assert.Equal(t, session.ID, ret.SessionID)
	// Control flows back: the specialist becomes the source.
	assert.Equal(t, "billing-specialist", ret.SourceAgent)
	assert.Equal(t, "master", ret.TargetAgent)
	assert.Equal(t, "invoice corrected", ret.ResultSummary)
	assert.Equal(t, []string{"credit-memo-17"}, ret.Artifacts)
}

func TestManager_TerminalSessionNeverActive(t *testing.T) {
	tests := []struct {
		status CompletionStatus
		state  string
	}{
		{CompletionSuccess, "completed"},
		{CompletionCancelled, "cancelled"},
		{CompletionError, "error"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			m, conv, conversations := newTestManager(t)
			ctx := context.Background()

			_, err := m.Initiate(ctx, testRequest(conv.ID))
			require.NoError(t, err)
			_, err = m.Complete(ctx, conv.ID, "tenant-a", tt.status, "done", nil)
			require.NoError(t, err)

			active, err := m.GetActive(ctx, conv.ID, "tenant-a")
			require.NoError(t, err)
			assert.Nil(t, active)

			_, ok := m.ActiveTarget(ctx, conv.ID, "tenant-a")
			assert.False(t, ok)

			got, err := conversations.GetConversation(ctx, "tenant-a", conv.ID)
			require.NoError(t, err)
			raw := got.StateMetadata[MetadataKey].(map[string]any)
			assert.Equal(t, tt.state, raw["state"])
			assert.NotEmpty(t, raw["completed_at"])

			// The thread is free for a fresh handoff.
			_, err = m.Initiate(ctx, testRequest(conv.ID))
			require.NoError(t, err)
		})
	}
}

func TestManager_CompleteWithoutActiveSession(t *testing.T) {
	m, conv, _ := newTestManager(t)

	_, err := m.Complete(context.Background(), conv.ID, "tenant-a", CompletionSuccess, "", nil)
	require.Error(t, err)
	var herr *Error
	assert.ErrorAs(t, err, &herr)
}

func TestManager_CacheValidatesTenant(t *testing.T) {
	m, conv, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Initiate(ctx, testRequest(conv.ID))
	require.NoError(t, err)

	// A different tenant cannot observe the cached session.
	active, err := m.GetActive(ctx, conv.ID, "tenant-b")
	require.NoError(t, err)
	assert.Nil(t, active)

	_, ok := m.ActiveTarget(ctx, conv.ID, "tenant-b")
	assert.False(t, ok)

	// The owning tenant still can, even after the cache eviction above.
	active, err = m.GetActive(ctx, conv.ID, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, active)
}

func TestManager_GetActiveSurvivesCacheLoss(t *testing.T) {
	m, conv, conversations := newTestManager(t)
	ctx := context.Background()

	session, err := m.Initiate(ctx, testRequest(conv.ID))
	require.NoError(t, err)

	// A fresh manager over the same store reloads from metadata.
	fresh := NewManager(conversations)
	active, err := fresh.GetActive(ctx, conv.ID, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, session.ID, active.ID)
}
