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
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/cost"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// One in-memory database per connection; serialize access.
	db.SetMaxOpenConns(1)
	return db
}

// conversationStores returns every implementation under test.
func conversationStores(t *testing.T) map[string]ConversationStore {
	t.Helper()
	sqlStore, err := NewSQLStore(openTestDB(t), "sqlite")
	require.NoError(t, err)
	return map[string]ConversationStore{
		"memory": NewMemoryStore(),
		"sql":    sqlStore,
	}
}

func TestConversationStore_RoundTrip(t *testing.T) {
	for name, s := range conversationStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conv := NewConversation("tenant-a", "user-1", "support thread")
			conv.StateMetadata["topic"] = "billing"
			require.NoError(t, s.CreateConversation(ctx, conv))

			got, err := s.GetConversation(ctx, "tenant-a", conv.ID)
			require.NoError(t, err)
			assert.Equal(t, "support thread", got.Title)
			assert.Equal(t, "billing", got.StateMetadata["topic"])

			require.NoError(t, s.AddMessage(ctx, "tenant-a", NewMessage(conv.ID, "user", "hello")))
			require.NoError(t, s.AddMessage(ctx, "tenant-a", NewMessage(conv.ID, "agent", "hi there")))

			messages, err := s.ListMessages(ctx, "tenant-a", conv.ID)
			require.NoError(t, err)
			require.Len(t, messages, 2)
			assert.Equal(t, "hello", messages[0].Content)
			assert.Equal(t, "hi there", messages[1].Content)
		})
	}
}

func TestConversationStore_TenantIsolation(t *testing.T) {
	for name, s := range conversationStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conv := NewConversation("tenant-a", "user-1", "private")
			require.NoError(t, s.CreateConversation(ctx, conv))

			_, err := s.GetConversation(ctx, "tenant-b", conv.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			err = s.AddMessage(ctx, "tenant-b", NewMessage(conv.ID, "user", "intrusion"))
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = s.ListMessages(ctx, "tenant-b", conv.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			err = s.UpdateStateMetadata(ctx, "tenant-b", conv.ID, map[string]any{"x": 1})
			assert.ErrorIs(t, err, ErrNotFound)

			// The right tenant still sees clean state.
			got, err := s.GetConversation(ctx, "tenant-a", conv.ID)
			require.NoError(t, err)
			assert.NotContains(t, got.StateMetadata, "x")
		})
	}
}

func TestConversationStore_UpdateStateMetadata(t *testing.T) {
	for name, s := range conversationStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			conv := NewConversation("tenant-a", "user-1", "")
			require.NoError(t, s.CreateConversation(ctx, conv))

			metadata := map[string]any{"handoff_session": map[string]any{"state": "active"}}
			require.NoError(t, s.UpdateStateMetadata(ctx, "tenant-a", conv.ID, metadata))

			got, err := s.GetConversation(ctx, "tenant-a", conv.ID)
			require.NoError(t, err)
			session, ok := got.StateMetadata["handoff_session"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, "active", session["state"])
		})
	}
}

func TestSQLCostRepository(t *testing.T) {
	repo, err := NewSQLCostRepository(openTestDB(t), "sqlite")
	require.NoError(t, err)
	ctx := context.Background()

	record := cost.NewRecord("tenant-a", "task-1")
	record.ToolName = "llm"
	record.Model = "gpt-4o-mini"
	record.CostUSD = 0.002
	record.Tokens = 120
	require.NoError(t, repo.SaveRecord(ctx, record))

	records, err := repo.ListByTask(ctx, "tenant-a", "task-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "llm", records[0].ToolName)
	assert.InDelta(t, 0.002, records[0].CostUSD, 1e-9)

	// Wrong tenant sees nothing.
	records, err = repo.ListByTask(ctx, "tenant-b", "task-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSQLModelUsageRepository_Accumulates(t *testing.T) {
	repo, err := NewSQLModelUsageRepository(openTestDB(t), "sqlite")
	require.NoError(t, err)
	ctx := context.Background()

	day := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	usage := ModelUsage{
		TenantID:     "tenant-a",
		Model:        "gpt-4o-mini",
		Date:         day,
		CallCount:    1,
		InputTokens:  100,
		OutputTokens: 50,
		TotalCostUSD: 0.001,
	}
	require.NoError(t, repo.RecordUsage(ctx, usage))
	require.NoError(t, repo.RecordUsage(ctx, usage))

	got, err := repo.GetUsage(ctx, "tenant-a", "gpt-4o-mini", day)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CallCount)
	assert.Equal(t, 200, got.InputTokens)
	assert.Equal(t, 100, got.OutputTokens)
	assert.InDelta(t, 0.002, got.TotalCostUSD, 1e-9)

	_, err = repo.GetUsage(ctx, "tenant-b", "gpt-4o-mini", day)
	assert.ErrorIs(t, err, ErrNotFound)
}
