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

package chain

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLRepository(openTestDB(t), "sqlite")
	require.NoError(t, err)

	rec := NewRecorder("task-1", "agent-1", "tenant-a")
	_, err = rec.AddThinking("analyzing", visibility.LevelFull, 12, 0.003)
	require.NoError(t, err)
	corrID, err := rec.AddToolCall("calculator", map[string]any{"expression": "5 + 3"}, visibility.LevelSummary)
	require.NoError(t, err)
	_, err = rec.AddToolResult(corrID, true, map[string]any{"value": "8"}, "", visibility.LevelSummary, 4, 0)
	require.NoError(t, err)
	_, err = rec.AddSynthesis("The result is 8.", nil, visibility.LevelSummary)
	require.NoError(t, err)
	require.NoError(t, rec.Complete())

	snapshot := rec.Snapshot()
	require.NoError(t, repo.SaveChain(ctx, snapshot))

	loaded, err := repo.GetChain(ctx, "tenant-a", snapshot.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, loaded.Status)
	assert.Equal(t, snapshot.Metrics.TotalTokens, loaded.Metrics.TotalTokens)
	assert.InDelta(t, snapshot.Metrics.TotalCost, loaded.Metrics.TotalCost, 1e-9)
	require.Len(t, loaded.Steps, len(snapshot.Steps))
	for i, step := range loaded.Steps {
		assert.Equal(t, snapshot.Steps[i].Number, step.Number)
		assert.Equal(t, snapshot.Steps[i].Kind, step.Kind)
		assert.Equal(t, snapshot.Steps[i].CorrelationID, step.CorrelationID)
	}
	assert.Equal(t, "8", loaded.Steps[2].ResultValue["value"])
}

func TestSQLRepository_SaveIsIdempotentForSteps(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLRepository(openTestDB(t), "sqlite")
	require.NoError(t, err)

	rec := NewRecorder("task-1", "agent-1", "tenant-a")
	_, err = rec.AddThinking("first", visibility.LevelSummary, 0, 0)
	require.NoError(t, err)

	require.NoError(t, repo.SaveChain(ctx, rec.Snapshot()))

	_, err = rec.AddThinking("second", visibility.LevelSummary, 0, 0)
	require.NoError(t, err)
	require.NoError(t, repo.SaveChain(ctx, rec.Snapshot()))

	loaded, err := repo.GetChain(ctx, "tenant-a", rec.ChainID())
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 2)
}

func TestSQLRepository_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSQLRepository(openTestDB(t), "sqlite")
	require.NoError(t, err)

	rec := NewRecorder("task-1", "agent-1", "tenant-a")
	require.NoError(t, repo.SaveChain(ctx, rec.Snapshot()))

	_, err = repo.GetChain(ctx, "tenant-b", rec.ChainID())
	assert.Error(t, err)

	chains, err := repo.ListByTask(ctx, "tenant-b", "task-1")
	require.NoError(t, err)
	assert.Empty(t, chains)
}

func TestSQLRepository_UnsupportedDialect(t *testing.T) {
	_, err := NewSQLRepository(openTestDB(t), "oracle")
	assert.Error(t, err)
}
