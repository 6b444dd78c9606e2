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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

func TestRecorder_StepNumbersDenseAndOrdered(t *testing.T) {
	rec := NewRecorder("task-1", "agent-1", "tenant-a")

	_, err := rec.AddThinking("analyzing", visibility.LevelFull, 10, 0.001)
	require.NoError(t, err)

	corrID, err := rec.AddToolCall("calculator", map[string]any{"expression": "5 + 3"}, visibility.LevelSummary)
	require.NoError(t, err)

	_, err = rec.AddToolResult(corrID, true, map[string]any{"value": "8"}, "", visibility.LevelSummary, 0, 0)
	require.NoError(t, err)

	_, err = rec.AddSynthesis("The result is 8.", nil, visibility.LevelSummary)
	require.NoError(t, err)

	snapshot := rec.Snapshot()
	require.Len(t, snapshot.Steps, 4)
	for i, step := range snapshot.Steps {
		assert.Equal(t, i+1, step.Number, "step numbers must be dense")
		if i > 0 {
			prev := snapshot.Steps[i-1]
			assert.False(t, step.Timestamp.Before(prev.Timestamp),
				"timestamps must be non-decreasing with step numbers")
		}
	}
}

func TestRecorder_ToolResultRequiresOpenCall(t *testing.T) {
	rec := NewRecorder("task-1", "agent-1", "tenant-a")

	_, err := rec.AddToolResult("missing-correlation", true, nil, "", visibility.LevelSummary, 0, 0)
	assert.Error(t, err)

	corrID, err := rec.AddToolCall("calculator", nil, visibility.LevelSummary)
	require.NoError(t, err)
	_, err = rec.AddToolResult(corrID, true, nil, "", visibility.LevelSummary, 0, 0)
	require.NoError(t, err)

	// The correlation is closed; a second result is rejected.
	_, err = rec.AddToolResult(corrID, true, nil, "", visibility.LevelSummary, 0, 0)
	assert.Error(t, err)
}

func TestRecorder_FailedResultRequiresError(t *testing.T) {
	rec := NewRecorder("task-1", "agent-1", "tenant-a")
	corrID, err := rec.AddToolCall("calculator", nil, visibility.LevelSummary)
	require.NoError(t, err)

	_, err = rec.AddToolResult(corrID, false, nil, "", visibility.LevelSummary, 0, 0)
	assert.Error(t, err)

	_, err = rec.AddToolResult(corrID, false, nil, "division by zero", visibility.LevelSummary, 0, 0)
	assert.NoError(t, err)
}

func TestRecorder_TerminalChainRejectsAppends(t *testing.T) {
	rec := NewRecorder("task-1", "agent-1", "tenant-a")
	_, err := rec.AddThinking("first", visibility.LevelSummary, 0, 0)
	require.NoError(t, err)

	require.NoError(t, rec.Complete())

	_, err = rec.AddThinking("too late", visibility.LevelSummary, 0, 0)
	assert.Error(t, err)

	assert.Error(t, rec.Fail(), "terminal status must not change")
}

func TestRecorder_MetricsAggregation(t *testing.T) {
	rec := NewRecorder("task-1", "agent-1", "tenant-a")

	_, err := rec.AddThinking("a", visibility.LevelSummary, 100, 0.01)
	require.NoError(t, err)
	_, err = rec.AddThinking("b", visibility.LevelSummary, 50, 0.005)
	require.NoError(t, err)
	corrID, err := rec.AddToolCall("calculator", nil, visibility.LevelSummary)
	require.NoError(t, err)
	_, err = rec.AddToolResult(corrID, true, nil, "", visibility.LevelSummary, 25, 0.002)
	require.NoError(t, err)

	metrics := rec.Snapshot().Metrics
	assert.Equal(t, 175, metrics.TotalTokens)
	assert.InDelta(t, 0.017, metrics.TotalCost, 1e-9)
	assert.Equal(t, 2, metrics.StepCounts[StepThinking])
	assert.Equal(t, 1, metrics.StepCounts[StepToolCall])
	assert.Equal(t, 1, metrics.StepCounts[StepToolResult])
}

func TestMemoryRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	rec := NewRecorder("task-1", "agent-1", "tenant-a")
	_, err := rec.AddThinking("analyzing", visibility.LevelFull, 10, 0.001)
	require.NoError(t, err)
	corrID, err := rec.AddToolCall("calculator", map[string]any{"expression": "1+1"}, visibility.LevelSummary)
	require.NoError(t, err)
	_, err = rec.AddToolResult(corrID, true, map[string]any{"value": "2"}, "", visibility.LevelSummary, 5, 0)
	require.NoError(t, err)
	require.NoError(t, rec.Complete())

	snapshot := rec.Snapshot()
	require.NoError(t, repo.SaveChain(ctx, snapshot))

	loaded, err := repo.GetChain(ctx, "tenant-a", snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot.Status, loaded.Status)
	assert.Equal(t, snapshot.Metrics.TotalTokens, loaded.Metrics.TotalTokens)
	require.Len(t, loaded.Steps, 3)
	for i, step := range loaded.Steps {
		assert.Equal(t, snapshot.Steps[i].Number, step.Number)
		assert.Equal(t, snapshot.Steps[i].Kind, step.Kind)
	}
}

func TestMemoryRepository_TenantIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	rec := NewRecorder("task-1", "agent-1", "tenant-a")
	snapshot := rec.Snapshot()
	require.NoError(t, repo.SaveChain(ctx, snapshot))

	_, err := repo.GetChain(ctx, "tenant-b", snapshot.ID)
	assert.Error(t, err, "wrong tenant must read as not found")
}
