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

package cost

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestTracker_Record(t *testing.T) {
	tracker := NewTracker(nil, nil)

	rec := NewRecord("tenant-a", "task-1")
	rec.CostUSD = 0.02
	rec.Tokens = 150
	rec.IsLLMCall = true
	tracker.Record(context.Background(), rec)

	rec2 := NewRecord("tenant-a", "task-1")
	rec2.CostUSD = 0.01
	rec2.Tokens = 50
	rec2.ToolName = "calculator"
	tracker.Record(context.Background(), rec2)

	summary := tracker.GetSummary("task-1")
	assert.InDelta(t, 0.03, summary.CostUSD, 1e-9)
	assert.Equal(t, 200, summary.Tokens)
	assert.Equal(t, 1, summary.LLMCalls)
}

func TestTracker_CheckBudget(t *testing.T) {
	tests := []struct {
		name        string
		budget      Budget
		spentCost   float64
		spentTokens int
		spentCalls  int
		extraCost   float64
		extraTokens int
		isLLMCall   bool
		want        bool
	}{
		{
			name:   "unlimited budget always passes",
			budget: Budget{},
			want:   true,
		},
		{
			name:      "under cost cap",
			budget:    Budget{MaxCostUSD: floatPtr(1.0)},
			spentCost: 0.5,
			extraCost: 0.4,
			want:      true,
		},
		{
			name:      "cost cap exceeded by claim",
			budget:    Budget{MaxCostUSD: floatPtr(1.0)},
			spentCost: 0.5,
			extraCost: 0.6,
			want:      false,
		},
		{
			name:        "token cap exceeded",
			budget:      Budget{MaxTokens: intPtr(100)},
			spentTokens: 90,
			extraTokens: 20,
			want:        false,
		},
		{
			name:       "llm call cap exceeded",
			budget:     Budget{MaxLLMCalls: intPtr(2)},
			spentCalls: 2,
			isLLMCall:  true,
			want:       false,
		},
		{
			name:       "non-llm call ignores call cap",
			budget:     Budget{MaxLLMCalls: intPtr(2)},
			spentCalls: 2,
			isLLMCall:  false,
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(nil, nil)
			rec := NewRecord("tenant-a", "task-1")
			rec.CostUSD = tt.spentCost
			rec.Tokens = tt.spentTokens
			tracker.Record(context.Background(), rec)
			for i := 0; i < tt.spentCalls; i++ {
				call := NewRecord("tenant-a", "task-1")
				call.IsLLMCall = true
				tracker.Record(context.Background(), call)
			}

			got := tracker.CheckBudget("task-1", tt.budget, tt.extraCost, tt.extraTokens, tt.isLLMCall)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTracker_GetRemaining(t *testing.T) {
	tracker := NewTracker(nil, nil)
	rec := NewRecord("tenant-a", "task-1")
	rec.CostUSD = 0.75
	rec.Tokens = 900
	rec.IsLLMCall = true
	tracker.Record(context.Background(), rec)

	budget := Budget{
		MaxCostUSD:  floatPtr(1.0),
		MaxTokens:   intPtr(1000),
		MaxLLMCalls: intPtr(3),
	}
	remaining := tracker.GetRemaining("task-1", budget)

	require.NotNil(t, remaining.CostUSD)
	assert.InDelta(t, 0.25, *remaining.CostUSD, 1e-9)
	require.NotNil(t, remaining.Tokens)
	assert.Equal(t, 100, *remaining.Tokens)
	require.NotNil(t, remaining.LLMCalls)
	assert.Equal(t, 2, *remaining.LLMCalls)

	// Overspend clamps to zero.
	over := NewRecord("tenant-a", "task-1")
	over.CostUSD = 5
	tracker.Record(context.Background(), over)
	remaining = tracker.GetRemaining("task-1", budget)
	assert.Equal(t, 0.0, *remaining.CostUSD)
}

func TestTracker_Clear(t *testing.T) {
	tracker := NewTracker(nil, nil)
	rec := NewRecord("tenant-a", "task-1")
	rec.Tokens = 10
	tracker.Record(context.Background(), rec)

	tracker.Clear("task-1")
	assert.Equal(t, 0, tracker.GetSummary("task-1").Tokens)
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	tracker := NewTracker(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := NewRecord("tenant-a", "task-1")
			rec.Tokens = 2
			rec.IsLLMCall = true
			tracker.Record(context.Background(), rec)
		}()
	}
	wg.Wait()

	summary := tracker.GetSummary("task-1")
	assert.Equal(t, 100, summary.Tokens)
	assert.Equal(t, 50, summary.LLMCalls)
}

func TestPricing(t *testing.T) {
	pricing := NewPricing(nil)
	// 1M input + 1M output tokens of gpt-4o-mini.
	got := pricing.Cost("gpt-4o-mini-2024", 1_000_000, 1_000_000)
	assert.InDelta(t, 0.75, got, 1e-9)

	// Longest prefix wins over gpt-4o.
	assert.Less(t, pricing.Cost("gpt-4o-mini", 1_000_000, 0), pricing.Cost("gpt-4o", 1_000_000, 0))

	// Unknown models cost zero.
	assert.Equal(t, 0.0, pricing.Cost("mystery-model", 1000, 1000))
}

func TestPricing_Approved(t *testing.T) {
	open := NewPricing(nil)
	assert.True(t, open.Approved("anything"))

	restricted := NewPricing([]string{"gpt-4o-mini"})
	assert.True(t, restricted.Approved("gpt-4o-mini"))
	assert.False(t, restricted.Approved("claude-opus-4"))
}
