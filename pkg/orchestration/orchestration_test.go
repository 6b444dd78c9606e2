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

package orchestration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher scripts per-agent behavior.
type fakeDispatcher struct {
	delays   map[string]time.Duration
	failures map[string]error
}

func (f *fakeDispatcher) CallAgent(ctx context.Context, agentID string, _ string) (string, error) {
	if delay := f.delays[agentID]; delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := f.failures[agentID]; err != nil {
		return "", err
	}
	return fmt.Sprintf("response from %s", agentID), nil
}

func TestParallel_CapturesFailures(t *testing.T) {
	dispatcher := &fakeDispatcher{
		failures: map[string]error{"a2": errors.New("a2 is down")},
	}
	manager := NewManager(dispatcher, time.Second)

	results := manager.Parallel(context.Background(), []string{"a1", "a2", "a3"}, "go")
	require.Len(t, results, 3)

	byAgent := make(map[string]SubAgentResult)
	for _, result := range results {
		byAgent[result.AgentID] = result
	}
	assert.True(t, byAgent["a1"].Success)
	assert.False(t, byAgent["a2"].Success)
	assert.Contains(t, byAgent["a2"].Error, "a2 is down")
	assert.True(t, byAgent["a3"].Success)

	synthesized := Synthesize(results)
	assert.Contains(t, synthesized, "From a1:")
	assert.Contains(t, synthesized, "From a3:")
	assert.NotContains(t, synthesized, "From a2:")
}

func TestSequential_RunsAllInOrder(t *testing.T) {
	dispatcher := &fakeDispatcher{
		failures: map[string]error{"a1": errors.New("first fails")},
	}
	manager := NewManager(dispatcher, time.Second)

	results := manager.Sequential(context.Background(), []string{"a1", "a2"}, "go")
	require.Len(t, results, 2)
	assert.Equal(t, "a1", results[0].AgentID)
	assert.False(t, results[0].Success)
	assert.Equal(t, "a2", results[1].AgentID)
	assert.True(t, results[1].Success)
}

func TestFirstSuccess_FastestWins(t *testing.T) {
	dispatcher := &fakeDispatcher{
		delays: map[string]time.Duration{
			"slow": 500 * time.Millisecond,
			"fast": 5 * time.Millisecond,
		},
	}
	manager := NewManager(dispatcher, time.Second)

	started := time.Now()
	results := manager.FirstSuccess(context.Background(), []string{"slow", "fast"}, "go")
	elapsed := time.Since(started)

	require.Len(t, results, 1)
	assert.Equal(t, "fast", results[0].AgentID)
	assert.True(t, results[0].Success)
	assert.Less(t, elapsed, 400*time.Millisecond, "losers must be cancelled, not awaited")
}

func TestFirstSuccess_AllFail(t *testing.T) {
	dispatcher := &fakeDispatcher{
		failures: map[string]error{
			"a1": errors.New("nope"),
			"a2": errors.New("also nope"),
		},
	}
	manager := NewManager(dispatcher, time.Second)

	results := manager.FirstSuccess(context.Background(), []string{"a1", "a2"}, "go")
	require.Len(t, results, 2)
	for _, result := range results {
		assert.False(t, result.Success)
	}
}

func TestCallTimeout(t *testing.T) {
	dispatcher := &fakeDispatcher{
		delays: map[string]time.Duration{"sluggish": time.Second},
	}
	manager := NewManager(dispatcher, 10*time.Millisecond)

	results := manager.Sequential(context.Background(), []string{"sluggish"}, "go")
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "context deadline exceeded")
}

func TestDispatch_UnknownStrategy(t *testing.T) {
	manager := NewManager(&fakeDispatcher{}, time.Second)
	_, err := manager.Dispatch(context.Background(), "broadcast", []string{"a1"}, "go")
	require.Error(t, err)
}

func TestSynthesize(t *testing.T) {
	tests := []struct {
		name    string
		results []SubAgentResult
		want    string
	}{
		{
			name: "no results",
			want: "No responses received from sub-agents.",
		},
		{
			name:    "all failed",
			results: []SubAgentResult{{AgentID: "a1", Error: "x"}},
			want:    "All sub-agents failed to provide responses.",
		},
		{
			name:    "single success returns text directly",
			results: []SubAgentResult{{AgentID: "a1", Success: true, Response: "just this"}},
			want:    "just this",
		},
		{
			name: "multiple successes get sections",
			results: []SubAgentResult{
				{AgentID: "a1", Success: true, Response: "alpha"},
				{AgentID: "a2", Success: true, Response: "beta"},
			},
			want: "From a1:\nalpha\n\nFrom a2:\nbeta",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Synthesize(tt.results))
		})
	}
}
