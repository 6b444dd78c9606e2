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

package skill

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/chain"
	"github.com/conductor-ai/conductor/pkg/cost"
	"github.com/conductor-ai/conductor/pkg/reasoning"
	"github.com/conductor-ai/conductor/pkg/tool"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Info() tool.Definition {
	return tool.Definition{
		Name: "llm",
		Kind: tool.KindLLM,
		Parameters: []tool.Parameter{
			{Name: "messages", Type: "array", Required: true},
			{Name: "system", Type: "string"},
			{Name: "model", Type: "string"},
			{Name: "temperature", Type: "number"},
			{Name: "max_tokens", Type: "integer"},
		},
	}
}

func (s *scriptedLLM) Execute(_ context.Context, _ map[string]any) (tool.Result, error) {
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return tool.Result{
		Success: true,
		Value:   map[string]any{"content": s.replies[idx], "model": "test-model"},
	}, nil
}

func newOrchestrator(t *testing.T, llm *scriptedLLM, skills ...*Skill) *Orchestrator {
	t.Helper()
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(llm))
	require.NoError(t, reg.Register(tool.NewCalculatorTool()))
	exec := tool.NewExecutor(reg, cost.NewTracker(nil, nil), nil, nil, tool.ExecutorOptions{})

	index := NewIndex()
	for _, sk := range skills {
		require.NoError(t, index.Add(sk))
	}
	return NewOrchestrator(index, reasoning.NewEngine(exec), Options{})
}

func orchCall() tool.CallContext {
	return tool.CallContext{
		TaskID:   "task-1",
		AgentID:  "agent-1",
		TenantID: "tenant-a",
		Role:     visibility.RoleDeveloper,
	}
}

func TestOrchestrator_RunsSkill(t *testing.T) {
	sk, err := New(Metadata{
		Name:         "math",
		AllowedTools: []string{"llm", "calculator"},
	}, "You are a careful arithmetic assistant.")
	require.NoError(t, err)

	llm := &scriptedLLM{replies: []string{
		`{"action":"calculator","action_input":{"expression":"6 * 7"},"is_final":false}`,
		`{"final_answer":"42","is_final":true}`,
	}}
	orch := newOrchestrator(t, llm, sk)
	recorder := chain.NewRecorder("task-1", "agent-1", "tenant-a")

	answer, err := orch.Execute(context.Background(), orchCall(), recorder, Run{
		SkillName:    "math",
		Conversation: []reasoning.Turn{{Role: "user", Content: "what is 6*7"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", answer)
	assert.Equal(t, chain.StatusCompleted, recorder.Snapshot().Status)
}

func TestOrchestrator_SkillNotFound(t *testing.T) {
	orch := newOrchestrator(t, &scriptedLLM{replies: []string{"{}"}})
	recorder := chain.NewRecorder("task-1", "agent-1", "tenant-a")

	_, err := orch.Execute(context.Background(), orchCall(), recorder, Run{SkillName: "nope"})
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeSkillNotFound, serr.Code)
}

func TestOrchestrator_WhitelistEnforced(t *testing.T) {
	sk, err := New(Metadata{
		Name:         "writing",
		AllowedTools: []string{"llm"},
	}, "You write prose.")
	require.NoError(t, err)

	llm := &scriptedLLM{replies: []string{
		`{"action":"calculator","action_input":{"expression":"1 + 1"},"is_final":false}`,
	}}
	orch := newOrchestrator(t, llm, sk)
	recorder := chain.NewRecorder("task-1", "agent-1", "tenant-a")

	_, err = orch.Execute(context.Background(), orchCall(), recorder, Run{
		SkillName:    "writing",
		Conversation: []reasoning.Turn{{Role: "user", Content: "add"}},
	})
	require.Error(t, err)
	assert.Equal(t, tool.CodePermissionDenied, tool.CodeOf(err))
}

func TestOrchestrator_ForkDepthExceeded(t *testing.T) {
	sk, err := New(Metadata{Name: "deep", ContextMode: ContextFork}, "go deeper")
	require.NoError(t, err)

	orch := newOrchestrator(t, &scriptedLLM{replies: []string{"{}"}}, sk)
	recorder := chain.NewRecorder("task-1", "agent-1", "tenant-a")

	_, err = orch.Execute(context.Background(), orchCall(), recorder, Run{
		SkillName: "deep",
		Depth:     3,
	})
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeSubAgentDepthExceeded, serr.Code)
}

func TestOrchestrator_ForkHalvesIterations(t *testing.T) {
	sk, err := New(Metadata{
		Name:         "fork_math",
		ContextMode:  ContextFork,
		AllowedTools: []string{"llm", "calculator"},
	}, "do math")
	require.NoError(t, err)

	// Never final: the halved budget (10 -> 5) is what ends the run.
	llm := &scriptedLLM{replies: []string{
		`{"action":"calculator","action_input":{"expression":"1 + 1"},"is_final":false}`,
	}}
	orch := newOrchestrator(t, llm, sk)
	recorder := chain.NewRecorder("task-1", "agent-1", "tenant-a")

	_, err = orch.Execute(context.Background(), orchCall(), recorder, Run{
		SkillName:    "fork_math",
		Conversation: []reasoning.Turn{{Role: "user", Content: "loop"}},
	})
	require.Error(t, err)

	var rerr *reasoning.Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, reasoning.CodeMaxIterationsExceeded, rerr.Code)
	assert.Equal(t, 5, rerr.Details["iterations"])
}
