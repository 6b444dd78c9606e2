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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

// Recorder builds a chain step by step, enforcing the append-only
// discipline: dense step numbers, correlation pairing between tool calls
// and results, and rejection of appends after a terminal status.
//
// A recorder belongs to a single reasoning run. The run itself is strictly
// sequential; the mutex only guards against observers reading a snapshot
// while the run appends.
type Recorder struct {
	mu    sync.Mutex
	chain *Chain

	// open tool_call correlation ids awaiting a tool_result.
	openCalls map[string]string
}

// NewRecorder starts a running chain for the given task.
func NewRecorder(taskID, agentID, tenantID string) *Recorder {
	return &Recorder{
		chain: &Chain{
			ID:        uuid.NewString(),
			TaskID:    taskID,
			AgentID:   agentID,
			TenantID:  tenantID,
			Status:    StatusRunning,
			StartedAt: time.Now().UTC(),
			Metrics:   Metrics{StepCounts: make(map[StepKind]int)},
		},
		openCalls: make(map[string]string),
	}
}

// ChainID returns the chain's identity.
func (r *Recorder) ChainID() string {
	return r.chain.ID
}

// AddThinking appends a thinking step and returns its id.
func (r *Recorder) AddThinking(text string, vis visibility.Level, tokens int, cost float64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, err := r.appendLocked(Step{
		Kind:       StepThinking,
		Thinking:   text,
		Visibility: vis,
		TokensUsed: tokens,
		Cost:       cost,
	})
	if err != nil {
		return "", err
	}
	return step.ID, nil
}

// AddToolCall appends a tool_call step and returns the correlation id that
// the matching tool_result must carry.
func (r *Recorder) AddToolCall(toolName string, args map[string]any, vis visibility.Level) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	correlationID := uuid.NewString()
	step, err := r.appendLocked(Step{
		Kind:          StepToolCall,
		ToolName:      toolName,
		ToolArgs:      args,
		CorrelationID: correlationID,
		Visibility:    vis,
	})
	if err != nil {
		return "", err
	}
	r.openCalls[correlationID] = step.ID
	return correlationID, nil
}

// CallStepID returns the step id of the open tool_call for the
// correlation id, or "" when the correlation is unknown or closed.
func (r *Recorder) CallStepID(correlationID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openCalls[correlationID]
}

// AddToolResult appends a tool_result step paired to an open correlation
// id. The result closes the correlation; a second result for the same id
// is rejected.
func (r *Recorder) AddToolResult(correlationID string, success bool, value map[string]any, errText string, vis visibility.Level, tokens int, cost float64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	callStepID, open := r.openCalls[correlationID]
	if !open {
		return "", fmt.Errorf("chain %s: no open tool_call for correlation id %s", r.chain.ID, correlationID)
	}
	if !success && errText == "" {
		return "", fmt.Errorf("chain %s: failed tool_result requires an error", r.chain.ID)
	}

	step, err := r.appendLocked(Step{
		Kind:          StepToolResult,
		CorrelationID: correlationID,
		ParentStepID:  callStepID,
		Success:       success,
		ResultValue:   value,
		ResultError:   errText,
		Visibility:    vis,
		TokensUsed:    tokens,
		Cost:          cost,
	})
	if err != nil {
		return "", err
	}
	delete(r.openCalls, correlationID)
	return step.ID, nil
}

// AddSynthesis appends a synthesis step referencing its source steps.
func (r *Recorder) AddSynthesis(text string, sourceStepIDs []string, vis visibility.Level) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	step, err := r.appendLocked(Step{
		Kind:          StepSynthesis,
		Synthesis:     text,
		SourceStepIDs: sourceStepIDs,
		Visibility:    vis,
	})
	if err != nil {
		return "", err
	}
	return step.ID, nil
}

// Complete marks the chain completed. Further appends are rejected.
func (r *Recorder) Complete() error {
	return r.finish(StatusCompleted)
}

// Fail marks the chain failed. Further appends are rejected.
func (r *Recorder) Fail() error {
	return r.finish(StatusFailed)
}

func (r *Recorder) finish(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.chain.Status.Terminal() {
		return fmt.Errorf("chain %s: already %s", r.chain.ID, r.chain.Status)
	}
	now := time.Now().UTC()
	r.chain.Status = status
	r.chain.CompletedAt = &now
	return nil
}

// AddChildChain links a forked chain by id.
func (r *Recorder) AddChildChain(childChainID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chain.ChildChainIDs = append(r.chain.ChildChainIDs, childChainID)
}

// Snapshot returns a deep-enough copy of the chain for persistence or
// inspection. Step payload maps are shared; callers must not mutate them.
func (r *Recorder) Snapshot() *Chain {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := *r.chain
	snapshot.Steps = make([]Step, len(r.chain.Steps))
	copy(snapshot.Steps, r.chain.Steps)
	snapshot.Metrics.StepCounts = make(map[StepKind]int, len(r.chain.Metrics.StepCounts))
	for kind, count := range r.chain.Metrics.StepCounts {
		snapshot.Metrics.StepCounts[kind] = count
	}
	snapshot.ChildChainIDs = append([]string(nil), r.chain.ChildChainIDs...)
	return &snapshot
}

// LastStepID returns the id of the most recent step, or "".
func (r *Recorder) LastStepID() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.chain.Steps) == 0 {
		return ""
	}
	return r.chain.Steps[len(r.chain.Steps)-1].ID
}

func (r *Recorder) appendLocked(step Step) (Step, error) {
	if r.chain.Status.Terminal() {
		return Step{}, fmt.Errorf("chain %s: cannot append to %s chain", r.chain.ID, r.chain.Status)
	}

	if step.Visibility == "" {
		step.Visibility = visibility.LevelSummary
	}
	step.ID = uuid.NewString()
	step.ChainID = r.chain.ID
	step.Number = len(r.chain.Steps) + 1
	step.Timestamp = time.Now().UTC()

	r.chain.Steps = append(r.chain.Steps, step)
	r.chain.Metrics.TotalTokens += step.TokensUsed
	r.chain.Metrics.TotalCost += step.Cost
	r.chain.Metrics.StepCounts[step.Kind]++
	return step, nil
}
