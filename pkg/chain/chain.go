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

// Package chain records the ordered history of a single reasoning run: an
// append-only sequence of thinking, tool call, tool result, and synthesis
// steps with aggregate metrics.
package chain

import (
	"context"
	"time"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

// StepKind discriminates reasoning step payloads.
type StepKind string

const (
	StepThinking   StepKind = "thinking"
	StepToolCall   StepKind = "tool_call"
	StepToolResult StepKind = "tool_result"
	StepSynthesis  StepKind = "synthesis"
)

// Status is the lifecycle state of a chain.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status accepts no further appends.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Step is one record in a chain. Steps are immutable once appended and
// numbered densely from 1.
type Step struct {
	ID           string           `json:"id"`
	ChainID      string           `json:"chain_id"`
	Number       int              `json:"number"`
	Kind         StepKind         `json:"kind"`
	Timestamp    time.Time        `json:"timestamp"`
	ParentStepID string           `json:"parent_step_id,omitempty"`
	Visibility   visibility.Level `json:"visibility"`

	// Kind-specific payloads. Exactly one group is set per kind.
	Thinking      string         `json:"thinking,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	ToolArgs      map[string]any `json:"tool_args,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Success       bool           `json:"success,omitempty"`
	ResultValue   map[string]any `json:"result_value,omitempty"`
	ResultError   string         `json:"result_error,omitempty"`
	Synthesis     string         `json:"synthesis,omitempty"`
	SourceStepIDs []string       `json:"source_step_ids,omitempty"`

	TokensUsed int     `json:"tokens_used,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
}

// Metrics are incrementally maintained chain aggregates.
type Metrics struct {
	TotalTokens int              `json:"total_tokens"`
	TotalCost   float64          `json:"total_cost"`
	StepCounts  map[StepKind]int `json:"step_counts"`
}

// Chain is the reasoning history of one task run.
type Chain struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	AgentID     string     `json:"agent_id"`
	TenantID    string     `json:"tenant_id"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Metrics     Metrics    `json:"metrics"`
	Steps       []Step     `json:"steps"`

	// ChildChainIDs links chains forked for sub-agent runs, by id only.
	ChildChainIDs []string `json:"child_chain_ids,omitempty"`
}

// Repository persists chains and their steps.
type Repository interface {
	SaveChain(ctx context.Context, c *Chain) error
	GetChain(ctx context.Context, tenantID, chainID string) (*Chain, error)
	ListByTask(ctx context.Context, tenantID, taskID string) ([]*Chain, error)
}
