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

// Package cost tracks per-task spend (USD, tokens, LLM calls) and gates
// execution against soft budget caps.
package cost

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one immutable cost entry attributed to a task and, when known,
// the chain step and tool that incurred it.
type Record struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	TaskID    string    `json:"task_id"`
	ChainID   string    `json:"chain_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	ToolName  string    `json:"tool_name,omitempty"`
	CostUSD   float64   `json:"cost_usd"`
	Tokens    int       `json:"tokens"`
	Model     string    `json:"model,omitempty"`
	IsLLMCall bool      `json:"is_llm_call,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord creates a record with a fresh id and timestamp.
func NewRecord(tenantID, taskID string) Record {
	return Record{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		TaskID:    taskID,
		CreatedAt: time.Now().UTC(),
	}
}

// Budget caps a task's spend. Nil fields are unlimited.
type Budget struct {
	MaxCostUSD  *float64 `yaml:"max_cost_usd,omitempty" json:"max_cost_usd,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	MaxLLMCalls *int     `yaml:"max_llm_calls,omitempty" json:"max_llm_calls,omitempty"`
}

// Unlimited reports whether no cap is set.
func (b Budget) Unlimited() bool {
	return b.MaxCostUSD == nil && b.MaxTokens == nil && b.MaxLLMCalls == nil
}

// Summary is the running tally for one task.
type Summary struct {
	TaskID   string  `json:"task_id"`
	CostUSD  float64 `json:"cost_usd"`
	Tokens   int     `json:"tokens"`
	LLMCalls int     `json:"llm_calls"`
}

// Remaining is the headroom left under a budget. Nil fields mirror the
// budget's unlimited caps.
type Remaining struct {
	CostUSD  *float64 `json:"cost_usd,omitempty"`
	Tokens   *int     `json:"tokens,omitempty"`
	LLMCalls *int     `json:"llm_calls,omitempty"`
}

// Repository persists cost records. Implementations own their transactional
// discipline; the tracker treats writes as best-effort durability.
type Repository interface {
	SaveRecord(ctx context.Context, record Record) error
	ListByTask(ctx context.Context, tenantID, taskID string) ([]Record, error)
}
