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
	"log/slog"
	"sync"
)

// Tracker keeps per-task spend summaries in memory with optional
// write-through to a repository. Budget caps are a soft in-process gate;
// cross-process coordination is out of scope.
type Tracker struct {
	mu        sync.Mutex
	summaries map[string]*Summary
	repo      Repository
	logger    *slog.Logger
}

// NewTracker creates a tracker. repo may be nil for in-memory-only use.
func NewTracker(repo Repository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		summaries: make(map[string]*Summary),
		repo:      repo,
		logger:    logger,
	}
}

// Record adds a cost record to the task's summary and, when a repository is
// configured, persists it. Persistence failures are logged and swallowed;
// the in-memory summary is authoritative for budget gating.
func (t *Tracker) Record(ctx context.Context, record Record) {
	t.mu.Lock()
	summary := t.summaryLocked(record.TaskID)
	summary.CostUSD += record.CostUSD
	summary.Tokens += record.Tokens
	if record.IsLLMCall {
		summary.LLMCalls++
	}
	t.mu.Unlock()

	if t.repo != nil {
		if err := t.repo.SaveRecord(ctx, record); err != nil {
			t.logger.Warn("cost record write-through failed",
				"task_id", record.TaskID, "error", err)
		}
	}
}

// CheckBudget reports whether the task can afford the proposed additional
// usage under budget. Unset caps are unlimited.
func (t *Tracker) CheckBudget(taskID string, budget Budget, extraCost float64, extraTokens int, isLLMCall bool) bool {
	if budget.Unlimited() {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	summary := t.summaryLocked(taskID)
	if budget.MaxCostUSD != nil && summary.CostUSD+extraCost > *budget.MaxCostUSD {
		return false
	}
	if budget.MaxTokens != nil && summary.Tokens+extraTokens > *budget.MaxTokens {
		return false
	}
	if budget.MaxLLMCalls != nil && isLLMCall && summary.LLMCalls+1 > *budget.MaxLLMCalls {
		return false
	}
	return true
}

// GetRemaining returns the headroom left under budget for the task.
func (t *Tracker) GetRemaining(taskID string, budget Budget) Remaining {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := t.summaryLocked(taskID)
	var remaining Remaining
	if budget.MaxCostUSD != nil {
		left := *budget.MaxCostUSD - summary.CostUSD
		if left < 0 {
			left = 0
		}
		remaining.CostUSD = &left
	}
	if budget.MaxTokens != nil {
		left := *budget.MaxTokens - summary.Tokens
		if left < 0 {
			left = 0
		}
		remaining.Tokens = &left
	}
	if budget.MaxLLMCalls != nil {
		left := *budget.MaxLLMCalls - summary.LLMCalls
		if left < 0 {
			left = 0
		}
		remaining.LLMCalls = &left
	}
	return remaining
}

// GetSummary returns a copy of the task's running tally.
func (t *Tracker) GetSummary(taskID string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return *t.summaryLocked(taskID)
}

// Clear drops the in-memory summary for a task. Persisted records are kept.
func (t *Tracker) Clear(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.summaries, taskID)
}

func (t *Tracker) summaryLocked(taskID string) *Summary {
	summary, ok := t.summaries[taskID]
	if !ok {
		summary = &Summary{TaskID: taskID}
		t.summaries[taskID] = summary
	}
	return summary
}
