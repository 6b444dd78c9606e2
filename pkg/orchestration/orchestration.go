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

// Package orchestration fans a request out to peer agents under a
// dispatch strategy and synthesizes their responses.
package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// defaultCallTimeout bounds each sub-agent call.
const defaultCallTimeout = 30 * time.Second

// Strategy names a dispatch pattern.
type Strategy string

const (
	StrategyParallel     Strategy = "parallel"
	StrategySequential   Strategy = "sequential"
	StrategyFirstSuccess Strategy = "first_success"
)

// SubAgentResult is the outcome of one sub-agent call.
type SubAgentResult struct {
	AgentID  string        `json:"agent_id"`
	Success  bool          `json:"success"`
	Response string        `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"latency"`
}

// Dispatcher sends one message to a peer agent and returns its
// assembled response. Implemented by the agent package's Caller.
type Dispatcher interface {
	CallAgent(ctx context.Context, agentID string, message string) (string, error)
}

// Manager runs dispatch strategies over a dispatcher.
type Manager struct {
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *slog.Logger
}

// NewManager creates a manager. timeout 0 means the 30s default.
func NewManager(dispatcher Dispatcher, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Manager{
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     slog.Default(),
	}
}

// Dispatch runs the strategy over the agents and returns the collected
// results.
func (m *Manager) Dispatch(ctx context.Context, strategy Strategy, agentIDs []string, message string) ([]SubAgentResult, error) {
	switch strategy {
	case StrategyParallel:
		return m.Parallel(ctx, agentIDs, message), nil
	case StrategySequential:
		return m.Sequential(ctx, agentIDs, message), nil
	case StrategyFirstSuccess:
		return m.FirstSuccess(ctx, agentIDs, message), nil
	}
	return nil, fmt.Errorf("orchestration: unknown strategy %q", strategy)
}

// Parallel dispatches to all agents concurrently and gathers every
// result; failures come back as failed records, never as panics or
// dropped entries.
func (m *Manager) Parallel(ctx context.Context, agentIDs []string, message string) []SubAgentResult {
	results := make([]SubAgentResult, len(agentIDs))
	var g errgroup.Group
	for i, agentID := range agentIDs {
		g.Go(func() error {
			results[i] = m.callOne(ctx, agentID, message)
			return nil
		})
	}
	g.Wait()
	return results
}

// Sequential dispatches one agent at a time in the given order and
// always runs all of them.
func (m *Manager) Sequential(ctx context.Context, agentIDs []string, message string) []SubAgentResult {
	results := make([]SubAgentResult, 0, len(agentIDs))
	for _, agentID := range agentIDs {
		results = append(results, m.callOne(ctx, agentID, message))
	}
	return results
}

// FirstSuccess dispatches concurrently and returns the first successful
// result, cancelling the rest. When every call fails, all failures are
// returned.
func (m *Manager) FirstSuccess(ctx context.Context, agentIDs []string, message string) []SubAgentResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		winner  *SubAgentResult
		results = make([]SubAgentResult, len(agentIDs))
	)
	var g errgroup.Group
	for i, agentID := range agentIDs {
		g.Go(func() error {
			result := m.callOne(ctx, agentID, message)
			mu.Lock()
			results[i] = result
			if result.Success && winner == nil {
				copied := result
				winner = &copied
				cancel()
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if winner != nil {
		return []SubAgentResult{*winner}
	}
	return results
}

func (m *Manager) callOne(ctx context.Context, agentID string, message string) SubAgentResult {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	started := time.Now()
	response, err := m.dispatcher.CallAgent(callCtx, agentID, message)
	result := SubAgentResult{
		AgentID: agentID,
		Latency: time.Since(started),
	}
	if err != nil {
		result.Error = err.Error()
		m.logger.Warn("sub-agent call failed", "agent_id", agentID, "error", err)
		return result
	}
	result.Success = true
	result.Response = response
	return result
}

// Synthesize combines sub-agent results into a single response text.
func Synthesize(results []SubAgentResult) string {
	if len(results) == 0 {
		return "No responses received from sub-agents."
	}

	successes := make([]SubAgentResult, 0, len(results))
	for _, result := range results {
		if result.Success {
			successes = append(successes, result)
		}
	}

	switch len(successes) {
	case 0:
		return "All sub-agents failed to provide responses."
	case 1:
		return successes[0].Response
	}

	sections := make([]string, 0, len(successes))
	for _, result := range successes {
		sections = append(sections, fmt.Sprintf("From %s:\n%s", result.AgentID, result.Response))
	}
	return strings.Join(sections, "\n\n")
}
