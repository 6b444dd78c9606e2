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
	"fmt"
	"time"

	"github.com/conductor-ai/conductor/pkg/tool"
)

// DispatchTool lets the reasoning loop fan a request out to several
// agents under a strategy and receive the synthesized response as an
// observation. The per-task caller installed on the context serves as
// the dispatcher.
type DispatchTool struct {
	timeout time.Duration
}

// NewDispatchTool creates the dispatch tool. timeout 0 means the 30s
// per-call default.
func NewDispatchTool(timeout time.Duration) *DispatchTool {
	return &DispatchTool{timeout: timeout}
}

func (t *DispatchTool) Info() tool.Definition {
	return tool.Definition{
		Name:        "dispatch",
		Kind:        tool.KindFunction,
		Description: "Send a request to several agents under a dispatch strategy and return the combined response.",
		Parameters: []tool.Parameter{
			{
				Name:        "strategy",
				Type:        "string",
				Description: "One of parallel, sequential, first_success.",
				Required:    true,
			},
			{
				Name:        "agents",
				Type:        "array",
				Description: "IDs of the agents to dispatch to.",
				Required:    true,
			},
			{
				Name:        "message",
				Type:        "string",
				Description: "The request to send to each agent.",
				Required:    true,
			},
		},
		Timeout: 120 * time.Second,
	}
}

func (t *DispatchTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	caller, ok := tool.AgentCallerFromContext(ctx)
	if !ok {
		return tool.Result{
			Success: false,
			Error:   "dispatch is not available outside a task run",
		}, nil
	}

	strategy := Strategy(stringArg(args, "strategy"))
	message := stringArg(args, "message")
	agentIDs := stringSliceArg(args, "agents")
	if len(agentIDs) == 0 {
		return tool.Result{Success: false, Error: "agents must name at least one agent"}, nil
	}

	manager := NewManager(caller, t.timeout)
	results, err := manager.Dispatch(ctx, strategy, agentIDs, message)
	if err != nil {
		return tool.Result{Success: false, Error: err.Error()}, nil
	}

	succeeded := 0
	details := make([]map[string]any, 0, len(results))
	for _, result := range results {
		if result.Success {
			succeeded++
		}
		details = append(details, map[string]any{
			"agent_id":   result.AgentID,
			"success":    result.Success,
			"error":      result.Error,
			"latency_ms": result.Latency.Milliseconds(),
		})
	}

	return tool.Result{
		Success: succeeded > 0,
		Error:   errorWhenAllFailed(succeeded, results),
		Value: map[string]any{
			"response":  Synthesize(results),
			"strategy":  string(strategy),
			"succeeded": succeeded,
			"results":   details,
		},
		TruncatableFields: []string{"response"},
	}, nil
}

func errorWhenAllFailed(succeeded int, results []SubAgentResult) string {
	if succeeded > 0 {
		return ""
	}
	return fmt.Sprintf("all %d sub-agent calls failed", len(results))
}

func stringArg(args map[string]any, name string) string {
	value, _ := args[name].(string)
	return value
}

func stringSliceArg(args map[string]any, name string) []string {
	raw, ok := args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ tool.Tool = (*DispatchTool)(nil)
