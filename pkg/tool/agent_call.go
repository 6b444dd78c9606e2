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

package tool

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AgentCaller dispatches a message to a peer agent and returns its
// assembled response text. Implemented by the orchestration layer; the
// indirection keeps the tool package below the agent packages.
type AgentCaller interface {
	CallAgent(ctx context.Context, agentID string, message string) (string, error)
	AgentIDs() []string
}

type callerContextKey struct{}

// WithAgentCaller attaches the running task's delegation caller to the
// context. The agent engine installs it before each run so a single
// registry-wide agent_call tool can dispatch on behalf of any task.
func WithAgentCaller(ctx context.Context, caller AgentCaller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// AgentCallerFromContext returns the caller installed by WithAgentCaller.
func AgentCallerFromContext(ctx context.Context) (AgentCaller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(AgentCaller)
	return caller, ok
}

// AgentCallTool lets the reasoning loop delegate a request to another
// agent and treat the reply as an observation.
type AgentCallTool struct {
	caller AgentCaller
}

// NewAgentCallTool creates the delegation tool. caller may be nil, in
// which case each call resolves the per-task caller from the context.
func NewAgentCallTool(caller AgentCaller) *AgentCallTool {
	return &AgentCallTool{caller: caller}
}

func (t *AgentCallTool) Info() Definition {
	return Definition{
		Name:        "agent_call",
		Kind:        KindFunction,
		Description: "Delegate a request to another agent and return its response.",
		Parameters: []Parameter{
			{
				Name:        "agent",
				Type:        "string",
				Description: "ID of the agent to call.",
				Required:    true,
			},
			{
				Name:        "message",
				Type:        "string",
				Description: "The request to send to the agent.",
				Required:    true,
			},
		},
		Timeout: 60 * time.Second,
	}
}

func (t *AgentCallTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	agentID, _ := args["agent"].(string)
	message, _ := args["message"].(string)

	caller := t.caller
	if caller == nil {
		caller, _ = AgentCallerFromContext(ctx)
	}
	if caller == nil {
		return Result{
			Success: false,
			Error:   "delegation is not available outside a task run",
		}, nil
	}

	started := time.Now()
	response, err := caller.CallAgent(ctx, agentID, message)
	if err != nil {
		available := strings.Join(caller.AgentIDs(), ", ")
		return Result{
			Success: false,
			Error:   fmt.Sprintf("agent %q call failed: %v (available agents: %s)", agentID, err, available),
		}, nil
	}

	return Result{
		Success: true,
		Value: map[string]any{
			"agent":             agentID,
			"response":          fmt.Sprintf("[Delegated to: %s]\n%s", agentID, response),
			"execution_time_ms": time.Since(started).Milliseconds(),
		},
		TruncatableFields: []string{"response"},
	}, nil
}

var _ Tool = (*AgentCallTool)(nil)
