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

package handoff

import (
	"context"
	"time"

	"github.com/conductor-ai/conductor/pkg/tool"
)

// Tool exposes handoff control to the reasoning loop: an agent
// initiates a transfer of its conversation to a specialist, and the
// specialist later completes it to return control. Thread and tenant
// come from the running call context, never from model-chosen
// arguments.
type Tool struct {
	manager *Manager
}

// NewTool creates the handoff tool over the manager.
func NewTool(manager *Manager) *Tool {
	return &Tool{manager: manager}
}

func (t *Tool) Info() tool.Definition {
	return tool.Definition{
		Name:        "handoff",
		Kind:        tool.KindFunction,
		Description: "Transfer the conversation to another agent, or complete an active handoff and return control.",
		Parameters: []tool.Parameter{
			{
				Name:        "action",
				Type:        "string",
				Description: "One of initiate, complete.",
				Required:    true,
			},
			{Name: "target_agent", Type: "string", Description: "Agent receiving the conversation (initiate)."},
			{Name: "reason", Type: "string", Description: "Why the conversation is being transferred (initiate)."},
			{Name: "context_summary", Type: "string", Description: "What the target needs to know (initiate)."},
			{Name: "status", Type: "string", Description: "One of success, cancelled, error (complete).", Default: "success"},
			{Name: "result_summary", Type: "string", Description: "What was accomplished (complete)."},
			{Name: "artifacts", Type: "array", Description: "Identifiers of artifacts produced (complete)."},
		},
		Timeout: 10 * time.Second,
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	call, ok := tool.CallContextFromContext(ctx)
	if !ok || call.ConversationID == "" {
		return tool.Result{
			Success: false,
			Error:   "handoff requires a conversation-scoped task",
		}, nil
	}

	switch action, _ := args["action"].(string); action {
	case "initiate":
		return t.initiate(ctx, call, args)
	case "complete":
		return t.complete(ctx, call, args)
	default:
		return tool.Result{
			Success: false,
			Error:   "action must be initiate or complete",
		}, nil
	}
}

func (t *Tool) initiate(ctx context.Context, call tool.CallContext, args map[string]any) (tool.Result, error) {
	target, _ := args["target_agent"].(string)
	reason, _ := args["reason"].(string)
	summary, _ := args["context_summary"].(string)

	session, err := t.manager.Initiate(ctx, Request{
		ThreadID:       call.ConversationID,
		TenantID:       call.TenantID,
		SourceAgent:    call.AgentID,
		TargetAgent:    target,
		Reason:         reason,
		ContextSummary: summary,
	})
	if err != nil {
		return tool.Result{Success: false, Error: err.Error()}, nil
	}

	return tool.Result{
		Success: true,
		Value: map[string]any{
			"session_id":   session.ID,
			"target_agent": session.TargetAgent,
			"state":        string(session.State),
		},
	}, nil
}

func (t *Tool) complete(ctx context.Context, call tool.CallContext, args map[string]any) (tool.Result, error) {
	status, _ := args["status"].(string)
	if status == "" {
		status = string(CompletionSuccess)
	}
	summary, _ := args["result_summary"].(string)

	var artifacts []string
	if raw, ok := args["artifacts"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok && s != "" {
				artifacts = append(artifacts, s)
			}
		}
	}

	ret, err := t.manager.Complete(ctx, call.ConversationID, call.TenantID,
		CompletionStatus(status), summary, artifacts)
	if err != nil {
		return tool.Result{Success: false, Error: err.Error()}, nil
	}

	return tool.Result{
		Success: true,
		Value: map[string]any{
			"session_id":     ret.SessionID,
			"returned_to":    ret.TargetAgent,
			"result_summary": ret.ResultSummary,
		},
	}, nil
}

var _ tool.Tool = (*Tool)(nil)
