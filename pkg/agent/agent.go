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

// Package agent contains the task engine: agents process tenant-scoped
// tasks into finite, ordered event streams with lineage, cancellation,
// and role-based filtering.
package agent

import (
	"context"
	"errors"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/conductor-ai/conductor/pkg/chain"
	"github.com/conductor-ai/conductor/pkg/cost"
	"github.com/conductor-ai/conductor/pkg/reasoning"
	"github.com/conductor-ai/conductor/pkg/skill"
	"github.com/conductor-ai/conductor/pkg/store"
	"github.com/conductor-ai/conductor/pkg/tool"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

// Agent processes one task, emitting progress events as it goes. The
// engine wraps Run with the stream state machine: status(working) on
// entry, exactly one done on exit.
type Agent interface {
	ID() string
	Run(ctx context.Context, task *Task, emit func(Event)) error
}

// LoopAgentConfig configures a reasoning-loop agent.
type LoopAgentConfig struct {
	Reasoning reasoning.Config
	Budget    cost.Budget

	// SkillName routes the run through the skill orchestrator when set.
	SkillName string

	// Conversations persists each exchange and replays stored history
	// when the task carries a conversation id. Optional.
	Conversations store.ConversationStore
}

// LoopAgent is the standard agent: it answers tasks by driving the
// ReAct loop, optionally scoped to a skill.
type LoopAgent struct {
	id        string
	reasoning *reasoning.Engine
	skills    *skill.Orchestrator
	chains    chain.Repository
	cfg       LoopAgentConfig
	logger    *slog.Logger
}

// NewLoopAgent creates a loop agent. skills and chains may be nil.
func NewLoopAgent(id string, engine *reasoning.Engine, skills *skill.Orchestrator, chains chain.Repository, cfg LoopAgentConfig) *LoopAgent {
	return &LoopAgent{
		id:        id,
		reasoning: engine,
		skills:    skills,
		chains:    chains,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

func (a *LoopAgent) ID() string { return a.id }

func (a *LoopAgent) Run(ctx context.Context, task *Task, emit func(Event)) error {
	recorder := chain.NewRecorder(task.ID, a.id, task.TenantID)
	call := tool.CallContext{
		TaskID:         task.ID,
		AgentID:        a.id,
		TenantID:       task.TenantID,
		ConversationID: task.ConversationID,
		Role:           visibility.RoleDeveloper,
		Budget:         a.cfg.Budget,
	}
	conversation := append(a.storedHistory(ctx, task), conversationFromTask(task)...)
	notify := a.notifier(task.ID, emit)

	var (
		answer string
		err    error
	)
	if a.cfg.SkillName != "" && a.skills != nil {
		answer, err = a.skills.Execute(ctx, call, recorder, skill.Run{
			SkillName:    a.cfg.SkillName,
			Conversation: conversation,
			Notify:       notify,
		})
	} else {
		answer, err = a.reasoning.Run(ctx, call, recorder, conversation, a.cfg.Reasoning, notify)
	}

	if a.chains != nil {
		if saveErr := a.chains.SaveChain(ctx, recorder.Snapshot()); saveErr != nil {
			a.logger.Error("failed to persist reasoning chain",
				"chain_id", recorder.ChainID(), "task_id", task.ID, "error", saveErr)
		}
	}
	if err != nil {
		return err
	}

	userText := lastUserText(task)
	task.AddMessage(agentMessage(answer))
	a.persistExchange(ctx, task, userText, answer)
	emit(NewMessageEvent(task.ID, answer, false, visibility.LevelSummary))
	return nil
}

// storedHistory replays the conversation's persisted turns ahead of the
// task's own messages. Missing history is not an error; the thread may
// be new.
func (a *LoopAgent) storedHistory(ctx context.Context, task *Task) []reasoning.Turn {
	if a.cfg.Conversations == nil || task.ConversationID == "" {
		return nil
	}
	messages, err := a.cfg.Conversations.ListMessages(ctx, task.TenantID, task.ConversationID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("failed to load conversation history",
				"conversation_id", task.ConversationID, "error", err)
		}
		return nil
	}
	turns := make([]reasoning.Turn, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == "assistant" {
			role = "assistant"
		}
		turns = append(turns, reasoning.Turn{Role: role, Content: msg.Content})
	}
	return turns
}

// persistExchange appends the user/agent turn pair to the conversation,
// creating it on first use. Store failures degrade to a warning; the
// answer already streamed.
func (a *LoopAgent) persistExchange(ctx context.Context, task *Task, userText, answer string) {
	if a.cfg.Conversations == nil || task.ConversationID == "" {
		return
	}
	conversations := a.cfg.Conversations

	if _, err := conversations.GetConversation(ctx, task.TenantID, task.ConversationID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("failed to load conversation",
				"conversation_id", task.ConversationID, "error", err)
			return
		}
		conv := store.NewConversation(task.TenantID, task.UserID, "")
		conv.ID = task.ConversationID
		if cerr := conversations.CreateConversation(ctx, conv); cerr != nil {
			a.logger.Warn("failed to create conversation",
				"conversation_id", task.ConversationID, "error", cerr)
			return
		}
	}

	if userText != "" {
		if err := conversations.AddMessage(ctx, task.TenantID,
			store.NewMessage(task.ConversationID, "user", userText)); err != nil {
			a.logger.Warn("failed to persist user message",
				"conversation_id", task.ConversationID, "error", err)
		}
	}
	if err := conversations.AddMessage(ctx, task.TenantID,
		store.NewMessage(task.ConversationID, "assistant", answer)); err != nil {
		a.logger.Warn("failed to persist agent message",
			"conversation_id", task.ConversationID, "error", err)
	}
}

// lastUserText returns the text of the task's most recent user message.
func lastUserText(task *Task) string {
	for i := len(task.Messages) - 1; i >= 0; i-- {
		if task.Messages[i].Role == a2a.MessageRoleUser {
			return messageText(task.Messages[i])
		}
	}
	return ""
}

// notifier translates loop progress into status events. Tool activity is
// emitted pre-summarized; raw arguments and results stay in the chain.
func (a *LoopAgent) notifier(taskID string, emit func(Event)) func(reasoning.Notification) {
	return func(n reasoning.Notification) {
		switch n.Kind {
		case "thinking":
			emit(NewStatusEvent(taskID, a2a.TaskStateWorking, n.Text, n.Visibility))
		case "tool_call":
			ev := NewStatusEvent(taskID, a2a.TaskStateWorking, visibility.RenderSummary(n.SummaryTemplate, n.ToolName), n.Visibility)
			ev.ToolName = n.ToolName
			ev.SummaryTemplate = n.SummaryTemplate
			emit(ev)
		case "tool_result":
			message := visibility.SummarizeToolResult(n.ToolName, n.Success)
			if n.SummaryTemplate != "" {
				message = visibility.RenderSummary(n.SummaryTemplate, n.ToolName)
			}
			ev := NewStatusEvent(taskID, a2a.TaskStateWorking, message, n.Visibility)
			ev.ToolName = n.ToolName
			ev.SummaryTemplate = n.SummaryTemplate
			emit(ev)
		}
	}
}

func conversationFromTask(task *Task) []reasoning.Turn {
	turns := make([]reasoning.Turn, 0, len(task.Messages))
	for _, msg := range task.Messages {
		role := "user"
		if msg.Role == a2a.MessageRoleAgent {
			role = "assistant"
		}
		text := messageText(msg)
		if text == "" {
			continue
		}
		turns = append(turns, reasoning.Turn{Role: role, Content: text})
	}
	return turns
}

func messageText(msg a2a.Message) string {
	var out string
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
