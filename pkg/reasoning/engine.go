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

// Package reasoning runs the bounded think-act-observe loop: the model
// proposes a structured reply, tools execute through the enforcement
// pipeline, and observations feed back until a final answer or a hard
// limit.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/conductor-ai/conductor/pkg/chain"
	"github.com/conductor-ai/conductor/pkg/tool"
	"github.com/conductor-ai/conductor/pkg/utils"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

const (
	defaultMaxIterations    = 10
	defaultObservationLimit = 2000
	jsonReminder            = "Respond with valid JSON only."
)

// Turn is one message in the loop's working conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Notification reports loop progress to an observer, typically the task
// engine translating it into stream events.
type Notification struct {
	Kind       string // thinking, tool_call, tool_result, final_answer
	Text       string
	ToolName   string
	Args       map[string]any
	Success    bool
	Visibility visibility.Level

	// SummaryTemplate is the tool's configured summary rendering,
	// carried so downstream filters can apply it when demoting.
	SummaryTemplate string
}

// Config tunes a single reasoning run.
type Config struct {
	// MaxIterations bounds the loop; 0 means the platform default of 10.
	MaxIterations int

	// Model, Temperature and MaxTokens pass through to the llm tool when
	// set.
	Model       string
	Temperature float64
	MaxTokens   int

	// ObservationLimit caps observation text fed back to the model.
	ObservationLimit int

	// Instructions is the agent's own system prompt, prepended to the
	// tool catalog and reply protocol.
	Instructions string
}

func (c *Config) setDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.ObservationLimit <= 0 {
		c.ObservationLimit = defaultObservationLimit
	}
}

// Engine drives reasoning runs over a shared tool executor.
type Engine struct {
	executor *tool.Executor
	logger   *slog.Logger
}

// NewEngine creates a reasoning engine.
func NewEngine(executor *tool.Executor) *Engine {
	return &Engine{executor: executor, logger: slog.Default()}
}

// Run executes the loop for one task and returns the final answer.
//
// Tool failures are absorbed as error observations so the model can
// recover; enforcement rejections (validation, permission, budget,
// model approval, rate limit) and provider failures abort the run. The
// chain is marked completed or failed before Run returns.
func (e *Engine) Run(ctx context.Context, call tool.CallContext, recorder *chain.Recorder, conversation []Turn, cfg Config, notify func(Notification)) (string, error) {
	cfg.setDefaults()
	if notify == nil {
		notify = func(Notification) {}
	}
	call.ChainID = recorder.ChainID()

	system := BuildSystemPrompt(cfg.Instructions, e.executor.Registry().Definitions(call.Skill))

	turns := append([]Turn(nil), conversation...)

	for iteration := 1; iteration <= cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			recorder.Fail()
			return "", err
		}

		marker := fmt.Sprintf("Iteration %d/%d: analyzing next step", iteration, cfg.MaxIterations)
		if _, err := recorder.AddThinking(marker, visibility.LevelSummary, 0, 0); err != nil {
			e.logger.Warn("failed to record thinking step", "chain_id", recorder.ChainID(), "error", err)
		}
		notify(Notification{Kind: "thinking", Text: marker, Visibility: visibility.LevelSummary})

		reply, raw, err := e.propose(ctx, call, cfg, system, turns)
		if err != nil {
			recorder.Fail()
			return "", err
		}

		if reply.Thought != "" {
			if _, err := recorder.AddThinking(reply.Thought, visibility.LevelFull, 0, 0); err != nil {
				e.logger.Warn("failed to record thinking step", "chain_id", recorder.ChainID(), "error", err)
			}
			notify(Notification{Kind: "thinking", Text: reply.Thought, Visibility: visibility.LevelFull})
		}

		if reply.IsFinal {
			answer := reply.FinalAnswer
			if answer == "" {
				answer = "Task completed."
			}
			var sources []string
			if last := recorder.LastStepID(); last != "" {
				sources = []string{last}
			}
			recorder.AddSynthesis(answer, sources, visibility.LevelFull)
			if err := recorder.Complete(); err != nil {
				return "", err
			}
			notify(Notification{Kind: "final_answer", Text: answer, Success: true, Visibility: visibility.LevelFull})
			return answer, nil
		}

		observation, err := e.dispatch(ctx, call, recorder, reply, cfg, notify)
		if err != nil {
			recorder.Fail()
			return "", err
		}

		turns = append(turns,
			Turn{Role: "assistant", Content: raw},
			Turn{Role: "user", Content: observation},
		)
	}

	recorder.Fail()
	return "", &Error{
		Code:    CodeMaxIterationsExceeded,
		Message: fmt.Sprintf("no final answer after %d iterations", cfg.MaxIterations),
		Details: map[string]any{
			"iterations":        cfg.MaxIterations,
			"conversation_tail": tail(turns, 3),
		},
	}
}

// propose asks the model for the next reply, retrying a malformed answer
// once with a JSON reminder before giving up.
func (e *Engine) propose(ctx context.Context, call tool.CallContext, cfg Config, system string, turns []Turn) (Reply, string, error) {
	working := turns
	var lastParseErr error

	for attempt := 0; attempt < 2; attempt++ {
		content, err := e.callLLM(ctx, call, cfg, system, working)
		if err != nil {
			return Reply{}, "", err
		}

		reply, perr := ParseReply(content)
		if perr == nil {
			return reply, content, nil
		}
		lastParseErr = perr
		e.logger.Warn("malformed model reply", "task_id", call.TaskID, "error", perr)
		working = append(working,
			Turn{Role: "assistant", Content: content},
			Turn{Role: "user", Content: jsonReminder},
		)
	}

	return Reply{}, "", &Error{
		Code:    CodeInvalidLLMResponse,
		Message: "model did not produce a valid structured reply",
		Err:     lastParseErr,
	}
}

func (e *Engine) callLLM(ctx context.Context, call tool.CallContext, cfg Config, system string, turns []Turn) (string, error) {
	messages := make([]any, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, map[string]any{"role": turn.Role, "content": turn.Content})
	}
	args := map[string]any{
		"messages": messages,
		"system":   system,
	}
	if cfg.Model != "" {
		args["model"] = cfg.Model
	}
	if cfg.Temperature > 0 {
		args["temperature"] = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		args["max_tokens"] = cfg.MaxTokens
	}

	result, err := e.executor.Execute(ctx, call, "llm", args)
	if err != nil {
		switch tool.CodeOf(err) {
		case tool.CodeBudgetExceeded, tool.CodeModelNotApproved, tool.CodeRateLimited:
			return "", err
		}
		return "", &Error{Code: CodeLLMCallFailed, Message: "llm call failed", Err: err}
	}
	if !result.Success {
		return "", &Error{Code: CodeLLMCallFailed, Message: result.Error}
	}

	content, _ := result.Value["content"].(string)
	return content, nil
}

// dispatch runs the proposed action and formats the observation fed back
// to the model.
func (e *Engine) dispatch(ctx context.Context, call tool.CallContext, recorder *chain.Recorder, reply Reply, cfg Config, notify func(Notification)) (string, error) {
	stepLevel, summaryTemplate := e.stepVisibility(reply.Action)

	correlationID, err := recorder.AddToolCall(reply.Action, reply.ActionInput, stepLevel)
	if err != nil {
		return "", err
	}
	notify(Notification{Kind: "tool_call", ToolName: reply.Action, Args: reply.ActionInput,
		Visibility: stepLevel, SummaryTemplate: summaryTemplate})

	toolCall := call
	toolCall.CorrelationID = correlationID
	toolCall.StepID = recorder.CallStepID(correlationID)
	result, execErr := e.executor.Execute(ctx, toolCall, reply.Action, reply.ActionInput)

	if execErr != nil {
		if _, rerr := recorder.AddToolResult(correlationID, false, nil, execErr.Error(), stepLevel, 0, 0); rerr != nil {
			e.logger.Warn("failed to record tool result", "chain_id", recorder.ChainID(), "tool", reply.Action, "error", rerr)
		}
		notify(Notification{Kind: "tool_result", ToolName: reply.Action, Text: execErr.Error(),
			Visibility: stepLevel, SummaryTemplate: summaryTemplate})
		if fatalToolError(execErr) {
			return "", execErr
		}
		return utils.TruncateText("Observation: Error - "+execErr.Error(), cfg.ObservationLimit), nil
	}

	if !result.Success {
		if _, rerr := recorder.AddToolResult(correlationID, false, nil, result.Error, stepLevel, result.Tokens, result.CostUSD); rerr != nil {
			e.logger.Warn("failed to record tool result", "chain_id", recorder.ChainID(), "tool", reply.Action, "error", rerr)
		}
		notify(Notification{Kind: "tool_result", ToolName: reply.Action, Text: result.Error,
			Visibility: stepLevel, SummaryTemplate: summaryTemplate})
		return utils.TruncateText("Observation: Error - "+result.Error, cfg.ObservationLimit), nil
	}

	if _, rerr := recorder.AddToolResult(correlationID, true, result.Value, "", stepLevel, result.Tokens, result.CostUSD); rerr != nil {
		e.logger.Warn("failed to record tool result", "chain_id", recorder.ChainID(), "tool", reply.Action, "error", rerr)
	}
	rendered := renderValue(result.Value)
	notify(Notification{Kind: "tool_result", ToolName: reply.Action, Text: rendered, Success: true,
		Visibility: stepLevel, SummaryTemplate: summaryTemplate})
	return utils.TruncateText("Observation: "+rendered, cfg.ObservationLimit), nil
}

// stepVisibility resolves the tool definition's visibility contract for
// its steps: the configured default level, falling back to summary, plus
// the summary template when one is declared.
func (e *Engine) stepVisibility(toolName string) (visibility.Level, string) {
	t, err := e.executor.Registry().Get(toolName)
	if err != nil {
		return visibility.LevelSummary, ""
	}
	cfg := t.Info().Visibility
	level := visibility.LevelSummary
	if cfg.DefaultLevel.Valid() {
		level = cfg.DefaultLevel
	}
	return level, cfg.SummaryTemplate
}

// fatalToolError reports whether an executor rejection should abort the
// run instead of feeding back as an observation. Transient failures
// (timeouts, unknown tools, execution errors) stay recoverable.
func fatalToolError(err error) bool {
	switch tool.CodeOf(err) {
	case tool.CodeValidationError, tool.CodePermissionDenied,
		tool.CodeBudgetExceeded, tool.CodeModelNotApproved, tool.CodeRateLimited:
		return true
	}
	return false
}

func renderValue(value map[string]any) string {
	if len(value) == 0 {
		return "(no output)"
	}
	if text, ok := value["value"].(string); ok && len(value) == 1 {
		return text
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

func tail(turns []Turn, n int) []Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
