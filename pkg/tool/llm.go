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
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/conductor-ai/conductor/pkg/cost"
	"github.com/conductor-ai/conductor/pkg/llms"
	"github.com/conductor-ai/conductor/pkg/utils"
)

// LLMTool exposes language models through the uniform tool contract so the
// executor's budget, retry, and cost plumbing applies to LLM calls like any
// other dispatch.
type LLMTool struct {
	providers *llms.Registry
	pricing   *cost.Pricing
	counter   *utils.TokenCounter
	provider  string
}

// llmArgs is the decoded argument shape of an llm invocation.
type llmArgs struct {
	Messages    []llms.Message `mapstructure:"messages"`
	System      string         `mapstructure:"system"`
	Model       string         `mapstructure:"model"`
	Temperature float64        `mapstructure:"temperature"`
	MaxTokens   int            `mapstructure:"max_tokens"`
}

// NewLLMTool creates the llm tool over a provider registry. providerName
// may be empty to use the registry default. pricing may be nil, in which
// case cost_usd is always zero.
func NewLLMTool(providers *llms.Registry, pricing *cost.Pricing, providerName string) *LLMTool {
	return &LLMTool{
		providers: providers,
		pricing:   pricing,
		counter:   utils.NewTokenCounter(),
		provider:  providerName,
	}
}

func (t *LLMTool) Info() Definition {
	return Definition{
		Name:        "llm",
		Kind:        KindLLM,
		Description: "Call the language model with a conversation and return its reply.",
		Parameters: []Parameter{
			{Name: "messages", Type: "array", Description: "Ordered role/content turns.", Required: true},
			{Name: "system", Type: "string", Description: "System prompt prepended to the conversation."},
			{Name: "model", Type: "string", Description: "Model name; defaults to the platform model."},
			{Name: "temperature", Type: "number", Description: "Sampling temperature.", Default: 0.7},
			{Name: "max_tokens", Type: "integer", Description: "Generation cap in tokens."},
		},
		Timeout: 120 * time.Second,
		Retry: RetryPolicy{
			MaxRetries:        2,
			InitialBackoff:    500 * time.Millisecond,
			BackoffMultiplier: 2,
		},
	}
}

func (t *LLMTool) decodeArgs(args map[string]any) (llmArgs, error) {
	var decoded llmArgs
	if err := mapstructure.Decode(args, &decoded); err != nil {
		return llmArgs{}, fmt.Errorf("invalid llm arguments: %w", err)
	}
	if len(decoded.Messages) == 0 {
		return llmArgs{}, fmt.Errorf("messages must not be empty")
	}
	return decoded, nil
}

func (t *LLMTool) request(decoded llmArgs) llms.Request {
	return llms.Request{
		Messages:    decoded.Messages,
		System:      decoded.System,
		Model:       decoded.Model,
		Temperature: decoded.Temperature,
		MaxTokens:   decoded.MaxTokens,
	}
}

func (t *LLMTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	decoded, err := t.decodeArgs(args)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	provider, err := t.providers.Get(t.provider)
	if err != nil {
		return Result{Success: false, Error: err.Error()}, nil
	}

	resp, err := provider.Generate(ctx, t.request(decoded))
	if err != nil {
		return Result{}, err
	}
	return t.resultFrom(resp), nil
}

// ExecuteStreaming yields token chunks followed by a done chunk carrying
// the summary metadata.
func (t *LLMTool) ExecuteStreaming(ctx context.Context, args map[string]any) (<-chan Chunk, error) {
	decoded, err := t.decodeArgs(args)
	if err != nil {
		return nil, NewValidationError("llm", err.Error())
	}
	provider, err := t.providers.Get(t.provider)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	chunks := make(chan Chunk, 100)
	go func() {
		defer close(chunks)

		tokens := make(chan string, 100)
		forwarded := make(chan struct{})
		go func() {
			defer close(forwarded)
			for token := range tokens {
				select {
				case chunks <- Chunk{Token: token}:
				case <-ctx.Done():
					return
				}
			}
		}()

		resp, err := provider.GenerateStreaming(ctx, t.request(decoded), tokens)
		close(tokens)
		// Every buffered token must be forwarded before the done chunk:
		// the final chunk carries Done and nothing follows it.
		<-forwarded
		if err != nil {
			return
		}
		select {
		case chunks <- Chunk{
			Done:         true,
			Content:      resp.Content,
			Model:        resp.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		}:
		case <-ctx.Done():
		}
	}()
	return chunks, nil
}

func (t *LLMTool) resultFrom(resp *llms.Response) Result {
	inputTokens := resp.InputTokens
	outputTokens := resp.OutputTokens
	if inputTokens == 0 && outputTokens == 0 {
		// Providers occasionally omit usage; fall back to an estimate so
		// budget accounting never sees a free call.
		outputTokens = t.counter.Count(resp.Content, resp.Model)
	}

	var costUSD float64
	if t.pricing != nil {
		costUSD = t.pricing.Cost(resp.Model, inputTokens, outputTokens)
	}

	return Result{
		Success: true,
		Value: map[string]any{
			"content":       resp.Content,
			"model":         resp.Model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"cost_usd":      costUSD,
		},
		Tokens:  inputTokens + outputTokens,
		CostUSD: costUSD,
	}
}

var (
	_ Tool          = (*LLMTool)(nil)
	_ StreamingTool = (*LLMTool)(nil)
)
