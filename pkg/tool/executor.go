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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conductor-ai/conductor/pkg/cost"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

// defaultRetryablePatterns is the platform default list matched against
// error text when a tool's retry policy does not name its own patterns.
var defaultRetryablePatterns = []string{
	"timeout", "connection", "temporarily", "rate limit", "503", "502",
}

const (
	defaultToolTimeout    = 30 * time.Second
	defaultInitialBackoff = 100 * time.Millisecond
	defaultBackoffFactor  = 2.0
	defaultMaxFieldLength = 4000
)

// Metrics receives execution observations. Implemented by the
// observability package; nil disables reporting.
type Metrics interface {
	ObserveToolCall(toolName string, success bool, duration time.Duration)
}

// UsageFunc receives one completed LLM call for per-model rollups.
// Wired to the model usage repository at startup.
type UsageFunc func(ctx context.Context, tenantID, model string, inputTokens, outputTokens int, costUSD float64)

// ExecutorOptions tune the executor.
type ExecutorOptions struct {
	// DefaultTimeout applies when a definition has none.
	DefaultTimeout time.Duration

	// MaxFieldLength caps truncatable result fields.
	MaxFieldLength int

	// DefaultModel is assumed for LLM tools when the call names none.
	DefaultModel string
}

func (o *ExecutorOptions) setDefaults() {
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = defaultToolTimeout
	}
	if o.MaxFieldLength <= 0 {
		o.MaxFieldLength = defaultMaxFieldLength
	}
}

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// Executor dispatches tool invocations with the full enforcement pipeline:
// validation, skill scope, budget gate, timeout, retry, truncation,
// redaction, and cost attribution.
type Executor struct {
	registry *Registry
	tracker  *cost.Tracker
	pricing  *cost.Pricing
	metrics  Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
	opts     ExecutorOptions
	usage    UsageFunc

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
}

// NewExecutor creates an executor. tracker is required; pricing and metrics
// may be nil.
func NewExecutor(reg *Registry, tracker *cost.Tracker, pricing *cost.Pricing, metrics Metrics, opts ExecutorOptions) *Executor {
	opts.setDefaults()
	return &Executor{
		registry: reg,
		tracker:  tracker,
		pricing:  pricing,
		metrics:  metrics,
		tracer:   otel.Tracer("conductor/tool"),
		logger:   slog.Default(),
		opts:     opts,
		cache:    make(map[string]cacheEntry),
	}
}

// Registry returns the executor's tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// OnLLMUsage installs the rollup callback invoked after every LLM call.
func (e *Executor) OnLLMUsage(fn UsageFunc) {
	e.usage = fn
}

// Execute runs the named tool under the call context.
//
// Errors returned from Execute are executor-level (validation, permission,
// budget, timeout exhaustion); tool-level failures come back as a Result
// with Success=false so the reasoning loop can absorb them.
func (e *Executor) Execute(ctx context.Context, call CallContext, toolName string, args map[string]any) (Result, error) {
	t, err := e.registry.Get(toolName)
	if err != nil {
		return Result{}, err
	}
	def := t.Info()

	if !call.Skill.Allows(toolName) {
		return Result{}, NewError(CodePermissionDenied, toolName,
			fmt.Sprintf("tool is not in skill %q allowed list", call.Skill.SkillName))
	}

	normalized, err := ValidateArgs(def, args)
	if err != nil {
		return Result{}, err
	}

	if err := e.gateBudget(call, def, normalized); err != nil {
		return Result{}, err
	}

	if def.CacheTTL > 0 {
		if cached, hit := e.cacheGet(def.Name, normalized); hit {
			return cached, nil
		}
	}

	ctx = WithCallContext(ctx, call)
	ctx, span := e.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(
			attribute.String("tool.name", def.Name),
			attribute.String("tool.kind", string(def.Kind)),
			attribute.String("task.id", call.TaskID),
		))
	defer span.End()

	result, err := e.executeWithRetry(ctx, t, def, normalized)
	if e.metrics != nil {
		e.metrics.ObserveToolCall(def.Name, err == nil && result.Success, result.Duration)
	}
	if err != nil {
		return Result{}, err
	}

	if result.Success {
		e.truncateFields(&result)
		if call.Role.MaxLevel() != visibility.LevelFull {
			result.Value = visibility.RedactFields(result.Value, def.Visibility.SensitiveFields)
		}
	}

	e.recordCost(ctx, call, def, result)

	if def.CacheTTL > 0 && result.Success {
		e.cachePut(def.Name, normalized, result, def.CacheTTL)
	}
	return result, nil
}

// gateBudget enforces the task budget and per-call claims before dispatch.
// LLM tools additionally require the model to be approved.
func (e *Executor) gateBudget(call CallContext, def Definition, args map[string]any) error {
	if def.Kind == KindLLM && e.pricing != nil {
		model := e.opts.DefaultModel
		if m, ok := args["model"].(string); ok && m != "" {
			model = m
		}
		if model != "" && !e.pricing.Approved(model) {
			return NewError(CodeModelNotApproved, def.Name,
				fmt.Sprintf("model %q is not on the approved list", model))
		}
	}

	if e.tracker == nil {
		return nil
	}

	var claimCost float64
	var claimTokens int
	if call.MaxCostUSD != nil {
		claimCost = *call.MaxCostUSD
	}
	if call.MaxTokens != nil {
		claimTokens = *call.MaxTokens
	}
	isLLM := def.Kind == KindLLM
	if !e.tracker.CheckBudget(call.TaskID, call.Budget, claimCost, claimTokens, isLLM) {
		return NewError(CodeBudgetExceeded, def.Name, "task budget exhausted")
	}
	return nil
}

func (e *Executor) executeWithRetry(ctx context.Context, t Tool, def Definition, args map[string]any) (Result, error) {
	policy := def.Retry
	backoff := policy.InitialBackoff
	if backoff <= 0 {
		backoff = defaultInitialBackoff
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = defaultBackoffFactor
	}

	var (
		result  Result
		lastErr error
	)
	for attempt := 0; ; attempt++ {
		result, lastErr = e.runOnce(ctx, t, def, args)
		result.Retries = attempt

		failureText := ""
		if lastErr != nil {
			failureText = lastErr.Error()
		} else if !result.Success {
			failureText = result.Error
		}
		if failureText == "" {
			return result, nil
		}

		if attempt >= policy.MaxRetries || !retryable(failureText, policy.RetryablePatterns) {
			break
		}

		e.logger.Debug("retrying tool",
			"tool", def.Name, "attempt", attempt+1, "error", failureText)
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * multiplier)
	}

	if lastErr != nil {
		return Result{}, lastErr
	}
	return result, nil
}

// runOnce executes the tool under the effective timeout. A tool that
// ignores its deadline is abandoned and reported as a timeout.
func (e *Executor) runOnce(ctx context.Context, t Tool, def Definition, args map[string]any) (Result, error) {
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = e.opts.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}
	done := make(chan outcome, 1)
	started := time.Now()
	go func() {
		result, err := t.Execute(callCtx, args)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		o.result.Duration = time.Since(started)
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) {
			return Result{}, NewError(CodeTimeout, def.Name,
				fmt.Sprintf("tool exceeded %s timeout", timeout))
		}
		return o.result, o.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{}, NewError(CodeTimeout, def.Name,
				fmt.Sprintf("tool exceeded %s timeout", timeout))
		}
		return Result{}, callCtx.Err()
	}
}

func (e *Executor) truncateFields(result *Result) {
	limit := e.opts.MaxFieldLength
	for _, field := range result.TruncatableFields {
		raw, ok := result.Value[field]
		if !ok {
			continue
		}
		text, ok := raw.(string)
		if !ok || len(text) <= limit {
			continue
		}
		result.Value[field] = text[:limit] + "...(truncated)"
	}
}

func (e *Executor) recordCost(ctx context.Context, call CallContext, def Definition, result Result) {
	if e.tracker == nil {
		return
	}
	record := cost.NewRecord(call.TenantID, call.TaskID)
	record.ChainID = call.ChainID
	record.StepID = call.StepID
	record.ToolName = def.Name
	record.CostUSD = result.CostUSD
	record.Tokens = result.Tokens
	record.IsLLMCall = def.Kind == KindLLM
	if model, ok := result.Value["model"].(string); ok {
		record.Model = model
	}
	e.tracker.Record(ctx, record)

	if record.IsLLMCall && record.Model != "" && e.usage != nil {
		e.usage(ctx, call.TenantID, record.Model,
			intValue(result.Value["input_tokens"]),
			intValue(result.Value["output_tokens"]),
			result.CostUSD)
	}
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func (e *Executor) cacheKey(toolName string, args map[string]any) string {
	// json.Marshal sorts map keys, so the key is stable per argument set.
	encoded, err := json.Marshal(args)
	if err != nil {
		return toolName
	}
	return toolName + ":" + string(encoded)
}

func (e *Executor) cacheGet(toolName string, args map[string]any) (Result, bool) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	entry, ok := e.cache[e.cacheKey(toolName, args)]
	if !ok || time.Now().After(entry.expiresAt) {
		return Result{}, false
	}
	cached := entry.result
	cached.Cached = true
	cached.CostUSD = 0
	return cached, true
}

func (e *Executor) cachePut(toolName string, args map[string]any, result Result, ttl time.Duration) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	e.cache[e.cacheKey(toolName, args)] = cacheEntry{
		result:    result,
		expiresAt: time.Now().Add(ttl),
	}
}

func retryable(errText string, patterns []string) bool {
	if len(patterns) == 0 {
		patterns = defaultRetryablePatterns
	}
	lowered := strings.ToLower(errText)
	for _, pattern := range patterns {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
