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

// Package tool provides the uniform tool invocation surface: definitions,
// the registry, and the executor that enforces validation, skill scope,
// budgets, timeouts, retries, truncation, and redaction.
package tool

import (
	"context"
	"regexp"
	"time"

	"github.com/conductor-ai/conductor/pkg/cost"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

// Kind tags what a tool is, which drives visibility demotion and budget
// accounting (LLM tools count against the llm-call cap).
type Kind string

const (
	KindFunction   Kind = "function"
	KindAPI        Kind = "api"
	KindBash       Kind = "bash"
	KindFileSystem Kind = "file_system"
	KindGlob       Kind = "glob"
	KindGrep       Kind = "grep"
	KindLLM        Kind = "llm"
	KindSkill      Kind = "skill"
)

// Parameter describes one tool argument.
type Parameter struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
}

// RetryPolicy controls how the executor retries a failing tool.
type RetryPolicy struct {
	MaxRetries        int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	InitialBackoff    time.Duration `yaml:"initial_backoff,omitempty" json:"initial_backoff,omitempty"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier,omitempty" json:"backoff_multiplier,omitempty"`

	// RetryablePatterns are case-insensitive substrings matched against
	// the error text. Empty means the platform default list.
	RetryablePatterns []string `yaml:"retryable_patterns,omitempty" json:"retryable_patterns,omitempty"`
}

// Permission declares who may call a tool and how loudly it is audited.
type Permission struct {
	RequiredRoles []string `yaml:"required_roles,omitempty" json:"required_roles,omitempty"`
	AuditLevel    string   `yaml:"audit_level,omitempty" json:"audit_level,omitempty"`
}

// Definition is a tool's registered contract.
type Definition struct {
	Name        string            `yaml:"name" json:"name"`
	Kind        Kind              `yaml:"kind" json:"kind"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Parameters  []Parameter       `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retry       RetryPolicy       `yaml:"retry,omitempty" json:"retry,omitempty"`
	CacheTTL    time.Duration     `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
	Visibility  visibility.Config `yaml:"visibility,omitempty" json:"visibility,omitempty"`
	Permissions Permission        `yaml:"permissions,omitempty" json:"permissions,omitempty"`
}

var (
	toolNamePattern  = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	snakeCasePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// Validate checks the definition's structural invariants.
func (d *Definition) Validate() error {
	if !toolNamePattern.MatchString(d.Name) {
		return NewValidationError("", "tool name must be a lowercase identifier, got "+d.Name)
	}
	for _, p := range d.Parameters {
		if !snakeCasePattern.MatchString(p.Name) {
			return NewValidationError(d.Name, "parameter names must be snake_case, got "+p.Name)
		}
	}
	return nil
}

// Result is the outcome of one tool invocation.
type Result struct {
	Success  bool           `json:"success"`
	Value    map[string]any `json:"value,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
	Tokens   int            `json:"tokens,omitempty"`
	CostUSD  float64        `json:"cost_usd,omitempty"`
	Cached   bool           `json:"cached,omitempty"`
	Retries  int            `json:"retries,omitempty"`

	// TruncatableFields names Value keys the executor may shorten to fit
	// the context budget.
	TruncatableFields []string `json:"truncatable_fields,omitempty"`
}

// Chunk is one element of a streaming tool's output. The final chunk has
// Done set and carries the summary metadata.
type Chunk struct {
	Token        string `json:"token,omitempty"`
	Done         bool   `json:"done,omitempty"`
	Content      string `json:"content,omitempty"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
}

// Tool is a callable implementation paired with its definition.
type Tool interface {
	Info() Definition
	Execute(ctx context.Context, args map[string]any) (Result, error)
}

// StreamingTool produces a bounded sequence of chunks instead of a single
// result. The channel is closed after the Done chunk.
type StreamingTool interface {
	Tool
	ExecuteStreaming(ctx context.Context, args map[string]any) (<-chan Chunk, error)
}

// SkillScope restricts the executor to a skill's allowed tools for the
// duration of a skill run.
type SkillScope struct {
	SkillName string

	// AllowedTools is the whitelist; empty means the skill does not
	// restrict tools.
	AllowedTools []string
}

// Allows reports whether the scope permits calling the named tool.
func (s *SkillScope) Allows(name string) bool {
	if s == nil || len(s.AllowedTools) == 0 {
		return true
	}
	for _, allowed := range s.AllowedTools {
		if allowed == name {
			return true
		}
	}
	return false
}

// CallContext identifies the caller of a tool invocation and carries its
// budget constraints. The skill scope travels with the call rather than in
// package state so that concurrent tasks cannot observe each other's
// activations.
type CallContext struct {
	CorrelationID string
	TaskID        string
	AgentID       string
	TenantID      string
	ChainID       string

	// StepID is the chain step the invocation belongs to, threaded into
	// cost records.
	StepID string

	// ConversationID scopes the call to an ongoing thread; tools acting
	// on conversations (handoff) require it.
	ConversationID string

	Role visibility.Role

	Budget     cost.Budget
	MaxTokens  *int
	MaxCostUSD *float64

	Skill *SkillScope
}

type callContextKey struct{}

// WithCallContext attaches the invocation's call context so tools can
// read caller identity without a parameter on the Tool interface. The
// executor installs it before dispatch.
func WithCallContext(ctx context.Context, call CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, call)
}

// CallContextFromContext returns the call context installed by the
// executor, if any.
func CallContextFromContext(ctx context.Context) (CallContext, bool) {
	call, ok := ctx.Value(callContextKey{}).(CallContext)
	return call, ok
}
