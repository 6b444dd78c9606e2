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

package skill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/conductor-ai/conductor/pkg/chain"
	"github.com/conductor-ai/conductor/pkg/reasoning"
	"github.com/conductor-ai/conductor/pkg/tool"
)

const (
	defaultMaxDepth           = 3
	defaultMinChildIterations = 2
)

// Options tune the orchestrator.
type Options struct {
	// Defaults are the platform reasoning settings a skill overlays.
	Defaults reasoning.Config

	// MaxDepth bounds fork-mode nesting; 0 means the default of 3.
	MaxDepth int

	// MinChildIterations floors the halved iteration budget of a forked
	// run; 0 means the default of 2.
	MinChildIterations int
}

func (o *Options) setDefaults() {
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultMaxDepth
	}
	if o.MinChildIterations <= 0 {
		o.MinChildIterations = defaultMinChildIterations
	}
}

// Run describes one skill invocation.
type Run struct {
	SkillName    string
	Conversation []reasoning.Turn

	// Depth is the caller's fork depth; a fork-mode skill runs at
	// Depth+1.
	Depth int

	Notify func(reasoning.Notification)
}

// Orchestrator resolves skills, overlays their config, scopes the tool
// registry to their whitelist, and drives the reasoning loop.
type Orchestrator struct {
	index  *Index
	engine *reasoning.Engine
	opts   Options
	logger *slog.Logger
}

// NewOrchestrator creates an orchestrator over the loaded index.
func NewOrchestrator(index *Index, engine *reasoning.Engine, opts Options) *Orchestrator {
	opts.setDefaults()
	return &Orchestrator{
		index:  index,
		engine: engine,
		opts:   opts,
		logger: slog.Default(),
	}
}

// Execute runs the named skill and returns its final answer.
//
// The skill's whitelist is installed on the call context for the
// duration of the run; the context is passed by value, so the scope
// cannot leak past return regardless of how the run ends.
func (o *Orchestrator) Execute(ctx context.Context, call tool.CallContext, recorder *chain.Recorder, run Run) (string, error) {
	sk, err := o.index.Resolve(run.SkillName)
	if err != nil {
		return "", err
	}

	cfg := o.effectiveConfig(sk)

	if sk.Metadata.ContextMode == ContextFork {
		depth := run.Depth + 1
		if depth > o.opts.MaxDepth {
			return "", NewError(CodeSubAgentDepthExceeded,
				fmt.Sprintf("skill %q would fork to depth %d, max is %d", sk.Metadata.Name, depth, o.opts.MaxDepth))
		}
		cfg.MaxIterations = cfg.MaxIterations / 2
		if cfg.MaxIterations < o.opts.MinChildIterations {
			cfg.MaxIterations = o.opts.MinChildIterations
		}
		o.logger.Info("forking skill run",
			"skill", sk.Metadata.Name, "depth", depth, "max_iterations", cfg.MaxIterations)
	}

	call.Skill = &tool.SkillScope{
		SkillName:    sk.Metadata.Name,
		AllowedTools: sk.Metadata.AllowedTools,
	}

	return o.engine.Run(ctx, call, recorder, run.Conversation, cfg, run.Notify)
}

// effectiveConfig overlays the skill's metadata on the platform
// defaults.
func (o *Orchestrator) effectiveConfig(sk *Skill) reasoning.Config {
	cfg := o.opts.Defaults
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if sk.Metadata.MaxIterations > 0 {
		cfg.MaxIterations = sk.Metadata.MaxIterations
	}
	if sk.Metadata.Model != "" {
		cfg.Model = sk.Metadata.Model
	}

	parts := make([]string, 0, 2)
	if text := strings.TrimSpace(sk.Instructions); text != "" {
		parts = append(parts, text)
	}
	if text := strings.TrimSpace(cfg.Instructions); text != "" {
		parts = append(parts, text)
	}
	cfg.Instructions = strings.Join(parts, "\n\n")
	return cfg
}
