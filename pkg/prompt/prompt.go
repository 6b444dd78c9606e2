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

// Package prompt assembles layered prompt templates. The system layer
// owns the skeleton with named merge-point markers; tenant, feature and
// agent layers contribute content into those points. Composition renders
// variables and fronts the result with a two-tier cache.
package prompt

import (
	"fmt"
	"time"
)

// Layer identifies where a prompt sits in the composition stack.
// Higher-ranked layers override lower ones where the merge behavior
// allows it.
type Layer string

const (
	LayerSystem  Layer = "system"
	LayerTenant  Layer = "tenant"
	LayerFeature Layer = "feature"
	LayerAgent   Layer = "agent"
)

// layerRank orders layers from base to most specific.
func layerRank(l Layer) int {
	switch l {
	case LayerSystem:
		return 0
	case LayerTenant:
		return 1
	case LayerFeature:
		return 2
	case LayerAgent:
		return 3
	}
	return -1
}

// Behavior controls how contributions combine at a merge point.
type Behavior string

const (
	BehaviorAppend  Behavior = "append"
	BehaviorPrepend Behavior = "prepend"
	BehaviorReplace Behavior = "replace"
	BehaviorInject  Behavior = "inject"
)

// ReservedUserInput is the merge point that receives the sanitized user
// input. Layers may not contribute to it.
const ReservedUserInput = "user_input"

// MergePoint declares a named insertion point. On the system layer it
// defines the point's behavior and flags; on higher layers it names the
// point the prompt's template contributes to. A higher layer may also
// set Locked to seal the point against layers above itself.
type MergePoint struct {
	Name     string   `json:"name" yaml:"name"`
	Behavior Behavior `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Locked   bool     `json:"locked,omitempty" yaml:"locked,omitempty"`
	Required bool     `json:"required,omitempty" yaml:"required,omitempty"`
}

// Prompt is one versioned template at a layer. ScopeID is the identity
// within the layer: the agent id for agent prompts, the feature id for
// feature prompts, the tenant id for tenant prompts, and a fixed scope
// (usually "default") for the system skeleton.
type Prompt struct {
	Layer       Layer          `json:"layer" yaml:"layer"`
	ScopeID     string         `json:"scope_id" yaml:"scope_id"`
	Name        string         `json:"name" yaml:"name"`
	Template    string         `json:"template" yaml:"template"`
	MergePoints []MergePoint   `json:"merge_points,omitempty" yaml:"merge_points,omitempty"`
	Variables   map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	TenantID    string         `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Version     int            `json:"version" yaml:"version"`
	CreatedAt   time.Time      `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Validate checks the prompt's structural invariants.
func (p *Prompt) Validate() error {
	if layerRank(p.Layer) < 0 {
		return NewError(CodePromptValidationError, "unknown layer %q", p.Layer)
	}
	if p.ScopeID == "" {
		return NewError(CodePromptValidationError, "scope id is required")
	}
	if p.Version < 0 {
		return NewError(CodePromptValidationError, "version must not be negative")
	}
	seen := make(map[string]bool, len(p.MergePoints))
	for _, mp := range p.MergePoints {
		if mp.Name == "" {
			return NewError(CodePromptValidationError, "merge point without a name in %s/%s", p.Layer, p.ScopeID)
		}
		if seen[mp.Name] {
			return NewError(CodePromptValidationError, "duplicate merge point %q in %s/%s", mp.Name, p.Layer, p.ScopeID)
		}
		seen[mp.Name] = true
		if mp.Name == ReservedUserInput && p.Layer != LayerSystem {
			return NewError(CodePromptValidationError, "merge point %q is reserved", ReservedUserInput)
		}
		switch mp.Behavior {
		case "", BehaviorAppend, BehaviorPrepend, BehaviorReplace, BehaviorInject:
		default:
			return NewError(CodePromptValidationError, "unknown merge behavior %q for point %q", mp.Behavior, mp.Name)
		}
	}
	return nil
}

// VersionRef renders the identity used in cache keys, e.g. "billing:v3".
func (p *Prompt) VersionRef() string {
	return fmt.Sprintf("%s:v%d", p.ScopeID, p.Version)
}

// ComposedPrompt is the output of one composition run.
type ComposedPrompt struct {
	Text          string           `json:"text"`
	LayerVersions map[Layer]string `json:"layer_versions"`
	ComposedAt    time.Time        `json:"composed_at"`
	CacheKey      string           `json:"cache_key,omitempty"`
}
