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

// Package visibility defines who may observe reasoning steps and task
// events, and how payloads are redacted before they cross that boundary.
package visibility

// Level controls how much of a step or event a viewer may see.
type Level string

const (
	// LevelFull exposes the complete payload.
	LevelFull Level = "full"

	// LevelSummary exposes a short synthetic rendering.
	LevelSummary Level = "summary"

	// LevelHidden suppresses the item entirely. Hidden is irrevocable:
	// no role ever observes a hidden item.
	LevelHidden Level = "hidden"
)

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	switch l {
	case LevelFull, LevelSummary, LevelHidden:
		return true
	}
	return false
}

// Role identifies the viewer class consuming an event stream.
type Role string

const (
	RoleEndUser   Role = "end_user"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// MaxLevel returns the most detailed level the role may observe.
// Unknown or empty roles are treated as end users.
func (r Role) MaxLevel() Level {
	switch r {
	case RoleDeveloper, RoleAdmin:
		return LevelFull
	default:
		return LevelSummary
	}
}

// Config is a tool definition's visibility contract: the default level for
// its steps, an optional template for summary rendering, and the result
// field names that must never leave the process unredacted.
type Config struct {
	DefaultLevel    Level    `yaml:"default_level,omitempty" json:"default_level,omitempty"`
	SummaryTemplate string   `yaml:"summary_template,omitempty" json:"summary_template,omitempty"`
	SensitiveFields []string `yaml:"sensitive_fields,omitempty" json:"sensitive_fields,omitempty"`
}

// Policy resolves the effective level for an item. Precedence: the item's
// own level (hidden always wins), then a per-tool-kind demotion, then a
// per-role rule, then the default.
type Policy struct {
	// KindOverrides demotes all steps of a tool kind, e.g. every
	// "function" tool call hidden for end users.
	KindOverrides map[string]Level

	// RoleOverrides sets the level emitted to a given role when the item
	// itself does not decide.
	RoleOverrides map[Role]Level

	// Default applies when nothing else matches.
	Default Level
}

// DefaultPolicy returns the platform policy: end users see summaries,
// operators see everything.
func DefaultPolicy() Policy {
	return Policy{
		RoleOverrides: map[Role]Level{
			RoleEndUser:   LevelSummary,
			RoleDeveloper: LevelFull,
			RoleAdmin:     LevelFull,
		},
		Default: LevelSummary,
	}
}

// Resolve returns the level at which an item with the given own level and
// tool kind is emitted to role, or LevelHidden when it must be suppressed.
func (p Policy) Resolve(own Level, toolKind string, role Role) Level {
	if own == LevelHidden {
		return LevelHidden
	}

	if toolKind != "" {
		if lvl, ok := p.KindOverrides[toolKind]; ok && lvl == LevelHidden {
			return LevelHidden
		}
	}

	// An item claiming full detail is demoted when the viewer's role
	// does not carry full visibility.
	if own == LevelFull && role.MaxLevel() != LevelFull {
		return LevelSummary
	}
	if own != "" && own.Valid() {
		return own
	}

	if toolKind != "" {
		if lvl, ok := p.KindOverrides[toolKind]; ok {
			return lvl
		}
	}
	if lvl, ok := p.RoleOverrides[role]; ok {
		return lvl
	}
	if p.Default.Valid() {
		return p.Default
	}
	return LevelSummary
}
