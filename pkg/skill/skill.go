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

// Package skill defines reusable instruction bundles with tool
// whitelists and the orchestrator that runs them through the reasoning
// loop.
package skill

import (
	"fmt"
	"time"

	"github.com/conductor-ai/conductor/pkg/registry"
)

const maxDescriptionLength = 1024

// ContextMode controls whether a skill runs inside the caller's
// execution context or forks a bounded sub-agent.
type ContextMode string

const (
	ContextInherit ContextMode = "inherit"
	ContextFork    ContextMode = "fork"
)

// ExecutionMode names the reasoning style a skill runs under. Only
// autonomous is supported.
type ExecutionMode string

const (
	ModeAutonomous ExecutionMode = "autonomous"

	// modeSimple is the legacy single-shot mode, rejected at construction.
	modeSimple ExecutionMode = "simple"
)

// Metadata describes a skill: its identity, its tool whitelist, and the
// per-run overrides it applies on top of platform defaults.
type Metadata struct {
	Name          string        `yaml:"name"`
	Description   string        `yaml:"description"`
	AllowedTools  []string      `yaml:"allowed_tools,omitempty"`
	ContextMode   ContextMode   `yaml:"context_mode,omitempty"`
	ExecutionMode ExecutionMode `yaml:"execution_mode,omitempty"`
	MaxIterations int           `yaml:"max_iterations,omitempty"`
	Model         string        `yaml:"model,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

// Skill bundles metadata with the instruction text and any supporting
// files.
type Skill struct {
	Metadata     Metadata
	Instructions string

	// BasePath anchors relative script and resource references.
	BasePath string
	Scripts  []string
}

// New validates the metadata and builds a skill.
func New(meta Metadata, instructions string) (*Skill, error) {
	if meta.Name == "" {
		return nil, fmt.Errorf("skill: name is required")
	}
	if len(meta.Description) > maxDescriptionLength {
		return nil, fmt.Errorf("skill %s: description exceeds %d characters", meta.Name, maxDescriptionLength)
	}
	switch meta.ContextMode {
	case "", ContextInherit, ContextFork:
	default:
		return nil, fmt.Errorf("skill %s: unknown context mode %q", meta.Name, meta.ContextMode)
	}
	switch meta.ExecutionMode {
	case "", ModeAutonomous:
	case modeSimple:
		return nil, fmt.Errorf("skill %s: execution mode %q is deprecated, use %q", meta.Name, modeSimple, ModeAutonomous)
	default:
		return nil, fmt.Errorf("skill %s: unknown execution mode %q", meta.Name, meta.ExecutionMode)
	}
	return &Skill{Metadata: meta, Instructions: instructions}, nil
}

// Index is the loaded skill catalog.
type Index struct {
	skills *registry.BaseRegistry[*Skill]
}

// NewIndex creates an empty skill index.
func NewIndex() *Index {
	return &Index{skills: registry.NewBaseRegistry[*Skill]()}
}

// Add registers a skill under its metadata name.
func (i *Index) Add(s *Skill) error {
	return i.skills.Register(s.Metadata.Name, s)
}

// Resolve looks a skill up by name.
func (i *Index) Resolve(name string) (*Skill, error) {
	s, ok := i.skills.Get(name)
	if !ok {
		return nil, NewError(CodeSkillNotFound, fmt.Sprintf("skill %q is not loaded", name))
	}
	return s, nil
}

// Names lists the loaded skill names sorted.
func (i *Index) Names() []string {
	return i.skills.Names()
}
