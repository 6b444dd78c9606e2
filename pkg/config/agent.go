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

package config

import (
	"fmt"

	"github.com/conductor-ai/conductor/pkg/cost"
)

// AgentConfig declares one agent.
type AgentConfig struct {
	// Name is filled from the map key.
	Name string `yaml:"-" json:"-"`

	// LLM references a provider in the llms section.
	LLM string `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Provider reference"`

	// Instructions prefix the agent's system prompt.
	Instructions string `yaml:"instructions,omitempty" json:"instructions,omitempty" jsonschema:"title=Instructions"`

	// Skill routes the agent's reasoning through a named skill.
	Skill string `yaml:"skill,omitempty" json:"skill,omitempty" jsonschema:"title=Skill"`

	// MaxIterations caps the reasoning loop.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"title=Max Iterations,minimum=1,default=10"`

	// Budget caps spend per task.
	Budget cost.Budget `yaml:"budget,omitempty" json:"budget,omitempty" jsonschema:"title=Budget"`

	// Default marks the agent the master router falls back to.
	Default bool `yaml:"default,omitempty" json:"default,omitempty" jsonschema:"title=Default"`
}

func (c *AgentConfig) applyDefaults(defaults DefaultsConfig) {
	if c.LLM == "" {
		c.LLM = defaults.LLM
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = defaults.MaxIterations
	}
}

// Validate checks the configuration.
func (c *AgentConfig) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}
	return nil
}

// SkillsConfig locates skill definitions on disk.
type SkillsConfig struct {
	// Dir holds one subdirectory per skill with a SKILL.md file.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty" jsonschema:"title=Directory"`
}

// PromptsConfig configures the prompt composition engine.
type PromptsConfig struct {
	// Source is memory, file, or database.
	Source string `yaml:"source,omitempty" json:"source,omitempty" jsonschema:"title=Source,enum=memory,enum=file,enum=database,default=memory"`

	// Dir holds YAML prompt files for the file source.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty" jsonschema:"title=Directory"`

	// SystemScope selects the system-layer skeleton.
	SystemScope string `yaml:"system_scope,omitempty" json:"system_scope,omitempty" jsonschema:"title=System Scope,default=default"`

	// CacheSize bounds the in-process composed-prompt cache.
	CacheSize int `yaml:"cache_size,omitempty" json:"cache_size,omitempty" jsonschema:"title=Cache Size,minimum=1,default=1024"`
}

// SetDefaults applies default values.
func (c *PromptsConfig) SetDefaults() {
	if c.Source == "" {
		c.Source = "memory"
	}
	if c.SystemScope == "" {
		c.SystemScope = "default"
	}
	if c.CacheSize == 0 {
		c.CacheSize = 1024
	}
}

// Validate checks the configuration.
func (c *PromptsConfig) Validate() error {
	switch c.Source {
	case "memory", "file", "database":
	default:
		return fmt.Errorf("unknown prompt source %q", c.Source)
	}
	if c.Source == "file" && c.Dir == "" {
		return fmt.Errorf("prompt dir is required for the file source")
	}
	return nil
}
