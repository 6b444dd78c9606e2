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

// Package config loads and validates the YAML configuration. String
// values support ${VAR} and ${VAR:-default} environment expansion.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server        ServerConfig            `yaml:"server,omitempty" json:"server,omitempty"`
	Logging       LoggingConfig           `yaml:"logging,omitempty" json:"logging,omitempty"`
	Database      DatabaseConfig          `yaml:"database,omitempty" json:"database,omitempty"`
	Redis         RedisConfig             `yaml:"redis,omitempty" json:"redis,omitempty"`
	Observability ObservabilityConfig     `yaml:"observability,omitempty" json:"observability,omitempty"`
	LLMs          map[string]*LLMConfig   `yaml:"llms,omitempty" json:"llms,omitempty"`
	Agents        map[string]*AgentConfig `yaml:"agents,omitempty" json:"agents,omitempty"`
	Skills        SkillsConfig            `yaml:"skills,omitempty" json:"skills,omitempty"`
	Prompts       PromptsConfig           `yaml:"prompts,omitempty" json:"prompts,omitempty"`
	Defaults      DefaultsConfig          `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// DefaultsConfig fills agent fields left unset.
type DefaultsConfig struct {
	// LLM names the provider agents use when they name none.
	LLM string `yaml:"llm,omitempty" json:"llm,omitempty"`

	// MaxIterations caps reasoning loops for agents without their own cap.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// SetDefaults applies defaults recursively.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Database.SetDefaults()
	c.Redis.SetDefaults()
	c.Observability.SetDefaults()
	c.Prompts.SetDefaults()

	for _, llm := range c.LLMs {
		if llm != nil {
			llm.SetDefaults()
		}
	}

	if c.Defaults.MaxIterations == 0 {
		c.Defaults.MaxIterations = 10
	}
	if c.Defaults.LLM == "" && len(c.LLMs) == 1 {
		for name := range c.LLMs {
			c.Defaults.LLM = name
		}
	}
	for name, agent := range c.Agents {
		if agent == nil {
			continue
		}
		agent.Name = name
		agent.applyDefaults(c.Defaults)
	}
}

// Validate checks the whole document. SetDefaults must run first.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Prompts.Validate(); err != nil {
		return err
	}

	for name, llm := range c.LLMs {
		if llm == nil {
			return fmt.Errorf("llm %q: empty configuration", name)
		}
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm %q: %w", name, err)
		}
	}

	defaultAgents := 0
	for name, agent := range c.Agents {
		if agent == nil {
			return fmt.Errorf("agent %q: empty configuration", name)
		}
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
		if agent.LLM != "" {
			if _, ok := c.LLMs[agent.LLM]; !ok {
				return fmt.Errorf("agent %q references unknown llm %q", name, agent.LLM)
			}
		}
		if agent.Default {
			defaultAgents++
		}
	}
	if defaultAgents > 1 {
		return fmt.Errorf("at most one agent may be marked default, found %d", defaultAgents)
	}
	return nil
}

// LoadFromFile reads, env-expands, defaults, and validates a config.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Load(raw)
}

// Load parses raw YAML into a validated Config.
func Load(raw []byte) (*Config, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	expanded, err := yaml.Marshal(ExpandEnvVarsInData(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BoolPtr returns a pointer to b, for optional boolean fields.
func BoolPtr(b bool) *bool { return &b }
