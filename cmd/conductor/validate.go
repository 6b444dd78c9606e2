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

package main

import (
	"fmt"

	"github.com/conductor-ai/conductor/pkg/config"
)

// defaultConfigYAML is the zero-config setup used when no file is
// given: one provider resolved from the environment and one default
// agent.
const defaultConfigYAML = `
llms:
  default: {}
agents:
  assistant:
    instructions: You are a helpful assistant.
    default: true
`

// loadConfig reads the config file, or falls back to the zero-config
// default when no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load([]byte(defaultConfigYAML))
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("validate requires --config")
	}
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	fmt.Printf("%s is valid: %d agent(s), %d llm(s)\n", cli.Config, len(cfg.Agents), len(cfg.LLMs))
	return nil
}
