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
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/conductor-ai/conductor/pkg/config"
)

// SchemaCmd writes the configuration JSON Schema to stdout, for
// editor completion and config tooling.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Inline definitions so consumers do not need $ref resolution.
		DoNotReference: true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "Conductor Configuration"
	schema.Description = "Configuration schema for the conductor agent platform."
	schema.Version = "http://json-schema.org/draft-07/schema#"

	var (
		out []byte
		err error
	)
	if c.Compact {
		out, err = json.Marshal(schema)
	} else {
		out, err = json.MarshalIndent(schema, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
