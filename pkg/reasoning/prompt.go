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

package reasoning

import (
	"fmt"
	"strings"

	"github.com/conductor-ai/conductor/pkg/tool"
)

const replyProtocol = `Respond with a single JSON object and nothing else. Fields:
  "thought": your reasoning about the next step (string, optional)
  "action": the name of one tool to call (string)
  "action_input": arguments for that tool (object)
  "final_answer": your answer to the user (string)
  "is_final": true when final_answer is your complete answer (boolean)

Every reply must either name an action or set is_final to true.
Do not wrap the JSON in prose. After each tool call you will receive an
Observation message with the result; use it to decide your next step.`

// BuildSystemPrompt assembles the loop's system prompt from the agent
// instructions and the tools visible to this call.
func BuildSystemPrompt(instructions string, defs []tool.Definition) string {
	var b strings.Builder

	if instructions != "" {
		b.WriteString(strings.TrimSpace(instructions))
		b.WriteString("\n\n")
	}

	if len(defs) > 0 {
		b.WriteString("Available tools:\n")
		for _, def := range defs {
			fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
			for _, p := range def.Parameters {
				required := ""
				if p.Required {
					required = ", required"
				}
				fmt.Fprintf(&b, "    %s (%s%s): %s\n", p.Name, p.Type, required, p.Description)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(replyProtocol)
	return b.String()
}
