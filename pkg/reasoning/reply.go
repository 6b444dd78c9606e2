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
	"encoding/json"
	"fmt"
	"strings"
)

// Reply is the structured answer the model must produce on every turn.
type Reply struct {
	Thought     string         `json:"thought,omitempty"`
	Action      string         `json:"action,omitempty"`
	ActionInput map[string]any `json:"action_input,omitempty"`
	FinalAnswer string         `json:"final_answer,omitempty"`
	IsFinal     bool           `json:"is_final"`
}

// ParseReply parses the model output into a Reply. Markdown code fences
// around the JSON are tolerated; anything else outside the object is not.
func ParseReply(raw string) (Reply, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return Reply{}, fmt.Errorf("empty response")
	}

	var reply Reply
	decoder := json.NewDecoder(strings.NewReader(text))
	if err := decoder.Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("response is not valid JSON: %w", err)
	}
	// Trailing prose after the object is a protocol violation too.
	if decoder.More() {
		return Reply{}, fmt.Errorf("trailing content after JSON object")
	}

	if !reply.IsFinal && reply.Action == "" {
		return Reply{}, fmt.Errorf("non-final reply must name an action")
	}
	if reply.Action != "" && reply.ActionInput == nil {
		reply.ActionInput = map[string]any{}
	}
	return reply, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		// Drop the language tag line (```json).
		text = text[idx+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
