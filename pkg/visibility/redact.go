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

package visibility

import (
	"fmt"
	"regexp"
	"strings"
)

// Redacted replaces sensitive values in emitted payloads.
const Redacted = "[REDACTED]"

// credentialPattern matches `key: value` or `key=value` assignments for
// common credential names, with or without quotes around the value.
var credentialPattern = regexp.MustCompile(`(?i)(api[_-]?key|password|secret|token)\s*[:=]\s*"?[^"\s]+"?`)

// RedactText masks credential assignments inside free text, preserving the
// key name so the reader still knows what was removed.
func RedactText(text string) string {
	return credentialPattern.ReplaceAllStringFunc(text, func(match string) string {
		sep := strings.IndexAny(match, ":=")
		if sep < 0 {
			return Redacted
		}
		key := strings.TrimSpace(match[:sep])
		return fmt.Sprintf("%s=%s", key, Redacted)
	})
}

// RedactFields returns a copy of value with every field named in sensitive
// replaced by the redaction marker, recursing through nested maps and
// slices. The input is never mutated.
func RedactFields(value map[string]any, sensitive []string) map[string]any {
	if len(value) == 0 {
		return value
	}

	names := make(map[string]struct{}, len(sensitive))
	for _, name := range sensitive {
		names[strings.ToLower(name)] = struct{}{}
	}
	if len(names) == 0 {
		return value
	}

	redacted, _ := redactValue(value, names).(map[string]any)
	return redacted
}

func redactValue(value any, sensitive map[string]struct{}) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if _, hit := sensitive[strings.ToLower(key)]; hit {
				out[key] = Redacted
				continue
			}
			out[key] = redactValue(val, sensitive)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue(item, sensitive)
		}
		return out
	default:
		return value
	}
}

// SummarizeToolCall renders the summary form of a tool invocation.
func SummarizeToolCall(toolName string) string {
	return fmt.Sprintf("Called %s", toolName)
}

// RenderSummary renders a tool's configured summary template,
// substituting the {tool} placeholder. An empty template falls back to
// the default rendering.
func RenderSummary(template, toolName string) string {
	if template == "" {
		return SummarizeToolCall(toolName)
	}
	return strings.ReplaceAll(template, "{tool}", toolName)
}

// SummarizeToolResult renders the summary form of a tool outcome.
func SummarizeToolResult(toolName string, success bool) string {
	if success {
		return fmt.Sprintf("Tool %s succeeded", toolName)
	}
	return fmt.Sprintf("Tool %s failed", toolName)
}

// SummarizeStep renders the summary form of a reasoning step.
func SummarizeStep(number int) string {
	return fmt.Sprintf("Reasoning step #%d", number)
}
