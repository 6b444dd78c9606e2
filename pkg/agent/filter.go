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

package agent

import (
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

// FilterStream applies the role's visibility policy to an event stream:
// hidden events are dropped, full events are demoted to summaries for
// summary-level roles, and credential-looking text is redacted. Done
// events always pass so the stream stays well-terminated.
func FilterStream(role visibility.Role, policy visibility.Policy, in <-chan Event) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		for ev := range in {
			if filtered, ok := FilterEvent(role, policy, ev); ok {
				out <- filtered
			}
		}
	}()
	return out
}

// FilterEvent resolves one event against the policy. The second return
// is false when the event must not be emitted to this role.
func FilterEvent(role visibility.Role, policy visibility.Policy, ev Event) (Event, bool) {
	if ev.Kind == EventDone {
		return ev, true
	}

	if ev.Kind == EventError {
		// Errors always surface; summary-level roles lose the details.
		if role.MaxLevel() != visibility.LevelFull {
			ev.Details = nil
			ev.Message = visibility.RedactText(ev.Message)
		}
		return ev, true
	}

	effective := policy.Resolve(ev.Visibility, string(ev.ToolKind), role)
	switch effective {
	case visibility.LevelHidden:
		return Event{}, false
	case visibility.LevelFull:
		return ev, true
	}

	demoted := ev.Visibility == visibility.LevelFull
	ev.Visibility = visibility.LevelSummary

	if demoted {
		ev.Message = summarize(ev)
		ev.Parts = nil
		if ev.Kind == EventMessage {
			ev.Parts = []a2a.Part{a2a.TextPart{Text: ev.Message}}
		}
	} else {
		ev.Message = visibility.RedactText(ev.Message)
		ev.Parts = redactParts(ev.Parts)
	}
	return ev, true
}

// summarize renders the short synthetic payload for a demoted event.
func summarize(ev Event) string {
	if ev.ToolName != "" {
		return visibility.RenderSummary(ev.SummaryTemplate, ev.ToolName)
	}
	return "Reasoning step"
}

func redactParts(parts []a2a.Part) []a2a.Part {
	if len(parts) == 0 {
		return parts
	}
	redacted := make([]a2a.Part, len(parts))
	for i, part := range parts {
		if tp, ok := part.(a2a.TextPart); ok {
			tp.Text = visibility.RedactText(tp.Text)
			redacted[i] = tp
			continue
		}
		redacted[i] = part
	}
	return redacted
}
