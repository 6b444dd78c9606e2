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
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/conductor-ai/conductor/pkg/tool"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

// Kind tags a task stream event.
type Kind string

const (
	EventStatus   Kind = "status"
	EventMessage  Kind = "message"
	EventArtifact Kind = "artifact"
	EventDone     Kind = "done"
	EventError    Kind = "error"
)

// Event is one element of a task's finite output stream. Every event
// carries the task id, a timestamp, and a visibility level.
type Event struct {
	Kind       Kind             `json:"kind"`
	TaskID     string           `json:"task_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Visibility visibility.Level `json:"visibility"`

	// status and done events.
	State a2a.TaskState `json:"state,omitempty"`

	// Message is the optional status text, the error message, or the
	// summary text of a demoted event.
	Message string `json:"message,omitempty"`

	// message events.
	Parts     []a2a.Part `json:"parts,omitempty"`
	IsPartial bool       `json:"is_partial,omitempty"`

	// artifact events.
	Artifact *a2a.Artifact `json:"artifact,omitempty"`

	// error events.
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`

	// ToolName and ToolKind are set on events derived from tool activity
	// so the visibility filter can apply per-kind rules and render
	// summaries.
	ToolName string    `json:"tool_name,omitempty"`
	ToolKind tool.Kind `json:"tool_kind,omitempty"`

	// SummaryTemplate is the tool's configured summary rendering; it is
	// filter configuration, not payload, and never serializes.
	SummaryTemplate string `json:"-"`
}

func newEvent(kind Kind, taskID string, vis visibility.Level) Event {
	if vis == "" {
		vis = visibility.LevelSummary
	}
	return Event{
		Kind:       kind,
		TaskID:     taskID,
		Timestamp:  time.Now().UTC(),
		Visibility: vis,
	}
}

// NewStatusEvent reports a state change with optional human-readable
// detail.
func NewStatusEvent(taskID string, state a2a.TaskState, message string, vis visibility.Level) Event {
	ev := newEvent(EventStatus, taskID, vis)
	ev.State = state
	ev.Message = message
	return ev
}

// NewMessageEvent carries agent output text. Partial messages stream a
// single logical message across several events; the last one has
// IsPartial=false.
func NewMessageEvent(taskID string, text string, partial bool, vis visibility.Level) Event {
	ev := newEvent(EventMessage, taskID, vis)
	ev.Parts = []a2a.Part{a2a.TextPart{Text: text}}
	ev.IsPartial = partial
	return ev
}

// NewArtifactEvent carries a produced artifact.
func NewArtifactEvent(taskID string, artifact *a2a.Artifact, vis visibility.Level) Event {
	ev := newEvent(EventArtifact, taskID, vis)
	ev.Artifact = artifact
	return ev
}

// NewDoneEvent terminates a stream with the task's final state.
func NewDoneEvent(taskID string, state a2a.TaskState) Event {
	ev := newEvent(EventDone, taskID, visibility.LevelSummary)
	ev.State = state
	return ev
}

// NewErrorEvent reports a failure with its stable code.
func NewErrorEvent(taskID string, code, message string, details map[string]any) Event {
	ev := newEvent(EventError, taskID, visibility.LevelSummary)
	ev.Code = code
	ev.Message = message
	ev.Details = details
	return ev
}

// Text assembles the plain text of a message event.
func (e Event) Text() string {
	var out string
	for _, part := range e.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			out += tp.Text
		}
	}
	return out
}
