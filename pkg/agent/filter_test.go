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
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/tool"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

func TestFilterEvent(t *testing.T) {
	policy := visibility.DefaultPolicy()

	t.Run("hidden never emitted", func(t *testing.T) {
		ev := NewStatusEvent("t1", a2a.TaskStateWorking, "secret step", visibility.LevelHidden)
		_, ok := FilterEvent(visibility.RoleAdmin, policy, ev)
		assert.False(t, ok)
	})

	t.Run("full passes raw to developers", func(t *testing.T) {
		ev := NewStatusEvent("t1", a2a.TaskStateWorking, "thinking about api_key: sk-999", visibility.LevelFull)
		got, ok := FilterEvent(visibility.RoleDeveloper, policy, ev)
		require.True(t, ok)
		assert.Contains(t, got.Message, "sk-999")
	})

	t.Run("full demoted to summary for end users", func(t *testing.T) {
		ev := NewStatusEvent("t1", a2a.TaskStateWorking, "internal deliberation", visibility.LevelFull)
		got, ok := FilterEvent(visibility.RoleEndUser, policy, ev)
		require.True(t, ok)
		assert.Equal(t, visibility.LevelSummary, got.Visibility)
		assert.Equal(t, "Reasoning step", got.Message)
	})

	t.Run("demoted tool event renders a tool summary", func(t *testing.T) {
		ev := NewStatusEvent("t1", a2a.TaskStateWorking, "raw args", visibility.LevelFull)
		ev.ToolName = "calculator"
		got, ok := FilterEvent(visibility.RoleEndUser, policy, ev)
		require.True(t, ok)
		assert.Equal(t, "Called calculator", got.Message)
	})

	t.Run("demoted tool event renders the configured template", func(t *testing.T) {
		ev := NewStatusEvent("t1", a2a.TaskStateWorking, "raw args", visibility.LevelFull)
		ev.ToolName = "weather"
		ev.SummaryTemplate = "Checked the forecast via {tool}"
		got, ok := FilterEvent(visibility.RoleEndUser, policy, ev)
		require.True(t, ok)
		assert.Equal(t, "Checked the forecast via weather", got.Message)
	})

	t.Run("credentials redacted in summary text", func(t *testing.T) {
		ev := NewMessageEvent("t1", `config has api_key: "sk-12345" inside`, false, visibility.LevelSummary)
		got, ok := FilterEvent(visibility.RoleEndUser, policy, ev)
		require.True(t, ok)
		assert.NotContains(t, got.Text(), "sk-12345")
		assert.Contains(t, got.Text(), "[REDACTED]")
	})

	t.Run("error details stripped for end users", func(t *testing.T) {
		ev := NewErrorEvent("t1", "tool_execution_error", "boom", map[string]any{"stack": "deep"})
		got, ok := FilterEvent(visibility.RoleEndUser, policy, ev)
		require.True(t, ok)
		assert.Nil(t, got.Details)

		got, ok = FilterEvent(visibility.RoleDeveloper, policy, ev)
		require.True(t, ok)
		assert.NotNil(t, got.Details)
	})

	t.Run("done always passes", func(t *testing.T) {
		ev := NewDoneEvent("t1", a2a.TaskStateCompleted)
		_, ok := FilterEvent(visibility.RoleEndUser, policy, ev)
		assert.True(t, ok)
	})
}

func TestFilterEvent_KindOverride(t *testing.T) {
	policy := visibility.DefaultPolicy()
	policy.KindOverrides = map[string]visibility.Level{
		string(tool.KindBash): visibility.LevelHidden,
	}

	ev := NewStatusEvent("t1", a2a.TaskStateWorking, "ran a script", visibility.LevelSummary)
	ev.ToolKind = tool.KindBash
	_, ok := FilterEvent(visibility.RoleEndUser, policy, ev)
	assert.False(t, ok)
}

func TestFilterStream(t *testing.T) {
	policy := visibility.DefaultPolicy()
	in := make(chan Event, 4)
	in <- NewStatusEvent("t1", a2a.TaskStateWorking, "hidden", visibility.LevelHidden)
	in <- NewMessageEvent("t1", "visible", false, visibility.LevelSummary)
	in <- NewDoneEvent("t1", a2a.TaskStateCompleted)
	close(in)

	var kinds []Kind
	for ev := range FilterStream(visibility.RoleEndUser, policy, in) {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []Kind{EventMessage, EventDone}, kinds)
}
