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
	"context"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

// scriptedAgent runs an arbitrary function as its task body.
type scriptedAgent struct {
	id  string
	run func(ctx context.Context, task *Task, emit func(Event)) error
}

func (s *scriptedAgent) ID() string { return s.id }

func (s *scriptedAgent) Run(ctx context.Context, task *Task, emit func(Event)) error {
	return s.run(ctx, task, emit)
}

func collect(t *testing.T, stream <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range stream {
		events = append(events, ev)
	}
	return events
}

func TestEngine_StreamShape(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.RegisterAgent(&scriptedAgent{
		id: "worker",
		run: func(_ context.Context, task *Task, emit func(Event)) error {
			emit(NewMessageEvent(task.ID, "hello", false, visibility.LevelSummary))
			return nil
		},
	}))

	task := NewTask("tenant-a", "user-1", "hi")
	stream, err := engine.ProcessTask(context.Background(), "worker", task)
	require.NoError(t, err)

	events := collect(t, stream)
	require.NotEmpty(t, events)

	assert.Equal(t, EventStatus, events[0].Kind)
	assert.Equal(t, a2a.TaskStateWorking, events[0].State)

	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Kind)
	assert.Equal(t, a2a.TaskStateCompleted, last.State)

	doneCount := 0
	for _, ev := range events {
		if ev.Kind == EventDone {
			doneCount++
		}
	}
	assert.Equal(t, 1, doneCount, "exactly one done event")
	assert.Equal(t, a2a.TaskStateCompleted, task.State)
}

func TestEngine_UnknownAgent(t *testing.T) {
	engine := NewEngine()
	_, err := engine.ProcessTask(context.Background(), "ghost", NewTask("tenant-a", "user-1", "hi"))
	require.Error(t, err)
	assert.Equal(t, CodeAgentNotFound, errorCode(err))
}

func TestEngine_FailureEmitsErrorThenDone(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.RegisterAgent(&scriptedAgent{
		id: "broken",
		run: func(context.Context, *Task, func(Event)) error {
			return NewError(CodeProcessingError, "boom")
		},
	}))

	task := NewTask("tenant-a", "user-1", "hi")
	stream, err := engine.ProcessTask(context.Background(), "broken", task)
	require.NoError(t, err)

	events := collect(t, stream)
	require.GreaterOrEqual(t, len(events), 3)

	errEvent := events[len(events)-2]
	assert.Equal(t, EventError, errEvent.Kind)
	assert.Equal(t, CodeProcessingError, errEvent.Code)

	done := events[len(events)-1]
	assert.Equal(t, EventDone, done.Kind)
	assert.Equal(t, a2a.TaskStateFailed, done.State)
}

func TestEngine_CancellationEndsWithDoneCancelled(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.RegisterAgent(&scriptedAgent{
		id: "sleeper",
		run: func(ctx context.Context, _ *Task, _ func(Event)) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	task := NewTask("tenant-a", "user-1", "hi")
	stream, err := engine.ProcessTask(ctx, "sleeper", task)
	require.NoError(t, err)
	cancel()

	events := collect(t, stream)
	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Kind)
	assert.Equal(t, a2a.TaskStateCanceled, last.State)
}

func TestEngine_OpenPartialSequenceClosedBeforeDone(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.RegisterAgent(&scriptedAgent{
		id: "partial",
		run: func(_ context.Context, task *Task, emit func(Event)) error {
			emit(NewMessageEvent(task.ID, "chunk one ", true, visibility.LevelSummary))
			emit(NewMessageEvent(task.ID, "chunk two", true, visibility.LevelSummary))
			return nil
		},
	}))

	task := NewTask("tenant-a", "user-1", "hi")
	stream, err := engine.ProcessTask(context.Background(), "partial", task)
	require.NoError(t, err)

	events := collect(t, stream)
	var lastMessage Event
	for _, ev := range events {
		if ev.Kind == EventMessage {
			lastMessage = ev
		}
	}
	assert.False(t, lastMessage.IsPartial, "partial sequence must close before done")
}

func TestTask_Transitions(t *testing.T) {
	task := NewTask("tenant-a", "user-1", "hi")
	require.NoError(t, task.Transition(a2a.TaskStateWorking))
	require.NoError(t, task.Transition(a2a.TaskStateInputRequired))
	require.NoError(t, task.Transition(a2a.TaskStateWorking))
	require.NoError(t, task.Transition(a2a.TaskStateCompleted))

	// Terminal states are absorbing.
	assert.Error(t, task.Transition(a2a.TaskStateWorking))
	assert.Error(t, task.Transition(a2a.TaskStateFailed))
}

func TestNewChildTask(t *testing.T) {
	parent := NewTask("tenant-a", "user-1", "first")
	parent.ConversationID = "conv-1"
	for i := 0; i < 10; i++ {
		parent.AddMessage(agentMessage("reply"))
	}

	child := NewChildTask(parent, "delegated request")
	assert.Equal(t, parent.ID, child.ParentTaskID)
	assert.Equal(t, parent.TenantID, child.TenantID)
	assert.Equal(t, parent.UserID, child.UserID)
	assert.Equal(t, "conv-1", child.ConversationID)
	// Five context messages plus the new request.
	assert.Len(t, child.Messages, 6)
	assert.Equal(t, "delegated request", messageText(child.Messages[5]))
}
