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
	"errors"
	"fmt"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/conductor-ai/conductor/pkg/registry"
	"github.com/conductor-ai/conductor/pkg/tool"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

// eventBuffer is the stream channel capacity; it provides back-pressure
// against producers that outrun the consumer.
const eventBuffer = 64

// Engine runs agents as streaming tasks. It owns the stream state
// machine: every stream opens with status(working) and closes with
// exactly one done event carrying the final state.
type Engine struct {
	agents *registry.BaseRegistry[Agent]
	logger *slog.Logger
}

// NewEngine creates an engine with an empty agent registry.
func NewEngine() *Engine {
	return &Engine{
		agents: registry.NewBaseRegistry[Agent](),
		logger: slog.Default(),
	}
}

// RegisterAgent adds an agent under its id.
func (e *Engine) RegisterAgent(a Agent) error {
	return e.agents.Register(a.ID(), a)
}

// Agent resolves an agent by id.
func (e *Engine) Agent(id string) (Agent, error) {
	a, ok := e.agents.Get(id)
	if !ok {
		return nil, NewError(CodeAgentNotFound, fmt.Sprintf("agent %q is not registered", id))
	}
	return a, nil
}

// AgentIDs lists registered agent ids sorted.
func (e *Engine) AgentIDs() []string {
	return e.agents.Names()
}

// ProcessTask runs the task on the named agent and returns its event
// stream. The stream is finite and non-restartable; it is closed after
// the done event.
func (e *Engine) ProcessTask(ctx context.Context, agentID string, task *Task) (<-chan Event, error) {
	a, err := e.Agent(agentID)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)

		em := &emitter{ctx: ctx, out: out, taskID: task.ID}

		if err := task.Transition(a2a.TaskStateWorking); err != nil {
			em.send(NewErrorEvent(task.ID, CodeProcessingError, err.Error(), nil))
			em.send(NewDoneEvent(task.ID, a2a.TaskStateFailed))
			return
		}
		em.send(NewStatusEvent(task.ID, a2a.TaskStateWorking, "", visibility.LevelSummary))

		// The agent_call tool reaches the engine through this per-task
		// caller rather than a direct dependency.
		runCtx := tool.WithAgentCaller(ctx, NewCaller(e, task, em.send))

		runErr := a.Run(runCtx, task, em.send)
		em.closePartial()

		final := a2a.TaskStateCompleted
		switch {
		case runErr == nil:
		case errors.Is(runErr, context.Canceled):
			final = a2a.TaskStateCanceled
		default:
			final = a2a.TaskStateFailed
			em.send(NewErrorEvent(task.ID, errorCode(runErr), runErr.Error(), nil))
			e.logger.Error("task failed",
				"task_id", task.ID, "agent_id", agentID, "error", runErr)
		}

		if err := task.Transition(final); err != nil {
			e.logger.Error("illegal final transition", "task_id", task.ID, "error", err)
		}
		em.send(NewDoneEvent(task.ID, final))
	}()
	return out, nil
}

// emitter serializes event delivery for one task and tracks the open
// partial-message sequence so the engine can close it before done.
type emitter struct {
	ctx         context.Context
	out         chan<- Event
	taskID      string
	openPartial bool
}

func (em *emitter) send(ev Event) {
	if ev.Kind == EventMessage {
		em.openPartial = ev.IsPartial
	}
	select {
	case em.out <- ev:
		return
	default:
	}
	select {
	case em.out <- ev:
	case <-em.ctx.Done():
		// The consumer is gone; drop instead of leaking the producer.
	}
}

// closePartial terminates a dangling partial sequence with an empty
// final message.
func (em *emitter) closePartial() {
	if em.openPartial {
		em.send(NewMessageEvent(em.taskID, "", false, visibility.LevelSummary))
	}
}
