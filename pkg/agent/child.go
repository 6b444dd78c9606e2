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
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// Caller dispatches delegated requests into child tasks. It implements
// the delegation tool's contract: the child's message text comes back as
// a single string, and the child's events surface on the parent stream
// relabelled with the parent's task id.
type Caller struct {
	engine *Engine
	parent *Task

	// emit forwards relabelled child events upstream; nil discards them.
	emit func(Event)
}

// NewCaller creates a caller for the parent task.
func NewCaller(engine *Engine, parent *Task, emit func(Event)) *Caller {
	return &Caller{engine: engine, parent: parent, emit: emit}
}

// AgentIDs lists the agents available for delegation.
func (c *Caller) AgentIDs() []string {
	return c.engine.AgentIDs()
}

// CallAgent runs message as a child task on the named agent and returns
// the child's assembled response text.
func (c *Caller) CallAgent(ctx context.Context, agentID string, message string) (string, error) {
	child := NewChildTask(c.parent, message)
	stream, err := c.engine.ProcessTask(ctx, agentID, child)
	if err != nil {
		return "", err
	}

	var (
		response strings.Builder
		lastErr  Event
	)
	for ev := range stream {
		switch ev.Kind {
		case EventMessage:
			response.WriteString(ev.Text())
		case EventError:
			lastErr = ev
		case EventDone:
			switch ev.State {
			case a2a.TaskStateCompleted:
				return response.String(), nil
			case a2a.TaskStateCanceled:
				return "", context.Canceled
			default:
				if lastErr.Code != "" {
					return "", NewError(lastErr.Code, lastErr.Message)
				}
				return "", NewError(CodeProcessingError,
					fmt.Sprintf("agent %q failed without an error event", agentID))
			}
		}

		if c.emit != nil && ev.Kind != EventDone {
			relabelled := ev
			relabelled.TaskID = c.parent.ID
			c.emit(relabelled)
		}
	}

	return "", NewError(CodeProcessingError,
		fmt.Sprintf("agent %q stream ended without done", agentID))
}
