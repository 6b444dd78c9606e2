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

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/conductor-ai/conductor/pkg/agent"
)

// eventPayload is the wire shape of one event: task_id and timestamp
// always, kind-specific fields as set.
type eventPayload struct {
	TaskID    string         `json:"task_id"`
	Timestamp string         `json:"timestamp"`
	State     string         `json:"state,omitempty"`
	Text      string         `json:"text,omitempty"`
	IsPartial bool           `json:"is_partial,omitempty"`
	Artifact  any            `json:"artifact,omitempty"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func payloadFor(ev agent.Event) eventPayload {
	p := eventPayload{
		TaskID:    ev.TaskID,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	switch ev.Kind {
	case agent.EventStatus:
		p.State = string(ev.State)
		p.Text = ev.Message
	case agent.EventMessage:
		p.Text = ev.Text()
		p.IsPartial = ev.IsPartial
	case agent.EventArtifact:
		p.Artifact = ev.Artifact
	case agent.EventDone:
		p.State = string(ev.State)
	case agent.EventError:
		p.Code = ev.Code
		p.Text = ev.Message
		p.Details = ev.Details
	}
	return p
}

// streamEvents writes the channel as server-sent events until it
// closes or the client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan agent.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(payloadFor(ev))
			if err != nil {
				s.logger.Warn("failed to encode event", "kind", ev.Kind, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}
