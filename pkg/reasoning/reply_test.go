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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Reply
		wantErr bool
	}{
		{
			name: "action reply",
			raw:  `{"thought":"add them","action":"calculator","action_input":{"expression":"5 + 3"},"is_final":false}`,
			want: Reply{
				Thought:     "add them",
				Action:      "calculator",
				ActionInput: map[string]any{"expression": "5 + 3"},
			},
		},
		{
			name: "final reply",
			raw:  `{"final_answer":"done","is_final":true}`,
			want: Reply{FinalAnswer: "done", IsFinal: true},
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"final_answer\":\"done\",\"is_final\":true}\n```",
			want: Reply{FinalAnswer: "done", IsFinal: true},
		},
		{
			name: "action without input gets empty map",
			raw:  `{"action":"list_files","is_final":false}`,
			want: Reply{Action: "list_files", ActionInput: map[string]any{}},
		},
		{name: "empty", raw: "", wantErr: true},
		{name: "prose", raw: "Sure! Here is the answer.", wantErr: true},
		{name: "trailing prose", raw: `{"final_answer":"x","is_final":true} as requested`, wantErr: true},
		{name: "neither action nor final", raw: `{"thought":"hmm","is_final":false}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
