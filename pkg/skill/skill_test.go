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

package skill

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantErr string
	}{
		{
			name: "valid",
			meta: Metadata{Name: "research", Description: "Look things up."},
		},
		{
			name:    "missing name",
			meta:    Metadata{Description: "x"},
			wantErr: "name is required",
		},
		{
			name:    "description too long",
			meta:    Metadata{Name: "research", Description: strings.Repeat("a", 1025)},
			wantErr: "exceeds 1024",
		},
		{
			name:    "legacy simple mode",
			meta:    Metadata{Name: "research", ExecutionMode: "simple"},
			wantErr: "deprecated",
		},
		{
			name:    "unknown context mode",
			meta:    Metadata{Name: "research", ContextMode: "detached"},
			wantErr: "unknown context mode",
		},
		{
			name: "fork mode",
			meta: Metadata{Name: "research", ContextMode: ContextFork},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.meta, "instructions")
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIndex_Resolve(t *testing.T) {
	index := NewIndex()
	sk, err := New(Metadata{Name: "research"}, "do research")
	require.NoError(t, err)
	require.NoError(t, index.Add(sk))

	got, err := index.Resolve("research")
	require.NoError(t, err)
	assert.Equal(t, "research", got.Metadata.Name)

	_, err = index.Resolve("missing")
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeSkillNotFound, serr.Code)
}
