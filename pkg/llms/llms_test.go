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

package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DefaultAndLookup(t *testing.T) {
	r := NewRegistry()
	openai := NewOpenAIProvider("k", "", "gpt-4o")
	anthropic := NewAnthropicProvider("k", "", "claude-sonnet-4-20250514")
	require.NoError(t, r.Register(openai))
	require.NoError(t, r.Register(anthropic))

	// First registration is the default.
	p, err := r.Get("")
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	require.NoError(t, r.SetDefault("anthropic"))
	p, err = r.Get("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = r.Get("ghost")
	assert.Error(t, err)
	assert.Error(t, r.SetDefault("ghost"))
	assert.Error(t, r.Register(openai), "duplicate name")
	assert.Equal(t, []string{"anthropic", "openai"}, r.Names())
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])
		messages := req["messages"].([]any)
		first := messages[0].(map[string]any)
		assert.Equal(t, "system", first["role"])

		fmt.Fprint(w, `{
			"model": "gpt-4o",
			"choices": [{"message": {"role": "assistant", "content": "four"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("secret", srv.URL, "gpt-4o")
	resp, err := p.Generate(context.Background(), Request{
		System:   "You are terse.",
		Messages: []Message{{Role: "user", Content: "2+2?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "four", resp.Content)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)
}

func TestOpenAIProvider_GenerateStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"model":"gpt-4o","choices":[{"delta":{"content":"fo"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"ur"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":2}}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("secret", srv.URL, "gpt-4o")
	out := make(chan string, 8)
	resp, err := p.GenerateStreaming(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "2+2?"}},
	}, out)
	require.NoError(t, err)
	close(out)

	var tokens []string
	for tok := range out {
		tokens = append(tokens, tok)
	}
	assert.Equal(t, []string{"fo", "ur"}, tokens)
	assert.Equal(t, "four", resp.Content)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 2, resp.OutputTokens)
}

func TestOpenAIProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("wrong", srv.URL, "gpt-4o")
	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestAnthropicProvider_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "You are terse.", req["system"])
		messages := req["messages"].([]any)
		folded := messages[0].(map[string]any)
		assert.Equal(t, "user", folded["role"], "tool role folds into user")

		fmt.Fprint(w, `{
			"model": "claude-sonnet-4-20250514",
			"content": [{"type": "text", "text": "fo"}, {"type": "text", "text": "ur"}],
			"usage": {"input_tokens": 9, "output_tokens": 2}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("secret", srv.URL, "claude-sonnet-4-20250514")
	resp, err := p.Generate(context.Background(), Request{
		System:   "You are terse.",
		Messages: []Message{{Role: "tool", Content: "2+2?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "four", resp.Content)
	assert.Equal(t, 9, resp.InputTokens)
	assert.Equal(t, 2, resp.OutputTokens)
}

func TestAnthropicProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"error": {"type": "invalid_request_error", "message": "model not found"}}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("secret", srv.URL, "nope")
	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}
