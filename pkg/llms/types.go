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

// Package llms provides chat clients for LLM providers. The reasoning core
// consumes providers only through the llm tool contract; nothing above the
// tool layer imports this package.
package llms

import (
	"context"
	"fmt"

	"github.com/conductor-ai/conductor/pkg/registry"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request.
type Request struct {
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Response is the completed generation with token accounting.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Provider is a chat-capable LLM backend.
type Provider interface {
	Name() string

	// Generate performs one blocking chat completion.
	Generate(ctx context.Context, req Request) (*Response, error)

	// GenerateStreaming emits partial tokens on out as they arrive and
	// returns the final response. The provider never closes out.
	GenerateStreaming(ctx context.Context, req Request, out chan<- string) (*Response, error)
}

// Registry holds configured providers keyed by name, with a default for
// calls that do not pick one.
type Registry struct {
	base        *registry.BaseRegistry[Provider]
	defaultName string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Provider]()}
}

// Register adds a provider; the first registration becomes the default.
func (r *Registry) Register(p Provider) error {
	if err := r.base.Register(p.Name(), p); err != nil {
		return err
	}
	if r.defaultName == "" {
		r.defaultName = p.Name()
	}
	return nil
}

// SetDefault picks the provider used when a request names none.
func (r *Registry) SetDefault(name string) error {
	if _, ok := r.base.Get(name); !ok {
		return fmt.Errorf("llm provider %q is not registered", name)
	}
	r.defaultName = name
	return nil
}

// Get returns the named provider, or the default for "".
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.base.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm provider %q is not registered", name)
	}
	return p, nil
}

// Names lists registered provider names.
func (r *Registry) Names() []string {
	return r.base.Names()
}
