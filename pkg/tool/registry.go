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

package tool

import (
	"github.com/conductor-ai/conductor/pkg/registry"
)

// Registry holds the tools an agent may dispatch. Lookups may be narrowed
// by a skill scope without copying the registry.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Tool]()}
}

// Register validates the tool's definition and adds it under its name.
func (r *Registry) Register(t Tool) error {
	def := t.Info()
	if err := def.Validate(); err != nil {
		return err
	}
	if err := r.base.Register(def.Name, t); err != nil {
		return NewError(CodeAlreadyRegistered, def.Name, "tool is already registered")
	}
	return nil
}

// Get returns the named tool or a tool_not_found error.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.base.Get(name)
	if !ok {
		return nil, NewError(CodeNotFound, name, "tool is not registered")
	}
	return t, nil
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	return r.base.List()
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	return r.base.Names()
}

// Definitions returns definitions for all tools visible under scope, in
// name order. A nil scope means no restriction.
func (r *Registry) Definitions(scope *SkillScope) []Definition {
	var defs []Definition
	for _, name := range r.base.Names() {
		if !scope.Allows(name) {
			continue
		}
		if t, ok := r.base.Get(name); ok {
			defs = append(defs, t.Info())
		}
	}
	return defs
}

// Remove drops a tool from the registry.
func (r *Registry) Remove(name string) error {
	if err := r.base.Remove(name); err != nil {
		return NewError(CodeNotFound, name, "tool is not registered")
	}
	return nil
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return r.base.Count()
}
