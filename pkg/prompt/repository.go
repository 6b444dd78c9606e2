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

package prompt

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Repository stores versioned prompts. Get returns the latest version
// for the layer, scope and tenant; Put enforces strictly increasing
// versions within that identity.
type Repository interface {
	Get(ctx context.Context, layer Layer, scopeID, tenantID string) (*Prompt, error)
	Put(ctx context.Context, p *Prompt) error
}

// MemoryRepository is an in-memory Repository, used in tests and for
// code-registered prompts.
type MemoryRepository struct {
	mu      sync.RWMutex
	prompts map[string]*Prompt
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{prompts: make(map[string]*Prompt)}
}

func promptKey(layer Layer, scopeID, tenantID string) string {
	return fmt.Sprintf("%s/%s/%s", layer, scopeID, tenantID)
}

// Get returns the latest version, or prompt_not_found.
func (r *MemoryRepository) Get(_ context.Context, layer Layer, scopeID, tenantID string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[promptKey(layer, scopeID, tenantID)]
	if !ok {
		return nil, NewError(CodePromptNotFound, "no %s prompt for scope %q", layer, scopeID)
	}
	copied := *p
	return &copied, nil
}

// Put stores a new version. A zero version is assigned automatically;
// an explicit version must exceed the current one.
func (r *MemoryRepository) Put(_ context.Context, p *Prompt) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := promptKey(p.Layer, p.ScopeID, p.TenantID)
	current := 0
	if existing, ok := r.prompts[key]; ok {
		current = existing.Version
	}
	if p.Version == 0 {
		p.Version = current + 1
	} else if p.Version <= current {
		return NewError(CodePromptValidationError,
			"version %d for %s/%s must exceed current version %d", p.Version, p.Layer, p.ScopeID, current)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	copied := *p
	r.prompts[key] = &copied
	return nil
}
