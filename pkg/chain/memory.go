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

package chain

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and single-process
// deployments. Reads are tenant-scoped: a lookup with the wrong tenant
// behaves as not found.
type MemoryRepository struct {
	mu     sync.RWMutex
	chains map[string]*Chain
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{chains: make(map[string]*Chain)}
}

// SaveChain stores a snapshot of the chain.
func (r *MemoryRepository) SaveChain(_ context.Context, c *Chain) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("chain with id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *c
	stored.Steps = append([]Step(nil), c.Steps...)
	r.chains[c.ID] = &stored
	return nil
}

// GetChain returns the chain, or an error when it does not exist for the
// tenant.
func (r *MemoryRepository) GetChain(_ context.Context, tenantID, chainID string) (*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chains[chainID]
	if !ok || c.TenantID != tenantID {
		return nil, fmt.Errorf("chain %s not found", chainID)
	}
	stored := *c
	stored.Steps = append([]Step(nil), c.Steps...)
	return &stored, nil
}

// ListByTask returns all chains recorded for a task, in insertion order of
// their StartedAt timestamps.
func (r *MemoryRepository) ListByTask(_ context.Context, tenantID, taskID string) ([]*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Chain
	for _, c := range r.chains {
		if c.TenantID == tenantID && c.TaskID == taskID {
			stored := *c
			stored.Steps = append([]Step(nil), c.Steps...)
			out = append(out, &stored)
		}
	}
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
