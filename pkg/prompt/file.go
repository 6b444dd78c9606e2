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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileRepository serves prompts from a directory of YAML files, laid
// out as <root>/<layer>/<scope>.yaml. Each file carries one prompt;
// version bumps happen by editing the file. Watch reloads changed
// files and notifies the invalidation hook so cached compositions are
// purged.
type FileRepository struct {
	root   string
	logger *slog.Logger

	mu      sync.RWMutex
	prompts map[string]*Prompt

	onChange func(p *Prompt)
}

// NewFileRepository loads every prompt file under root.
func NewFileRepository(root string) (*FileRepository, error) {
	r := &FileRepository{
		root:    root,
		logger:  slog.Default(),
		prompts: make(map[string]*Prompt),
	}
	if err := r.loadAll(); err != nil {
		return nil, err
	}
	return r, nil
}

// OnChange registers a hook invoked after a watched file reloads.
func (r *FileRepository) OnChange(fn func(p *Prompt)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Get returns the prompt for the layer, scope and tenant.
func (r *FileRepository) Get(_ context.Context, layer Layer, scopeID, tenantID string) (*Prompt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prompts[promptKey(layer, scopeID, tenantID)]
	if !ok {
		return nil, NewError(CodePromptNotFound, "no %s prompt for scope %q", layer, scopeID)
	}
	copied := *p
	return &copied, nil
}

// Put writes the prompt back to its YAML file. The version must exceed
// the loaded one.
func (r *FileRepository) Put(_ context.Context, p *Prompt) error {
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

	raw, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to serialize prompt: %w", err)
	}
	path := filepath.Join(r.root, string(p.Layer), p.ScopeID+".yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create prompt directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write prompt file: %w", err)
	}

	copied := *p
	r.prompts[key] = &copied
	return nil
}

// Watch reloads prompt files as they change until the context ends.
func (r *FileRepository) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dirs := []string{r.root}
	entries, err := os.ReadDir(r.root)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to read prompt directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, filepath.Join(r.root, entry.Name()))
		}
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !isPromptFile(event.Name) {
					continue
				}
				if err := r.loadFile(event.Name); err != nil {
					r.logger.Warn("failed to reload prompt file", "path", event.Name, "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("prompt watcher error", "error", err)
			}
		}
	}()
	return nil
}

func isPromptFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (r *FileRepository) loadAll() error {
	return filepath.WalkDir(r.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPromptFile(path) {
			return nil
		}
		return r.loadFile(path)
	})
}

func (r *FileRepository) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read prompt file: %w", err)
	}

	var p Prompt
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}
	if p.Layer == "" {
		p.Layer = Layer(filepath.Base(filepath.Dir(path)))
	}
	if p.ScopeID == "" {
		p.ScopeID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.Version == 0 {
		p.Version = 1
	}
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.prompts[promptKey(p.Layer, p.ScopeID, p.TenantID)] = &p
	hook := r.onChange
	r.mu.Unlock()

	if hook != nil {
		hook(&p)
	}
	return nil
}
