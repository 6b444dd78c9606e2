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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

// mergeMarker matches {{> name }} insertion points in the system
// template.
var mergeMarker = regexp.MustCompile(`\{\{>\s*([a-zA-Z0-9_]+)\s*\}\}`)

const defaultSystemScope = "default"

// ComposeRequest names everything one composition needs.
type ComposeRequest struct {
	AgentID    string
	TenantID   string
	FeatureIDs []string
	UserInput  string
	Variables  map[string]any
	SkipCache  bool
}

// ComposerOptions configures a Composer.
type ComposerOptions struct {
	// SystemScope selects the system-layer skeleton. Defaults to
	// "default".
	SystemScope     string
	PlatformName    string
	PlatformVersion string
	// Cache is optional; without it every request composes fresh.
	Cache *Cache
}

// Composer runs the layered composition pipeline: load, sanitize,
// merge, render, cache.
type Composer struct {
	repo   Repository
	cache  *Cache
	opts   ComposerOptions
	logger *slog.Logger
}

// NewComposer creates a composer over the repository.
func NewComposer(repo Repository, opts ComposerOptions) *Composer {
	if opts.SystemScope == "" {
		opts.SystemScope = defaultSystemScope
	}
	return &Composer{
		repo:   repo,
		cache:  opts.Cache,
		opts:   opts,
		logger: slog.Default(),
	}
}

// layerSet holds the prompts loaded for one composition, in rank
// order. Tenant and feature entries may be nil.
type layerSet struct {
	system  *Prompt
	tenant  *Prompt
	feature *Prompt
	agent   *Prompt

	versions map[Layer]string
}

// Compose assembles the prompt for the request. System and agent
// layers are required; tenant and feature layers are optional.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) (*ComposedPrompt, error) {
	if req.AgentID == "" {
		return nil, NewError(CodePromptValidationError, "agent id is required")
	}

	layers, err := c.loadLayers(ctx, req)
	if err != nil {
		return nil, err
	}

	key := c.cacheKey(req, layers)
	if c.cache != nil && !req.SkipCache {
		if cached, ok := c.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	merged, err := mergeLayers(layers, Sanitize(req.UserInput))
	if err != nil {
		return nil, err
	}

	text, err := renderVariables(merged, c.variableContext(req, layers))
	if err != nil {
		return nil, err
	}

	composed := &ComposedPrompt{
		Text:          text,
		LayerVersions: layers.versions,
		ComposedAt:    time.Now().UTC(),
		CacheKey:      key,
	}
	if c.cache != nil && !req.SkipCache {
		c.cache.Set(ctx, key, composed)
	}
	return composed, nil
}

// InvalidateTenant purges every cached composition for the tenant.
func (c *Composer) InvalidateTenant(ctx context.Context, tenantID string) {
	if c.cache == nil {
		return
	}
	c.cache.InvalidatePattern(ctx, "tenant:"+tenantID+":*")
}

func (c *Composer) loadLayers(ctx context.Context, req ComposeRequest) (*layerSet, error) {
	layers := &layerSet{versions: make(map[Layer]string)}

	system, err := c.repo.Get(ctx, LayerSystem, c.opts.SystemScope, "")
	if err != nil {
		return nil, err
	}
	layers.system = system
	layers.versions[LayerSystem] = system.VersionRef()

	agent, err := c.getWithTenantFallback(ctx, LayerAgent, req.AgentID, req.TenantID)
	if err != nil {
		return nil, err
	}
	layers.agent = agent
	layers.versions[LayerAgent] = agent.VersionRef()

	if req.TenantID != "" {
		tenant, err := c.repo.Get(ctx, LayerTenant, req.TenantID, req.TenantID)
		switch {
		case err == nil:
			layers.tenant = tenant
			layers.versions[LayerTenant] = tenant.VersionRef()
		case !IsNotFound(err):
			return nil, err
		}
	}

	if len(req.FeatureIDs) > 0 {
		feature, refs, err := c.loadFeatures(ctx, req)
		if err != nil {
			return nil, err
		}
		if feature != nil {
			layers.feature = feature
			layers.versions[LayerFeature] = strings.Join(refs, ",")
		}
	}
	return layers, nil
}

// loadFeatures merges multiple feature prompts into one: content is
// concatenated with blank lines, and the first feature's merge points
// win. Missing features are skipped.
func (c *Composer) loadFeatures(ctx context.Context, req ComposeRequest) (*Prompt, []string, error) {
	var loaded []*Prompt
	var refs []string
	for _, id := range req.FeatureIDs {
		p, err := c.getWithTenantFallback(ctx, LayerFeature, id, req.TenantID)
		if IsNotFound(err) {
			c.logger.Debug("feature prompt not found, skipping", "feature_id", id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		loaded = append(loaded, p)
		refs = append(refs, p.VersionRef())
	}
	if len(loaded) == 0 {
		return nil, nil, nil
	}
	if len(loaded) == 1 {
		return loaded[0], refs, nil
	}

	templates := make([]string, len(loaded))
	for i, p := range loaded {
		templates[i] = p.Template
	}
	merged := *loaded[0]
	merged.Template = strings.Join(templates, "\n\n")
	return &merged, refs, nil
}

// getWithTenantFallback tries the tenant-scoped prompt first, then the
// global one.
func (c *Composer) getWithTenantFallback(ctx context.Context, layer Layer, scopeID, tenantID string) (*Prompt, error) {
	if tenantID != "" {
		p, err := c.repo.Get(ctx, layer, scopeID, tenantID)
		if err == nil {
			return p, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return c.repo.Get(ctx, layer, scopeID, "")
}

// cacheKey is stable across identical inputs: per-layer version refs
// plus a digest of the variables and user input. The tenant prefix
// makes tenant-wide invalidation a glob.
func (c *Composer) cacheKey(req ComposeRequest, layers *layerSet) string {
	parts := make([]string, 0, len(layers.versions))
	for layer, ref := range layers.versions {
		parts = append(parts, fmt.Sprintf("%s=%s", layer, ref))
	}
	sort.Strings(parts)

	input, _ := json.Marshal(struct {
		Variables map[string]any `json:"variables"`
		UserInput string         `json:"user_input"`
	}{req.Variables, req.UserInput})

	sum := sha256.Sum256([]byte(strings.Join(parts, "|") + "|" + string(input)))

	tenant := req.TenantID
	if tenant == "" {
		tenant = "global"
	}
	return "tenant:" + tenant + ":prompt:" + hex.EncodeToString(sum[:])
}

// variableContext layers prompt-provided defaults under the request's
// variables, then pins the reserved namespaces on top.
func (c *Composer) variableContext(req ComposeRequest, layers *layerSet) map[string]any {
	vars := make(map[string]any)
	for _, p := range []*Prompt{layers.system, layers.tenant, layers.feature, layers.agent} {
		if p == nil {
			continue
		}
		for k, v := range p.Variables {
			vars[k] = v
		}
	}
	for k, v := range req.Variables {
		vars[k] = v
	}
	vars["system"] = map[string]any{
		"platform_name":    c.opts.PlatformName,
		"platform_version": c.opts.PlatformVersion,
	}
	vars["tenant"] = map[string]any{"id": req.TenantID}
	vars["agent"] = map[string]any{"id": req.AgentID}
	return vars
}

// contribution is one layer's content aimed at a merge point.
type contribution struct {
	layer   Layer
	content string
	locked  bool
}

// mergeLayers expands the system template's merge markers with
// contributions from the higher layers.
func mergeLayers(layers *layerSet, userInput string) (string, error) {
	declarations := make(map[string]MergePoint, len(layers.system.MergePoints))
	for _, mp := range layers.system.MergePoints {
		declarations[mp.Name] = mp
	}

	contributions := make(map[string][]contribution)
	for _, p := range []*Prompt{layers.tenant, layers.feature, layers.agent} {
		if p == nil {
			continue
		}
		for _, mp := range p.MergePoints {
			contributions[mp.Name] = append(contributions[mp.Name], contribution{
				layer:   p.Layer,
				content: p.Template,
				locked:  mp.Locked,
			})
		}
	}

	// Lock checks run over every targeted point, marker or not.
	for name, contribs := range contributions {
		decl := declarations[name]
		lockRank := -1
		if decl.Locked {
			lockRank = layerRank(LayerSystem)
		}
		for _, contrib := range contribs {
			if lockRank >= 0 && layerRank(contrib.layer) > lockRank {
				return "", NewError(CodeMergePointConflict,
					"merge point %q is locked below layer %s", name, contrib.layer)
			}
			if contrib.locked && (lockRank < 0 || layerRank(contrib.layer) < lockRank) {
				lockRank = layerRank(contrib.layer)
			}
		}
	}

	var mergeErr error
	text := mergeMarker.ReplaceAllStringFunc(layers.system.Template, func(match string) string {
		name := mergeMarker.FindStringSubmatch(match)[1]
		content, err := resolvePoint(name, declarations[name], contributions[name], userInput)
		if err != nil && mergeErr == nil {
			mergeErr = err
		}
		return content
	})
	if mergeErr != nil {
		return "", mergeErr
	}
	return text, nil
}

// resolvePoint computes the text for one marker. An undeclared marker
// behaves as an unflagged append point; a marker nothing contributes
// to renders empty.
func resolvePoint(name string, decl MergePoint, contribs []contribution, userInput string) (string, error) {
	if name == ReservedUserInput {
		if decl.Required && strings.TrimSpace(userInput) == "" {
			return "", NewError(CodePromptValidationError, "merge point %q is required but user input is empty", name)
		}
		return userInput, nil
	}

	texts := make([]string, 0, len(contribs))
	for _, contrib := range contribs {
		if strings.TrimSpace(contrib.content) != "" {
			texts = append(texts, contrib.content)
		}
	}
	if len(texts) == 0 {
		if decl.Required {
			return "", NewError(CodePromptValidationError, "merge point %q is required but no layer provides content", name)
		}
		return "", nil
	}

	switch decl.Behavior {
	case BehaviorPrepend:
		for i, j := 0, len(texts)-1; i < j; i, j = i+1, j-1 {
			texts[i], texts[j] = texts[j], texts[i]
		}
		return strings.Join(texts, "\n"), nil
	case BehaviorReplace, BehaviorInject:
		return texts[len(texts)-1], nil
	default:
		return strings.Join(texts, "\n"), nil
	}
}
