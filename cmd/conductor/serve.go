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

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conductor-ai/conductor/pkg/agent"
	"github.com/conductor-ai/conductor/pkg/chain"
	"github.com/conductor-ai/conductor/pkg/config"
	"github.com/conductor-ai/conductor/pkg/cost"
	"github.com/conductor-ai/conductor/pkg/handoff"
	"github.com/conductor-ai/conductor/pkg/llms"
	"github.com/conductor-ai/conductor/pkg/logger"
	"github.com/conductor-ai/conductor/pkg/observability"
	"github.com/conductor-ai/conductor/pkg/orchestration"
	"github.com/conductor-ai/conductor/pkg/prompt"
	"github.com/conductor-ai/conductor/pkg/reasoning"
	"github.com/conductor-ai/conductor/pkg/server"
	"github.com/conductor-ai/conductor/pkg/skill"
	"github.com/conductor-ai/conductor/pkg/store"
	"github.com/conductor-ai/conductor/pkg/tool"
	"github.com/conductor-ai/conductor/pkg/visibility"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Port int `help:"Override the configured listen port."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	if err := config.LoadEnvFiles(); err != nil {
		return err
	}

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	// The config logging section applies unless the global flags were
	// set explicitly.
	if cli.LogLevel == "info" && cli.LogFile == "" && cli.LogFormat == "text" {
		applyConfigLogging(cfg)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs := observability.NewManager(observability.Config{
		Tracing: observability.TracerConfig{
			Enabled:      *cfg.Observability.TracingEnabled,
			OTLPEndpoint: cfg.Observability.OTLPEndpoint,
			ServiceName:  cfg.Observability.ServiceName,
		},
		Metrics: observability.MetricsConfig{
			Enabled: *cfg.Observability.MetricsEnabled,
		},
	})
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("observability shutdown failed", "error", err)
		}
	}()

	db, err := sql.Open(cfg.Database.DriverName(), cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if cfg.Database.Driver == "sqlite" {
		// sqlite serializes writers; a single connection avoids
		// "database is locked" errors under concurrent tasks.
		db.SetMaxOpenConns(1)
	}

	srv, err := buildServer(ctx, cfg, db, obs)
	if err != nil {
		return err
	}

	slog.Info("starting conductor",
		"addr", cfg.Server.Address(),
		"agents", len(cfg.Agents),
		"database", cfg.Database.Driver,
	)
	return srv.ListenAndServe(ctx)
}

// buildServer assembles the full runtime: persistence, providers, tools,
// the reasoning engine, agents, and the HTTP front end.
func buildServer(ctx context.Context, cfg *config.Config, db *sql.DB, obs *observability.Manager) (*server.Server, error) {
	conversations, err := store.NewSQLStore(db, cfg.Database.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize conversation store: %w", err)
	}
	costRepo, err := store.NewSQLCostRepository(db, cfg.Database.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cost repository: %w", err)
	}
	usageRepo, err := store.NewSQLModelUsageRepository(db, cfg.Database.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model usage repository: %w", err)
	}
	chains, err := chain.NewSQLRepository(db, cfg.Database.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain repository: %w", err)
	}

	providers, approvedModels, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	pricing := cost.NewPricing(approvedModels)
	tracker := cost.NewTracker(costRepo, nil)
	handoffs := handoff.NewManager(conversations)

	tools := tool.NewRegistry()
	for _, t := range []tool.Tool{
		tool.NewCalculatorTool(),
		tool.NewLLMTool(providers, pricing, cfg.Defaults.LLM),
		tool.NewAgentCallTool(nil),
		orchestration.NewDispatchTool(0),
		handoff.NewTool(handoffs),
	} {
		if err := tools.Register(t); err != nil {
			return nil, err
		}
	}

	defaultModel := ""
	if lc, ok := cfg.LLMs[cfg.Defaults.LLM]; ok {
		defaultModel = lc.Model
	}
	executor := tool.NewExecutor(tools, tracker, pricing, obs.Metrics(), tool.ExecutorOptions{
		DefaultModel: defaultModel,
	})
	executor.OnLLMUsage(func(ctx context.Context, tenantID, model string, inputTokens, outputTokens int, costUSD float64) {
		err := usageRepo.RecordUsage(ctx, store.ModelUsage{
			TenantID:     tenantID,
			Model:        model,
			Date:         time.Now().UTC(),
			CallCount:    1,
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalCostUSD: costUSD,
		})
		if err != nil {
			slog.Warn("model usage rollup failed", "model", model, "error", err)
		}
	})

	engine := reasoning.NewEngine(executor)

	skills, err := buildSkills(cfg, engine)
	if err != nil {
		return nil, err
	}

	composer, err := buildComposer(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	agents := agent.NewEngine()
	defaultAgent := ""
	for name, ac := range cfg.Agents {
		llmCfg := cfg.LLMs[ac.LLM]
		if llmCfg == nil {
			llmCfg = &config.LLMConfig{}
		}
		rc := reasoning.Config{
			MaxIterations: ac.MaxIterations,
			Model:         llmCfg.Model,
			MaxTokens:     llmCfg.MaxTokens,
			Instructions:  agentInstructions(ctx, composer, name, ac.Instructions),
		}
		if llmCfg.Temperature != nil {
			rc.Temperature = *llmCfg.Temperature
		}

		la := agent.NewLoopAgent(name, engine, skills, chains, agent.LoopAgentConfig{
			Reasoning:     rc,
			Budget:        ac.Budget,
			SkillName:     ac.Skill,
			Conversations: conversations,
		})
		if err := agents.RegisterAgent(la); err != nil {
			return nil, err
		}
		if ac.Default {
			defaultAgent = name
		}
	}

	var master *agent.Master
	if defaultAgent != "" {
		master = agent.NewMaster(agents, defaultAgent, handoffs, nil)
	}

	return server.New(agents, server.Options{
		Addr:   cfg.Server.Address(),
		Policy: visibility.DefaultPolicy(),
		Master: master,
	}), nil
}

// buildProviders registers one LLM client per config entry under its
// config name and returns the approved model list for pricing.
func buildProviders(cfg *config.Config) (*llms.Registry, []string, error) {
	providers := llms.NewRegistry()
	models := make([]string, 0, len(cfg.LLMs))

	for name, lc := range cfg.LLMs {
		var p llms.Provider
		switch lc.Provider {
		case config.LLMProviderAnthropic:
			p = llms.NewAnthropicProvider(lc.APIKey, lc.BaseURL, lc.Model)
		default:
			p = llms.NewOpenAIProvider(lc.APIKey, lc.BaseURL, lc.Model)
		}
		if err := providers.Register(namedProvider{Provider: p, name: name}); err != nil {
			return nil, nil, err
		}
		models = append(models, lc.Model)
	}

	if cfg.Defaults.LLM != "" {
		if err := providers.SetDefault(cfg.Defaults.LLM); err != nil {
			return nil, nil, err
		}
	}
	return providers, models, nil
}

// namedProvider rebinds a provider under its config key so several
// entries may share one backend type.
type namedProvider struct {
	llms.Provider
	name string
}

func (p namedProvider) Name() string { return p.name }

func buildSkills(cfg *config.Config, engine *reasoning.Engine) (*skill.Orchestrator, error) {
	index := skill.NewIndex()
	if cfg.Skills.Dir != "" {
		loaded, err := skill.LoadDir(cfg.Skills.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load skills: %w", err)
		}
		index = loaded
		slog.Info("skills loaded", "dir", cfg.Skills.Dir, "count", len(index.Names()))
	}
	return skill.NewOrchestrator(index, engine, skill.Options{}), nil
}

// buildComposer wires the prompt source named in config, with the
// two-tier composed-prompt cache when redis is enabled.
func buildComposer(ctx context.Context, cfg *config.Config, db *sql.DB) (*prompt.Composer, error) {
	var repo prompt.Repository
	switch cfg.Prompts.Source {
	case "file":
		fileRepo, err := prompt.NewFileRepository(cfg.Prompts.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load prompts: %w", err)
		}
		if err := fileRepo.Watch(ctx); err != nil {
			return nil, fmt.Errorf("failed to watch prompts: %w", err)
		}
		repo = fileRepo
	case "database":
		sqlRepo, err := prompt.NewSQLRepository(db, cfg.Database.Driver)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize prompt repository: %w", err)
		}
		repo = sqlRepo
	default:
		repo = prompt.NewMemoryRepository()
	}

	var client *redis.Client
	if *cfg.Redis.Enabled {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	cache, err := prompt.NewCache(cfg.Prompts.CacheSize, client)
	if err != nil {
		return nil, err
	}

	return prompt.NewComposer(repo, prompt.ComposerOptions{
		SystemScope:  cfg.Prompts.SystemScope,
		PlatformName: "conductor",
		Cache:        cache,
	}), nil
}

// agentInstructions composes the agent's layered prompt when one is
// defined, falling back to the inline config instructions.
func agentInstructions(ctx context.Context, composer *prompt.Composer, agentID, fallback string) string {
	composed, err := composer.Compose(ctx, prompt.ComposeRequest{AgentID: agentID})
	if err != nil {
		if !prompt.IsNotFound(err) {
			slog.Warn("prompt composition failed", "agent", agentID, "error", err)
		}
		return fallback
	}
	return composed.Text
}

func applyConfigLogging(cfg *config.Config) {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return
	}
	logger.Init(level, nil, cfg.Logging.Format)
}
