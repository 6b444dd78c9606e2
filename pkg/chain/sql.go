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
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/conductor-ai/conductor/pkg/visibility"
)

// SQLRepository persists chains and steps to reasoning_chains and
// reasoning_steps tables over sqlite, postgres, or mysql.
type SQLRepository struct {
	db      *sql.DB
	dialect string
}

const (
	createChainsTableSQL = `
CREATE TABLE IF NOT EXISTS reasoning_chains (
    id VARCHAR(255) PRIMARY KEY,
    task_id VARCHAR(255) NOT NULL,
    agent_id VARCHAR(255) NOT NULL,
    tenant_id VARCHAR(255) NOT NULL,
    status VARCHAR(32) NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP NULL,
    metrics_json TEXT,
    child_chain_ids_json TEXT
)`

	createChainsTaskIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_reasoning_chains_task ON reasoning_chains(tenant_id, task_id)`

	createStepsTableSQL = `
CREATE TABLE IF NOT EXISTS reasoning_steps (
    id VARCHAR(255) PRIMARY KEY,
    chain_id VARCHAR(255) NOT NULL,
    step_number INTEGER NOT NULL,
    kind VARCHAR(32) NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    parent_step_id VARCHAR(255),
    visibility VARCHAR(16) NOT NULL,
    payload_json TEXT,
    tokens_used INTEGER NOT NULL DEFAULT 0,
    cost DOUBLE PRECISION NOT NULL DEFAULT 0
)`

	createStepsChainIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_reasoning_steps_chain ON reasoning_steps(chain_id, step_number)`
)

// NewSQLRepository creates a repository over an existing connection. The db
// should be shared with other stores on the same database to avoid SQLite
// "database is locked" errors.
func NewSQLRepository(db *sql.DB, dialect string) (*SQLRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	normalized := dialect
	if dialect == "sqlite3" {
		normalized = "sqlite"
	}
	switch normalized {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	r := &SQLRepository{db: db, dialect: normalized}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

func (r *SQLRepository) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range []string{
		createChainsTableSQL,
		createChainsTaskIndexSQL,
		createStepsTableSQL,
		createStepsChainIndexSQL,
	} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run schema statement: %w", err)
		}
	}
	return nil
}

// stepPayload is the kind-specific portion of a step, serialized as one
// JSON column.
type stepPayload struct {
	Thinking      string         `json:"thinking,omitempty"`
	ToolName      string         `json:"tool_name,omitempty"`
	ToolArgs      map[string]any `json:"tool_args,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Success       bool           `json:"success,omitempty"`
	ResultValue   map[string]any `json:"result_value,omitempty"`
	ResultError   string         `json:"result_error,omitempty"`
	Synthesis     string         `json:"synthesis,omitempty"`
	SourceStepIDs []string       `json:"source_step_ids,omitempty"`
}

// SaveChain upserts the chain row and inserts any steps not yet stored.
// Steps are append-only, so replaying the full slice with an idempotent
// insert is safe.
func (r *SQLRepository) SaveChain(ctx context.Context, c *Chain) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("chain with id is required")
	}

	metricsJSON, err := json.Marshal(c.Metrics)
	if err != nil {
		return fmt.Errorf("failed to serialize metrics: %w", err)
	}
	childrenJSON, err := json.Marshal(c.ChildChainIDs)
	if err != nil {
		return fmt.Errorf("failed to serialize child chain ids: %w", err)
	}

	query := `
INSERT INTO reasoning_chains (id, task_id, agent_id, tenant_id, status, started_at, completed_at, metrics_json, child_chain_ids_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    status = VALUES(status),
    completed_at = VALUES(completed_at),
    metrics_json = VALUES(metrics_json),
    child_chain_ids_json = VALUES(child_chain_ids_json)
`
	switch r.dialect {
	case "postgres":
		query = convertToPostgresPlaceholders(`
INSERT INTO reasoning_chains (id, task_id, agent_id, tenant_id, status, started_at, completed_at, metrics_json, child_chain_ids_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    completed_at = EXCLUDED.completed_at,
    metrics_json = EXCLUDED.metrics_json,
    child_chain_ids_json = EXCLUDED.child_chain_ids_json
`)
	case "sqlite":
		query = `
INSERT INTO reasoning_chains (id, task_id, agent_id, tenant_id, status, started_at, completed_at, metrics_json, child_chain_ids_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    status = excluded.status,
    completed_at = excluded.completed_at,
    metrics_json = excluded.metrics_json,
    child_chain_ids_json = excluded.child_chain_ids_json
`
	}

	var completedAt any
	if c.CompletedAt != nil {
		completedAt = *c.CompletedAt
	}
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.TaskID, c.AgentID, c.TenantID, string(c.Status),
		c.StartedAt, completedAt, string(metricsJSON), string(childrenJSON),
	); err != nil {
		return fmt.Errorf("failed to save chain: %w", err)
	}

	return r.saveSteps(ctx, c)
}

func (r *SQLRepository) saveSteps(ctx context.Context, c *Chain) error {
	insert := `
INSERT INTO reasoning_steps (id, chain_id, step_number, kind, timestamp, parent_step_id, visibility, payload_json, tokens_used, cost)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`
	switch r.dialect {
	case "postgres":
		insert = convertToPostgresPlaceholders(`
INSERT INTO reasoning_steps (id, chain_id, step_number, kind, timestamp, parent_step_id, visibility, payload_json, tokens_used, cost)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING
`)
	case "mysql":
		insert = `
INSERT IGNORE INTO reasoning_steps (id, chain_id, step_number, kind, timestamp, parent_step_id, visibility, payload_json, tokens_used, cost)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	}

	for _, step := range c.Steps {
		payload := stepPayload{
			Thinking:      step.Thinking,
			ToolName:      step.ToolName,
			ToolArgs:      step.ToolArgs,
			CorrelationID: step.CorrelationID,
			Success:       step.Success,
			ResultValue:   step.ResultValue,
			ResultError:   step.ResultError,
			Synthesis:     step.Synthesis,
			SourceStepIDs: step.SourceStepIDs,
		}
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to serialize step %d: %w", step.Number, err)
		}

		if _, err := r.db.ExecContext(ctx, insert,
			step.ID, c.ID, step.Number, string(step.Kind), step.Timestamp,
			step.ParentStepID, string(step.Visibility), string(payloadJSON),
			step.TokensUsed, step.Cost,
		); err != nil {
			return fmt.Errorf("failed to save step %d: %w", step.Number, err)
		}
	}
	return nil
}

// GetChain loads a chain with its steps. The tenant predicate is applied in
// SQL; a wrong-tenant read behaves as not found.
func (r *SQLRepository) GetChain(ctx context.Context, tenantID, chainID string) (*Chain, error) {
	query := `
SELECT id, task_id, agent_id, tenant_id, status, started_at, completed_at, metrics_json, child_chain_ids_json
FROM reasoning_chains
WHERE id = ? AND tenant_id = ?
`
	if r.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	c, err := r.scanChain(r.db.QueryRowContext(ctx, query, chainID, tenantID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chain %s not found", chainID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chain: %w", err)
	}

	if err := r.loadSteps(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListByTask loads all chains recorded for a task.
func (r *SQLRepository) ListByTask(ctx context.Context, tenantID, taskID string) ([]*Chain, error) {
	query := `
SELECT id, task_id, agent_id, tenant_id, status, started_at, completed_at, metrics_json, child_chain_ids_json
FROM reasoning_chains
WHERE tenant_id = ? AND task_id = ?
ORDER BY started_at
`
	if r.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	rows, err := r.db.QueryContext(ctx, query, tenantID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chains: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chains []*Chain
	for rows.Next() {
		c, err := r.scanChain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chain: %w", err)
		}
		chains = append(chains, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range chains {
		if err := r.loadSteps(ctx, c); err != nil {
			return nil, err
		}
	}
	return chains, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanChain(row rowScanner) (*Chain, error) {
	var (
		c            Chain
		status       string
		completedAt  sql.NullTime
		metricsJSON  sql.NullString
		childrenJSON sql.NullString
	)
	if err := row.Scan(&c.ID, &c.TaskID, &c.AgentID, &c.TenantID, &status,
		&c.StartedAt, &completedAt, &metricsJSON, &childrenJSON); err != nil {
		return nil, err
	}

	c.Status = Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	c.Metrics = Metrics{StepCounts: make(map[StepKind]int)}
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &c.Metrics); err != nil {
			return nil, fmt.Errorf("failed to parse metrics: %w", err)
		}
	}
	if childrenJSON.Valid && childrenJSON.String != "" {
		if err := json.Unmarshal([]byte(childrenJSON.String), &c.ChildChainIDs); err != nil {
			return nil, fmt.Errorf("failed to parse child chain ids: %w", err)
		}
	}
	return &c, nil
}

func (r *SQLRepository) loadSteps(ctx context.Context, c *Chain) error {
	query := `
SELECT id, step_number, kind, timestamp, parent_step_id, visibility, payload_json, tokens_used, cost
FROM reasoning_steps
WHERE chain_id = ?
ORDER BY step_number
`
	if r.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	rows, err := r.db.QueryContext(ctx, query, c.ID)
	if err != nil {
		return fmt.Errorf("failed to query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			step        Step
			kind        string
			parent      sql.NullString
			vis         string
			payloadJSON sql.NullString
		)
		if err := rows.Scan(&step.ID, &step.Number, &kind, &step.Timestamp,
			&parent, &vis, &payloadJSON, &step.TokensUsed, &step.Cost); err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		step.ChainID = c.ID
		step.Kind = StepKind(kind)
		step.ParentStepID = parent.String
		step.Visibility = visibility.Level(vis)
		if payloadJSON.Valid && payloadJSON.String != "" {
			var payload stepPayload
			if err := json.Unmarshal([]byte(payloadJSON.String), &payload); err != nil {
				return fmt.Errorf("failed to parse step payload: %w", err)
			}
			step.Thinking = payload.Thinking
			step.ToolName = payload.ToolName
			step.ToolArgs = payload.ToolArgs
			step.CorrelationID = payload.CorrelationID
			step.Success = payload.Success
			step.ResultValue = payload.ResultValue
			step.ResultError = payload.ResultError
			step.Synthesis = payload.Synthesis
			step.SourceStepIDs = payload.SourceStepIDs
		}
		c.Steps = append(c.Steps, step)
	}
	return rows.Err()
}

// convertToPostgresPlaceholders rewrites ? placeholders to $1, $2, ...
func convertToPostgresPlaceholders(query string) string {
	var sb strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

var _ Repository = (*SQLRepository)(nil)
