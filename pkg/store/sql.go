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

package store

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

	"github.com/conductor-ai/conductor/pkg/cost"
)

// SQLStore persists conversations and messages over sqlite, postgres,
// or mysql.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const (
	createConversationsTableSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    id VARCHAR(255) PRIMARY KEY,
    tenant_id VARCHAR(255) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    title VARCHAR(512),
    state VARCHAR(64),
    state_metadata TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

	createConversationsTenantIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_conversations_tenant ON conversations(tenant_id, user_id)`

	createMessagesTableSQL = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    id VARCHAR(255) PRIMARY KEY,
    conversation_id VARCHAR(255) NOT NULL,
    role VARCHAR(32) NOT NULL,
    content TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
)`

	createMessagesConversationIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages(conversation_id, timestamp)`
)

// NewSQLStore creates a store over an existing connection and ensures
// the schema.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	normalized, err := normalizeDialect(db, dialect)
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, dialect: normalized}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range []string{
		createConversationsTableSQL,
		createConversationsTenantIndexSQL,
		createMessagesTableSQL,
		createMessagesConversationIndexSQL,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateConversation(ctx context.Context, conv *Conversation) error {
	metadataJSON, err := json.Marshal(conv.StateMetadata)
	if err != nil {
		return fmt.Errorf("failed to serialize state metadata: %w", err)
	}

	query := `
INSERT INTO conversations (id, tenant_id, user_id, title, state, state_metadata, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}
	if _, err := s.db.ExecContext(ctx, query,
		conv.ID, conv.TenantID, conv.UserID, conv.Title, conv.State,
		string(metadataJSON), conv.CreatedAt, conv.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

func (s *SQLStore) GetConversation(ctx context.Context, tenantID, conversationID string) (*Conversation, error) {
	query := `
SELECT id, tenant_id, user_id, title, state, state_metadata, created_at, updated_at
FROM conversations
WHERE id = ? AND tenant_id = ?
`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	var (
		conv         Conversation
		title        sql.NullString
		state        sql.NullString
		metadataJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, conversationID, tenantID).Scan(
		&conv.ID, &conv.TenantID, &conv.UserID, &title, &state,
		&metadataJSON, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	conv.Title = title.String
	conv.State = state.String
	conv.StateMetadata = make(map[string]any)
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &conv.StateMetadata); err != nil {
			return nil, fmt.Errorf("failed to parse state metadata: %w", err)
		}
	}
	return &conv, nil
}

func (s *SQLStore) UpdateStateMetadata(ctx context.Context, tenantID, conversationID string, metadata map[string]any) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize state metadata: %w", err)
	}

	query := `
UPDATE conversations SET state_metadata = ?, updated_at = ?
WHERE id = ? AND tenant_id = ?
`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}
	result, err := s.db.ExecContext(ctx, query,
		string(metadataJSON), time.Now().UTC(), conversationID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update state metadata: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) AddMessage(ctx context.Context, tenantID string, msg *Message) error {
	// The tenant check rides on the conversation row.
	if _, err := s.GetConversation(ctx, tenantID, msg.ConversationID); err != nil {
		return err
	}

	query := `
INSERT INTO conversation_messages (id, conversation_id, role, content, timestamp)
VALUES (?, ?, ?, ?, ?)
`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}
	if _, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, msg.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

func (s *SQLStore) ListMessages(ctx context.Context, tenantID, conversationID string) ([]*Message, error) {
	if _, err := s.GetConversation(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}

	query := `
SELECT id, conversation_id, role, content, timestamp
FROM conversation_messages
WHERE conversation_id = ?
ORDER BY timestamp, id
`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

var _ ConversationStore = (*SQLStore)(nil)

// SQLCostRepository persists cost records.
type SQLCostRepository struct {
	db      *sql.DB
	dialect string
}

const createCostRecordsTableSQL = `
CREATE TABLE IF NOT EXISTS cost_records (
    id VARCHAR(255) PRIMARY KEY,
    tenant_id VARCHAR(255) NOT NULL,
    task_id VARCHAR(255) NOT NULL,
    chain_id VARCHAR(255),
    step_id VARCHAR(255),
    tool_name VARCHAR(255),
    cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
    tokens INTEGER NOT NULL DEFAULT 0,
    model VARCHAR(255),
    created_at TIMESTAMP NOT NULL
)`

const createCostRecordsTaskIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_cost_records_task ON cost_records(tenant_id, task_id)`

// NewSQLCostRepository creates the repository and ensures its schema.
func NewSQLCostRepository(db *sql.DB, dialect string) (*SQLCostRepository, error) {
	normalized, err := normalizeDialect(db, dialect)
	if err != nil {
		return nil, err
	}

	r := &SQLCostRepository{db: db, dialect: normalized}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, stmt := range []string{createCostRecordsTableSQL, createCostRecordsTaskIndexSQL} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return r, nil
}

func (r *SQLCostRepository) SaveRecord(ctx context.Context, record cost.Record) error {
	query := `
INSERT INTO cost_records (id, tenant_id, task_id, chain_id, step_id, tool_name, cost_usd, tokens, model, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	if r.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}
	if _, err := r.db.ExecContext(ctx, query,
		record.ID, record.TenantID, record.TaskID, record.ChainID, record.StepID,
		record.ToolName, record.CostUSD, record.Tokens, record.Model, record.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to save cost record: %w", err)
	}
	return nil
}

func (r *SQLCostRepository) ListByTask(ctx context.Context, tenantID, taskID string) ([]cost.Record, error) {
	query := `
SELECT id, tenant_id, task_id, chain_id, step_id, tool_name, cost_usd, tokens, model, created_at
FROM cost_records
WHERE tenant_id = ? AND task_id = ?
ORDER BY created_at, id
`
	if r.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	rows, err := r.db.QueryContext(ctx, query, tenantID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []cost.Record
	for rows.Next() {
		var (
			record   cost.Record
			chainID  sql.NullString
			stepID   sql.NullString
			toolName sql.NullString
			model    sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.TenantID, &record.TaskID, &chainID,
			&stepID, &toolName, &record.CostUSD, &record.Tokens, &model, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}
		record.ChainID = chainID.String
		record.StepID = stepID.String
		record.ToolName = toolName.String
		record.Model = model.String
		records = append(records, record)
	}
	return records, rows.Err()
}

var _ cost.Repository = (*SQLCostRepository)(nil)

// SQLModelUsageRepository accumulates per-day model usage with a
// (tenant, model, date) uniqueness constraint.
type SQLModelUsageRepository struct {
	db      *sql.DB
	dialect string
}

const createModelUsageTableSQL = `
CREATE TABLE IF NOT EXISTS model_usage (
    tenant_id VARCHAR(255) NOT NULL,
    model VARCHAR(255) NOT NULL,
    date DATE NOT NULL,
    call_count INTEGER NOT NULL DEFAULT 0,
    input_tokens INTEGER NOT NULL DEFAULT 0,
    output_tokens INTEGER NOT NULL DEFAULT 0,
    total_cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (tenant_id, model, date)
)`

// NewSQLModelUsageRepository creates the repository and ensures its
// schema.
func NewSQLModelUsageRepository(db *sql.DB, dialect string) (*SQLModelUsageRepository, error) {
	normalized, err := normalizeDialect(db, dialect)
	if err != nil {
		return nil, err
	}

	r := &SQLModelUsageRepository{db: db, dialect: normalized}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, createModelUsageTableSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return r, nil
}

// RecordUsage adds the delta onto the (tenant, model, date) row,
// creating it on first use.
func (r *SQLModelUsageRepository) RecordUsage(ctx context.Context, usage ModelUsage) error {
	day := usage.Date.UTC().Truncate(24 * time.Hour)

	query := `
INSERT INTO model_usage (tenant_id, model, date, call_count, input_tokens, output_tokens, total_cost_usd)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    call_count = call_count + VALUES(call_count),
    input_tokens = input_tokens + VALUES(input_tokens),
    output_tokens = output_tokens + VALUES(output_tokens),
    total_cost_usd = total_cost_usd + VALUES(total_cost_usd)
`
	switch r.dialect {
	case "postgres":
		query = convertToPostgresPlaceholders(`
INSERT INTO model_usage (tenant_id, model, date, call_count, input_tokens, output_tokens, total_cost_usd)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (tenant_id, model, date) DO UPDATE SET
    call_count = model_usage.call_count + EXCLUDED.call_count,
    input_tokens = model_usage.input_tokens + EXCLUDED.input_tokens,
    output_tokens = model_usage.output_tokens + EXCLUDED.output_tokens,
    total_cost_usd = model_usage.total_cost_usd + EXCLUDED.total_cost_usd
`)
	case "sqlite":
		query = `
INSERT INTO model_usage (tenant_id, model, date, call_count, input_tokens, output_tokens, total_cost_usd)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(tenant_id, model, date) DO UPDATE SET
    call_count = call_count + excluded.call_count,
    input_tokens = input_tokens + excluded.input_tokens,
    output_tokens = output_tokens + excluded.output_tokens,
    total_cost_usd = total_cost_usd + excluded.total_cost_usd
`
	}

	if _, err := r.db.ExecContext(ctx, query,
		usage.TenantID, usage.Model, day, usage.CallCount,
		usage.InputTokens, usage.OutputTokens, usage.TotalCostUSD,
	); err != nil {
		return fmt.Errorf("failed to record model usage: %w", err)
	}
	return nil
}

// GetUsage loads the aggregate for one (tenant, model, day).
func (r *SQLModelUsageRepository) GetUsage(ctx context.Context, tenantID, model string, date time.Time) (*ModelUsage, error) {
	query := `
SELECT tenant_id, model, date, call_count, input_tokens, output_tokens, total_cost_usd
FROM model_usage
WHERE tenant_id = ? AND model = ? AND date = ?
`
	if r.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	var usage ModelUsage
	err := r.db.QueryRowContext(ctx, query, tenantID, model, date.UTC().Truncate(24*time.Hour)).Scan(
		&usage.TenantID, &usage.Model, &usage.Date, &usage.CallCount,
		&usage.InputTokens, &usage.OutputTokens, &usage.TotalCostUSD,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model usage: %w", err)
	}
	return &usage, nil
}

var _ ModelUsageRepository = (*SQLModelUsageRepository)(nil)

func normalizeDialect(db *sql.DB, dialect string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("database connection is required")
	}
	normalized := dialect
	if dialect == "sqlite3" {
		normalized = "sqlite"
	}
	switch normalized {
	case "postgres", "mysql", "sqlite":
		return normalized, nil
	}
	return "", fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
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
