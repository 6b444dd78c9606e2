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
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLRepository persists versioned prompts over sqlite, postgres, or
// mysql. Every version is kept; Get reads the latest.
type SQLRepository struct {
	db      *sql.DB
	dialect string
}

const createPromptsTableSQL = `
CREATE TABLE IF NOT EXISTS prompts (
    layer VARCHAR(32) NOT NULL,
    scope_id VARCHAR(255) NOT NULL,
    tenant_id VARCHAR(255) NOT NULL,
    name VARCHAR(255),
    template TEXT NOT NULL,
    merge_points TEXT,
    variables TEXT,
    version INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (layer, scope_id, tenant_id, version)
)`

// NewSQLRepository creates a repository over an existing connection and
// ensures the schema.
func NewSQLRepository(db *sql.DB, dialect string) (*SQLRepository, error) {
	normalized, err := normalizeDialect(db, dialect)
	if err != nil {
		return nil, err
	}

	r := &SQLRepository{db: db, dialect: normalized}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, createPromptsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize prompts schema: %w", err)
	}
	return r, nil
}

// Get returns the latest version for the layer, scope and tenant.
func (r *SQLRepository) Get(ctx context.Context, layer Layer, scopeID, tenantID string) (*Prompt, error) {
	query := `
SELECT layer, scope_id, tenant_id, name, template, merge_points, variables, version, created_at
FROM prompts
WHERE layer = ? AND scope_id = ? AND tenant_id = ?
ORDER BY version DESC
LIMIT 1
`
	if r.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	row := r.db.QueryRowContext(ctx, query, string(layer), scopeID, tenantID)

	var p Prompt
	var name, mergePointsJSON, variablesJSON sql.NullString
	err := row.Scan(&p.Layer, &p.ScopeID, &p.TenantID, &name,
		&p.Template, &mergePointsJSON, &variablesJSON, &p.Version, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, NewError(CodePromptNotFound, "no %s prompt for scope %q", layer, scopeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt: %w", err)
	}

	p.Name = name.String
	if mergePointsJSON.Valid && mergePointsJSON.String != "" {
		if err := json.Unmarshal([]byte(mergePointsJSON.String), &p.MergePoints); err != nil {
			return nil, fmt.Errorf("failed to decode merge points: %w", err)
		}
	}
	if variablesJSON.Valid && variablesJSON.String != "" {
		if err := json.Unmarshal([]byte(variablesJSON.String), &p.Variables); err != nil {
			return nil, fmt.Errorf("failed to decode variables: %w", err)
		}
	}
	return &p, nil
}

// Put stores a new version. A zero version is assigned automatically;
// an explicit version must exceed the current one.
func (r *SQLRepository) Put(ctx context.Context, p *Prompt) error {
	if err := p.Validate(); err != nil {
		return err
	}

	currentQuery := `
SELECT COALESCE(MAX(version), 0) FROM prompts WHERE layer = ? AND scope_id = ? AND tenant_id = ?
`
	if r.dialect == "postgres" {
		currentQuery = convertToPostgresPlaceholders(currentQuery)
	}
	var current int
	if err := r.db.QueryRowContext(ctx, currentQuery,
		string(p.Layer), p.ScopeID, p.TenantID).Scan(&current); err != nil {
		return fmt.Errorf("failed to read current prompt version: %w", err)
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

	mergePointsJSON, err := json.Marshal(p.MergePoints)
	if err != nil {
		return fmt.Errorf("failed to serialize merge points: %w", err)
	}
	variablesJSON, err := json.Marshal(p.Variables)
	if err != nil {
		return fmt.Errorf("failed to serialize variables: %w", err)
	}

	insert := `
INSERT INTO prompts (layer, scope_id, tenant_id, name, template, merge_points, variables, version, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	if r.dialect == "postgres" {
		insert = convertToPostgresPlaceholders(insert)
	}
	if _, err := r.db.ExecContext(ctx, insert,
		string(p.Layer), p.ScopeID, p.TenantID, p.Name, p.Template,
		string(mergePointsJSON), string(variablesJSON), p.Version, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to store prompt: %w", err)
	}
	return nil
}

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
