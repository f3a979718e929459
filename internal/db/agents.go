package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ListActiveAgentsByTimeframe returns active agents whose primary timeframe
// matches the pipeline's timeframe.
func (db *DB) ListActiveAgentsByTimeframe(ctx context.Context, timeframe string) ([]Agent, error) {
	query := `
		SELECT id, name, display_name, archetype, timeframe, engine, source,
		       status, initial_balance, evolution_threshold, created_at
		FROM agents
		WHERE status = 'active' AND timeframe = $1
		ORDER BY name
	`

	rows, err := db.pool.Query(ctx, query, timeframe)
	if err != nil {
		return nil, fmt.Errorf("failed to list active agents for %s: %w", timeframe, err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.DisplayName, &a.Archetype, &a.Timeframe,
			&a.Engine, &a.Source, &a.Status, &a.InitialBalance, &a.EvolutionThreshold,
			&a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// ListActiveAgents returns every active agent
func (db *DB) ListActiveAgents(ctx context.Context) ([]Agent, error) {
	query := `
		SELECT id, name, display_name, archetype, timeframe, engine, source,
		       status, initial_balance, evolution_threshold, created_at
		FROM agents
		WHERE status = 'active'
		ORDER BY name
	`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.DisplayName, &a.Archetype, &a.Timeframe,
			&a.Engine, &a.Source, &a.Status, &a.InitialBalance, &a.EvolutionThreshold,
			&a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// GetActivePromptVersion resolves the agent's active prompt version.
// Rule-engine agents default to version 1 when no prompt row exists.
func (db *DB) GetActivePromptVersion(ctx context.Context, agentID uuid.UUID) (int, error) {
	query := `
		SELECT version FROM agent_prompts
		WHERE agent_id = $1 AND active = true
		ORDER BY version DESC
		LIMIT 1
	`

	var version int
	err := db.pool.QueryRow(ctx, query, agentID).Scan(&version)
	if err != nil {
		return 1, nil // no active prompt; metadata-only for rule engines
	}
	return version, nil
}

// GetRecentMemory returns the agent's most recent memory entries as opaque
// strings, newest first.
func (db *DB) GetRecentMemory(ctx context.Context, agentID uuid.UUID, limit int) ([]string, error) {
	query := `
		SELECT content FROM agent_memory
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent memory: %w", err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		entries = append(entries, content)
	}
	return entries, rows.Err()
}

// UpsertTokenUsage accumulates per-day usage counters on
// (agent, model, task type, date). Zero rows are skipped by callers.
func (db *DB) UpsertTokenUsage(ctx context.Context, q Executor, usage TokenUsage) error {
	query := `
		INSERT INTO agent_token_usage (
			agent_id, model, task_type, usage_date, input_tokens, output_tokens, cost_usd
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (agent_id, model, task_type, usage_date) DO UPDATE SET
			input_tokens = agent_token_usage.input_tokens + EXCLUDED.input_tokens,
			output_tokens = agent_token_usage.output_tokens + EXCLUDED.output_tokens,
			cost_usd = agent_token_usage.cost_usd + EXCLUDED.cost_usd
	`

	usageDate := usage.UsageDate
	if usageDate.IsZero() {
		usageDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	_, err := q.Exec(ctx, query,
		usage.AgentID, usage.Model, usage.TaskType, usageDate,
		usage.InputTokens, usage.OutputTokens, usage.CostUSD)
	if err != nil {
		return fmt.Errorf("failed to upsert token usage: %w", err)
	}
	return nil
}
