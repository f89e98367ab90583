package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id BIGSERIAL PRIMARY KEY,
		place_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		website_url TEXT NOT NULL DEFAULT '',
		ssl_active BOOLEAN NOT NULL DEFAULT FALSE,
		mobile_viewport BOOLEAN NOT NULL DEFAULT FALSE,
		contact_info_found BOOLEAN NOT NULL DEFAULT FALSE,
		content_heuristic_score INTEGER NOT NULL DEFAULT 0,
		status_code INTEGER,
		analysis_error TEXT,
		analysis_notes TEXT NOT NULL DEFAULT '',
		tech_stack TEXT,
		load_time_ms BIGINT,
		copyright_year INTEGER,
		status TEXT NOT NULL DEFAULT 'Scraped',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_analyzed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS leads_status_idx ON leads (status)`,
	`CREATE TABLE IF NOT EXISTS app_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS api_usage (
		name TEXT PRIMARY KEY,
		value BIGINT NOT NULL DEFAULT 0,
		billing_month TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analysis_jobs (
		job_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		lead_ids BIGINT[] NOT NULL,
		error_text TEXT NOT NULL DEFAULT '',
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		submitted_at TIMESTAMPTZ NOT NULL,
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	)`,
}

// EnsureSchema creates the tables used by the stores when they are missing.
func EnsureSchema(ctx context.Context, pool Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
