package infra

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Schema statements are idempotent so startup can apply them every run.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		legacy_credits BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		provider_job_id TEXT NOT NULL DEFAULT '',
		credits_cost BIGINT NOT NULL,
		result_ref TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS ix_jobs_user_created ON jobs (user_id, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS credit_balances (
		user_id TEXT PRIMARY KEY,
		total_credits BIGINT NOT NULL CHECK (total_credits >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		reason TEXT NOT NULL,
		related_job_id TEXT NOT NULL DEFAULT '',
		external_ref TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS ix_credit_transactions_user_created ON credit_transactions (user_id, created_at DESC);`,
	// Settlement and grant idempotency ride on these two indexes.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_transactions_consumption_job
		ON credit_transactions (related_job_id) WHERE reason = 'consumption';`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_transactions_external_ref
		ON credit_transactions (external_ref) WHERE external_ref <> '';`,
}

// ApplySchema creates missing tables and indexes at startup.
func ApplySchema(databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
