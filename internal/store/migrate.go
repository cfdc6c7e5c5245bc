package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema if it does not exist. Statements are idempotent
// so every service can run it at startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY,
			balance NUMERIC(20,6) NOT NULL DEFAULT 0,
			locked_balance NUMERIC(20,6) NOT NULL DEFAULT 0,
			secondary_balance NUMERIC(20,6) NOT NULL DEFAULT 0,
			total_spent NUMERIC(20,6) NOT NULL DEFAULT 0,
			total_earned NUMERIC(20,6) NOT NULL DEFAULT 0,
			total_exchanged NUMERIC(20,6) NOT NULL DEFAULT 0,
			reputation_index NUMERIC(8,4) NOT NULL DEFAULT 1.0,
			false_dispute_strikes INT NOT NULL DEFAULT 0,
			forfeited BOOLEAN NOT NULL DEFAULT FALSE,
			suspended BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			version INT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS escrows (
			id UUID PRIMARY KEY,
			owner_id UUID NOT NULL REFERENCES accounts(id),
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			genre TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT 'kr',
			media_type TEXT NOT NULL DEFAULT 'audio',
			balance NUMERIC(20,6) NOT NULL DEFAULT 0,
			max_balance NUMERIC(20,6) NOT NULL DEFAULT 0,
			confirmed_revenue NUMERIC(20,6) NOT NULL DEFAULT 0,
			held_revenue NUMERIC(20,6) NOT NULL DEFAULT 0,
			verification_status TEXT NOT NULL DEFAULT 'unverified',
			shared BOOLEAN NOT NULL DEFAULT FALSE,
			revenue_held BOOLEAN NOT NULL DEFAULT FALSE,
			play_count BIGINT NOT NULL DEFAULT 0,
			popularity_score BIGINT NOT NULL DEFAULT 0,
			revenue_started_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			version INT NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escrows_owner ON escrows(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_escrows_charts ON escrows(verification_status, shared, popularity_score DESC)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id),
			escrow_id UUID REFERENCES escrows(id),
			kind TEXT NOT NULL,
			amount NUMERIC(20,6) NOT NULL,
			balance_after NUMERIC(20,6) NOT NULL,
			counterpart_account_id UUID,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS playback_events (
			id UUID PRIMARY KEY,
			escrow_id UUID NOT NULL REFERENCES escrows(id),
			player_account_id UUID,
			deducted NUMERIC(20,6) NOT NULL,
			revenue_credited NUMERIC(20,6) NOT NULL,
			escrow_balance_after NUMERIC(20,6) NOT NULL,
			duration_seconds INT NOT NULL,
			boost_mode BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_playback_escrow ON playback_events(escrow_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS disputes (
			id UUID PRIMARY KEY,
			escrow_id UUID NOT NULL REFERENCES escrows(id),
			disputer_account_id UUID NOT NULL REFERENCES accounts(id),
			category TEXT NOT NULL,
			reason TEXT NOT NULL,
			evidence_refs JSONB NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'pending',
			result_note TEXT NOT NULL DEFAULT '',
			days_remaining INT NOT NULL DEFAULT 30,
			false_strike_added BOOLEAN NOT NULL DEFAULT FALSE,
			reputation_delta_applied NUMERIC(8,4) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_disputes_escrow ON disputes(escrow_id)`,
		`CREATE INDEX IF NOT EXISTS idx_disputes_disputer ON disputes(disputer_account_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS reputation_events (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(id),
			delta NUMERIC(8,4) NOT NULL,
			index_after NUMERIC(8,4) NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reputation_account ON reputation_events(account_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS verification_requests (
			id UUID PRIMARY KEY,
			escrow_id UUID NOT NULL REFERENCES escrows(id),
			account_id UUID NOT NULL REFERENCES accounts(id),
			submission JSONB NOT NULL,
			verdict JSONB NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
