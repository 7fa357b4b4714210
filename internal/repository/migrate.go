package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Migrate applies the database schema. Statements are idempotent so the
// server can run them on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: users table. The CHECK is a backstop; the ledger's
	// conditional debit is what keeps balances non-negative.
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(255) PRIMARY KEY,
			balance NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			last_active TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: daily_lines table, one row per calendar day.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS daily_lines (
			date VARCHAR(10) PRIMARY KEY,
			question TEXT NOT NULL,
			yes_odds INT NOT NULL,
			no_odds INT NOT NULL,
			cutoff_time TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			winning_side VARCHAR(3),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: daily_lines table created")

	// Migration 3: bets table. Username is deliberately not a foreign
	// key: bets must survive account deletion so settlement can report
	// uncreditable winners instead of losing the record.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bets (
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			line_id VARCHAR(10) NOT NULL REFERENCES daily_lines(date),
			choice VARCHAR(3) NOT NULL CHECK (choice IN ('YES','NO')),
			amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_bets_line_time ON bets(line_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_bets_username ON bets(username);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: bets table created")

	// Migration 4: deposits table; the txid primary key is the
	// idempotency guard for external crediting.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deposits (
			txid VARCHAR(80) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			amount NUMERIC(20,8) NOT NULL,
			confirmed BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_deposits_username ON deposits(username, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: deposits table created")

	// Migration 5: withdrawals table.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS withdrawals (
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			amount NUMERIC(20,8) NOT NULL CHECK (amount > 0),
			status VARCHAR(10) NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING','APPROVED','REJECTED')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_username_time ON withdrawals(username, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_pending ON withdrawals(created_at) WHERE status = 'PENDING';
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: withdrawals table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
