package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"daily-bet-platform/internal/model"
)

// ErrDuplicateTxid is returned when a transaction id was already
// credited. The deposits primary key is the idempotency guard.
var ErrDuplicateTxid = errors.New("transaction id already used")

const pgUniqueViolation = "23505"

// DepositRepository handles blockchain deposit records.
type DepositRepository struct {
	pool *pgxpool.Pool
}

// NewDepositRepository creates a new DepositRepository instance.
func NewDepositRepository(pool *pgxpool.Pool) *DepositRepository {
	return &DepositRepository{pool: pool}
}

// Exists reports whether a txid has already been recorded.
func (r *DepositRepository) Exists(ctx context.Context, txid string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM deposits WHERE txid = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, txid).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check txid: %w", err)
	}
	return exists, nil
}

// CreditConfirmed records the txid and credits the user's balance in a
// single database transaction: the deposit row is the commit point, so
// a crash mid-way leaves neither a stray credit nor a half-written
// record, and a retry is stopped by the primary key. Returns the new
// balance, ErrDuplicateTxid on replay, ErrUserNotFound if the account
// is missing.
func (r *DepositRepository) CreditConfirmed(ctx context.Context, username, txid string, amount decimal.Decimal) (decimal.Decimal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin deposit transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO deposits (txid, username, amount, confirmed, created_at)
		VALUES ($1, $2, $3::numeric, TRUE, NOW())
	`, txid, username, amount.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return decimal.Zero, ErrDuplicateTxid
		}
		return decimal.Zero, fmt.Errorf("failed to record deposit: %w", err)
	}

	var balance string
	err = tx.QueryRow(ctx, `
		UPDATE users
		SET balance = balance + $2::numeric, updated_at = NOW()
		WHERE username = $1
		RETURNING balance::text
	`, username, amount.String()).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to credit deposit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit deposit: %w", err)
	}
	return decimal.NewFromString(balance)
}

// ListByUsername retrieves a user's deposit records, newest first.
func (r *DepositRepository) ListByUsername(ctx context.Context, username string) ([]*model.Deposit, error) {
	const query = `
		SELECT txid, username, amount::text, confirmed, created_at
		FROM deposits
		WHERE username = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		var d model.Deposit
		var amount string
		if err := rows.Scan(&d.Txid, &d.Username, &amount, &d.Confirmed, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		if d.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse deposit amount %q: %w", amount, err)
		}
		deposits = append(deposits, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}
	return deposits, nil
}
